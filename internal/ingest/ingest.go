// Package ingest streams raw company payloads out of source files. It
// understands CSV, JSONL, and XLSX; everything downstream works with the
// generic row maps produced here.
package ingest

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/resolve-cli/internal/model"
)

// Source names one input file and the trust metadata of the system it came
// from.
type Source struct {
	Path string           `json:"path"`
	Meta model.SourceMeta `json:"meta"`
}

// Stream reads a source file and sends one raw row map per record. The
// format is chosen from the file extension. Caller must drain the row
// channel; both channels close when the file is done.
func Stream(ctx context.Context, src Source) (<-chan map[string]any, <-chan error) {
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".csv":
		return streamCSV(ctx, src.Path)
	case ".jsonl", ".ndjson":
		return streamJSONL(ctx, src.Path)
	case ".xlsx":
		return streamXLSX(ctx, src.Path)
	default:
		rowCh := make(chan map[string]any)
		errCh := make(chan error, 1)
		errCh <- eris.Errorf("ingest: unsupported file format %q", filepath.Ext(src.Path))
		close(rowCh)
		close(errCh)
		return rowCh, errCh
	}
}

// columnKey normalizes a header cell into a row-map key: lower snake case.
func columnKey(header string) string {
	k := strings.ToLower(strings.TrimSpace(header))
	k = strings.ReplaceAll(k, " ", "_")
	k = strings.ReplaceAll(k, "-", "_")
	return k
}

// rowToMap zips a header onto one data row, skipping empty cells.
func rowToMap(header []string, row []string) map[string]any {
	out := make(map[string]any, len(header))
	for i, key := range header {
		if key == "" || i >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[i]); v != "" {
			out[key] = v
		}
	}
	return out
}
