package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"
)

// streamCSV reads a headered CSV file and sends one map per data row.
func streamCSV(ctx context.Context, path string) (<-chan map[string]any, <-chan error) {
	rowCh := make(chan map[string]any, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- eris.Wrap(err, "ingest: open csv")
			return
		}
		defer f.Close()

		reader := csv.NewReader(f)
		reader.FieldsPerRecord = -1 // allow ragged rows

		headerRow, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "ingest: read csv header")
			return
		}
		header := make([]string, len(headerRow))
		for i, h := range headerRow {
			header[i] = columnKey(h)
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv cancelled")
				return
			}

			row, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read csv row")
				return
			}

			m := rowToMap(header, row)
			if len(m) == 0 {
				continue
			}
			select {
			case rowCh <- m:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: csv cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
