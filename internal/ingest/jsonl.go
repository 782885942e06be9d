package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// streamJSONL reads a file with one JSON object per line.
func streamJSONL(ctx context.Context, path string) (<-chan map[string]any, <-chan error) {
	rowCh := make(chan map[string]any, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := os.Open(path)
		if err != nil {
			errCh <- eris.Wrap(err, "ingest: open jsonl")
			return
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		line := 0
		for scanner.Scan() {
			line++
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: jsonl cancelled")
				return
			}

			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				continue
			}

			var m map[string]any
			if err := json.Unmarshal([]byte(text), &m); err != nil {
				errCh <- eris.Wrapf(err, "ingest: jsonl line %d", line)
				return
			}

			select {
			case rowCh <- m:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: jsonl cancelled")
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- eris.Wrap(err, "ingest: scan jsonl")
		}
	}()

	return rowCh, errCh
}
