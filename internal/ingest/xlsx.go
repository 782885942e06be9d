package ingest

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// streamXLSX reads the first sheet of an XLSX workbook, treating the first
// row as the header.
func streamXLSX(ctx context.Context, path string) (<-chan map[string]any, <-chan error) {
	rowCh := make(chan map[string]any, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		f, err := xlsx.OpenFile(path)
		if err != nil {
			errCh <- eris.Wrap(err, "ingest: open xlsx")
			return
		}
		if len(f.Sheets) == 0 {
			errCh <- eris.New("ingest: xlsx has no sheets")
			return
		}
		sheet := f.Sheets[0]

		var header []string
		for i, row := range sheet.Rows {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: xlsx cancelled")
				return
			}

			cells := make([]string, len(row.Cells))
			for j, cell := range row.Cells {
				cells[j] = cell.String()
			}

			if i == 0 {
				header = make([]string, len(cells))
				for j, h := range cells {
					header[j] = columnKey(h)
				}
				continue
			}

			m := rowToMap(header, cells)
			if len(m) == 0 {
				continue
			}
			select {
			case rowCh <- m:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: xlsx cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}
