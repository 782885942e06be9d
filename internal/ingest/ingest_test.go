package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/resolve-cli/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(t *testing.T, rowCh <-chan map[string]any, errCh <-chan error) []map[string]any {
	t.Helper()
	var rows []map[string]any
	for row := range rowCh {
		rows = append(rows, row)
	}
	require.NoError(t, <-errCh)
	return rows
}

func TestStream_CSV(t *testing.T) {
	path := writeFile(t, "companies.csv",
		"Company Name,UEN,Website\nTiger Trading,201912345A,https://tiger.sg\nABC Pte Ltd,,\n")

	rowCh, errCh := Stream(context.Background(), Source{Path: path})
	rows := drain(t, rowCh, errCh)

	require.Len(t, rows, 2)
	assert.Equal(t, "Tiger Trading", rows[0]["company_name"])
	assert.Equal(t, "201912345A", rows[0]["uen"])
	assert.Equal(t, "https://tiger.sg", rows[0]["website"])

	// Empty cells are absent, not empty strings.
	assert.NotContains(t, rows[1], "uen")
}

func TestStream_CSVRaggedRows(t *testing.T) {
	path := writeFile(t, "ragged.csv", "name,website\nABC\nDEF,https://def.sg,extra\n")

	rowCh, errCh := Stream(context.Background(), Source{Path: path})
	rows := drain(t, rowCh, errCh)

	require.Len(t, rows, 2)
	assert.NotContains(t, rows[0], "website")
	assert.Equal(t, "https://def.sg", rows[1]["website"])
}

func TestStream_JSONL(t *testing.T) {
	path := writeFile(t, "companies.jsonl",
		`{"name":"Tiger Trading","employee_count":25}`+"\n\n"+`{"name":"ABC","keywords":["saas","cloud"]}`+"\n")

	rowCh, errCh := Stream(context.Background(), Source{Path: path})
	rows := drain(t, rowCh, errCh)

	require.Len(t, rows, 2)
	assert.Equal(t, "Tiger Trading", rows[0]["name"])
	assert.Equal(t, float64(25), rows[0]["employee_count"])
	assert.Equal(t, []any{"saas", "cloud"}, rows[1]["keywords"])
}

func TestStream_JSONLBadLine(t *testing.T) {
	path := writeFile(t, "bad.jsonl", `{"name":"ok"}`+"\n{not json\n")

	rowCh, errCh := Stream(context.Background(), Source{Path: path})
	var rows []map[string]any
	for row := range rowCh {
		rows = append(rows, row)
	}

	assert.Len(t, rows, 1)
	assert.Error(t, <-errCh)
}

func TestStream_XLSX(t *testing.T) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Companies")
	require.NoError(t, err)

	addRow := func(cells ...string) {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	addRow("Name", "Industry")
	addRow("Tiger Trading", "Logistics")
	addRow("ABC Pte Ltd", "")

	path := filepath.Join(t.TempDir(), "companies.xlsx")
	require.NoError(t, f.Save(path))

	rowCh, errCh := Stream(context.Background(), Source{Path: path})
	rows := drain(t, rowCh, errCh)

	require.Len(t, rows, 2)
	assert.Equal(t, "Tiger Trading", rows[0]["name"])
	assert.Equal(t, "Logistics", rows[0]["industry"])
	assert.NotContains(t, rows[1], "industry")
}

func TestStream_UnsupportedFormat(t *testing.T) {
	rowCh, errCh := Stream(context.Background(), Source{Path: "companies.parquet"})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}

func TestStream_MissingFile(t *testing.T) {
	rowCh, errCh := Stream(context.Background(), Source{
		Path: filepath.Join(t.TempDir(), "nope.csv"),
		Meta: model.SourceMeta{Name: "registry", Tier: model.TierRegistry},
	})
	for range rowCh {
	}
	assert.Error(t, <-errCh)
}
