package kb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, name, cell))
		}
	}

	path := filepath.Join(t.TempDir(), "kb.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	return path
}

func TestExcelLoader(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Question", "Answer", "Category", "Keywords"},
		{"What is the price?", "10 per month", "billing", "price, cost"},
		{"How do I sign up?", "Use the web form.", "", ""},
		{"", "orphan answer", "billing", ""},
		{"orphan question", "", "", ""},
	})

	loader := NewExcelLoader(Config{Source: "excel", Path: path})

	records, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "What is the price?", records[0].Question)
	assert.Equal(t, "10 per month", records[0].Answer)
	assert.Equal(t, "billing", records[0].Category)
	assert.Equal(t, "price, cost", records[0].Keywords)

	// Category falls back to the default when the cell is blank.
	assert.Equal(t, DefaultCategory, records[1].Category)
}

func TestExcelLoaderMissingColumns(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Question", "Answer"},
		{"What is the price?", "10 per month"},
	})

	loader := NewExcelLoader(Config{Source: "excel", Path: path})

	records, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, DefaultCategory, records[0].Category)
	assert.Empty(t, records[0].Keywords)
}

func TestExcelLoaderMissingFile(t *testing.T) {
	loader := NewExcelLoader(Config{Source: "excel", Path: "no-such-file.xlsx"})

	_, err := loader.Load(context.Background())
	assert.Error(t, err)
}

func TestRecordsFromRowsHeaderCase(t *testing.T) {
	rows := [][]string{
		{"QUESTION", "answer", " Category "},
		{"q", "a", "c"},
	}

	records := recordsFromRows(rows, zap.NewNop())
	require.Len(t, records, 1)
	assert.Equal(t, "c", records[0].Category)
}

func TestRecordsFromRowsHeadersOnly(t *testing.T) {
	rows := [][]string{{"Question", "Answer"}}

	assert.Empty(t, recordsFromRows(rows, zap.NewNop()))
}
