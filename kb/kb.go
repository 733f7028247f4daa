package kb

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

const DefaultCategory = "general"

// Record is one validated question/answer pair from the knowledge base.
type Record struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
	Keywords string `json:"keywords,omitempty"`
}

type Config struct {
	Source          string `yaml:"source"` // "sheets" or "excel"
	SpreadsheetID   string `yaml:"spreadsheetID"`
	CredentialsFile string `yaml:"credentialsFile"`
	Range           string `yaml:"range"`
	Path            string `yaml:"path"`  // excel workbook path
	Sheet           string `yaml:"sheet"` // excel sheet name
}

type Loader interface {
	// Load reads every row from the source. Invalid rows are skipped, not
	// fatal; a total read failure is returned as an error and callers treat
	// it as "no data available".
	Load(ctx context.Context) ([]Record, error)
}

var expectedColumns = []string{"question", "answer", "category", "keywords"}

// recordsFromRows maps raw rows into Records. The first row holds column
// headers, matched case-insensitively; missing columns are backfilled empty.
// Rows without both a question and an answer are dropped with a warning.
func recordsFromRows(rows [][]string, log *zap.Logger) []Record {
	if len(rows) < 2 {
		return []Record{}
	}

	index := make(map[string]int, len(expectedColumns))
	for _, name := range expectedColumns {
		index[name] = -1
	}

	for i, header := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(header))
		if _, ok := index[name]; ok && index[name] < 0 {
			index[name] = i
		}
	}

	cell := func(row []string, column string) string {
		i := index[column]
		if i < 0 || i >= len(row) {
			return ""
		}

		return strings.TrimSpace(row[i])
	}

	records := make([]Record, 0, len(rows)-1)

	for n, row := range rows[1:] {
		record := Record{
			Question: cell(row, "question"),
			Answer:   cell(row, "answer"),
			Category: cell(row, "category"),
			Keywords: cell(row, "keywords"),
		}

		if record.Question == "" || record.Answer == "" {
			log.Warn("row skipped, question or answer missing",
				zap.Int("row", n+2),
			)
			continue
		}

		if record.Category == "" {
			record.Category = DefaultCategory
		}

		records = append(records, record)
	}

	return records
}
