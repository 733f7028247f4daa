package kb

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// NewExcelLoader reads question/answer rows from a local .xlsx workbook.
// With an empty sheet name the workbook's first sheet is used.
func NewExcelLoader(cfg Config) Loader {
	log := zap.L().With(
		zap.String("loader", "excel"),
		zap.String("path", cfg.Path),
	)

	return &excelLoader{
		cfg: cfg,
		log: log,
	}
}

type excelLoader struct {
	cfg Config
	log *zap.Logger
}

func (loader *excelLoader) Load(ctx context.Context) ([]Record, error) {
	f, err := excelize.OpenFile(loader.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := loader.cfg.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	records := recordsFromRows(rows, loader.log)

	loader.log.Info("knowledge base loaded",
		zap.String("sheet", sheet),
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)),
	)

	return records, nil
}
