package kb

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const defaultRange = "A:D"

// NewSheetsLoader reads question/answer rows from a Google spreadsheet with
// a read-only service account.
func NewSheetsLoader(ctx context.Context, cfg Config) (Loader, error) {
	service, err := sheets.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(sheets.SpreadsheetsReadonlyScope),
	)

	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	log := zap.L().With(
		zap.String("loader", "sheets"),
		zap.String("spreadsheet_id", cfg.SpreadsheetID),
	)

	return &sheetsLoader{
		cfg:     cfg,
		service: service,
		log:     log,
	}, nil
}

type sheetsLoader struct {
	cfg     Config
	service *sheets.Service
	log     *zap.Logger
}

func (loader *sheetsLoader) Load(ctx context.Context) ([]Record, error) {
	readRange := loader.cfg.Range
	if readRange == "" {
		readRange = defaultRange
	}

	resp, err := loader.service.Spreadsheets.Values.
		Get(loader.cfg.SpreadsheetID, readRange).
		Context(ctx).
		Do()

	if err != nil {
		return nil, fmt.Errorf("read spreadsheet: %w", err)
	}

	rows := make([][]string, len(resp.Values))
	for i, raw := range resp.Values {
		row := make([]string, len(raw))
		for j, cell := range raw {
			row[j] = fmt.Sprint(cell)
		}

		rows[i] = row
	}

	records := recordsFromRows(rows, loader.log)

	loader.log.Info("knowledge base loaded",
		zap.String("range", readRange),
		zap.Int("rows", len(rows)),
		zap.Int("records", len(records)),
	)

	return records, nil
}
