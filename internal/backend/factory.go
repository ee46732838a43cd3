// Package backend picks the ledger sink the worker writes to.
package backend

import (
	"context"
	"fmt"

	"pft/internal/config"
	"pft/internal/log"
	"pft/internal/sheets"
	gsheet "pft/internal/sheets/google"
	"pft/internal/sheets/memory"
)

// SinkTypes lists the accepted LEDGER_SINK values.
func SinkTypes() []string {
	return []string{config.SinkMemory, config.SinkSheets}
}

// NewLedgerSink builds the sink named by cfg.LedgerSink.
func NewLedgerSink(ctx context.Context, cfg *config.Config, logger *log.Logger) (sheets.LedgerSink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is nil")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentSheets)

	switch cfg.LedgerSink {
	case config.SinkSheets:
		client, err := gsheet.NewFromConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
		}
		logger.Info("Initialized Google Sheets ledger",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"ledger_sheet", cfg.GoogleLedgerSheet,
			"alerts_sheet", cfg.GoogleAlertsSheet)
		return client, nil
	case config.SinkMemory, "":
		logger.Info("Initialized memory ledger")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unsupported ledger sink %q: must be one of %v", cfg.LedgerSink, SinkTypes())
	}
}
