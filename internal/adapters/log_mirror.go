package adapters

import (
	"context"
	"log/slog"

	"aarthik/internal/sheets"
)

// LogMirror stands in for a ledger mirror when none is configured. It only
// logs the rows it receives.
type LogMirror struct {
	logger *slog.Logger
}

var _ sheets.LedgerMirror = (*LogMirror)(nil)

func NewLogMirror(logger *slog.Logger) *LogMirror {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMirror{logger: logger}
}

func (m *LogMirror) Upsert(ctx context.Context, row sheets.Row) error {
	m.logger.DebugContext(ctx, "Mirror upsert",
		"transaction_id", row.TransactionID,
		"profile_id", row.ProfileID,
		"version", row.Version)
	return nil
}

func (m *LogMirror) Delete(ctx context.Context, row sheets.Row) error {
	m.logger.DebugContext(ctx, "Mirror delete",
		"transaction_id", row.TransactionID,
		"profile_id", row.ProfileID,
		"version", row.Version)
	return nil
}
