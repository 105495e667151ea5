package backend

import (
	"context"
	"fmt"
	"log/slog"

	"aarthik/internal/adapters"
	gsheet "aarthik/internal/sheets/google"
	"aarthik/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new mirror factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateMirror implements Factory.CreateMirror
func (f *DefaultFactory) CreateMirror(ctx context.Context, config Config) (*MirrorResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsMirror:
		return f.createSheetsMirror(ctx, config)
	case MemoryMirror:
		f.logger.Info("Initialized memory mirror")
		return &MirrorResult{Mirror: memory.New()}, nil
	case NoMirror:
		f.logger.Info("Ledger mirror disabled, events are only logged")
		return &MirrorResult{Mirror: adapters.NewLogMirror(f.logger)}, nil
	default:
		return nil, fmt.Errorf("unsupported mirror type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsMirror(ctx context.Context, config Config) (*MirrorResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetName:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.Info("Initialized Google Sheets mirror",
		"spreadsheet_id", config.GoogleSpreadsheetID,
		"sheet", config.GoogleSheetName)

	return &MirrorResult{
		Mirror:  cli,
		Cleanup: nil, // No cleanup needed for sheets mirror
	}, nil
}
