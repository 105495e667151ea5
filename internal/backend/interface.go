package backend

import (
	"context"

	"aarthik/internal/sheets"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// MirrorResult contains the mirror instance and optional cleanup function
type MirrorResult struct {
	Mirror  sheets.LedgerMirror
	Cleanup CleanupFunc
}

// Factory creates ledger mirrors based on configuration
type Factory interface {
	// CreateMirror creates a mirror instance based on the provided config
	CreateMirror(ctx context.Context, config Config) (*MirrorResult, error)
}

// Config holds configuration for mirror creation
type Config struct {
	Type MirrorType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string
}

// MirrorType selects where ledger events are mirrored to
type MirrorType string

const (
	NoMirror     MirrorType = "none"
	MemoryMirror MirrorType = "memory"
	SheetsMirror MirrorType = "sheets"
)

// String implements fmt.Stringer
func (mt MirrorType) String() string {
	return string(mt)
}

// IsValid returns true if the mirror type is valid
func (mt MirrorType) IsValid() bool {
	switch mt {
	case NoMirror, MemoryMirror, SheetsMirror:
		return true
	default:
		return false
	}
}
