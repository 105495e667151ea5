package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	ports "aarthik/internal/sheets"
)

// Column layout of a ledger sheet, starting at A.
var header = []any{"transaction_id", "date", "type", "category", "description", "amount", "recurrence", "user_id", "profile_id", "version"}

const lastColumn = "J"

// Config selects the spreadsheet and credentials.
type Config struct {
	SpreadsheetID string
	// SheetName is the base tab name; the transaction year is prefixed, e.g. "2025 Ledger".
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	// CacheTTL bounds how long the row index of a tab is trusted (default 2m).
	CacheTTL time.Duration
}

// Client mirrors ledger rows into yearly tabs of one spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string

	// Row index per tab. Writes are serialized so row allocation never races.
	mu                 sync.Mutex
	indexes            map[string]*sheetIndex
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var _ ports.LedgerMirror = (*Client)(nil)

// New creates a Sheets mirror authenticated with service account credentials.
// CredentialsJSON wins over CredentialsFile, which falls back to
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, cfg Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, spreadsheetID, cfg.SheetName, cfg.CacheTTL), nil
}

func newClient(svc *gsheet.Service, spreadsheetID, sheetBase string, ttl time.Duration) *Client {
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = "Ledger"
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetBase:          sheetBase,
		indexes:            make(map[string]*sheetIndex),
		cacheValidDuration: ttl,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.CredentialsJSON)
	serviceAccountFile := strings.TrimSpace(cfg.CredentialsFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// Upsert writes the row to the tab of its year, overwriting the previous
// version of the same transaction.
func (c *Client) Upsert(ctx context.Context, row ports.Row) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := c.sheetName(row.Timestamp)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.index(ctx, sheet)
	if err != nil {
		return err
	}
	ref, exists := idx.rows[row.TransactionID]
	if exists && ref.version >= row.Version {
		slog.DebugContext(ctx, "Skipping stale mirror write",
			"transaction_id", row.TransactionID,
			"version", row.Version,
			"mirrored_version", ref.version)
		return nil
	}

	n := ref.row
	if !exists {
		n = idx.nextRow
	}
	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, n, lastColumn, n)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(row)}}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		c.invalidate(sheet)
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}

	idx.rows[row.TransactionID] = rowRef{row: n, version: row.Version}
	if !exists {
		idx.nextRow++
	}
	return nil
}

// Delete clears the row of the transaction. The emptied row is left in place.
func (c *Client) Delete(ctx context.Context, row ports.Row) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := c.sheetName(row.Timestamp)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.index(ctx, sheet)
	if err != nil {
		return err
	}
	ref, ok := idx.rows[row.TransactionID]
	if !ok || ref.version > row.Version {
		return nil
	}

	rng := fmt.Sprintf("%s!A%d:%s%d", sheet, ref.row, lastColumn, ref.row)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		c.invalidate(sheet)
		return fmt.Errorf("failed to clear %s: %w", rng, err)
	}
	delete(idx.rows, row.TransactionID)
	return nil
}

// index returns the row index of a tab, reading it when the cached copy expired.
// Callers hold c.mu.
func (c *Client) index(ctx context.Context, sheet string) (*sheetIndex, error) {
	if idx, ok := c.indexes[sheet]; ok && time.Now().Before(idx.expiresAt) {
		return idx, nil
	}

	rng := fmt.Sprintf("%s!A:%s", sheet, lastColumn)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}

	idx := parseIndex(resp.Values)
	if len(resp.Values) == 0 {
		hdr := fmt.Sprintf("%s!A1:%s1", sheet, lastColumn)
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, hdr, &gsheet.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return nil, fmt.Errorf("write header %s: %w", hdr, err)
		}
		idx.nextRow = 2
	}
	idx.expiresAt = time.Now().Add(c.cacheValidDuration)
	c.indexes[sheet] = idx
	return idx, nil
}

func (c *Client) invalidate(sheet string) {
	delete(c.indexes, sheet)
}

// InvalidateRowCache forces the next write to re-read every tab.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = make(map[string]*sheetIndex)
}

func (c *Client) sheetName(ts time.Time) string {
	return yearPrefixedName(c.sheetBase, ts.UTC().Year())
}

func rowValues(r ports.Row) []any {
	return []any{
		r.TransactionID,
		r.Timestamp.UTC().Format("2006-01-02"),
		string(r.Type),
		r.Category,
		r.Description,
		r.Amount.String(),
		r.Recurrence,
		r.UserID,
		r.ProfileID,
		r.Version,
	}
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
