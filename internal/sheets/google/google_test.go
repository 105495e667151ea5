package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"aarthik/internal/core"
	ports "aarthik/internal/sheets"
)

// fakeSheet serves the subset of the Sheets values API the mirror uses, for
// a single tab.
type fakeSheet struct {
	mu    sync.Mutex
	rows  map[int][]any
	reads int
}

var rowRange = regexp.MustCompile(`!A(\d+):J\d+$`)

func (f *fakeSheet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, rng, _ := strings.Cut(r.URL.Path, "/values/")
	switch {
	case r.Method == http.MethodGet:
		f.reads++
		max := 0
		for n := range f.rows {
			if n > max {
				max = n
			}
		}
		values := make([][]any, max)
		for i := range values {
			values[i] = f.rows[i+1]
			if values[i] == nil {
				values[i] = []any{}
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": values})
	case r.Method == http.MethodPost && strings.HasSuffix(rng, ":clear"):
		n := rowNumber(strings.TrimSuffix(rng, ":clear"))
		delete(f.rows, n)
		json.NewEncoder(w).Encode(map[string]any{"clearedRange": rng})
	case r.Method == http.MethodPut:
		var vr struct {
			Values [][]any `json:"values"`
		}
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		n := 1
		if !strings.HasSuffix(rng, "A1:J1") {
			n = rowNumber(rng)
		}
		f.rows[n] = vr.Values[0]
		json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusNotFound)
	}
}

func rowNumber(rng string) int {
	m := rowRange.FindStringSubmatch(rng)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func newFakeClient(t *testing.T) (*Client, *fakeSheet) {
	t.Helper()
	fake := &fakeSheet{rows: make(map[int][]any)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return newClient(svc, "sheet-id", "Ledger", time.Minute), fake
}

func testRow(id string, version int64, cents int64) ports.Row {
	return ports.Row{
		TransactionID: id,
		UserID:        1,
		ProfileID:     1,
		Timestamp:     time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC),
		Type:          core.Expense,
		Category:      "Food",
		Description:   "lunch",
		Amount:        core.Money{Cents: cents},
		Version:       version,
	}
}

func TestClient_UpsertAppendsThenOverwrites(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	if err := c.Upsert(ctx, testRow("a", 1, 1250)); err != nil {
		t.Fatalf("Upsert(a) error = %v", err)
	}
	if err := c.Upsert(ctx, testRow("b", 2, 300)); err != nil {
		t.Fatalf("Upsert(b) error = %v", err)
	}
	if err := c.Upsert(ctx, testRow("a", 3, 999)); err != nil {
		t.Fatalf("Upsert(a v3) error = %v", err)
	}
	// stale redelivery is ignored
	if err := c.Upsert(ctx, testRow("a", 2, 1)); err != nil {
		t.Fatalf("Upsert(a v2) error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if got := fake.rows[1][0]; got != "transaction_id" {
		t.Errorf("header = %v", fake.rows[1])
	}
	if got := fake.rows[2]; got[0] != "a" || got[5] != "9.99" {
		t.Errorf("row 2 = %v, want a at 9.99", got)
	}
	if got := fake.rows[3]; got[0] != "b" {
		t.Errorf("row 3 = %v, want b", got)
	}
	if fake.reads != 1 {
		t.Errorf("index reads = %d, want 1 while cached", fake.reads)
	}
}

func TestClient_DeleteClearsRow(t *testing.T) {
	c, fake := newFakeClient(t)
	ctx := context.Background()

	for _, r := range []ports.Row{testRow("a", 1, 100), testRow("b", 2, 200)} {
		if err := c.Upsert(ctx, r); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
	}
	if err := c.Delete(ctx, testRow("a", 3, 100)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := c.Delete(ctx, testRow("missing", 4, 1)); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}

	// a fresh index read sees the blank row and appends after it
	c.InvalidateRowCache()
	if err := c.Upsert(ctx, testRow("c", 5, 300)); err != nil {
		t.Fatalf("Upsert(c) error = %v", err)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if _, ok := fake.rows[2]; ok {
		t.Errorf("row 2 = %v, want cleared", fake.rows[2])
	}
	if got := fake.rows[4]; len(got) == 0 || got[0] != "c" {
		t.Errorf("row 4 = %v, want c", got)
	}
}

func TestClient_NotInitialized(t *testing.T) {
	c := &Client{}
	if err := c.Upsert(context.Background(), testRow("a", 1, 1)); err == nil {
		t.Error("expected error from client without service")
	}
	if err := c.Delete(context.Background(), testRow("a", 1, 1)); err == nil {
		t.Error("expected error from client without service")
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if err == nil || err.Error() != "missing spreadsheet id" {
		t.Errorf("New() error = %v, want missing spreadsheet id", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), Config{SpreadsheetID: "x"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("New() error = %v", err)
	}
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		baseName string
		year     int
		expected string
	}{
		{"Ledger", 2025, "2025 Ledger"},
		{"", 2023, ""},
		{"Test Sheet", 2022, "2022 Test Sheet"},
		{"2025 Already Prefixed", 2024, "2025 Already Prefixed"},
	}

	for _, tt := range tests {
		got := yearPrefixedName(tt.baseName, tt.year)
		if got != tt.expected {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q",
				tt.baseName, tt.year, got, tt.expected)
		}
	}
}

func TestParseIndex(t *testing.T) {
	values := [][]interface{}{
		{"transaction_id", "date"},
		{"a", "2025-03-01", "expense", "Food", "", "1.00", "", "1", "1", "4"},
		{},
		{"b", "2025-03-02", "income", "Salary", "", "5.00", "", "1", "1", "bad"},
	}

	idx := parseIndex(values)
	if idx.nextRow != 5 {
		t.Errorf("nextRow = %d, want 5", idx.nextRow)
	}
	if ref := idx.rows["a"]; ref.row != 2 || ref.version != 4 {
		t.Errorf("rows[a] = %+v", ref)
	}
	if ref := idx.rows["b"]; ref.row != 4 || ref.version != 0 {
		t.Errorf("rows[b] = %+v", ref)
	}
	if len(idx.rows) != 2 {
		t.Errorf("len(rows) = %d, want 2", len(idx.rows))
	}
}
