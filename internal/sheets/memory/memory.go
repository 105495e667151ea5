package memory

import (
	"context"
	"sort"
	"sync"

	"aarthik/internal/sheets"
)

var _ sheets.LedgerMirror = (*Store)(nil)

// Store is an in-process ledger mirror for local development and tests.
type Store struct {
	mu   sync.Mutex
	rows map[string]sheets.Row
	// highest version seen per deleted transaction, so a late upsert
	// cannot resurrect it
	tombs map[string]int64
}

func New() *Store {
	return &Store{
		rows:  make(map[string]sheets.Row),
		tombs: make(map[string]int64),
	}
}

// Upsert stores the row unless the same transaction is already mirrored at
// an equal or newer version.
func (s *Store) Upsert(_ context.Context, row sheets.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.tombs[row.TransactionID]; ok && v >= row.Version {
		return nil
	}
	if cur, ok := s.rows[row.TransactionID]; ok && cur.Version >= row.Version {
		return nil
	}
	s.rows[row.TransactionID] = row
	return nil
}

func (s *Store) Delete(_ context.Context, row sheets.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rows[row.TransactionID]; ok && cur.Version > row.Version {
		return nil
	}
	delete(s.rows, row.TransactionID)
	if row.Version > s.tombs[row.TransactionID] {
		s.tombs[row.TransactionID] = row.Version
	}
	return nil
}

// Get returns the mirrored row of a transaction.
func (s *Store) Get(transactionID string) (sheets.Row, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[transactionID]
	return r, ok
}

// Rows returns every mirrored row of a profile, oldest first.
func (s *Store) Rows(userID, profileID int64) []sheets.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sheets.Row, 0)
	for _, r := range s.rows {
		if r.UserID == userID && r.ProfileID == profileID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
