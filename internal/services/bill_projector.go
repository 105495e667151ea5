package services

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"aarthik/internal/core"
)

// UpcomingWindowDays is how many days ahead a bill counts as upcoming.
const UpcomingWindowDays = 3

// UpcomingBill is a recurring expense whose next occurrence falls inside the window.
type UpcomingBill struct {
	Key           string          `json:"key"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	Recurrence    core.Recurrence `json:"recurrence"`
	Amount        core.Money      `json:"amount"`
	LastPaid      time.Time       `json:"last_paid"`
	DueDate       time.Time       `json:"due_date"`
	DaysRemaining int             `json:"days_remaining"`
	DueIn         string          `json:"due_in"`
}

// BillProjector projects the next due date of recurring expenses.
type BillProjector struct {
	strategies map[core.Recurrence]RecurrenceStrategy
}

// NewBillProjector returns a projector using the given strategy set.
// A nil set selects FixedStrategies.
func NewBillProjector(strategies map[core.Recurrence]RecurrenceStrategy) *BillProjector {
	if strategies == nil {
		strategies = FixedStrategies()
	}
	return &BillProjector{strategies: strategies}
}

// Register installs or replaces the strategy for a recurrence.
// Not safe for use concurrently with Project.
func (p *BillProjector) Register(r core.Recurrence, s RecurrenceStrategy) {
	p.strategies[r] = s
}

func (p *BillProjector) strategy(r core.Recurrence) (RecurrenceStrategy, error) {
	s, ok := p.strategies[r]
	if !ok {
		return nil, fmt.Errorf("unknown recurrence: %s", r)
	}
	return s, nil
}

// BillKey groups occurrences of the same bill: category, description and
// recurrence compared case-insensitively.
func BillKey(t core.Transaction) string {
	r := ""
	if t.Recurrence != nil {
		r = string(*t.Recurrence)
	}
	return strings.ToLower(strings.TrimSpace(t.Category)) + "|" +
		strings.ToLower(strings.TrimSpace(t.Description)) + "|" + r
}

// Project returns the bills due between today and UpcomingWindowDays from
// now, soonest first. Only the latest occurrence of each bill is projected.
func (p *BillProjector) Project(txs []core.Transaction, now time.Time) []UpcomingBill {
	latest := make(map[string]core.Transaction)
	for _, t := range txs {
		if t.Type != core.Expense || t.Recurrence == nil {
			continue
		}
		key := BillKey(t)
		if prev, ok := latest[key]; !ok || t.Timestamp.After(prev.Timestamp) {
			latest[key] = t
		}
	}

	out := make([]UpcomingBill, 0)
	for key, t := range latest {
		s, err := p.strategy(*t.Recurrence)
		if err != nil {
			slog.Warn("Skipping bill with unknown recurrence", "key", key, "error", err)
			continue
		}
		next := s.Next(t.Timestamp.UTC())
		days := core.DaysBetween(now, next)
		if days < 0 || days > UpcomingWindowDays {
			continue
		}
		name := strings.TrimSpace(t.Description)
		if name == "" {
			name = t.Category
		}
		out = append(out, UpcomingBill{
			Key:           key,
			Name:          name,
			Category:      t.Category,
			Description:   t.Description,
			Recurrence:    *t.Recurrence,
			Amount:        t.Amount,
			LastPaid:      t.Timestamp.UTC(),
			DueDate:       next,
			DaysRemaining: days,
			DueIn:         fmt.Sprintf("%d days", days),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Lookback returns the oldest payment time that can still project into the
// window. Occurrences older than the longest interval are already overdue.
func (p *BillProjector) Lookback(now time.Time) time.Time {
	var longest time.Duration
	for _, s := range p.strategies {
		if d := s.Next(now).Sub(now); d > longest {
			longest = d
		}
	}
	return core.StartOfDay(now.Add(-longest)).AddDate(0, 0, -1)
}
