package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"aarthik/internal/cache"
	"aarthik/internal/core"
	"aarthik/internal/storage"
)

// DashboardTrendMonths is the trend length shown on the dashboard.
const DashboardTrendMonths = 6

// DashboardView is the aggregate read of a profile's overview page.
type DashboardView struct {
	Profile       core.Profile
	Breakdown     core.Breakdown
	Trend         []core.MonthBucket
	Recent        []core.Transaction
	UpcomingBills []UpcomingBill
}

// AnalyticsService derives read-only views from a profile's ledger.
//
// Results are cached under the profile version and the current date, so any
// ledger mutation or day change makes earlier entries unreachable. Cached
// slices are shared between callers and must not be modified.
type AnalyticsService struct {
	store *storage.SQLiteRepository
	bills *BillProjector
	cache *cache.LRUCache[any]
	now   func() time.Time
}

// NewAnalyticsService returns the service. A nil cache disables caching and a
// nil projector uses the fixed-interval strategies.
func NewAnalyticsService(store *storage.SQLiteRepository, bills *BillProjector, c *cache.LRUCache[any]) *AnalyticsService {
	if bills == nil {
		bills = NewBillProjector(nil)
	}
	return &AnalyticsService{
		store: store,
		bills: bills,
		cache: c,
		now:   time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *AnalyticsService) WithClock(now func() time.Time) *AnalyticsService {
	s.now = now
	return s
}

// cached loads through the cache keyed by profile version, date and view.
func cached[T any](s *AnalyticsService, p core.Profile, now time.Time, view string, load func() (T, error)) (T, error) {
	if s.cache == nil {
		return load()
	}
	key := fmt.Sprintf("%d:%d:v%d:%s:%s", p.UserID, p.ProfileID, p.Version, now.Format("2006-01-02"), view)
	v, err := s.cache.GetOrLoad(key, func() (any, error) { return load() })
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (s *AnalyticsService) profile(ctx context.Context, id Identity) (core.Profile, error) {
	p, err := s.store.GetProfile(ctx, id.UserID, id.ProfileID)
	if err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

func (s *AnalyticsService) query(ctx context.Context, q storage.TransactionQuery) ([]core.Transaction, error) {
	txs, err := s.store.ListTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return txs, nil
}

// ExpenseBreakdown returns each expense category's share of total expense.
func (s *AnalyticsService) ExpenseBreakdown(ctx context.Context, id Identity) (core.Breakdown, error) {
	p, err := s.profile(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return cached(s, p, now, "breakdown", func() (core.Breakdown, error) {
		txs, err := s.query(ctx, storage.TransactionQuery{UserID: id.UserID, ProfileID: id.ProfileID, Type: core.Expense})
		if err != nil {
			return nil, err
		}
		return core.ExpenseBreakdown(txs), nil
	})
}

// IncomeExpenseTrend returns n monthly income and expense buckets ending at the current month.
func (s *AnalyticsService) IncomeExpenseTrend(ctx context.Context, id Identity, n int) ([]core.MonthBucket, error) {
	if err := core.ValidateTrendMonths(n); err != nil {
		return nil, err
	}
	p, err := s.profile(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return cached(s, p, now, fmt.Sprintf("monthly:%d", n), func() ([]core.MonthBucket, error) {
		txs, err := s.query(ctx, storage.TransactionQuery{
			UserID:    id.UserID,
			ProfileID: id.ProfileID,
			From:      core.MonthWindowStart(now, n),
		})
		if err != nil {
			return nil, err
		}
		return core.MonthlyTrend(txs, now, n)
	})
}

// SavingsTrend returns n monthly income minus expense points ending at the current month.
func (s *AnalyticsService) SavingsTrend(ctx context.Context, id Identity, n int) ([]core.SavingsPoint, error) {
	buckets, err := s.IncomeExpenseTrend(ctx, id, n)
	if err != nil {
		return nil, err
	}
	return core.SavingsTrend(buckets), nil
}

// DailyTrend returns per-day totals of one transaction type over the last days days.
func (s *AnalyticsService) DailyTrend(ctx context.Context, id Identity, typ core.TransactionType, days int) ([]core.DayBucket, error) {
	if !typ.Valid() {
		return nil, core.ErrInvalidType
	}
	if err := core.ValidateTrendDays(days); err != nil {
		return nil, err
	}
	p, err := s.profile(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return cached(s, p, now, fmt.Sprintf("daily:%s:%d", typ, days), func() ([]core.DayBucket, error) {
		from, to := core.DailyWindow(now, days)
		txs, err := s.query(ctx, storage.TransactionQuery{
			UserID:    id.UserID,
			ProfileID: id.ProfileID,
			Type:      typ,
			From:      from,
			To:        to,
		})
		if err != nil {
			return nil, err
		}
		return core.DailyTrend(txs, typ, now, days)
	})
}

// UpcomingBills returns recurring expenses due within the next few days.
func (s *AnalyticsService) UpcomingBills(ctx context.Context, id Identity) ([]UpcomingBill, error) {
	p, err := s.profile(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	return cached(s, p, now, "bills", func() ([]UpcomingBill, error) {
		return s.upcoming(ctx, id, now)
	})
}

func (s *AnalyticsService) upcoming(ctx context.Context, id Identity, now time.Time) ([]UpcomingBill, error) {
	txs, err := s.query(ctx, storage.TransactionQuery{
		UserID:        id.UserID,
		ProfileID:     id.ProfileID,
		Type:          core.Expense,
		RecurringOnly: true,
		From:          s.bills.Lookback(now),
	})
	if err != nil {
		return nil, err
	}
	return s.bills.Project(txs, now), nil
}

// NarrativeContext renders the profile's history as prose for the assistant.
func (s *AnalyticsService) NarrativeContext(ctx context.Context, id Identity) (string, error) {
	return s.history(ctx, id, "narrative", core.NarrativeContext)
}

// TransactionsText renders the profile's history as a table for report generation.
func (s *AnalyticsService) TransactionsText(ctx context.Context, id Identity) (string, error) {
	return s.history(ctx, id, "table", core.TransactionsText)
}

func (s *AnalyticsService) history(ctx context.Context, id Identity, view string, render func([]core.Transaction, core.Currency) string) (string, error) {
	p, err := s.profile(ctx, id)
	if err != nil {
		return "", err
	}
	user, err := s.store.GetUser(ctx, id.UserID)
	if err != nil {
		return "", err
	}
	now := s.now().UTC()
	return cached(s, p, now, view+":"+string(user.Currency), func() (string, error) {
		txs, err := s.query(ctx, storage.TransactionQuery{UserID: id.UserID, ProfileID: id.ProfileID})
		if err != nil {
			return "", err
		}
		return render(txs, user.Currency), nil
	})
}

// Dashboard loads the overview of a profile, fanning the reads out concurrently.
func (s *AnalyticsService) Dashboard(ctx context.Context, id Identity) (DashboardView, error) {
	p, err := s.profile(ctx, id)
	if err != nil {
		return DashboardView{}, err
	}

	view := DashboardView{Profile: p}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := s.ExpenseBreakdown(gctx, id)
		view.Breakdown = b
		return err
	})
	g.Go(func() error {
		t, err := s.IncomeExpenseTrend(gctx, id, DashboardTrendMonths)
		view.Trend = t
		return err
	})
	g.Go(func() error {
		r, err := s.query(gctx, storage.TransactionQuery{
			UserID:      id.UserID,
			ProfileID:   id.ProfileID,
			Limit:       DefaultRecentLimit,
			NewestFirst: true,
		})
		view.Recent = r
		return err
	})
	g.Go(func() error {
		b, err := s.UpcomingBills(gctx, id)
		view.UpcomingBills = b
		return err
	})
	if err := g.Wait(); err != nil {
		return DashboardView{}, fmt.Errorf("load dashboard: %w", err)
	}
	return view, nil
}
