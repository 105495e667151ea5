package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// MaxTrendMonths bounds the monthly trend window.
const MaxTrendMonths = 120

// ExpenseBreakdown returns each expense category's share of total expense.
//
// Shares are rounded to two decimals independently and the residual needed to
// reach exactly 100.00 is added to the largest category (first encountered on ties).
// With no expense the result is empty, never nil.
func ExpenseBreakdown(txs []Transaction) Breakdown {
	var order []string
	sums := make(map[string]int64)
	var total int64
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		if _, seen := sums[t.Category]; !seen {
			order = append(order, t.Category)
		}
		sums[t.Category] += t.Amount.Cents
		total += t.Amount.Cents
	}

	out := make(Breakdown, 0, len(order))
	if total == 0 {
		return out
	}

	totalDec := decimal.NewFromInt(total)
	largest := 0
	for i, category := range order {
		pct := decimal.NewFromInt(sums[category]).Mul(hundred).Div(totalDec).Round(2)
		out = append(out, CategoryShare{
			Category: category,
			Amount:   Money{Cents: sums[category]},
			Percent:  pct,
		})
		if sums[category] > sums[order[largest]] {
			largest = i
		}
	}

	residual := hundred.Sub(out.Sum())
	out[largest].Percent = out[largest].Percent.Add(residual)
	return out
}

// MonthWindowStart returns the first instant of the oldest month in an n-month
// window ending at the month of now.
func MonthWindowStart(now time.Time, n int) time.Time {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -(n - 1), 0)
}

// ValidateTrendMonths checks the month count of a monthly trend.
func ValidateTrendMonths(n int) error {
	if n < 1 || n > MaxTrendMonths {
		return ErrInvalidWindow
	}
	return nil
}

// MonthlyTrend buckets income and expense by calendar month for the last n
// months ending at now, oldest first. Every month is present, empty ones as zero.
func MonthlyTrend(txs []Transaction, now time.Time, n int) ([]MonthBucket, error) {
	if err := ValidateTrendMonths(n); err != nil {
		return nil, err
	}

	start := MonthWindowStart(now, n)
	buckets := make([]MonthBucket, n)
	index := make(map[[2]int]int, n)
	for i := 0; i < n; i++ {
		m := start.AddDate(0, i, 0)
		buckets[i] = MonthBucket{Year: m.Year(), Month: int(m.Month()), Label: m.Format("2006-01")}
		index[[2]int{m.Year(), int(m.Month())}] = i
	}

	for _, t := range txs {
		ts := t.Timestamp.UTC()
		i, ok := index[[2]int{ts.Year(), int(ts.Month())}]
		if !ok {
			continue
		}
		switch t.Type {
		case Income:
			buckets[i].Income.Cents += t.Amount.Cents
		case Expense:
			buckets[i].Expense.Cents += t.Amount.Cents
		}
	}
	return buckets, nil
}

// SavingsTrend collapses monthly buckets to income minus expense.
func SavingsTrend(buckets []MonthBucket) []SavingsPoint {
	out := make([]SavingsPoint, len(buckets))
	for i, b := range buckets {
		out[i] = SavingsPoint{Year: b.Year, Month: b.Month, Label: b.Label, Savings: b.Savings()}
	}
	return out
}

// ValidateTrendDays accepts only the supported daily windows.
func ValidateTrendDays(days int) error {
	switch days {
	case 7, 15, 30:
		return nil
	}
	return ErrInvalidWindow
}

// DailyWindow returns the half-open interval [from, to) covering the calendar
// days date(now)-days through date(now).
func DailyWindow(now time.Time, days int) (from, to time.Time) {
	today := StartOfDay(now)
	return today.AddDate(0, 0, -days), today.AddDate(0, 0, 1)
}

// DailyTrend sums transactions of one type per calendar day inside the window.
// Only days with at least one transaction appear, in ascending order.
func DailyTrend(txs []Transaction, typ TransactionType, now time.Time, days int) ([]DayBucket, error) {
	if !typ.Valid() {
		return nil, ErrInvalidType
	}
	if err := ValidateTrendDays(days); err != nil {
		return nil, err
	}

	from, to := DailyWindow(now, days)
	sums := make(map[string]int64)
	for _, t := range txs {
		if t.Type != typ {
			continue
		}
		ts := t.Timestamp.UTC()
		if ts.Before(from) || !ts.Before(to) {
			continue
		}
		sums[ts.Format("2006-01-02")] += t.Amount.Cents
	}

	dates := make([]string, 0, len(sums))
	for d := range sums {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	out := make([]DayBucket, len(dates))
	for i, d := range dates {
		out[i] = DayBucket{Date: d, Amount: Money{Cents: sums[d]}}
	}
	return out, nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from the date of a to the date of b.
func DaysBetween(a, b time.Time) int {
	return int(StartOfDay(b).Sub(StartOfDay(a)).Hours() / 24)
}

// SumTotals folds a transaction set into aggregate totals.
func SumTotals(txs []Transaction) Totals {
	var totals Totals
	for _, t := range txs {
		income, expense := t.Contribution()
		totals = totals.Apply(income, expense)
	}
	return totals
}

// SortChronological returns a copy of txs ordered oldest first, ties by id.
func SortChronological(txs []Transaction) []Transaction {
	out := append([]Transaction(nil), txs...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
