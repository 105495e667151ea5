package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var refNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func tx(typ TransactionType, category string, cents int64, ts time.Time) Transaction {
	return Transaction{Type: typ, Category: category, Amount: Money{Cents: cents}, Timestamp: ts}
}

func TestExpenseBreakdown(t *testing.T) {
	tests := []struct {
		name string
		txs  []Transaction
		want map[string]string
	}{
		{
			name: "single category sums to 100",
			txs: []Transaction{
				tx(Expense, "Food", 4000, refNow),
				tx(Expense, "Food", 6000, refNow),
			},
			want: map[string]string{"Food": "100"},
		},
		{
			name: "thirds give residual to first encountered",
			txs: []Transaction{
				tx(Expense, "Rent", 100, refNow),
				tx(Expense, "Food", 100, refNow),
				tx(Expense, "Travel", 100, refNow),
			},
			want: map[string]string{"Rent": "33.34", "Food": "33.33", "Travel": "33.33"},
		},
		{
			name: "residual goes to largest share",
			txs: []Transaction{
				tx(Expense, "A", 100, refNow),
				tx(Expense, "B", 100, refNow),
				tx(Expense, "C", 400, refNow),
				tx(Expense, "D", 100, refNow),
				tx(Expense, "E", 100, refNow),
				tx(Expense, "F", 100, refNow),
			},
			want: map[string]string{"A": "11.11", "B": "11.11", "C": "44.45", "D": "11.11", "E": "11.11", "F": "11.11"},
		},
		{
			name: "income ignored",
			txs: []Transaction{
				tx(Income, "Salary", 99999, refNow),
				tx(Expense, "Food", 200, refNow),
				tx(Expense, "Fuel", 100, refNow),
			},
			want: map[string]string{"Food": "66.67", "Fuel": "33.33"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpenseBreakdown(tt.txs)
			if len(got) != len(tt.want) {
				t.Fatalf("ExpenseBreakdown() has %d categories, want %d", len(got), len(tt.want))
			}
			for category, pct := range got.Percentages() {
				want := decimal.RequireFromString(tt.want[category])
				if !pct.Equal(want) {
					t.Errorf("ExpenseBreakdown()[%s] = %s, want %s", category, pct, want)
				}
			}
			if sum := got.Sum(); !sum.Equal(decimal.NewFromInt(100)) {
				t.Errorf("ExpenseBreakdown() sums to %s, want 100.00", sum)
			}
		})
	}
}

func TestExpenseBreakdownAlwaysSumsToHundred(t *testing.T) {
	amounts := []int64{1, 7, 13, 333, 999, 1001, 12345, 3, 17, 59}
	for n := 1; n <= len(amounts); n++ {
		var txs []Transaction
		for i := 0; i < n; i++ {
			txs = append(txs, tx(Expense, string(rune('A'+i)), amounts[i], refNow))
		}
		sum := ExpenseBreakdown(txs).Sum()
		if !sum.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("%d categories sum to %s, want 100.00", n, sum)
		}
	}
}

func TestExpenseBreakdownEmpty(t *testing.T) {
	got := ExpenseBreakdown([]Transaction{tx(Income, "Salary", 500, refNow)})
	if got == nil || len(got) != 0 {
		t.Fatalf("ExpenseBreakdown() = %v, want empty non-nil", got)
	}
}

func TestMonthlyTrend(t *testing.T) {
	txs := []Transaction{
		tx(Income, "Salary", 100000, time.Date(2025, 1, 5, 9, 0, 0, 0, time.UTC)),
		tx(Expense, "Rent", 40000, time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)),
		tx(Expense, "Food", 2500, time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)),
		tx(Income, "Old", 99, time.Date(2024, 10, 31, 23, 0, 0, 0, time.UTC)), // outside window
	}

	buckets, err := MonthlyTrend(txs, refNow, 4)
	if err != nil {
		t.Fatalf("MonthlyTrend() error = %v", err)
	}
	wantLabels := []string{"2024-12", "2025-01", "2025-02", "2025-03"}
	if len(buckets) != len(wantLabels) {
		t.Fatalf("MonthlyTrend() returned %d buckets, want %d", len(buckets), len(wantLabels))
	}
	for i, label := range wantLabels {
		if buckets[i].Label != label {
			t.Errorf("bucket %d label = %s, want %s", i, buckets[i].Label, label)
		}
	}
	if buckets[1].Income.Cents != 100000 || buckets[1].Expense.Cents != 40000 {
		t.Errorf("January bucket = %+v", buckets[1])
	}
	if buckets[2].Income.Cents != 0 || buckets[2].Expense.Cents != 0 {
		t.Errorf("February bucket should be zero, got %+v", buckets[2])
	}

	savings := SavingsTrend(buckets)
	wantSavings := []int64{0, 60000, 0, -2500}
	for i, want := range wantSavings {
		if savings[i].Savings.Cents != want {
			t.Errorf("savings[%d] = %d, want %d", i, savings[i].Savings.Cents, want)
		}
	}
}

func TestMonthlyTrendDensity(t *testing.T) {
	for _, n := range []int{1, 6, 12, 25} {
		buckets, err := MonthlyTrend(nil, refNow, n)
		if err != nil {
			t.Fatalf("MonthlyTrend(n=%d) error = %v", n, err)
		}
		if len(buckets) != n {
			t.Fatalf("MonthlyTrend(n=%d) returned %d entries", n, len(buckets))
		}
		if last := buckets[n-1]; last.Year != 2025 || last.Month != 3 {
			t.Fatalf("MonthlyTrend(n=%d) should end at the current month, got %+v", n, last)
		}
	}
	for _, n := range []int{0, -1, MaxTrendMonths + 1} {
		if _, err := MonthlyTrend(nil, refNow, n); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("MonthlyTrend(n=%d) error = %v, want ErrInvalidWindow", n, err)
		}
	}
}

func TestDailyTrend(t *testing.T) {
	txs := []Transaction{
		tx(Expense, "Food", 100, time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)),   // first day of a 7-day window
		tx(Expense, "Food", 200, time.Date(2025, 3, 7, 23, 59, 0, 0, time.UTC)), // just outside
		tx(Expense, "Food", 300, time.Date(2025, 3, 15, 8, 0, 0, 0, time.UTC)),
		tx(Expense, "Fuel", 50, time.Date(2025, 3, 15, 11, 0, 0, 0, time.UTC)),
		tx(Income, "Salary", 900, time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)),
	}

	got, err := DailyTrend(txs, Expense, refNow, 7)
	if err != nil {
		t.Fatalf("DailyTrend() error = %v", err)
	}
	want := []DayBucket{
		{Date: "2025-03-08", Amount: Money{Cents: 100}},
		{Date: "2025-03-15", Amount: Money{Cents: 350}},
	}
	if len(got) != len(want) {
		t.Fatalf("DailyTrend() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DailyTrend()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if _, err := DailyTrend(txs, Expense, refNow, 10); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("DailyTrend(days=10) error = %v, want ErrInvalidWindow", err)
	}
	if _, err := DailyTrend(txs, "transfer", refNow, 7); !errors.Is(err, ErrInvalidType) {
		t.Errorf("DailyTrend(type=transfer) error = %v, want ErrInvalidType", err)
	}
	empty, err := DailyTrend(nil, Income, refNow, 30)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Errorf("DailyTrend(nil) = %v, %v; want empty non-nil", empty, err)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 3, 15, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 3, 16, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 1 {
		t.Errorf("DaysBetween() = %d, want 1", got)
	}
	if got := DaysBetween(b, a); got != -1 {
		t.Errorf("DaysBetween() = %d, want -1", got)
	}
}

func TestSumTotals(t *testing.T) {
	totals := SumTotals([]Transaction{
		tx(Income, "Salary", 10000, refNow),
		tx(Expense, "Food", 3000, refNow),
		tx(Expense, "Fuel", 500, refNow),
	})
	if totals.Income.Cents != 10000 || totals.Expense.Cents != 3500 || totals.Balance.Cents != 6500 {
		t.Fatalf("SumTotals() = %+v", totals)
	}
}

func TestNarrativeContext(t *testing.T) {
	if got := NarrativeContext(nil, "USD"); got != NoHistoryContext {
		t.Fatalf("NarrativeContext(nil) = %q", got)
	}

	weekly := Weekly
	txs := []Transaction{
		{ID: "b", Type: Expense, Category: "Internet", Description: "Fibre", Amount: Money{Cents: 2999},
			Timestamp: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Recurrence: &weekly},
		{ID: "a", Type: Income, Category: "Salary", Amount: Money{Cents: 150000},
			Timestamp: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	got := NarrativeContext(txs, "USD")
	want := "On 2025-03-01 you received USD 1500.00 of Salary income. " +
		"On 2025-03-02 you spent USD 29.99 on Internet (Fibre), repeating weekly."
	if got != want {
		t.Fatalf("NarrativeContext() =\n%q\nwant\n%q", got, want)
	}

	text := TransactionsText(txs, "USD")
	lines := strings.Split(text, "\n")
	if len(lines) != 3 {
		t.Fatalf("TransactionsText() has %d lines, want 3:\n%s", len(lines), text)
	}
	if lines[1] != "2025-03-01 | income | Salary |  | USD 1500.00" {
		t.Errorf("first row = %q", lines[1])
	}
}
