package core

import "github.com/shopspring/decimal"

// CategoryShare is one slice of an expense breakdown.
type CategoryShare struct {
	Category string          `json:"category"`
	Amount   Money           `json:"amount"`
	Percent  decimal.Decimal `json:"percent"`
}

// Breakdown lists category shares in first-encountered order.
type Breakdown []CategoryShare

// Percentages returns the breakdown as a category to percent map.
func (b Breakdown) Percentages() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(b))
	for _, s := range b {
		out[s.Category] = s.Percent
	}
	return out
}

// Sum returns the total of all percentages.
func (b Breakdown) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range b {
		sum = sum.Add(s.Percent)
	}
	return sum
}

// MonthBucket holds the income and expense totals of one calendar month.
type MonthBucket struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"` // 1-12
	Label   string `json:"label"` // 2006-01
	Income  Money  `json:"income"`
	Expense Money  `json:"expense"`
}

// Savings is income minus expense for the month.
func (b MonthBucket) Savings() Money {
	return Money{Cents: b.Income.Cents - b.Expense.Cents}
}

// SavingsPoint is one entry of the savings trend.
type SavingsPoint struct {
	Year    int    `json:"year"`
	Month   int    `json:"month"`
	Label   string `json:"label"`
	Savings Money  `json:"savings"`
}

// DayBucket is the total of one transaction type on a calendar day.
type DayBucket struct {
	Date   string `json:"date"` // 2006-01-02
	Amount Money  `json:"amount"`
}
