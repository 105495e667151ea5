package core

import (
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Weekly  Recurrence = "weekly"
	Monthly Recurrence = "monthly"
	Yearly  Recurrence = "yearly"
)

const (
	DefaultProfileID   int64 = 1
	DefaultProfileName       = "Personal"
	maxDescriptionLen        = 200
	maxProfileNameLen        = 50
)

type (
	TransactionType string

	// Recurrence is the interval of a recurring expense.
	Recurrence string

	Currency string

	Money struct {
		Cents int64
	}

	User struct {
		ID              int64
		Email           string
		Name            string
		Currency        Currency
		ActiveProfileID int64
		CreatedAt       time.Time
	}

	// Totals are the cached aggregates of a profile.
	Totals struct {
		Income  Money `json:"total_income"`
		Expense Money `json:"total_expense"`
		Balance Money `json:"total_balance"`
	}

	Profile struct {
		UserID    int64
		ProfileID int64
		Name      string
		Totals    Totals
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Transaction is a ledger entry. Recurrence is only ever set on expenses.
	Transaction struct {
		ID          string
		UserID      int64
		ProfileID   int64
		Type        TransactionType
		Category    string
		Description string
		Amount      Money
		Timestamp   time.Time
		Recurrence  *Recurrence
	}
)

var currencies = []Currency{"NPR", "INR", "USD", "EUR", "GBP", "JPY", "CAD", "AUD", "CNY"}

// Currencies returns the supported currency codes.
func Currencies() []Currency {
	return append([]Currency(nil), currencies...)
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if c == "" {
		return "NPR", nil
	}
	for _, known := range currencies {
		if c == known {
			return c, nil
		}
	}
	return "", ErrInvalidCurrency
}

func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", ErrInvalidType
	}
	return t, nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// ParseRecurrence parses a recurrence duration. An empty string yields nil.
func ParseRecurrence(s string) (*Recurrence, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil, nil
	}
	r := Recurrence(s)
	if !r.Valid() {
		return nil, ErrInvalidRecurrence
	}
	return &r, nil
}

func (r Recurrence) Valid() bool {
	switch r {
	case Weekly, Monthly, Yearly:
		return true
	}
	return false
}

// Consistent reports whether balance equals income minus expense.
func (t Totals) Consistent() bool {
	return t.Balance.Cents == t.Income.Cents-t.Expense.Cents
}

// Apply returns the totals after adding the signed income and expense deltas.
func (t Totals) Apply(incomeDelta, expenseDelta int64) Totals {
	return Totals{
		Income:  Money{Cents: t.Income.Cents + incomeDelta},
		Expense: Money{Cents: t.Expense.Cents + expenseDelta},
		Balance: Money{Cents: t.Balance.Cents + incomeDelta - expenseDelta},
	}
}

// Recurring reports whether the transaction carries a recurrence.
func (t Transaction) Recurring() bool {
	return t.Recurrence != nil
}

// Contribution returns the income and expense deltas this transaction adds to its profile.
func (t Transaction) Contribution() (income, expense int64) {
	if t.Type == Income {
		return t.Amount.Cents, 0
	}
	return 0, t.Amount.Cents
}

func (t Transaction) Validate() error {
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(t.Category) == "" {
		return ErrEmptyCategory
	}
	if len(t.Description) > maxDescriptionLen {
		return ErrDescriptionTooLong
	}
	if t.Recurrence != nil {
		if t.Type != Expense {
			return ErrInvalidRecurrence
		}
		if !t.Recurrence.Valid() {
			return ErrInvalidRecurrence
		}
	}
	return nil
}

func ValidateProfileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidProfileName
	}
	if len(name) > maxProfileNameLen {
		return "", ErrInvalidProfileName
	}
	return name, nil
}
