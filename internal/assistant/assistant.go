// Package assistant defines the text collaborator that answers questions
// about a profile's finances and writes reports.
package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"aarthik/internal/core"
)

type PromptKind string

const (
	KindChat   PromptKind = "chat"
	KindReport PromptKind = "report"
)

// Prompt carries the user's message and the profile state the reply may use.
type Prompt struct {
	Kind     PromptKind
	Message  string
	Context  string // narrative for chat, transactions table for reports
	Totals   core.Totals
	Currency core.Currency
}

// Assistant produces a text reply. Implementations may call remote services
// and should honour ctx cancellation.
type Assistant interface {
	Reply(ctx context.Context, p Prompt) (string, error)
}

// Func adapts a function to the Assistant interface.
type Func func(ctx context.Context, p Prompt) (string, error)

func (f Func) Reply(ctx context.Context, p Prompt) (string, error) { return f(ctx, p) }

// RuleBased answers with fixed keyword rules over the profile totals.
type RuleBased struct{}

func (RuleBased) Reply(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if p.Kind == KindReport {
		return report(p), nil
	}
	return chat(p), nil
}

func chat(p Prompt) string {
	msg := strings.ToLower(p.Message)
	has := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(msg, w) {
				return true
			}
		}
		return false
	}
	money := func(m core.Money) string { return amount(m, p.Currency) }

	switch {
	case has("budget"):
		return fmt.Sprintf("Your current monthly budget is %s. You've spent %s%% of it so far.",
			money(p.Totals.Income), spentPercent(p.Totals))
	case has("expense", "spent"):
		return fmt.Sprintf("Your total expenses are %s.", money(p.Totals.Expense))
	case has("income", "earn"):
		return fmt.Sprintf("Your total income is %s.", money(p.Totals.Income))
	case has("balance"):
		return fmt.Sprintf("Your current balance is %s.", money(p.Totals.Balance))
	case has("saving", "save"):
		return fmt.Sprintf("You've saved %s so far.", money(p.Totals.Balance))
	case has("hello") || hasWord(msg, "hi"):
		return "Hello! How can I assist with your financial questions today?"
	case has("clear", "reset"):
		return "Chat history cleared. How can I help you today?"
	case has("help", "commands"):
		return "You can ask me about: budget, expenses, income, savings, or use commands like 'clear history'."
	}
	return "I'm your financial assistant. You can ask me about your budget, expenses, income, or savings."
}

func hasWord(msg, word string) bool {
	for _, f := range strings.FieldsFunc(msg, func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		if f == word {
			return true
		}
	}
	return false
}

func spentPercent(t core.Totals) string {
	if t.Income.Cents == 0 {
		return "0"
	}
	return decimal.NewFromInt(t.Expense.Cents).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(t.Income.Cents)).
		Round(2).String()
}

func report(p Prompt) string {
	var b strings.Builder
	b.WriteString("Financial report\n")
	fmt.Fprintf(&b, "Total income: %s\n", amount(p.Totals.Income, p.Currency))
	fmt.Fprintf(&b, "Total expense: %s\n", amount(p.Totals.Expense, p.Currency))
	fmt.Fprintf(&b, "Balance: %s\n", amount(p.Totals.Balance, p.Currency))
	if p.Totals.Income.Cents > 0 {
		fmt.Fprintf(&b, "Spent: %s%% of income\n", spentPercent(p.Totals))
	}
	b.WriteString("\n")
	b.WriteString(p.Context)
	return b.String()
}

func amount(m core.Money, c core.Currency) string {
	if c == "" {
		return m.String()
	}
	return string(c) + " " + m.String()
}
