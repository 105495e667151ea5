package core

import (
	"fmt"
	"strings"
)

// NoHistoryContext is rendered in place of an empty transaction history.
const NoHistoryContext = "The user has not made any transactions yet."

// NarrativeContext renders every transaction oldest first as one sentence each.
func NarrativeContext(txs []Transaction, currency Currency) string {
	if len(txs) == 0 {
		return NoHistoryContext
	}

	var b strings.Builder
	for i, t := range SortChronological(txs) {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence(t, currency))
	}
	return b.String()
}

func sentence(t Transaction, currency Currency) string {
	date := t.Timestamp.UTC().Format("2006-01-02")
	amount := formatAmount(t.Amount, currency)

	var s string
	if t.Type == Income {
		s = fmt.Sprintf("On %s you received %s of %s income", date, amount, t.Category)
	} else {
		s = fmt.Sprintf("On %s you spent %s on %s", date, amount, t.Category)
	}
	if d := strings.TrimSpace(t.Description); d != "" {
		s += fmt.Sprintf(" (%s)", d)
	}
	if t.Recurrence != nil {
		s += fmt.Sprintf(", repeating %s", *t.Recurrence)
	}
	return s + "."
}

// TransactionsText renders the transactions as a pipe-separated table, oldest first.
func TransactionsText(txs []Transaction, currency Currency) string {
	if len(txs) == 0 {
		return NoHistoryContext
	}

	var b strings.Builder
	b.WriteString("date | type | category | description | amount")
	for _, t := range SortChronological(txs) {
		fmt.Fprintf(&b, "\n%s | %s | %s | %s | %s",
			t.Timestamp.UTC().Format("2006-01-02"),
			t.Type,
			t.Category,
			strings.TrimSpace(t.Description),
			formatAmount(t.Amount, currency))
	}
	return b.String()
}

func formatAmount(m Money, currency Currency) string {
	if currency == "" {
		return m.String()
	}
	return string(currency) + " " + m.String()
}
