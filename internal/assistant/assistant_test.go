package assistant

import (
	"context"
	"strings"
	"testing"

	"aarthik/internal/core"
)

func TestRuleBasedChat(t *testing.T) {
	totals := core.Totals{}.Apply(200000, 50000)
	tests := []struct {
		message string
		want    string
	}{
		{"What's my budget?", "Your current monthly budget is USD 2000.00. You've spent 25% of it so far."},
		{"How much have I spent", "Your total expenses are USD 500.00."},
		{"how much did I earn", "Your total income is USD 2000.00."},
		{"balance please", "Your current balance is USD 1500.00."},
		{"am I saving?", "You've saved USD 1500.00 so far."},
		{"Hi there", "Hello! How can I assist with your financial questions today?"},
		{"reset", "Chat history cleared. How can I help you today?"},
		{"commands", "You can ask me about: budget, expenses, income, savings, or use commands like 'clear history'."},
		{"this is something else", "I'm your financial assistant. You can ask me about your budget, expenses, income, or savings."},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			got, err := RuleBased{}.Reply(context.Background(), Prompt{
				Kind: KindChat, Message: tt.message, Totals: totals, Currency: "USD",
			})
			if err != nil {
				t.Fatalf("Reply() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Reply(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestRuleBasedReport(t *testing.T) {
	got, err := RuleBased{}.Reply(context.Background(), Prompt{
		Kind:     KindReport,
		Context:  "date | type | category | description | amount",
		Totals:   core.Totals{}.Apply(1000, 250),
		Currency: "NPR",
	})
	if err != nil {
		t.Fatalf("Reply() error = %v", err)
	}
	for _, want := range []string{"Total income: NPR 10.00", "Balance: NPR 7.50", "Spent: 25% of income", "date | type"} {
		if !strings.Contains(got, want) {
			t.Errorf("report missing %q:\n%s", want, got)
		}
	}
}

func TestRuleBasedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (RuleBased{}).Reply(ctx, Prompt{Message: "hi"}); err == nil {
		t.Error("Reply() should fail on a cancelled context")
	}
}
