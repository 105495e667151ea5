package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aarthik/internal/assistant"
	"aarthik/internal/core"
	applog "aarthik/internal/log"
)

const maxChatMessageLen = 1000

// ChatService feeds a profile's history to the assistant collaborator.
// Assistant failures surface as core.ErrUpstreamUnavailable and never touch the ledger.
type ChatService struct {
	analytics *AnalyticsService
	profiles  *ProfileService
	assistant assistant.Assistant
	timeout   time.Duration
}

func NewChatService(analytics *AnalyticsService, profiles *ProfileService, a assistant.Assistant, timeout time.Duration) *ChatService {
	if a == nil {
		a = assistant.RuleBased{}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatService{analytics: analytics, profiles: profiles, assistant: a, timeout: timeout}
}

// Ask answers a free-text question about the caller's profile.
func (s *ChatService) Ask(ctx context.Context, id Identity, message string) (string, error) {
	message = strings.TrimSpace(message)
	if message == "" || len(message) > maxChatMessageLen {
		return "", fmt.Errorf("%w: message must be 1-%d characters", core.ErrInvalidArgument, maxChatMessageLen)
	}
	narrative, err := s.analytics.NarrativeContext(ctx, id)
	if err != nil {
		return "", err
	}
	return s.reply(ctx, id, assistant.Prompt{Kind: assistant.KindChat, Message: message, Context: narrative})
}

// Report produces a written report of the caller's profile.
func (s *ChatService) Report(ctx context.Context, id Identity) (string, error) {
	table, err := s.analytics.TransactionsText(ctx, id)
	if err != nil {
		return "", err
	}
	return s.reply(ctx, id, assistant.Prompt{Kind: assistant.KindReport, Context: table})
}

func (s *ChatService) reply(ctx context.Context, id Identity, p assistant.Prompt) (string, error) {
	profile, err := s.analytics.profile(ctx, id)
	if err != nil {
		return "", err
	}
	user, err := s.profiles.User(ctx, id.UserID)
	if err != nil {
		return "", err
	}
	p.Totals = profile.Totals
	p.Currency = user.Currency

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.assistant.Reply(ctx, p)
	if err != nil {
		slog.WarnContext(ctx, "Assistant unavailable",
			applog.FieldUserID, id.UserID,
			"kind", p.Kind,
			applog.FieldError, err)
		return "", fmt.Errorf("%w: assistant: %v", core.ErrUpstreamUnavailable, err)
	}
	return text, nil
}
