package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v, want %v (err %v)", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestMiddleware_RequestScopedLogger(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Component: ComponentApp, Output: &buf})

	h := Middleware(base, func(*http.Request) string { return "req_1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithIdentity(r.Context(), 7, 2)
			FromContext(ctx).InfoContext(ctx, "Handled")
		}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	out := buf.String()
	for _, want := range []string{"msg=Handled", "component=http", "request_id=req_1", "user_id=7", "profile_id=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestFromContext_Default(t *testing.T) {
	l := FromContext(context.Background())
	if l.Component() != "unknown" || l.Logger == nil {
		t.Errorf("FromContext() = %+v", l)
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().
		WithComponent(ComponentLedger).
		WithOperation(OpCreate).
		WithTransaction("t1", "expense", "Food", 1250).
		WithError(errors.New("boom")).
		WithError(nil)

	if f[FieldTransactionID] != "t1" || f[FieldAmountCents] != int64(1250) || f[FieldError] != "boom" {
		t.Errorf("fields = %v", f)
	}
	if got := len(f.ToSlice()); got != 2*len(f) {
		t.Errorf("ToSlice() len = %d, want %d", got, 2*len(f))
	}
}
