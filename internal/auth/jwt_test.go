package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"aarthik/internal/core"
	"aarthik/internal/services"
)

const testSecret = "test-secret-0123456789"

type resolverFunc func(ctx context.Context, userID int64) (services.Identity, error)

func (f resolverFunc) Identity(ctx context.Context, userID int64) (services.Identity, error) {
	return f(ctx, userID)
}

func activeProfile(ctx context.Context, userID int64) (services.Identity, error) {
	if userID == 404 {
		return services.Identity{}, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	if userID == 500 {
		return services.Identity{}, errors.New("database is locked")
	}
	return services.Identity{UserID: userID, ProfileID: 3}, nil
}

func mustIssue(t *testing.T, userID int64) string {
	t.Helper()
	iss, err := NewIssuer(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer() error = %v", err)
	}
	tok, err := iss.Issue(userID)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func TestVerifier_Verify(t *testing.T) {
	v, err := NewVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewVerifier() error = %v", err)
	}

	expired, _ := NewIssuer(testSecret, time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expiredTok, _ := expired.Issue(1)

	otherKey, _ := NewIssuer("another-secret-0123456789", time.Hour)
	otherTok, _ := otherKey.Issue(1)

	noneTok, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer},
	}).SignedString([]byte(testSecret))

	noUser, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name    string
		token   string
		want    int64
		wantErr bool
	}{
		{"valid", mustIssue(t, 42), 42, false},
		{"expired", expiredTok, 0, true},
		{"wrong secret", otherTok, 0, true},
		{"alg none", noneTok, 0, true},
		{"no expiry", noExpiry, 0, true},
		{"no user", noUser, 0, true},
		{"garbage", "not.a.jwt", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.Verify(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify() error = %v, want ErrInvalidToken", err)
			}
			if got != tt.want {
				t.Errorf("Verify() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	if _, err := NewVerifier("  "); err == nil {
		t.Error("NewVerifier() error = nil, want empty secret error")
	}
	if _, err := NewIssuer("", time.Hour); err == nil {
		t.Error("NewIssuer() error = nil, want empty secret error")
	}
}

func TestMiddleware(t *testing.T) {
	v, _ := NewVerifier(testSecret)
	var got services.Identity
	h := Middleware(v, resolverFunc(activeProfile))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("IdentityFromContext() ok = false")
		}
		got = id
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + mustIssue(t, 9), http.StatusNoContent},
		{"lowercase scheme", "bearer " + mustIssue(t, 9), http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic auth", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"unknown user", "Bearer " + mustIssue(t, 404), http.StatusUnauthorized},
		{"store failure", "Bearer " + mustIssue(t, 500), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/profile/dashboard", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	if got != (services.Identity{UserID: 9, ProfileID: 3}) {
		t.Errorf("identity = %+v, want user 9 profile 3", got)
	}
}
