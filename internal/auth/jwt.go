package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"aarthik/internal/core"
	applog "aarthik/internal/log"
	"aarthik/internal/services"
)

type ctxKey string

const identityKey ctxKey = "identity"

const issuer = "aarthik"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims carries the authenticated user. The active profile is not part of
// the token; it is read from the store on every request.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 bearer tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) (*Verifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("empty signing secret")
	}
	return &Verifier{secret: []byte(secret), now: time.Now}, nil
}

// Verify returns the user id carried by a valid token.
func (v *Verifier) Verify(token string) (int64, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.UserID <= 0 {
		return 0, fmt.Errorf("%w: user_id missing", ErrInvalidToken)
	}
	return claims.UserID, nil
}

// Issuer signs tokens for development and tests. Production tokens come
// from the identity provider.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("empty signing secret")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for userID.
func (i *Issuer) Issue(userID int64) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// IdentityResolver maps an authenticated user to the profile it acts on.
type IdentityResolver interface {
	Identity(ctx context.Context, userID int64) (services.Identity, error)
}

// Middleware authenticates the bearer token and stores the caller's
// Identity, with its active profile, in the request context.
func Middleware(v *Verifier, resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, ErrMissingToken.Error())
				return
			}
			userID, err := v.Verify(token)
			if err != nil {
				applog.FromContext(r.Context()).WarnContext(r.Context(), "Rejected bearer token", "error", err)
				unauthorized(w, "invalid token")
				return
			}

			id, err := resolver.Identity(r.Context(), userID)
			if errors.Is(err, core.ErrNotFound) {
				unauthorized(w, "unknown user")
				return
			}
			if err != nil {
				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to resolve identity",
					"error", err, applog.FieldUserID, userID)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal", "message": "internal error"})
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			ctx = applog.WithIdentity(ctx, id.UserID, id.ProfileID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="aarthik"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized", "message": msg})
}

// IdentityFromContext returns the Identity stored by Middleware.
func IdentityFromContext(ctx context.Context) (services.Identity, bool) {
	id, ok := ctx.Value(identityKey).(services.Identity)
	return id, ok
}
