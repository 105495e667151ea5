package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"aarthik/internal/auth"
	"aarthik/internal/cache"
	applog "aarthik/internal/log"
	"aarthik/internal/middleware/ratelimit"
	"aarthik/internal/middleware/security"
	"aarthik/internal/middleware/trace"
	"aarthik/internal/services"
)

const maxBodyBytes = 64 << 10

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the collaborators the API is served from.
type Dependencies struct {
	Ledger    *services.LedgerService
	Analytics *services.AnalyticsService
	Profiles  *services.ProfileService
	Chat      *services.ChatService
	Store     Pinger

	Verifier *auth.Verifier
	// Issuer, when set, makes POST /users return a signed token for the new
	// user. Development and tests only.
	Issuer *auth.Issuer

	Logger             *applog.Logger
	RateLimitPerMinute int
	// Caches, when set, is stopped together with the server.
	Caches *cache.Manager
}

type Server struct {
	http.Server
	ledger    *services.LedgerService
	analytics *services.AnalyticsService
	profiles  *services.ProfileService
	chat      *services.ChatService
	store     Pinger
	issuer    *auth.Issuer

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	s := &Server{
		ledger:    deps.Ledger,
		analytics: deps.Analytics,
		profiles:  deps.Profiles,
		chat:      deps.Chat,
		store:     deps.Store,
		issuer:    deps.Issuer,
		caches:    deps.Caches,
		detector:  security.NewDetector(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
		}),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /users", s.handleSignup)

	protect := auth.Middleware(deps.Verifier, deps.Profiles)
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, protect(h))
	}

	route("GET /users/me", s.handleMe)
	route("PUT /users/me/currency", s.handleSetCurrency)

	route("GET /profile/dashboard", s.handleDashboard)
	route("POST /profile/income", s.handleAddIncome)
	route("POST /profile/expense", s.handleAddExpense)
	route("PUT /profile/transactions/{id}", s.handleEditTransaction)
	route("DELETE /profile/transactions/{id}", s.handleDeleteTransaction)
	route("GET /profile/transactions", s.handleListTransactions)
	route("GET /profile/recent-transactions", s.handleRecentTransactions)
	route("POST /profile/reconcile", s.handleReconcile)

	route("GET /profile/expense-breakdown", s.handleExpenseBreakdown)
	route("GET /profile/net-saving-trend", s.handleSavingsTrend)
	route("GET /profile/income-expense-trend", s.handleIncomeExpenseTrend)
	route("GET /profile/transaction-trend", s.handleTransactionTrend)
	route("GET /profile/upcoming-bills", s.handleUpcomingBills)
	route("GET /profile/context", s.handleContext)
	route("POST /profile/chat", s.handleChat)
	route("POST /profile/report", s.handleReport)

	route("GET /profiles", s.handleListProfiles)
	route("POST /profiles", s.handleCreateProfile)
	route("POST /profiles/switch", s.handleSwitchProfile)

	var h http.Handler = mux
	h = security.LimitBody(maxBodyBytes)(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	})(h)
	h = applog.Middleware(logger, func(r *http.Request) string {
		return trace.GetRequestID(r.Context())
	})(h)
	h = s.tracer.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		if s.caches != nil {
			s.caches.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "Readiness check failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, "unavailable", "store unreachable").Write(w)
			return
		}
	}
	NewJSONResponse().Data(map[string]string{"status": "ready"}).Write(w)
}

// identity returns the authenticated caller. Routes without it are never
// registered behind auth, so a miss is a wiring bug.
func identity(r *http.Request) services.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}
