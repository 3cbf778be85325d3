// Package http exposes the ledger and its analytics views as a JSON API.
package http

import (
	"context"
	"net/http"
	"net/netip"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"expenses/internal/analytics"
	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/middleware/ratelimit"
	"expenses/internal/middleware/security"
	"expenses/internal/services"
)

// Ledger is the subset of the expense service the API drives.
type Ledger interface {
	AddExpense(ctx context.Context, c core.Category, date core.Date, title string, cost decimal.Decimal) (int64, error)
	CategorySummary(ctx context.Context, c core.Category) (services.CategorySummary, error)
	DeleteExpense(ctx context.Context, c core.Category, id int64) error
	GetCombinedExpenses(ctx context.Context, rng *core.DateRange) ([]core.TaggedExpense, error)
	View(ctx context.Context, name analytics.ViewName, rng *core.DateRange, p analytics.Params) (any, error)
	Dashboard(ctx context.Context, rng *core.DateRange, n int) (analytics.Dashboard, error)
	Ready(ctx context.Context) error
}

var _ Ledger = (*services.ExpenseService)(nil)

// Server is an http.Server with the API routes and middleware installed.
type Server struct {
	http.Server
	ledger  Ledger
	logger  *applog.Logger
	limiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// Writes are rate limited per client IP; reads are not. Forwarding headers
// only name the client when the peer is one of trustedProxies.
func NewServer(addr string, ledger Ledger, logger *applog.Logger, trustedProxies []netip.Prefix) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &Server{
		ledger:  ledger,
		logger:  logger.WithComponent(applog.ComponentHTTP),
		limiter: ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/expenses", s.handleCombined)
	mux.HandleFunc("GET /api/expenses/{category}", s.handleListCategory)
	mux.HandleFunc("POST /api/expenses/{category}", s.handleCreateExpense)
	mux.HandleFunc("DELETE /api/expenses/{category}/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/views/{view}", s.handleView)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	var handler http.Handler = mux
	clientIP := applog.ClientIPResolver(trustedProxies)
	handler = s.limiter.Middleware(clientIP, http.MethodPost, http.MethodDelete)(handler)
	handler = applog.RequestLogging(logger, clientIP)(handler)
	handler = security.Headers(security.DefaultHeadersConfig())(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ledger.Ready(ctx); err != nil {
		applog.FromContext(r.Context()).LogError(r.Context(), "Readiness check failed", err, applog.OpReady, applog.NewFields())
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
