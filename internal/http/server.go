// Package http serves the budget screen as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"budgetd/internal/budget"
	applog "budgetd/internal/log"
	"budgetd/internal/middleware/ratelimit"
	"budgetd/internal/middleware/security"
	"budgetd/internal/middleware/trace"
	"budgetd/internal/store"
)

// Options wires a Server.
type Options struct {
	Addr    string
	Backend store.Backend
	Budgets *budget.Manager
	// Ping backs /readyz; nil means the backend is always ready.
	Ping      func(ctx context.Context) error
	RateLimit ratelimit.Config
	Logger    *applog.Logger
}

type Server struct {
	http.Server
	backend store.Backend
	budgets *budget.Manager
	ping    func(ctx context.Context) error
	logger  *applog.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	started          time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		backend:          opts.Backend,
		budgets:          opts.Budgets,
		ping:             opts.Ping,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: security.NewDetector(),
		started:          time.Now(),
	}
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/budget", s.handleGetBudget).Methods(http.MethodGet)
	api.HandleFunc("/budget/flush", s.handleFlushBudget).Methods(http.MethodPost)
	api.HandleFunc("/budget/export.xlsx", s.handleExportBudget).Methods(http.MethodGet)
	api.HandleFunc("/budget/{parentID:[0-9]+}/{childID:[0-9]+}", s.handleEditBudget).Methods(http.MethodPut)
	api.HandleFunc("/summary", s.handleGetSummary).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleListCategories).Methods(http.MethodGet)
	api.HandleFunc("/categories", s.handleAddCategory).Methods(http.MethodPost)
	api.HandleFunc("/transactions", s.handleListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", s.handleAddTransaction).Methods(http.MethodPost)

	// Outermost first: every request, routed or not, is traced.
	var h http.Handler = r
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, ratelimit.WritesOnly, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
	})(h)
	h = s.securityDetector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.Middleware(logger, func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(h)
	h = s.traceMiddleware.Middleware(h)
	s.Handler = h

	return s
}

// Shutdown stops accepting requests, then flushes every open budget session
// so no queued edit is lost.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		if s.budgets != nil {
			if err := s.budgets.Close(ctx); err != nil {
				s.logger.ErrorContext(ctx, "Failed to flush budget sessions", applog.FieldError, err)
				if shutdownErr == nil {
					shutdownErr = err
				}
			}
		}
	})
	return shutdownErr
}
