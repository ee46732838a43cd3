// Package api serves the finance REST API the dashboard consumes.
package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pft/internal/log"
	"pft/internal/middleware/ratelimit"
	"pft/internal/middleware/security"
	"pft/internal/middleware/trace"
	"pft/internal/services"
)

type Server struct {
	http.Server
	finance *services.FinanceService
	logger  *log.Logger
	limiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

type Options struct {
	// RateLimitPerMinute caps writes per client; zero disables the limit.
	RateLimitPerMinute int
}

func NewServer(addr string, finance *services.FinanceService, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		finance: finance,
		logger:  logger.WithComponent(log.ComponentAPI),
	}

	detector := security.NewDetector()
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.logger, detector.ExtractClientIP).Middleware)
	r.Use(security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware)

	r.Get("/", s.handle(s.handleIndex))
	r.Get("/readyz", s.handle(s.handleReady))

	r.Route("/api", func(r chi.Router) {
		if opts.RateLimitPerMinute > 0 {
			s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
			r.Use(writesOnly(s.limiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			})))
		}

		r.Get("/health", s.handle(s.handleHealth))
		r.Get("/profile", s.handle(s.handleProfile))
		r.Get("/categories", s.handle(s.handleCategories))

		r.Get("/transactions", s.handle(s.handleListTransactions))
		r.Post("/transactions", s.handle(s.handleCreateTransaction))
		r.Put("/transactions/{id}", s.handle(s.handleUpdateTransaction))
		r.Delete("/transactions/{id}", s.handle(s.handleDeleteTransaction))

		r.Get("/budgets", s.handle(s.handleListBudgets))
		r.Post("/budgets", s.handle(s.handleCreateBudget))
		r.Put("/budgets/{id}", s.handle(s.handleUpdateBudget))
		r.Delete("/budgets/{id}", s.handle(s.handleDeleteBudget))

		r.Get("/summary/monthly", s.handle(s.handleMonthlySummary))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	s.Handler = r
	return s
}

// writesOnly applies mw to POST, PUT and DELETE; reads pass straight through.
func writesOnly(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		limited := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				limited.ServeHTTP(w, r)
			}
		})
	}
}

// Shutdown stops the limiter and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}
