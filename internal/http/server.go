// Package http serves the dashboard: one page session per page load, with
// htmx requests answered by the regions they changed.
package http

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pft/internal/cache"
	"pft/internal/dashboard"
	"pft/internal/log"
	"pft/internal/middleware/ratelimit"
	"pft/internal/middleware/security"
	"pft/internal/middleware/trace"
	appweb "pft/web"
)

// SessionCookie names the cookie holding the page session id.
const SessionCookie = "pft_session"

// HealthChecker is implemented by backends that can report their own health.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Options struct {
	SessionTTL         time.Duration
	SessionMax         int
	RateLimitPerMinute int
	// TrustedProxies are CIDRs whose forwarding headers are believed, on
	// top of loopback and the private ranges.
	TrustedProxies []string
	// CleanupInterval defaults to a minute.
	CleanupInterval time.Duration
}

type Server struct {
	http.Server
	backend  dashboard.Backend
	views    *dashboard.Views
	logger   *log.Logger
	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
	started  time.Time

	sessions     *cache.LRUCache[*dashboard.Session]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires the routes.
func NewServer(addr string, backend dashboard.Backend, logger *log.Logger, opts Options) (*Server, error) {
	if backend == nil {
		return nil, errors.New("dashboard server: backend is required")
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * time.Minute
	}
	if opts.SessionMax <= 0 {
		opts.SessionMax = 1000
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = time.Minute
	}

	views, err := dashboard.ParseViews(appweb.TemplatesFS)
	if err != nil {
		return nil, err
	}
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, err
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		backend:  backend,
		views:    views,
		logger:   logger.WithComponent(log.ComponentHTTP),
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		started:  time.Now(),
		sessions: cache.NewLRUCache[*dashboard.Session](opts.SessionMax, opts.SessionTTL),
	}

	// Closing takes the session lock, which a running request may hold.
	// Requests that reach the session after Close get dashboard.ErrClosed.
	sessionLog := logger.WithComponent(log.ComponentCache)
	s.sessions.OnEvict(func(id string, sess *dashboard.Session, reason cache.EvictReason) {
		sessionLog.Debug("Page session dropped", log.FieldSessionID, id, "reason", reason)
		go sess.Close()
	})
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.limiter.Stop()
			return nil, err
		}
	}
	s.tracer = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP)

	s.cacheManager = cache.NewManager(logger.WithComponent(log.ComponentCache))
	s.cacheManager.Register(s.sessions)
	s.cacheManager.StartCleanup(opts.CleanupInterval)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.flagSuspicious)
	r.Use(security.NewHeadersMiddleware(security.DashboardHeadersConfig()).Middleware)
	r.Use(middleware.Compress(5))

	r.Method(http.MethodGet, "/healthz", handlerFunc(s.handleHealth))
	r.Method(http.MethodGet, "/readyz", handlerFunc(s.handleReady))
	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Method(http.MethodGet, "/", handlerFunc(s.handleIndex))

	r.Group(func(r chi.Router) {
		r.Use(s.limitPosts)
		r.Method(http.MethodPost, "/ui/transactions", s.sessionHandler(s.handleSubmitTransaction))
		r.Method(http.MethodPost, "/ui/budgets", s.sessionHandler(s.handleSubmitBudget))
		r.Method(http.MethodPost, "/ui/transactions/{id}/delete", s.sessionHandler(s.handleDeleteTransaction))
		r.Method(http.MethodPost, "/ui/budgets/{id}/delete", s.sessionHandler(s.handleDeleteBudget))
		r.Method(http.MethodGet, "/ui/summary", s.sessionHandler(s.handleFilter))
		r.Method(http.MethodPost, "/ui/refresh", s.sessionHandler(s.handleRefresh))
	})

	s.Handler = r
	return s, nil
}

func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

// limitPosts rate limits state-changing requests only, so filtering and
// page loads stay responsive.
func (s *Server) limitPosts(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests).Write(w)
	})(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Sessions reports how many page sessions are cached.
func (s *Server) Sessions() int {
	return s.sessions.Size()
}

// Shutdown stops background cleanup and drains the HTTP server once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
