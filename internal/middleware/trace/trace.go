// Package trace tags every request with an ID and logs its start and end.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pft/internal/log"
)

// HeaderRequestID carries the request ID in both directions. An inbound value
// is reused so a dashboard request and the API calls it makes share one ID.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// Metrics counts traced requests. HTMX counts the partial updates sent by
// htmx, as opposed to whole page loads.
type Metrics struct {
	Requests           int64 `json:"total"`
	InFlight           int64 `json:"in_flight"`
	HTMX               int64 `json:"htmx"`
	ClientErrors       int64 `json:"client_errors"`
	ServerErrors       int64 `json:"server_errors"`
	LastDurationMicros int64 `json:"last_duration_us"`
}

type counters struct {
	requests, inFlight, htmx   atomic.Int64
	clientErrors, serverErrors atomic.Int64
	lastDurationMicros         atomic.Int64
}

type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	http      *log.StructuredLogger
	counts    counters
}

// NewMiddleware logs through logger; extractIP may be nil.
func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
		http:      log.NewStructuredLogger(logger),
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.counts.requests.Add(1)
		m.counts.inFlight.Add(1)
		defer m.counts.inFlight.Add(-1)

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}
		id := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)

		reqLogger := m.logger.With(log.FieldRequestID, id)
		if r.Header.Get("HX-Request") == "true" {
			m.counts.htmx.Add(1)
			reqLogger = reqLogger.With("htmx", true)
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		ctx = log.WithLogger(ctx, reqLogger)
		r = r.WithContext(ctx)

		m.http.LogHTTPStart(ctx, r, id, clientIP)
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		elapsed := time.Since(start)
		m.counts.lastDurationMicros.Store(elapsed.Microseconds())
		switch {
		case sw.status >= 500:
			m.counts.serverErrors.Add(1)
		case sw.status >= 400:
			m.counts.clientErrors.Add(1)
		}
		m.http.LogHTTPEnd(ctx, r, id, sw.status, elapsed.Milliseconds(), clientIP)
	})
}

// statusWriter records the first status code written.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.status = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	sw.wroteHeader = true
	return sw.ResponseWriter.Write(b)
}

func (sw *statusWriter) Unwrap() http.ResponseWriter {
	return sw.ResponseWriter
}

// GetRequestID returns "" outside a traced request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		Requests:           m.counts.requests.Load(),
		InFlight:           m.counts.inFlight.Load(),
		HTMX:               m.counts.htmx.Load(),
		ClientErrors:       m.counts.clientErrors.Load(),
		ServerErrors:       m.counts.serverErrors.Load(),
		LastDurationMicros: m.counts.lastDurationMicros.Load(),
	}
}
