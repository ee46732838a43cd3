// Package ratelimit caps requests per client IP in fixed one-minute windows.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

const window = time.Minute

type Config struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration
	// StaleAfter is how long a client's window may stay closed before the
	// client is forgotten.
	StaleAfter time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		CleanupInterval:   5 * time.Minute,
		StaleAfter:        10 * time.Minute,
	}
}

// Decision is the outcome of one Take.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// Reset is when the client's current window closes.
	Reset time.Time
}

// RetryAfter is the wait until Reset in whole seconds, at least one.
func (d Decision) RetryAfter(now time.Time) int {
	return max(1, int(math.Ceil(d.Reset.Sub(now).Seconds())))
}

type Metrics struct {
	Allowed  int64 `json:"allowed"`
	Rejected int64 `json:"rejected"`
	Clients  int   `json:"clients"`
}

type Limiter struct {
	cfg  Config
	now  func() time.Time
	stop chan struct{}
	once sync.Once

	mu       sync.Mutex
	clients  map[string]*clientWindow
	allowed  int64
	rejected int64
}

type clientWindow struct {
	start time.Time
	count int
}

// NewLimiter fills unset Config fields from DefaultConfig and starts the
// cleanup goroutine; call Stop on shutdown.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}

	rl := &Limiter{
		cfg:     cfg,
		now:     time.Now,
		stop:    make(chan struct{}),
		clients: make(map[string]*clientWindow),
	}
	go rl.cleanupLoop()
	return rl
}

// Take counts one request from clientIP against its current window.
func (rl *Limiter) Take(clientIP string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[clientIP]
	if !ok || now.Sub(w.start) >= window {
		w = &clientWindow{start: now}
		rl.clients[clientIP] = w
	}
	w.count++

	d := Decision{
		Allowed:   w.count <= rl.cfg.RequestsPerMinute,
		Limit:     rl.cfg.RequestsPerMinute,
		Remaining: max(0, rl.cfg.RequestsPerMinute-w.count),
		Reset:     w.start.Add(window),
	}
	if d.Allowed {
		rl.allowed++
	} else {
		rl.rejected++
	}
	return d
}

func (rl *Limiter) Allow(clientIP string) bool {
	return rl.Take(clientIP).Allowed
}

func (rl *Limiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.forgetStale()
		case <-rl.stop:
			return
		}
	}
}

// forgetStale drops clients whose window closed more than StaleAfter ago.
func (rl *Limiter) forgetStale() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.cfg.StaleAfter)
	dropped := 0
	for ip, w := range rl.clients {
		if w.start.Add(window).Before(cutoff) {
			delete(rl.clients, ip)
			dropped++
		}
	}
	return dropped
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *Limiter) Stop() {
	rl.once.Do(func() { close(rl.stop) })
}

func (rl *Limiter) GetMetrics() Metrics {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return Metrics{Allowed: rl.allowed, Rejected: rl.rejected, Clients: len(rl.clients)}
}

// Middleware sets the X-RateLimit headers on every request and rejects
// over-limit ones with onLimit, or a plain 429 when onLimit is nil.
// Retry-After counts down to the end of the client's window.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := rl.Take(extractIP(r))
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if d.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Retry-After", strconv.Itoa(d.RetryAfter(rl.now())))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
		})
	}
}
