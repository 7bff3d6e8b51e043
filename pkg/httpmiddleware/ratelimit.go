package httpmiddleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/jx"
)

// RateLimitConfig configures the sliding window rate limiter.
type RateLimitConfig struct {
	// Max requests per window and key.
	Max int
	// Window length.
	Window time.Duration
	// KeyFunc picks the budget a request is charged to. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// counter approximates a sliding window from the current and previous fixed
// windows.
type counter struct {
	start time.Time
	curr  float64
	prev  float64
}

func (c *counter) roll(now time.Time, window time.Duration) {
	elapsed := now.Sub(c.start)
	switch {
	case elapsed < window:
		return
	case elapsed < 2*window:
		c.prev = c.curr
	default:
		c.prev = 0
	}
	c.curr = 0
	c.start = now.Truncate(window)
}

func (c *counter) estimate(now time.Time, window time.Duration) float64 {
	weight := 1 - now.Sub(c.start).Seconds()/window.Seconds()
	return c.prev*max(weight, 0) + c.curr
}

// Limiter tracks request budgets per key.
type Limiter struct {
	cfg RateLimitConfig
	now func() time.Time

	mu       sync.Mutex
	counters map[string]*counter
}

// decision is the outcome of charging one request.
type decision struct {
	allowed   bool
	remaining int
	resetAt   time.Time
}

// NewLimiter creates a limiter. Stale keys are only evicted by Run.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = ClientIP
	}
	return &Limiter{
		cfg:      cfg,
		now:      time.Now,
		counters: make(map[string]*counter),
	}
}

func (l *Limiter) take(key string) decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[key]
	if !ok {
		c = &counter{start: now}
		l.counters[key] = c
	}
	c.roll(now, l.cfg.Window)

	d := decision{resetAt: c.start.Add(l.cfg.Window)}
	used := c.estimate(now, l.cfg.Window)
	if used >= float64(l.cfg.Max) {
		return d
	}
	c.curr++
	d.allowed = true
	d.remaining = max(int(float64(l.cfg.Max)-used-1), 0)
	return d
}

// evict drops keys idle for two full windows.
func (l *Limiter) evict() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var n int
	for key, c := range l.counters {
		if now.Sub(c.start) >= 2*l.cfg.Window {
			delete(l.counters, key)
			n++
		}
	}
	return n
}

// Run evicts idle keys every two windows until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.cfg.Window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict()
		}
	}
}

// Middleware charges every request to its key. Responses carry the
// X-RateLimit-* headers; exhausted budgets get 429 with Retry-After.
func (l *Limiter) Middleware() Middleware {
	limit := strconv.Itoa(l.cfg.Max)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.take(l.cfg.KeyFunc(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.resetAt.Unix(), 10))
			if d.allowed {
				next.ServeHTTP(w, r)
				return
			}

			wait := max(d.resetAt.Sub(l.now()), 0)
			h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		})
	}
}

// RateLimit limits requests without evicting idle keys.
func RateLimit(cfg RateLimitConfig) Middleware {
	return NewLimiter(cfg).Middleware()
}

// RateLimitWithCleanup limits requests and evicts idle keys until ctx is done.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg)
	go l.Run(ctx)
	return l.Middleware()
}

// KeyByHeader charges each value of header its own budget, so terminals
// sharing one address behind NAT are limited separately. Requests without the
// header fall back to ClientIP. Values are hashed before they are kept.
func KeyByHeader(header string) func(*http.Request) string {
	return func(r *http.Request) string {
		v := r.Header.Get(header)
		if v == "" {
			return ClientIP(r)
		}
		sum := sha256.Sum256([]byte(v))
		return header + ":" + hex.EncodeToString(sum[:8])
	}
}

// ClientIP returns the first X-Forwarded-For hop, X-Real-IP, or the remote
// host, in that order.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeError writes the {"code","message"} body the API uses for errors.
func writeError(w http.ResponseWriter, code int, msg string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(code) })
		e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(e.Bytes())
}
