package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func (c *fakeClock) limiter(cfg RateLimitConfig) *Limiter {
	l := NewLimiter(cfg)
	l.now = c.now
	return l
}

func fromTerminal(h http.Handler, remote, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/categories", nil)
	req.RemoteAddr = remote
	if key != "" {
		req.Header.Set("api_key", key)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_Budget(t *testing.T) {
	h := RateLimit(RateLimitConfig{Max: 3, Window: time.Minute})(okHandler())

	for i, want := range []string{"2", "1", "0"} {
		w := fromTerminal(h, "192.168.1.1:12345", "")
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, want, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := fromTerminal(h, "192.168.1.1:12345", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimit_SlidingWindow(t *testing.T) {
	clock := newFakeClock()
	h := clock.limiter(RateLimitConfig{Max: 2, Window: time.Minute}).Middleware()(okHandler())
	send := func() int { return fromTerminal(h, "10.0.0.1:1234", "").Code }

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// Halfway into the next window the previous one still counts for half.
	clock.advance(90 * time.Second)
	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// Two idle windows clear the history.
	clock.advance(2 * time.Minute)
	w := fromTerminal(h, "10.0.0.1:1234", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Remaining"))
}

func TestLimiter_Evict(t *testing.T) {
	clock := newFakeClock()
	l := clock.limiter(RateLimitConfig{
		Max:     5,
		Window:  time.Minute,
		KeyFunc: KeyByHeader("api_key"),
	})
	h := l.Middleware()(okHandler())

	fromTerminal(h, "10.0.0.1:1234", "till-1")
	fromTerminal(h, "10.0.0.1:1234", "till-2")
	require.Len(t, l.counters, 2)
	assert.Equal(t, 0, l.evict())

	// Only till-2 stays active.
	clock.advance(2 * time.Minute)
	fromTerminal(h, "10.0.0.1:1234", "till-2")
	assert.Equal(t, 1, l.evict())
	assert.Len(t, l.counters, 1)
}

func TestRateLimit_KeyByHeader(t *testing.T) {
	h := RateLimit(RateLimitConfig{
		Max:     1,
		Window:  time.Minute,
		KeyFunc: KeyByHeader("api_key"),
	})(okHandler())
	send := func(key string) int { return fromTerminal(h, "10.0.0.1:1234", key).Code }

	// Two terminals behind the same address get separate budgets.
	assert.Equal(t, http.StatusOK, send("till-1"))
	assert.Equal(t, http.StatusOK, send("till-2"))
	assert.Equal(t, http.StatusTooManyRequests, send("till-1"))

	// Without a key the client address is used.
	assert.Equal(t, http.StatusOK, send(""))
	assert.Equal(t, http.StatusTooManyRequests, send(""))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		header map[string]string
		want   string
	}{
		{name: "remote addr", remote: "192.168.1.1:4444", want: "192.168.1.1"},
		{name: "bare remote", remote: "192.168.1.1", want: "192.168.1.1"},
		{
			name:   "forwarded first hop",
			remote: "192.168.1.1:4444",
			header: map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"},
			want:   "203.0.113.50",
		},
		{
			name:   "real ip",
			remote: "192.168.1.1:4444",
			header: map[string]string{"X-Real-IP": "198.51.100.7"},
			want:   "198.51.100.7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
