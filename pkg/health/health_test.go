package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(context.Context) error { return nil }

func fail(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

// trip runs a check until it crosses the failure threshold.
func trip(c *checkConfig) {
	for range c.failureThreshold {
		c.run(context.Background())
	}
}

func probe(t *testing.T, endpoint http.HandlerFunc) (int, statusResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(h *Health)
		ready    bool
		code     int
		status   string
		checks   []string
		degraded []string
	}{
		{
			name:   "not marked ready",
			setup:  func(h *Health) { h.AddReadinessCheck("postgres", time.Second, pass) },
			code:   http.StatusServiceUnavailable,
			status: "unhealthy",
			checks: []string{"_readiness"},
		},
		{
			name:   "ready without checks",
			setup:  func(*Health) {},
			ready:  true,
			code:   http.StatusOK,
			status: "ok",
		},
		{
			name: "database down",
			setup: func(h *Health) {
				h.AddReadinessCheck("postgres", time.Second, fail("connection refused"))
				trip(h.checks[0])
			},
			ready:  true,
			code:   http.StatusServiceUnavailable,
			status: "unhealthy",
			checks: []string{"postgres"},
		},
		{
			name: "cache and broker down",
			setup: func(h *Health) {
				h.AddReadinessCheck("postgres", time.Second, pass)
				h.AddDegradedCheck("redis", time.Second, fail("dial tcp: connection refused"))
				h.AddDegradedCheck("kafka", time.Second, fail("no brokers"))
				trip(h.checks[1])
				trip(h.checks[2])
			},
			ready:    true,
			code:     http.StatusOK,
			status:   "degraded",
			degraded: []string{"kafka", "redis"},
		},
		{
			name: "single failure below threshold",
			setup: func(h *Health) {
				h.AddReadinessCheck("postgres", time.Second, fail("timeout"))
				h.checks[0].run(context.Background())
			},
			ready:  true,
			code:   http.StatusOK,
			status: "ok",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New()
			tt.setup(h)
			h.SetReady(tt.ready)

			code, body := probe(t, h.ReadyEndpoint)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.status, body.Status)
			assert.ElementsMatch(t, tt.checks, keys(body.Checks))
			assert.ElementsMatch(t, tt.degraded, keys(body.Degraded))
			assert.Equal(t, code == http.StatusOK, h.IsReady())
		})
	}
}

func keys(m map[string]string) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, fail("goroutine count 20000 exceeds threshold 10000"))
	h.AddDegradedCheck("redis", time.Second, fail("down"))

	code, body := probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "checks start healthy")
	assert.Equal(t, "ok", body.Status)

	trip(h.checks[1])
	code, _ = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusOK, code, "degraded checks are not liveness checks")

	trip(h.checks[0])
	code, body = probe(t, h.LiveEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "goroutine count 20000 exceeds threshold 10000", body.Checks["goroutines"])
}

func TestCheck_Recovers(t *testing.T) {
	down := true
	h := New()
	h.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
		if down {
			return errors.New("down")
		}
		return nil
	})
	c := h.checks[0]
	assert.NoError(t, c.lastError())

	trip(c)
	assert.False(t, c.isHealthy())
	assert.EqualError(t, c.lastError(), "down")

	down = false
	c.run(context.Background())
	assert.True(t, c.isHealthy())
	assert.NoError(t, c.lastError())
}

func TestCheck_Timeout(t *testing.T) {
	h := New()
	h.AddDegradedCheck("kafka", 10*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	h.checks[0].run(context.Background())
	assert.ErrorIs(t, h.checks[0].lastError(), context.DeadlineExceeded)
}

func TestStartStop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	h := New()
	h.AddReadinessCheck("postgres", time.Second, func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return nil
	})
	h.SetReady(true)

	h.Start(context.Background(), 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls >= 2
	}, time.Second, 5*time.Millisecond)

	// Probes read stored results while checks keep running.
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()

	h.Stop()
	h.Stop()
}

func TestCheckers(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, GoroutineCountCheck(100000)(ctx))
	err := GoroutineCountCheck(0)(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")

	assert.NoError(t, GCMaxPauseCheck(time.Hour)(ctx))

	assert.NoError(t, PingCheck(pinger{})(ctx))
	err = PingCheck(pinger{err: errors.New("refused")})(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping")
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }
