// Package health serves liveness and readiness probes.
//
// Every check runs on its own ticker. A check turns unhealthy after
// failureThreshold consecutive failures and healthy again after
// successThreshold consecutive successes, so a single slow ping does not flap
// the probe.
//
// Degraded checks cover dependencies the service can run without (a cache,
// an event broker). Their failures are reported on /readyz but never make the
// service unready.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

type kind int

const (
	kindLiveness kind = iota
	kindReadiness
	kindDegraded
)

// checkConfig is one registered check. run is called from a single
// goroutine, so the counters need no locking; healthy and lastErr are read by
// HTTP handlers and are atomic.
type checkConfig struct {
	name             string
	kind             kind
	timeout          time.Duration
	check            CheckFunc
	failureThreshold int
	successThreshold int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	consecutiveFails int
	consecutiveOK    int
}

func (c *checkConfig) isHealthy() bool {
	return c.healthy.Load()
}

func (c *checkConfig) lastError() error {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *checkConfig) run(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.check(checkCtx)
	c.lastErr.Store(&err)

	if err != nil {
		c.consecutiveOK = 0
		c.consecutiveFails++
		if c.consecutiveFails >= c.failureThreshold {
			c.healthy.Store(false)
		}
		return
	}
	c.consecutiveFails = 0
	c.consecutiveOK++
	if c.consecutiveOK >= c.successThreshold {
		c.healthy.Store(true)
	}
}

func (c *checkConfig) failure() string {
	if err := c.lastError(); err != nil {
		return err.Error()
	}
	return "check is unhealthy"
}

// Health manages the probes of one service.
type Health struct {
	ready atomic.Bool

	// mu guards the check list and cancel. Handlers copy the list and
	// release the lock before touching check state.
	mu     sync.RWMutex
	checks []*checkConfig
	cancel context.CancelFunc
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

func (h *Health) add(k kind, name string, timeout time.Duration, check CheckFunc) {
	c := &checkConfig{
		name:             name,
		kind:             k,
		timeout:          timeout,
		check:            check,
		failureThreshold: 3,
		successThreshold: 1,
	}
	c.healthy.Store(true)

	h.mu.Lock()
	h.checks = append(h.checks, c)
	h.mu.Unlock()
}

// AddLivenessCheck registers a check that fails /livez.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(kindLiveness, name, timeout, check)
}

// AddReadinessCheck registers a check that fails /readyz.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(kindReadiness, name, timeout, check)
}

// AddDegradedCheck registers a check that is reported on /readyz without
// affecting readiness.
func (h *Health) AddDegradedCheck(name string, timeout time.Duration, check CheckFunc) {
	h.add(kindDegraded, name, timeout, check)
}

// Start runs every registered check every interval until Stop or ctx ends.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	checks := append([]*checkConfig(nil), h.checks...)
	h.mu.Unlock()

	for _, c := range checks {
		go runCheck(ctx, c, interval)
	}
}

func runCheck(ctx context.Context, c *checkConfig, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.run(ctx)
		}
	}
}

// Stop cancels the background checks. It is safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady sets the manual readiness flag. It is flipped to false first
// during graceful shutdown.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and every readiness
// check passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	for _, c := range h.snapshot(kindReadiness) {
		if !c.isHealthy() {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(k kind) []*checkConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*checkConfig
	for _, c := range h.checks {
		if c.kind == k {
			out = append(out, c)
		}
	}
	return out
}

// statusResponse is the body of both endpoints.
type statusResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Degraded map[string]string `json:"degraded,omitempty"`
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeResponse(w, statusResponse{Checks: collectFailures(h.snapshot(kindLiveness))})
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := collectFailures(h.snapshot(kindReadiness))
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeResponse(w, statusResponse{
		Checks:   failures,
		Degraded: collectFailures(h.snapshot(kindDegraded)),
	})
}

// collectFailures uses the last stored result rather than running checks on
// the request path.
func collectFailures(checks []*checkConfig) map[string]string {
	failures := make(map[string]string)
	for _, c := range checks {
		if !c.isHealthy() {
			failures[c.name] = c.failure()
		}
	}
	return failures
}

func writeResponse(w http.ResponseWriter, resp statusResponse) {
	status := http.StatusOK
	resp.Status = "ok"
	if len(resp.Checks) > 0 {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	} else if len(resp.Degraded) > 0 {
		resp.Status = "degraded"
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("status", func(e *jx.Encoder) { e.Str(resp.Status) })
		encodeMap(e, "checks", resp.Checks)
		encodeMap(e, "degraded", resp.Degraded)
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeMap(e *jx.Encoder, name string, m map[string]string) {
	if len(m) == 0 {
		return
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.Field(name, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			for _, k := range keys {
				e.Field(k, func(e *jx.Encoder) { e.Str(m[k]) })
			}
		})
	})
}
