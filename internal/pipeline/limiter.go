package pipeline

import (
	"sync"
	"time"

	"starhollow/engine/logging"
)

// RateLimiter caps how many commands each agent may stage per second. The
// window is a simple fixed interval keyed to the shared clock; agents that
// exceed the cap have their surplus commands dropped at submission time.
type RateLimiter struct {
	mu     sync.Mutex
	clock  logging.Clock
	limit  int
	window time.Duration
	counts map[string]*agentWindow
}

type agentWindow struct {
	start time.Time
	used  int
}

// NewRateLimiter constructs a limiter allowing limit commands per second per
// agent. A non-positive limit disables limiting.
func NewRateLimiter(clock logging.Clock, limit int) *RateLimiter {
	if clock == nil {
		clock = logging.SystemClock{}
	}
	return &RateLimiter{
		clock:  clock,
		limit:  limit,
		window: time.Second,
		counts: make(map[string]*agentWindow),
	}
}

// Allow reports whether the agent may stage one more command right now and
// consumes budget when it may. The empty agent is exempt; it identifies
// internal submitters that are trusted not to flood the queues.
func (r *RateLimiter) Allow(agent string) bool {
	if r == nil || r.limit <= 0 || agent == "" {
		return true
	}
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	win, ok := r.counts[agent]
	if !ok || now.Sub(win.start) >= r.window {
		r.counts[agent] = &agentWindow{start: now, used: 1}
		return true
	}
	if win.used >= r.limit {
		return false
	}
	win.used++
	return true
}

// Forget drops the tracked window for an agent, freeing its bookkeeping once
// the agent disconnects.
func (r *RateLimiter) Forget(agent string) {
	if r == nil || agent == "" {
		return
	}
	r.mu.Lock()
	delete(r.counts, agent)
	r.mu.Unlock()
}
