package pipeline

import (
	"time"
)

// Submitter is the narrow surface handed to workers and transports for
// staging commands. Registering a callback before submitting is optional;
// when the submission itself is rejected the callback fails immediately so
// no result is ever lost.
type Submitter interface {
	Submit(cmd Command) (bool, string)
	RegisterCallback() ID
}

// Runtime assembles the queues, stores, processor, and coordinator into one
// pipeline instance and owns the submission path.
type Runtime struct {
	cfg       Config
	deps      Deps
	alloc     *Allocator
	stores    *Stores
	callbacks *CallbackChannel
	limiter   *RateLimiter
	queues    map[Domain]*Queue
	coord     *Coordinator
}

// NewRuntime wires a pipeline around the given worker. The worker is not
// triggered until Start.
func NewRuntime(cfg Config, deps Deps, worker Worker, hooks Hooks) *Runtime {
	cfg = cfg.normalized()
	deps = deps.normalized()

	alloc := NewAllocator()
	stores := NewStores(cfg.SwapPolicy)
	callbacks := NewCallbackChannel(alloc)
	limiter := NewRateLimiter(deps.Clock, cfg.AgentCommandsPerSecond)

	queues := make(map[Domain]*Queue, len(StateDomains()))
	ordered := make([]*Queue, 0, len(StateDomains()))
	for _, domain := range StateDomains() {
		q := NewQueue(domain, cfg.QueueCapacity, deps.Metrics)
		queues[domain] = q
		ordered = append(ordered, q)
	}

	processor := NewProcessor(stores, alloc, callbacks, deps)
	coord := NewCoordinator(ordered, stores, processor, callbacks, worker, deps, cfg, hooks)

	return &Runtime{
		cfg:       cfg,
		deps:      deps,
		alloc:     alloc,
		stores:    stores,
		callbacks: callbacks,
		limiter:   limiter,
		queues:    queues,
		coord:     coord,
	}
}

// Start launches the worker goroutine and triggers the first frame.
func (r *Runtime) Start() {
	if r == nil {
		return
	}
	r.coord.Start()
	r.coord.Tick()
}

// Submit stages a command for the next frame boundary. The bool reports
// acceptance; on rejection the string carries the reason and any registered
// callback on the command fails with it.
func (r *Runtime) Submit(cmd Command) (bool, string) {
	if r == nil {
		return false, ReasonShuttingDown
	}
	if reason := r.admit(cmd); reason != "" {
		if cmd.Callback != 0 {
			r.callbacks.Fail(cmd.Callback, reason)
		}
		return false, reason
	}
	return true, ""
}

func (r *Runtime) admit(cmd Command) string {
	if r.coord.closing.Load() {
		return ReasonShuttingDown
	}
	domain, ok := cmd.Kind.StateDomain()
	if !ok {
		return ReasonUnknownKind
	}
	if !r.limiter.Allow(cmd.Agent) {
		return ReasonRateLimited
	}
	if !r.queues[domain].Submit(cmd) {
		return ReasonQueueFull
	}
	return ""
}

// RegisterCallback allocates a pending callback for the next submission.
func (r *Runtime) RegisterCallback() ID {
	if r == nil {
		return 0
	}
	return r.callbacks.Register()
}

// Tick advances the frame cycle once; see Coordinator.Tick.
func (r *Runtime) Tick() (FrameStats, bool) {
	if r == nil {
		return FrameStats{}, false
	}
	return r.coord.Tick()
}

// Run drives Tick at the configured frame rate until stop closes, then
// shuts the worker down. It blocks for the duration.
func (r *Runtime) Run(stop <-chan struct{}) error {
	if r == nil {
		return nil
	}
	r.Start()
	interval := time.Duration(float64(time.Second) / r.cfg.FrameRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return r.Shutdown()
		case <-ticker.C:
			r.Tick()
		}
	}
}

// Shutdown stops the frame cycle and waits for the worker within the
// configured deadline.
func (r *Runtime) Shutdown() error {
	if r == nil {
		return nil
	}
	return r.coord.AwaitShutdown()
}

// ShutdownComplete reports whether the worker goroutine has exited.
func (r *Runtime) ShutdownComplete() bool {
	if r == nil {
		return true
	}
	return r.coord.ShutdownComplete()
}

// Frame reports the current logic frame number.
func (r *Runtime) Frame() uint64 {
	if r == nil {
		return 0
	}
	return r.coord.Frame()
}

// State reports the frame-cycle state.
func (r *Runtime) State() FrameState {
	if r == nil {
		return StateIdle
	}
	return r.coord.State()
}

// FrameComplete reports whether the worker finished its frame and the
// boundary has not yet been applied.
func (r *Runtime) FrameComplete() bool {
	if r == nil {
		return false
	}
	return r.coord.FrameComplete()
}

// Stores exposes the double-buffered state for consumers. Readers must stay
// on the front-buffer accessors.
func (r *Runtime) Stores() *Stores {
	if r == nil {
		return nil
	}
	return r.stores
}

// ActiveCamera reports the camera the renderer should use.
func (r *Runtime) ActiveCamera() ID {
	if r == nil {
		return 0
	}
	return r.stores.ActiveCamera()
}

// ForgetAgent clears rate-limit bookkeeping for a disconnected agent.
func (r *Runtime) ForgetAgent(agent string) {
	if r == nil {
		return
	}
	r.limiter.Forget(agent)
}

// DiagnosticsSnapshot is a point-in-time view of pipeline health for the
// inspector surfaces.
type DiagnosticsSnapshot struct {
	Frame            uint64         `json:"frame"`
	State            string         `json:"state"`
	ActiveCamera     ID             `json:"activeCamera,omitempty"`
	QueueDepths      map[string]int `json:"queueDepths"`
	PendingCallbacks int            `json:"pendingCallbacks"`
	ConsecutiveSkips int            `json:"consecutiveSkips"`
	Entities         int            `json:"entities"`
	Cameras          int            `json:"cameras"`
	AudioSources     int            `json:"audioSources"`
	DebugPrimitives  int            `json:"debugPrimitives"`
}

// Diagnostics assembles a snapshot of pipeline health. Safe to call from any
// goroutine; counts come from the back buffers and may trail the front by
// one frame.
func (r *Runtime) Diagnostics() DiagnosticsSnapshot {
	if r == nil {
		return DiagnosticsSnapshot{}
	}
	depths := make(map[string]int, len(r.queues))
	for domain, q := range r.queues {
		depths[domain.String()] = q.Len()
	}
	return DiagnosticsSnapshot{
		Frame:            r.coord.Frame(),
		State:            r.coord.State().String(),
		ActiveCamera:     r.stores.ActiveCamera(),
		QueueDepths:      depths,
		PendingCallbacks: r.callbacks.PendingCount(),
		ConsecutiveSkips: r.coord.ConsecutiveSkips(),
		Entities:         r.stores.Entities.Len(),
		Cameras:          r.stores.Cameras.Len(),
		AudioSources:     r.stores.Audio.Len(),
		DebugPrimitives:  r.stores.Debug.Len(),
	}
}
