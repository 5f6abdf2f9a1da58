package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"starhollow/engine/logging/frames"
)

// FrameState tracks where the coordinator is in the frame cycle. Transitions
// are Idle -> WorkerRunning (trigger) -> FrameComplete (worker finished) ->
// Idle (boundary applied); WorkerRunning holds across skipped frames when
// the worker overruns its slot.
type FrameState int32

const (
	StateIdle FrameState = iota
	StateWorkerRunning
	StateFrameComplete
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWorkerRunning:
		return "worker_running"
	case StateFrameComplete:
		return "frame_complete"
	default:
		return "unknown"
	}
}

// ErrShutdownTimeout is returned when the worker fails to finish its
// in-flight frame within the shutdown deadline.
var ErrShutdownTimeout = errors.New("pipeline: worker did not stop before deadline")

// Worker runs one frame of logic when triggered. Implementations submit
// commands through the Submitter they were bound to and must return when the
// frame's work is done; the coordinator will not trigger again until then.
type Worker interface {
	RunFrame(in FrameInput)
}

// FrameInput is handed to the worker at each trigger.
type FrameInput struct {
	// Frame is the logic frame number being computed.
	Frame uint64
	// Delta is the wall time elapsed since the previous trigger.
	Delta time.Duration
	// Callbacks holds results resolved at the boundary that preceded this
	// trigger. Each result is delivered exactly once.
	Callbacks []CallbackResult
}

// FrameStats summarizes one applied frame boundary.
type FrameStats struct {
	Frame    uint64        `json:"frame"`
	Applied  int           `json:"applied"`
	Rejected int           `json:"rejected"`
	Synced   int           `json:"synced"`
	Reaped   int           `json:"reaped"`
	Duration time.Duration `json:"duration"`
}

// Hooks lets the embedding application observe frame lifecycle moments
// without the coordinator importing it. All funcs are optional and run on
// the coordinator's thread.
type Hooks struct {
	FrameTriggered func(frame uint64)
	FrameApplied   func(stats FrameStats)
	FrameSkipped   func(frame uint64, consecutive int)
	StallDetected  func(frame uint64, consecutive int)
}

const (
	metricFramesApplied = "pipeline_frames_applied_total"
	metricFramesSkipped = "pipeline_frames_skipped_total"
	metricWorkerStalls  = "pipeline_worker_stalls_total"
)

// Coordinator drives the frame cycle from the render thread. Tick is called
// once per render frame; everything else is bookkeeping around the single
// worker goroutine it owns.
type Coordinator struct {
	queues    []*Queue
	stores    *Stores
	processor *Processor
	callbacks *CallbackChannel
	worker    Worker
	deps      Deps
	cfg       Config
	hooks     Hooks

	state   atomic.Int32
	frame   atomic.Uint64
	started atomic.Bool
	closing atomic.Bool

	trigger chan FrameInput
	stop    chan struct{}
	done    chan struct{}

	consecutiveSkips atomic.Int32
	stallReported    bool
	triggeredAt      time.Time
	lastTrigger      time.Time
}

func NewCoordinator(queues []*Queue, stores *Stores, processor *Processor, callbacks *CallbackChannel, worker Worker, deps Deps, cfg Config, hooks Hooks) *Coordinator {
	return &Coordinator{
		queues:    queues,
		stores:    stores,
		processor: processor,
		callbacks: callbacks,
		worker:    worker,
		deps:      deps.normalized(),
		cfg:       cfg.normalized(),
		hooks:     hooks,
		trigger:   make(chan FrameInput, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the worker goroutine. Calling Start twice is a no-op.
func (c *Coordinator) Start() {
	if c == nil || !c.started.CompareAndSwap(false, true) {
		return
	}
	go c.runWorker()
}

func (c *Coordinator) runWorker() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case in := <-c.trigger:
			c.worker.RunFrame(in)
			c.state.CompareAndSwap(int32(StateWorkerRunning), int32(StateFrameComplete))
		}
	}
}

// State reports the current frame-cycle state.
func (c *Coordinator) State() FrameState {
	if c == nil {
		return StateIdle
	}
	return FrameState(c.state.Load())
}

// Frame reports the most recently triggered logic frame number.
func (c *Coordinator) Frame() uint64 {
	if c == nil {
		return 0
	}
	return c.frame.Load()
}

// FrameComplete reports whether the worker has finished its current frame
// and the boundary has not yet been applied.
func (c *Coordinator) FrameComplete() bool {
	return c.State() == StateFrameComplete
}

// Tick advances the frame cycle once. When the worker has signalled
// completion the boundary is applied: queues drain into the back buffers,
// retired state is swept, the stores swap, and the next frame is triggered.
// When the worker is still running the tick only counts the skip; the
// consumer keeps rendering the unchanged front buffers. The bool reports
// whether a boundary was applied this tick.
func (c *Coordinator) Tick() (FrameStats, bool) {
	if c == nil || c.closing.Load() {
		return FrameStats{}, false
	}
	switch FrameState(c.state.Load()) {
	case StateFrameComplete:
		stats := c.applyBoundary()
		c.triggerNext()
		return stats, true
	case StateIdle:
		c.triggerNext()
		return FrameStats{}, false
	default: // StateWorkerRunning
		c.recordSkip()
		return FrameStats{}, false
	}
}

func (c *Coordinator) applyBoundary() FrameStats {
	start := c.deps.Clock.Now()
	frame := c.frame.Load()

	applied, rejected := 0, 0
	for _, q := range c.queues {
		q.ConsumeAll(func(cmd Command) {
			if c.processor.Apply(cmd, frame) {
				applied++
			} else {
				rejected++
			}
		})
	}

	reaped := 0
	if c.cfg.SweepInterval > 0 && frame%c.cfg.SweepInterval == 0 {
		reaped = c.processor.Sweep(frame)
	}

	synced := c.stores.SwapAll()
	c.state.Store(int32(StateIdle))

	stats := FrameStats{
		Frame:    frame,
		Applied:  applied,
		Rejected: rejected,
		Synced:   synced,
		Reaped:   reaped,
		Duration: c.deps.Clock.Now().Sub(start),
	}
	c.deps.Metrics.Add(metricFramesApplied, 1)
	if c.hooks.FrameApplied != nil {
		c.hooks.FrameApplied(stats)
	}
	return stats
}

func (c *Coordinator) triggerNext() {
	now := c.deps.Clock.Now()
	delta := time.Duration(0)
	if !c.lastTrigger.IsZero() {
		delta = now.Sub(c.lastTrigger)
	}
	c.lastTrigger = now
	c.triggeredAt = now
	c.consecutiveSkips.Store(0)
	c.stallReported = false

	frame := c.frame.Add(1)
	in := FrameInput{
		Frame:     frame,
		Delta:     delta,
		Callbacks: c.callbacks.DrainReady(),
	}
	c.state.Store(int32(StateWorkerRunning))
	select {
	case c.trigger <- in:
	default:
		// Worker never left the trigger pending; treat as still running.
	}
	if c.hooks.FrameTriggered != nil {
		c.hooks.FrameTriggered(frame)
	}
}

func (c *Coordinator) recordSkip() {
	skips := int(c.consecutiveSkips.Add(1))
	c.deps.Metrics.Add(metricFramesSkipped, 1)
	frame := c.frame.Load()
	if c.hooks.FrameSkipped != nil {
		c.hooks.FrameSkipped(frame, skips)
	}
	if skips <= c.cfg.FrameSkipTolerance || c.stallReported {
		return
	}
	c.stallReported = true
	c.deps.Metrics.Add(metricWorkerStalls, 1)
	c.deps.Logger.Printf("worker stalled on frame %d after %d skipped ticks", frame, skips)
	frames.WorkerStalled(context.Background(), c.deps.Publisher, frame, skips, c.deps.Clock.Now().Sub(c.triggeredAt))
	if c.hooks.StallDetected != nil {
		c.hooks.StallDetected(frame, skips)
	}
}

// ConsecutiveSkips reports how many ticks in a row the worker has overrun.
func (c *Coordinator) ConsecutiveSkips() int {
	if c == nil {
		return 0
	}
	return int(c.consecutiveSkips.Load())
}

// RequestShutdown stops triggering new frames. The in-flight frame, if any,
// is allowed to finish; AwaitShutdown waits for it.
func (c *Coordinator) RequestShutdown() {
	if c == nil || !c.closing.CompareAndSwap(false, true) {
		return
	}
	close(c.stop)
}

// AwaitShutdown polls for worker exit until the shutdown deadline. On a
// clean exit every still-pending callback fails with a shutdown reason. On
// timeout the worker goroutine is abandoned and ErrShutdownTimeout returned;
// the process is expected to exit shortly after.
func (c *Coordinator) AwaitShutdown() error {
	if c == nil {
		return nil
	}
	c.RequestShutdown()
	if !c.started.Load() {
		c.callbacks.FailAllPending(ReasonShuttingDown)
		return nil
	}
	deadline := c.deps.Clock.Now().Add(c.cfg.ShutdownTimeout)
	for {
		select {
		case <-c.done:
			c.callbacks.FailAllPending(ReasonShuttingDown)
			return nil
		default:
		}
		if !c.deps.Clock.Now().Before(deadline) {
			c.deps.Logger.Printf("shutdown deadline elapsed with worker still running on frame %d", c.frame.Load())
			frames.ShutdownForced(context.Background(), c.deps.Publisher, c.frame.Load())
			c.callbacks.FailAllPending(ReasonShuttingDown)
			return ErrShutdownTimeout
		}
		time.Sleep(c.cfg.ShutdownPoll)
	}
}

// ShutdownComplete reports whether the worker goroutine has exited.
func (c *Coordinator) ShutdownComplete() bool {
	if c == nil {
		return true
	}
	if !c.started.Load() {
		return c.closing.Load()
	}
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
