package pipeline

import "time"

const (
	// DefaultQueueCapacity bounds each per-domain command queue.
	DefaultQueueCapacity = 512
	// DefaultAgentCommandsPerSecond caps staged commands per agent.
	DefaultAgentCommandsPerSecond = 100
	// DefaultFrameRate is the render-side frame cadence in frames per second.
	DefaultFrameRate = 60.0
	// DefaultShutdownTimeout bounds how long shutdown waits for the worker
	// to finish its in-flight frame.
	DefaultShutdownTimeout = 5 * time.Second
	// DefaultShutdownPoll is the interval at which shutdown re-checks the
	// worker's completion flag.
	DefaultShutdownPoll = 10 * time.Millisecond
	// DefaultSweepInterval is how many frames pass between physical
	// reclamation passes over retired state.
	DefaultSweepInterval = 8
	// DefaultFrameSkipTolerance is how many consecutive skipped ticks the
	// coordinator tolerates before calling the worker stalled.
	DefaultFrameSkipTolerance = 3
)

// Config carries the tunables for a pipeline Runtime. Zero values are
// replaced with the defaults above during normalization, so the zero Config
// is usable.
type Config struct {
	QueueCapacity          int
	AgentCommandsPerSecond int
	FrameRate              float64
	ShutdownTimeout        time.Duration
	ShutdownPoll           time.Duration
	SweepInterval          uint64
	FrameSkipTolerance     int

	// SwapPolicy selects dirty-tracked or full-copy reconciliation for every
	// state store. Fixed for the runtime's lifetime.
	SwapPolicy SwapPolicy
}

// DefaultConfig returns the tunables used when the caller does not override
// anything.
func DefaultConfig() Config {
	return Config{
		QueueCapacity:          DefaultQueueCapacity,
		AgentCommandsPerSecond: DefaultAgentCommandsPerSecond,
		FrameRate:              DefaultFrameRate,
		ShutdownTimeout:        DefaultShutdownTimeout,
		ShutdownPoll:           DefaultShutdownPoll,
		SweepInterval:          DefaultSweepInterval,
		FrameSkipTolerance:     DefaultFrameSkipTolerance,
		SwapPolicy:             SwapDirty,
	}
}

func (c Config) normalized() Config {
	if c.QueueCapacity <= 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.AgentCommandsPerSecond == 0 {
		c.AgentCommandsPerSecond = DefaultAgentCommandsPerSecond
	}
	if c.FrameRate <= 0 {
		c.FrameRate = DefaultFrameRate
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.ShutdownPoll <= 0 {
		c.ShutdownPoll = DefaultShutdownPoll
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.FrameSkipTolerance <= 0 {
		c.FrameSkipTolerance = DefaultFrameSkipTolerance
	}
	return c
}
