package frames

import (
	"context"
	"time"

	"starhollow/engine/logging"
)

const (
	// EventWorkerStalled is emitted once per stall episode when the worker
	// overruns the skip tolerance.
	EventWorkerStalled logging.EventType = "frame.worker_stalled"
	// EventShutdownForced is emitted when shutdown abandons a worker that
	// never finished its frame.
	EventShutdownForced logging.EventType = "frame.shutdown_forced"
	// EventStateSwept is emitted when a reclamation pass removed retired
	// state.
	EventStateSwept logging.EventType = "frame.state_swept"
)

// StallPayload captures how far behind the worker is.
type StallPayload struct {
	ConsecutiveSkips int    `json:"consecutiveSkips"`
	RunningFor       string `json:"runningFor"`
}

// WorkerStalled publishes a warning when the worker exceeds the skip
// tolerance.
func WorkerStalled(ctx context.Context, pub logging.Publisher, frame uint64, consecutive int, runningFor time.Duration) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWorkerStalled,
		Frame:    frame,
		Actor:    logging.EntityRef{Kind: logging.EntityKindWorker},
		Severity: logging.SeverityWarn,
		Category: logging.CategoryFrame,
		Payload: StallPayload{
			ConsecutiveSkips: consecutive,
			RunningFor:       runningFor.String(),
		},
	})
}

// ShutdownForced publishes an error when the shutdown deadline elapses with
// the worker still running.
func ShutdownForced(ctx context.Context, pub logging.Publisher, frame uint64) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventShutdownForced,
		Frame:    frame,
		Actor:    logging.EntityRef{Kind: logging.EntityKindRuntime},
		Severity: logging.SeverityError,
		Category: logging.CategorySystem,
	})
}

// SweepPayload captures the result of one reclamation pass.
type SweepPayload struct {
	Reclaimed int `json:"reclaimed"`
}

// StateSwept publishes a debug event after a reclamation pass.
func StateSwept(ctx context.Context, pub logging.Publisher, frame uint64, reclaimed int) {
	if pub == nil || reclaimed == 0 {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventStateSwept,
		Frame:    frame,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryFrame,
		Payload:  SweepPayload{Reclaimed: reclaimed},
	})
}
