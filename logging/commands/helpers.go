package commands

import (
	"context"

	"starhollow/engine/logging"
)

// EventRejected is emitted when a staged command cannot be applied.
const EventRejected logging.EventType = "command.rejected"

// RejectedPayload captures why a command was dropped.
type RejectedPayload struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

// Rejected publishes a warning for a dropped command. The agent identifies
// the submitter; targets name the state the command aimed at, when known.
func Rejected(ctx context.Context, pub logging.Publisher, frame uint64, agent string, targets []logging.EntityRef, payload RejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRejected,
		Frame:    frame,
		Targets:  targets,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryPipeline,
		Payload:  payload,
		AgentID:  agent,
	})
}
