package inspector

import (
	"sort"

	"starhollow/engine/internal/pipeline"
)

// StateMessage is the full front-buffer snapshot broadcast after a frame
// boundary. Slices are sorted by identifier so consecutive messages diff
// cleanly on the client.
type StateMessage struct {
	Type         string                 `json:"type"`
	Frame        uint64                 `json:"frame"`
	ActiveCamera pipeline.ID            `json:"activeCamera,omitempty"`
	Entities     []pipeline.EntityState `json:"entities,omitempty"`
	Cameras      []pipeline.CameraState `json:"cameras,omitempty"`
	Audio        []pipeline.AudioState  `json:"audio,omitempty"`
	Debug        []pipeline.DebugState  `json:"debug,omitempty"`
}

// AckMessage answers one submitted command.
type AckMessage struct {
	Type     string `json:"type"`
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

const (
	messageTypeState = "state"
	messageTypeAck   = "ack"
)

func buildStateMessage(rt *pipeline.Runtime) StateMessage {
	stores := rt.Stores()
	msg := StateMessage{
		Type:         messageTypeState,
		Frame:        rt.Frame(),
		ActiveCamera: rt.ActiveCamera(),
	}
	for _, e := range stores.Entities.FrontSnapshot() {
		msg.Entities = append(msg.Entities, e)
	}
	for _, c := range stores.Cameras.FrontSnapshot() {
		msg.Cameras = append(msg.Cameras, c)
	}
	for _, a := range stores.Audio.FrontSnapshot() {
		msg.Audio = append(msg.Audio, a)
	}
	for _, d := range stores.Debug.FrontSnapshot() {
		msg.Debug = append(msg.Debug, d)
	}
	sort.Slice(msg.Entities, func(i, j int) bool { return msg.Entities[i].ID < msg.Entities[j].ID })
	sort.Slice(msg.Cameras, func(i, j int) bool { return msg.Cameras[i].ID < msg.Cameras[j].ID })
	sort.Slice(msg.Audio, func(i, j int) bool { return msg.Audio[i].ID < msg.Audio[j].ID })
	sort.Slice(msg.Debug, func(i, j int) bool { return msg.Debug[i].ID < msg.Debug[j].ID })
	return msg
}
