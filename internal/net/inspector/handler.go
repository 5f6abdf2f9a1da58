package inspector

import (
	"encoding/json"
	nethttp "net/http"

	"github.com/gorilla/websocket"

	"starhollow/engine/internal/pipeline"
	"starhollow/engine/internal/telemetry"
)

// Handler upgrades HTTP requests into inspector sessions. Each session
// receives the state snapshot on connect and after every frame boundary,
// and may stage commands as JSON; the session id doubles as the agent for
// rate limiting.
type Handler struct {
	hub      *Hub
	logger   telemetry.Logger
	upgrader websocket.Upgrader
}

func NewHandler(hub *Hub, logger telemetry.Logger) *Handler {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Handler{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("inspector: upgrade failed: %v", err)
		return
	}

	session, initial := h.hub.Subscribe(conn)
	data, err := json.Marshal(initial)
	if err != nil {
		h.logger.Printf("inspector: failed to marshal initial state for %s: %v", session, err)
		h.hub.Disconnect(session)
		return
	}
	if err := h.hub.send(session, data); err != nil {
		h.hub.Disconnect(session)
		return
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(session)
			return
		}
		h.handleCommand(session, payload)
	}
}

func (h *Handler) handleCommand(session string, payload []byte) {
	var cmd pipeline.Command
	ack := AckMessage{Type: messageTypeAck}
	if err := json.Unmarshal(payload, &cmd); err != nil {
		ack.Reason = pipeline.ReasonMalformedPayload
	} else {
		cmd.Agent = session
		cmd.Callback = 0
		ack.Accepted, ack.Reason = h.hub.rt.Submit(cmd)
	}
	data, err := json.Marshal(ack)
	if err != nil {
		return
	}
	if err := h.hub.send(session, data); err != nil {
		h.hub.Disconnect(session)
	}
}
