// Package inspector exposes the pipeline's front buffers over WebSocket so
// external tooling can watch the engine state live and stage commands
// against it.
package inspector

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"starhollow/engine/internal/pipeline"
	"starhollow/engine/internal/telemetry"
	"starhollow/engine/logging"
)

const (
	metricBroadcasts     = "inspector_broadcasts_total"
	metricBroadcastBytes = "inspector_broadcast_bytes_total"
	metricSessions       = "inspector_sessions"

	eventSessionOpened logging.EventType = "inspector_session_opened"
	eventSessionClosed logging.EventType = "inspector_session_closed"
)

// Hub owns every live inspector session and fans frame snapshots out to
// them. Sessions that fall behind or error are disconnected rather than
// allowed to block the broadcast.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]*subscriber

	rt        *pipeline.Runtime
	logger    telemetry.Logger
	metrics   telemetry.Metrics
	publisher logging.Publisher
}

type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *subscriber) writeMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func NewHub(rt *pipeline.Runtime, logger telemetry.Logger, metrics telemetry.Metrics, publisher logging.Publisher) *Hub {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Hub{
		subscribers: make(map[string]*subscriber),
		rt:          rt,
		logger:      logger,
		metrics:     metrics,
		publisher:   publisher,
	}
}

// Subscribe registers a connection under a fresh session identifier and
// returns the id plus the current state snapshot for the initial send.
func (h *Hub) Subscribe(conn *websocket.Conn) (string, StateMessage) {
	session := uuid.NewString()
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	h.subscribers[session] = sub
	count := len(h.subscribers)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.Store(metricSessions, uint64(count))
	}
	h.publisher.Publish(context.Background(), logging.Event{
		Type:     eventSessionOpened,
		Frame:    h.rt.Frame(),
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		AgentID:  session,
	})
	return session, buildStateMessage(h.rt)
}

// Disconnect removes a session and closes its connection. Safe to call for
// sessions that already left.
func (h *Hub) Disconnect(session string) {
	h.mu.Lock()
	sub, ok := h.subscribers[session]
	if ok {
		delete(h.subscribers, session)
	}
	count := len(h.subscribers)
	h.mu.Unlock()
	if !ok {
		return
	}
	sub.conn.Close()
	h.rt.ForgetAgent(session)
	if h.metrics != nil {
		h.metrics.Store(metricSessions, uint64(count))
	}
	h.publisher.Publish(context.Background(), logging.Event{
		Type:     eventSessionClosed,
		Frame:    h.rt.Frame(),
		Severity: logging.SeverityInfo,
		Category: logging.CategorySystem,
		AgentID:  session,
	})
}

// send writes to one session through its write lock so broadcasts and acks
// never interleave on the connection.
func (h *Hub) send(session string, data []byte) error {
	h.mu.Lock()
	sub, ok := h.subscribers[session]
	h.mu.Unlock()
	if !ok {
		return websocket.ErrCloseSent
	}
	return sub.writeMessage(websocket.TextMessage, data)
}

// SessionCount reports how many sessions are live.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// BroadcastState sends the current front-buffer snapshot to every session.
// The message is marshalled once; sessions whose write fails are dropped.
func (h *Hub) BroadcastState() {
	h.mu.Lock()
	if len(h.subscribers) == 0 {
		h.mu.Unlock()
		return
	}
	subs := make(map[string]*subscriber, len(h.subscribers))
	for id, sub := range h.subscribers {
		subs[id] = sub
	}
	h.mu.Unlock()

	msg := buildStateMessage(h.rt)
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Printf("inspector: failed to marshal state: %v", err)
		return
	}

	var stale []string
	for session, sub := range subs {
		if err := sub.writeMessage(websocket.TextMessage, data); err != nil {
			stale = append(stale, session)
		}
	}
	for _, session := range stale {
		h.Disconnect(session)
	}
	if h.metrics != nil {
		h.metrics.Add(metricBroadcasts, 1)
		h.metrics.Add(metricBroadcastBytes, uint64(len(data)))
	}
}
