package net

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"starhollow/engine/internal/journal"
	"starhollow/engine/internal/net/inspector"
	"starhollow/engine/internal/pipeline"
)

type idleWorker struct{}

func (idleWorker) RunFrame(pipeline.FrameInput) {}

func newTestHandler(t *testing.T) (http.Handler, *pipeline.Runtime, *inspector.Hub) {
	t.Helper()
	rt := pipeline.NewRuntime(pipeline.Config{}, pipeline.Deps{}, idleWorker{}, pipeline.Hooks{})
	hub := inspector.NewHub(rt, nil, nil, nil)
	jrnl := journal.New(16, time.Minute)
	jrnl.Append(journal.Record{Frame: 1, Applied: 2, At: time.Now()})
	handler := NewHTTPHandler(rt, hub, HTTPHandlerConfig{Journal: jrnl})
	return handler, rt, hub
}

func TestHealthEndpoint(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if body := resp.Body.String(); body != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestDiagnosticsEndpoint(t *testing.T) {
	handler, rt, _ := newTestHandler(t)
	rt.Submit(pipeline.Command{Kind: pipeline.KindEntityCreate, Entity: &pipeline.EntityPayload{}})

	req := httptest.NewRequest(http.MethodGet, "/diagnostics", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if contentType := resp.Header().Get("Content-Type"); contentType != "application/json" {
		t.Fatalf("expected Content-Type application/json, got %q", contentType)
	}
	var payload struct {
		Status   string `json:"status"`
		Pipeline struct {
			QueueDepths map[string]int `json:"queueDepths"`
		} `json:"pipeline"`
		Journal struct {
			Frames int `json:"frames"`
		} `json:"journal"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode diagnostics: %v", err)
	}
	if payload.Status != "ok" {
		t.Fatalf("unexpected status %q", payload.Status)
	}
	if payload.Pipeline.QueueDepths["entity"] != 1 {
		t.Fatalf("expected staged command in diagnostics: %+v", payload.Pipeline.QueueDepths)
	}
	if payload.Journal.Frames != 1 {
		t.Fatalf("expected journal summary with one frame, got %d", payload.Journal.Frames)
	}
}

func TestJournalEndpointHonorsLimit(t *testing.T) {
	handler, _, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/journal?limit=1", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	var records []journal.Record
	if err := json.Unmarshal(resp.Body.Bytes(), &records); err != nil {
		t.Fatalf("failed to decode journal: %v", err)
	}
	if len(records) != 1 || records[0].Frame != 1 {
		t.Fatalf("unexpected journal records: %+v", records)
	}
}

func TestInspectorSessionReceivesStateAndAcks(t *testing.T) {
	handler, _, hub := newTestHandler(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial inspector: %v", err)
	}
	defer conn.Close()

	var state inspector.StateMessage
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("failed to read initial state: %v", err)
	}
	if state.Type != "state" {
		t.Fatalf("expected state message, got %q", state.Type)
	}
	if hub.SessionCount() != 1 {
		t.Fatalf("expected one live session, got %d", hub.SessionCount())
	}

	cmd := pipeline.Command{Kind: pipeline.KindEntityCreate, Entity: &pipeline.EntityPayload{Archetype: "probe"}}
	if err := conn.WriteJSON(cmd); err != nil {
		t.Fatalf("failed to submit command: %v", err)
	}
	var ack inspector.AckMessage
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("failed to read ack: %v", err)
	}
	if ack.Type != "ack" || !ack.Accepted {
		t.Fatalf("expected accepted ack, got %+v", ack)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("failed to send malformed payload: %v", err)
	}
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("failed to read malformed ack: %v", err)
	}
	if ack.Accepted || ack.Reason != pipeline.ReasonMalformedPayload {
		t.Fatalf("expected malformed_payload rejection, got %+v", ack)
	}
}

func TestInspectorBroadcastReachesSubscribers(t *testing.T) {
	handler, rt, hub := newTestHandler(t)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial inspector: %v", err)
	}
	defer conn.Close()

	var initial inspector.StateMessage
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("failed to read initial state: %v", err)
	}

	// Apply a creation directly and broadcast the new front buffer.
	rt.Stores().Entities.Put(7, pipeline.EntityState{ID: 7, Archetype: "probe", Active: true})
	rt.Stores().Entities.Swap()
	hub.BroadcastState()

	var update inspector.StateMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}
	if len(update.Entities) != 1 || update.Entities[0].Archetype != "probe" {
		t.Fatalf("unexpected broadcast payload: %+v", update)
	}
}
