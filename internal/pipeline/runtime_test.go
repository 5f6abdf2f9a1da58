package pipeline

import (
	"testing"
	"time"

	"starhollow/engine/logging"
)

type idleWorker struct{}

func (idleWorker) RunFrame(FrameInput) {}

func TestRuntimeSubmitRejectsUnknownKind(t *testing.T) {
	rt := NewRuntime(testConfig(), Deps{}, idleWorker{}, Hooks{})
	ok, reason := rt.Submit(Command{Kind: KindNone})
	if ok || reason != ReasonUnknownKind {
		t.Fatalf("expected unknown_kind rejection, got ok=%v reason=%q", ok, reason)
	}
}

func TestRuntimeSubmitQueueFullFailsCallback(t *testing.T) {
	cfg := testConfig()
	cfg.QueueCapacity = 1
	rt := NewRuntime(cfg, Deps{}, idleWorker{}, Hooks{})

	if ok, _ := rt.Submit(Command{Kind: KindEntityCreate, Entity: &EntityPayload{}}); !ok {
		t.Fatalf("first submit should fit")
	}
	cb := rt.RegisterCallback()
	ok, reason := rt.Submit(Command{Kind: KindEntityCreate, Callback: cb, Entity: &EntityPayload{}})
	if ok || reason != ReasonQueueFull {
		t.Fatalf("expected queue_full rejection, got ok=%v reason=%q", ok, reason)
	}
	ready := rt.callbacks.DrainReady()
	if len(ready) != 1 || ready[0].Callback != cb || ready[0].Err != ReasonQueueFull {
		t.Fatalf("rejected submission must fail its callback: %+v", ready)
	}
}

func TestRuntimeSubmitRateLimited(t *testing.T) {
	now := time.Unix(1000, 0)
	cfg := testConfig()
	cfg.AgentCommandsPerSecond = 1
	deps := Deps{Clock: logging.ClockFunc(func() time.Time { return now })}
	rt := NewRuntime(cfg, deps, idleWorker{}, Hooks{})

	if ok, _ := rt.Submit(Command{Kind: KindEntityCreate, Agent: "scripter", Entity: &EntityPayload{}}); !ok {
		t.Fatalf("first command within the budget should pass")
	}
	ok, reason := rt.Submit(Command{Kind: KindEntityCreate, Agent: "scripter", Entity: &EntityPayload{}})
	if ok || reason != ReasonRateLimited {
		t.Fatalf("expected rate_limited rejection, got ok=%v reason=%q", ok, reason)
	}
	if ok, _ := rt.Submit(Command{Kind: KindEntityCreate, Agent: "other", Entity: &EntityPayload{}}); !ok {
		t.Fatalf("a different agent has its own budget")
	}
}

func TestRuntimeSubmitAfterShutdown(t *testing.T) {
	rt := NewRuntime(testConfig(), Deps{}, idleWorker{}, Hooks{})
	if err := rt.Shutdown(); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	ok, reason := rt.Submit(Command{Kind: KindEntityCreate, Entity: &EntityPayload{}})
	if ok || reason != ReasonShuttingDown {
		t.Fatalf("expected shutting_down rejection, got ok=%v reason=%q", ok, reason)
	}
	if !rt.ShutdownComplete() {
		t.Fatalf("runtime should report shutdown complete")
	}
}

func TestRuntimeFrameCycleEndToEnd(t *testing.T) {
	var rt *Runtime
	worker := &testWorker{}
	submitted := false
	worker.onFrame = func(FrameInput) {
		if !submitted {
			submitted = true
			cb := rt.RegisterCallback()
			rt.Submit(Command{Kind: KindCameraCreate, Callback: cb, Camera: &CameraPayload{
				FOV: 70, Near: 0.1, Far: 500, Up: Vec3{Y: 1},
			}})
		}
	}
	rt = NewRuntime(testConfig(), Deps{}, worker, Hooks{})
	rt.Start()
	defer rt.Shutdown()

	waitFor(t, "frame 1 completion", rt.FrameComplete)
	stats, applied := rt.Tick()
	if !applied || stats.Applied != 1 {
		t.Fatalf("expected one applied command at the boundary: %+v applied=%v", stats, applied)
	}
	waitFor(t, "frame 2 completion", rt.FrameComplete)

	frames := worker.frames()
	if len(frames) < 2 || len(frames[1].Callbacks) != 1 {
		t.Fatalf("worker never received the creation result: %+v", frames)
	}
	id := frames[1].Callbacks[0].Result
	if _, ok := rt.Stores().Cameras.Front(id); !ok {
		t.Fatalf("created camera missing from the front buffer")
	}
}

func TestRuntimeDiagnostics(t *testing.T) {
	rt := NewRuntime(testConfig(), Deps{}, idleWorker{}, Hooks{})
	rt.Submit(Command{Kind: KindEntityCreate, Entity: &EntityPayload{}})
	rt.RegisterCallback()

	diag := rt.Diagnostics()
	if diag.QueueDepths["entity"] != 1 {
		t.Fatalf("expected one staged entity command, got %+v", diag.QueueDepths)
	}
	if diag.PendingCallbacks != 1 {
		t.Fatalf("expected one pending callback, got %d", diag.PendingCallbacks)
	}
	if diag.State != "idle" {
		t.Fatalf("expected idle state before start, got %q", diag.State)
	}
}
