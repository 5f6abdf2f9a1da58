package script

import (
	"testing"
	"time"

	"starhollow/engine/internal/pipeline"
)

// fakeSubmitter records submissions and resolves create callbacks with
// sequential identifiers so the worker can be driven without a runtime.
type fakeSubmitter struct {
	commands []pipeline.Command
	nextCb   pipeline.ID
	nextID   pipeline.ID
	results  []pipeline.CallbackResult
	reject   string
}

func (f *fakeSubmitter) Submit(cmd pipeline.Command) (bool, string) {
	if f.reject != "" {
		if cmd.Callback != 0 {
			f.results = append(f.results, pipeline.CallbackResult{Callback: cmd.Callback, Err: f.reject})
		}
		return false, f.reject
	}
	f.commands = append(f.commands, cmd)
	if cmd.Callback != 0 && cmd.Kind.IsCreate() {
		f.nextID++
		f.results = append(f.results, pipeline.CallbackResult{Callback: cmd.Callback, Result: f.nextID})
	}
	return true, ""
}

func (f *fakeSubmitter) RegisterCallback() pipeline.ID {
	f.nextCb++
	return f.nextCb
}

func (f *fakeSubmitter) drainResults() []pipeline.CallbackResult {
	out := f.results
	f.results = nil
	return out
}

func (f *fakeSubmitter) countKind(kind pipeline.CommandKind) int {
	n := 0
	for _, cmd := range f.commands {
		if cmd.Kind == kind {
			n++
		}
	}
	return n
}

func TestOrbiterBuildsSceneOnFirstFrame(t *testing.T) {
	sub := &fakeSubmitter{}
	orbiter := NewOrbiter(OrbiterConfig{Entities: 4})
	orbiter.Bind(sub)

	orbiter.RunFrame(pipeline.FrameInput{Frame: 1})
	if got := sub.countKind(pipeline.KindEntityCreate); got != 4 {
		t.Fatalf("expected 4 entity creations, got %d", got)
	}
	if sub.countKind(pipeline.KindCameraCreate) != 1 {
		t.Fatalf("expected one camera creation")
	}
	if sub.countKind(pipeline.KindAudioCreate) != 1 {
		t.Fatalf("expected one audio creation")
	}
	if sub.countKind(pipeline.KindDebugCreate) != 1 {
		t.Fatalf("expected one debug creation")
	}
}

func TestOrbiterActivatesCameraFromCallback(t *testing.T) {
	sub := &fakeSubmitter{}
	orbiter := NewOrbiter(OrbiterConfig{Entities: 2})
	orbiter.Bind(sub)

	orbiter.RunFrame(pipeline.FrameInput{Frame: 1})
	orbiter.RunFrame(pipeline.FrameInput{Frame: 2, Callbacks: sub.drainResults()})

	if sub.countKind(pipeline.KindCameraActivate) != 1 {
		t.Fatalf("expected camera activation after the creation resolved")
	}
	if len(orbiter.entities) != 2 {
		t.Fatalf("expected 2 tracked entities, got %d", len(orbiter.entities))
	}
	if len(orbiter.pending) != 0 {
		t.Fatalf("all callbacks should be consumed, %d pending", len(orbiter.pending))
	}
}

func TestOrbiterAdvancesEntitiesEachFrame(t *testing.T) {
	sub := &fakeSubmitter{}
	orbiter := NewOrbiter(OrbiterConfig{Entities: 3})
	orbiter.Bind(sub)

	orbiter.RunFrame(pipeline.FrameInput{Frame: 1})
	orbiter.RunFrame(pipeline.FrameInput{Frame: 2, Callbacks: sub.drainResults()})
	sub.commands = nil

	orbiter.RunFrame(pipeline.FrameInput{Frame: 3, Delta: 16 * time.Millisecond})
	if got := sub.countKind(pipeline.KindEntityUpdate); got != 3 {
		t.Fatalf("expected an update per entity, got %d", got)
	}
	for _, cmd := range sub.commands {
		if cmd.Kind != pipeline.KindEntityUpdate {
			continue
		}
		if cmd.EntityUpdate == nil || cmd.EntityUpdate.Position == nil {
			t.Fatalf("updates must carry a position: %+v", cmd)
		}
	}
}

func TestOrbiterSurvivesFailedCreations(t *testing.T) {
	sub := &fakeSubmitter{reject: pipeline.ReasonQueueFull}
	orbiter := NewOrbiter(OrbiterConfig{Entities: 2})
	orbiter.Bind(sub)

	orbiter.RunFrame(pipeline.FrameInput{Frame: 1})
	orbiter.RunFrame(pipeline.FrameInput{Frame: 2, Callbacks: sub.drainResults()})
	if len(orbiter.entities) != 0 {
		t.Fatalf("no entities should be tracked after rejected creations")
	}
	if len(orbiter.pending) != 0 {
		t.Fatalf("failed callbacks must still be consumed")
	}
	// The worker keeps running; later frames simply have nothing to move.
	orbiter.RunFrame(pipeline.FrameInput{Frame: 3, Delta: 16 * time.Millisecond})
}
