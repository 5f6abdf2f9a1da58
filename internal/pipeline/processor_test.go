package pipeline

import (
	"math"
	"testing"
)

func newTestProcessor() (*Processor, *Stores, *CallbackChannel) {
	alloc := NewAllocator()
	stores := NewStores(SwapDirty)
	callbacks := NewCallbackChannel(alloc)
	proc := NewProcessor(stores, alloc, callbacks, Deps{})
	return proc, stores, callbacks
}

func TestProcessorEntityCreateResolvesCallback(t *testing.T) {
	proc, stores, callbacks := newTestProcessor()
	cb := callbacks.Register()
	cmd := Command{
		Kind:     KindEntityCreate,
		Callback: cb,
		Entity:   &EntityPayload{Archetype: "crate", Scale: Vec3{X: 1, Y: 1, Z: 1}},
	}
	if !proc.Apply(cmd, 1) {
		t.Fatalf("expected create to apply")
	}
	ready := callbacks.DrainReady()
	if len(ready) != 1 || ready[0].Callback != cb || ready[0].Result == 0 {
		t.Fatalf("expected callback with allocated id, got %+v", ready)
	}
	got, ok := stores.Entities.Get(ready[0].Result)
	if !ok || got.Archetype != "crate" || !got.Active {
		t.Fatalf("unexpected created entity: %+v ok=%v", got, ok)
	}
}

func TestProcessorPartialUpdateLeavesOtherFields(t *testing.T) {
	proc, stores, callbacks := newTestProcessor()
	cb := callbacks.Register()
	proc.Apply(Command{Kind: KindEntityCreate, Callback: cb, Entity: &EntityPayload{
		Archetype: "lamp",
		Position:  Vec3{X: 1, Y: 2, Z: 3},
		Tint:      Color{R: 1, A: 1},
	}}, 1)
	id := callbacks.DrainReady()[0].Result

	newPos := Vec3{X: 9, Y: 9, Z: 9}
	if !proc.Apply(Command{Kind: KindEntityUpdate, Target: id, EntityUpdate: &EntityUpdatePayload{
		Position: &newPos,
	}}, 2) {
		t.Fatalf("expected update to apply")
	}
	got, _ := stores.Entities.Get(id)
	if got.Position != newPos {
		t.Fatalf("position not updated: %+v", got.Position)
	}
	if got.Tint != (Color{R: 1, A: 1}) || got.Archetype != "lamp" {
		t.Fatalf("untouched fields changed: %+v", got)
	}
}

func TestProcessorUnknownTargetRejected(t *testing.T) {
	proc, _, callbacks := newTestProcessor()
	cb := callbacks.Register()
	if proc.Apply(Command{Kind: KindEntityUpdate, Target: 999, Callback: cb,
		EntityUpdate: &EntityUpdatePayload{}}, 1) {
		t.Fatalf("update of unknown target must be rejected")
	}
	ready := callbacks.DrainReady()
	if len(ready) != 1 || ready[0].Err != ReasonTargetNotFound {
		t.Fatalf("expected target_not_found failure, got %+v", ready)
	}
}

func TestProcessorNoResurrection(t *testing.T) {
	proc, _, callbacks := newTestProcessor()
	cb := callbacks.Register()
	proc.Apply(Command{Kind: KindEntityCreate, Callback: cb, Entity: &EntityPayload{}}, 1)
	id := callbacks.DrainReady()[0].Result

	if !proc.Apply(Command{Kind: KindEntityDestroy, Target: id}, 2) {
		t.Fatalf("expected destroy to apply")
	}
	pos := Vec3{X: 1}
	if proc.Apply(Command{Kind: KindEntityUpdate, Target: id,
		EntityUpdate: &EntityUpdatePayload{Position: &pos}}, 3) {
		t.Fatalf("update of retired entity must be rejected")
	}
	if proc.Apply(Command{Kind: KindEntityDestroy, Target: id}, 3) {
		t.Fatalf("double destroy must be rejected")
	}
}

func TestProcessorMalformedPayloadRejected(t *testing.T) {
	proc, _, callbacks := newTestProcessor()
	cb := callbacks.Register()
	if proc.Apply(Command{Kind: KindEntityCreate, Callback: cb, Entity: &EntityPayload{
		Position: Vec3{X: math.NaN()},
	}}, 1) {
		t.Fatalf("NaN position must be rejected")
	}
	ready := callbacks.DrainReady()
	if len(ready) != 1 || ready[0].Err != ReasonMalformedPayload {
		t.Fatalf("expected malformed_payload failure, got %+v", ready)
	}

	if proc.Apply(Command{Kind: KindCameraCreate, Camera: &CameraPayload{
		FOV: 240, Near: 0.1, Far: 100,
	}}, 1) {
		t.Fatalf("out-of-range fov must be rejected")
	}
	if proc.Apply(Command{Kind: KindEntityCreate}, 1) {
		t.Fatalf("create without payload must be rejected")
	}
}

func TestProcessorCameraActivation(t *testing.T) {
	proc, stores, callbacks := newTestProcessor()
	cb := callbacks.Register()
	proc.Apply(Command{Kind: KindCameraCreate, Callback: cb, Camera: &CameraPayload{
		FOV: 70, Near: 0.1, Far: 500, Up: Vec3{Y: 1},
	}}, 1)
	id := callbacks.DrainReady()[0].Result

	if stores.ActiveCamera() != 0 {
		t.Fatalf("no camera should be active before activation")
	}
	if !proc.Apply(Command{Kind: KindCameraActivate, Target: id}, 1) {
		t.Fatalf("expected activation to apply")
	}
	if stores.ActiveCamera() != id {
		t.Fatalf("expected active camera %d, got %d", id, stores.ActiveCamera())
	}
	if !proc.Apply(Command{Kind: KindCameraDestroy, Target: id}, 2) {
		t.Fatalf("expected destroy to apply")
	}
	if stores.ActiveCamera() != 0 {
		t.Fatalf("destroying the active camera must clear the selection")
	}
}

func TestProcessorAudioPlayStop(t *testing.T) {
	proc, stores, callbacks := newTestProcessor()
	cb := callbacks.Register()
	proc.Apply(Command{Kind: KindAudioCreate, Callback: cb, Audio: &AudioPayload{
		Sample: "chime", Frequency: 440, Gain: 0.5,
	}}, 1)
	id := callbacks.DrainReady()[0].Result

	proc.Apply(Command{Kind: KindAudioPlay, Target: id}, 1)
	got, _ := stores.Audio.Get(id)
	if !got.Playing || got.Cue != 1 {
		t.Fatalf("expected playing with cue 1, got %+v", got)
	}
	proc.Apply(Command{Kind: KindAudioPlay, Target: id}, 2)
	got, _ = stores.Audio.Get(id)
	if got.Cue != 2 {
		t.Fatalf("retrigger must advance the cue, got %d", got.Cue)
	}
	proc.Apply(Command{Kind: KindAudioStop, Target: id}, 3)
	got, _ = stores.Audio.Get(id)
	if got.Playing {
		t.Fatalf("expected stopped source")
	}
	if got.Cue != 2 {
		t.Fatalf("stop must not advance the cue, got %d", got.Cue)
	}
}

func TestProcessorSweepReclaimsRetired(t *testing.T) {
	proc, stores, callbacks := newTestProcessor()
	cb := callbacks.Register()
	proc.Apply(Command{Kind: KindEntityCreate, Callback: cb, Entity: &EntityPayload{}}, 1)
	id := callbacks.DrainReady()[0].Result
	proc.Apply(Command{Kind: KindEntityDestroy, Target: id}, 5)

	// Retired entries linger one full frame before reclamation.
	if n := proc.Sweep(6); n != 0 {
		t.Fatalf("expected retired entry to linger at frame 6, reclaimed %d", n)
	}
	if _, ok := stores.Entities.Get(id); !ok {
		t.Fatalf("entry vanished before the linger frame passed")
	}
	if n := proc.Sweep(7); n != 1 {
		t.Fatalf("expected 1 reclaimed at frame 7, got %d", n)
	}
	if _, ok := stores.Entities.Get(id); ok {
		t.Fatalf("entry survived reclamation")
	}
}

func TestProcessorDebugTTLExpires(t *testing.T) {
	proc, stores, callbacks := newTestProcessor()
	cb := callbacks.Register()
	proc.Apply(Command{Kind: KindDebugCreate, Callback: cb, Debug: &DebugPayload{
		Shape: DebugShapeLine, Stroke: Color{R: 1, A: 1}, TTLFrames: 3,
	}}, 10)
	id := callbacks.DrainReady()[0].Result

	proc.Sweep(12)
	got, ok := stores.Debug.Get(id)
	if !ok || !got.Active {
		t.Fatalf("primitive expired early: %+v ok=%v", got, ok)
	}
	proc.Sweep(13)
	got, ok = stores.Debug.Get(id)
	if !ok || got.Active || got.RetiredFrame != 13 {
		t.Fatalf("expected retirement at frame 13, got %+v ok=%v", got, ok)
	}
	proc.Sweep(15)
	if _, ok := stores.Debug.Get(id); ok {
		t.Fatalf("expired primitive never reclaimed")
	}
}

func TestProcessorUnknownKindRejected(t *testing.T) {
	proc, _, callbacks := newTestProcessor()
	cb := callbacks.Register()
	if proc.Apply(Command{Kind: CommandKind(200), Callback: cb}, 1) {
		t.Fatalf("unknown kind must be rejected")
	}
	ready := callbacks.DrainReady()
	if len(ready) != 1 || ready[0].Err != ReasonUnknownKind {
		t.Fatalf("expected unknown_kind failure, got %+v", ready)
	}
}
