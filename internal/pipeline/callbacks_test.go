package pipeline

import "testing"

func TestCallbackResolveExactlyOnce(t *testing.T) {
	ch := NewCallbackChannel(NewAllocator())
	id := ch.Register()
	if id == 0 {
		t.Fatalf("expected non-zero callback id")
	}
	if !ch.Resolve(id, 42) {
		t.Fatalf("expected first resolve to succeed")
	}
	if ch.Resolve(id, 43) {
		t.Fatalf("second resolve must be ignored")
	}
	if ch.Fail(id, ReasonTargetNotFound) {
		t.Fatalf("fail after resolve must be ignored")
	}
	ready := ch.DrainReady()
	if len(ready) != 1 {
		t.Fatalf("expected exactly one result, got %d", len(ready))
	}
	if ready[0].Callback != id || ready[0].Result != 42 || ready[0].Err != "" {
		t.Fatalf("unexpected result: %+v", ready[0])
	}
	if ch.DrainReady() != nil {
		t.Fatalf("second drain must be empty")
	}
}

func TestCallbackFailCarriesReason(t *testing.T) {
	ch := NewCallbackChannel(NewAllocator())
	id := ch.Register()
	if !ch.Fail(id, ReasonMalformedPayload) {
		t.Fatalf("expected fail to succeed")
	}
	ready := ch.DrainReady()
	if len(ready) != 1 || ready[0].Err != ReasonMalformedPayload || ready[0].Result != 0 {
		t.Fatalf("unexpected failure result: %+v", ready)
	}
}

func TestCallbackUnknownIDIgnored(t *testing.T) {
	ch := NewCallbackChannel(NewAllocator())
	if ch.Resolve(12345, 1) {
		t.Fatalf("resolve of unregistered id must fail")
	}
	if ch.Resolve(0, 1) {
		t.Fatalf("resolve of zero id must fail")
	}
}

func TestCallbackDrainPreservesResolutionOrder(t *testing.T) {
	ch := NewCallbackChannel(NewAllocator())
	first := ch.Register()
	second := ch.Register()
	ch.Resolve(second, 2)
	ch.Resolve(first, 1)
	ready := ch.DrainReady()
	if len(ready) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ready))
	}
	if ready[0].Callback != second || ready[1].Callback != first {
		t.Fatalf("results out of resolution order: %+v", ready)
	}
}

func TestCallbackFailAllPending(t *testing.T) {
	ch := NewCallbackChannel(NewAllocator())
	a := ch.Register()
	b := ch.Register()
	c := ch.Register()
	ch.Resolve(b, 7)
	if n := ch.FailAllPending(ReasonShuttingDown); n != 2 {
		t.Fatalf("expected 2 pending failed, got %d", n)
	}
	if ch.PendingCount() != 0 {
		t.Fatalf("pending set not empty after FailAllPending")
	}
	ready := ch.DrainReady()
	if len(ready) != 3 {
		t.Fatalf("expected 3 results, got %d", len(ready))
	}
	byID := make(map[ID]CallbackResult, len(ready))
	for _, res := range ready {
		byID[res.Callback] = res
	}
	if byID[b].Result != 7 || byID[b].Err != "" {
		t.Fatalf("resolved callback overwritten: %+v", byID[b])
	}
	for _, id := range []ID{a, c} {
		if byID[id].Err != ReasonShuttingDown {
			t.Fatalf("expected shutdown failure for %d, got %+v", id, byID[id])
		}
	}
}
