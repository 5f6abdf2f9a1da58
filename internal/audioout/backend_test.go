package audioout

import (
	"math"
	"testing"
	"time"
)

func TestToneStopsAfterDuration(t *testing.T) {
	streamer := newTone(440, 0.5, 10*time.Millisecond)
	expected := sampleRate.N(10 * time.Millisecond)

	buf := make([][2]float64, 512)
	total := 0
	for {
		n, ok := streamer.Stream(buf)
		total += n
		if !ok {
			break
		}
	}
	if total != expected {
		t.Fatalf("expected %d samples, got %d", expected, total)
	}
}

func TestToneRespectsGain(t *testing.T) {
	streamer := newTone(440, 0.25, 50*time.Millisecond)
	buf := make([][2]float64, 4096)
	streamer.Stream(buf)

	peak := 0.0
	for _, sample := range buf {
		if v := math.Abs(sample[0]); v > peak {
			peak = v
		}
		if sample[0] != sample[1] {
			t.Fatalf("expected identical stereo channels")
		}
	}
	if peak > 0.25+1e-9 {
		t.Fatalf("peak %v exceeds gain", peak)
	}
	if peak < 0.2 {
		t.Fatalf("peak %v suspiciously low for a 440Hz tone", peak)
	}
}

func TestToneInfiniteWhenZeroDuration(t *testing.T) {
	streamer := newTone(220, 1, 0)
	buf := make([][2]float64, 1024)
	for i := 0; i < 100; i++ {
		n, ok := streamer.Stream(buf)
		if !ok || n != len(buf) {
			t.Fatalf("infinite tone ended at iteration %d (n=%d ok=%v)", i, n, ok)
		}
	}
}

func TestBackendSyncWithoutInitIsNoop(t *testing.T) {
	b := NewBackend(nil)
	// Must not panic or touch the speaker before Initialize.
	b.Sync(nil)
	b.Close()
}
