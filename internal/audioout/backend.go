// Package audioout renders the audio front buffer through the host's sound
// device. It is a consumer-side backend: it only reads front-buffer
// snapshots and never talks back to the pipeline.
package audioout

import (
	"math"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"starhollow/engine/internal/pipeline"
	"starhollow/engine/internal/telemetry"
)

const (
	sampleRate    = beep.SampleRate(48000)
	oneShotLength = 500 * time.Millisecond
)

// Backend mirrors the audio domain into a beep mixer. Looping sources get a
// persistent controlled streamer; one-shot sources enqueue a tone whenever
// their cue counter advances.
type Backend struct {
	mu          sync.Mutex
	mixer       *beep.Mixer
	initialized bool
	loops       map[pipeline.ID]*beep.Ctrl
	lastCue     map[pipeline.ID]uint64
	logger      telemetry.Logger
}

func NewBackend(logger telemetry.Logger) *Backend {
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	return &Backend{
		mixer:   &beep.Mixer{},
		loops:   make(map[pipeline.ID]*beep.Ctrl),
		lastCue: make(map[pipeline.ID]uint64),
		logger:  logger,
	}
}

// Initialize opens the speaker. Safe to call more than once.
func (b *Backend) Initialize() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return err
	}
	speaker.Play(b.mixer)
	b.initialized = true
	return nil
}

// Close silences everything. The speaker itself stays open; beep offers no
// teardown.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}
	speaker.Lock()
	for _, ctrl := range b.loops {
		ctrl.Paused = true
	}
	b.mixer.Clear()
	speaker.Unlock()
	b.loops = make(map[pipeline.ID]*beep.Ctrl)
	b.initialized = false
}

// Sync reconciles the mixer with the audio front buffer. Call after each
// frame boundary from the consumer side.
func (b *Backend) Sync(stores *pipeline.Stores) {
	if stores == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.initialized {
		return
	}

	snapshot := stores.Audio.FrontSnapshot()

	speaker.Lock()
	for id, src := range snapshot {
		b.syncSourceLocked(id, src)
	}
	for id, ctrl := range b.loops {
		if _, ok := snapshot[id]; !ok {
			ctrl.Paused = true
			delete(b.loops, id)
		}
	}
	speaker.Unlock()

	for id := range b.lastCue {
		if _, ok := snapshot[id]; !ok {
			delete(b.lastCue, id)
		}
	}
}

func (b *Backend) syncSourceLocked(id pipeline.ID, src pipeline.AudioState) {
	if !src.Active || !src.Playing {
		if ctrl, ok := b.loops[id]; ok {
			ctrl.Paused = true
			delete(b.loops, id)
		}
		b.lastCue[id] = src.Cue
		return
	}

	if src.Loop {
		ctrl, ok := b.loops[id]
		if !ok || b.lastCue[id] != src.Cue {
			if ok {
				ctrl.Paused = true
			}
			ctrl = &beep.Ctrl{Streamer: newTone(src.Frequency, src.Gain, 0)}
			b.loops[id] = ctrl
			b.mixer.Add(ctrl)
		}
		b.lastCue[id] = src.Cue
		return
	}

	if b.lastCue[id] != src.Cue {
		b.mixer.Add(newTone(src.Frequency, src.Gain, oneShotLength))
		b.lastCue[id] = src.Cue
	}
}

// tone is a sine oscillator. A zero duration streams forever.
type tone struct {
	freq     float64
	gain     float64
	phase    float64
	position int
	duration int
}

func newTone(freq, gain float64, length time.Duration) beep.Streamer {
	duration := 0
	if length > 0 {
		duration = sampleRate.N(length)
	}
	return &tone{freq: freq, gain: gain, duration: duration}
}

func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.duration > 0 && t.position >= t.duration {
			return i, false
		}
		val := math.Sin(2*math.Pi*t.phase) * t.gain
		samples[i][0] = val
		samples[i][1] = val
		t.phase += t.freq / float64(sampleRate)
		t.phase -= math.Floor(t.phase)
		t.position++
	}
	return len(samples), true
}

func (t *tone) Err() error { return nil }
