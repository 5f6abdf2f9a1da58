package journal

import "fmt"

// StallReason records one skipped tick observed while the worker overran.
type StallReason struct {
	Frame       uint64
	Consecutive int
}

// StallSignal is handed to the embedding application when the skip ratio
// crosses the policy threshold.
type StallSignal struct {
	SkippedTicks uint64
	TotalTicks   uint64
	Reasons      []StallReason
}

func (s StallSignal) String() string {
	return fmt.Sprintf("skipped %d of %d ticks", s.SkippedTicks, s.TotalTicks)
}

const skipThresholdPerTenThousand = 500
const stallReasonLimit = 8

// StallPolicy accumulates tick outcomes and raises a pending signal once
// skipped ticks exceed the configured ratio. Counters halve instead of
// wrapping so a long-lived process keeps a meaningful ratio.
type StallPolicy struct {
	totalTicks   uint64
	skippedTicks uint64
	pending      bool
	reasons      []StallReason
}

func NewStallPolicy() *StallPolicy {
	return &StallPolicy{reasons: make([]StallReason, 0, stallReasonLimit)}
}

// NoteTick records one render tick, skipped or not.
func (p *StallPolicy) NoteTick() {
	if p == nil {
		return
	}
	if p.totalTicks == ^uint64(0) {
		p.totalTicks /= 2
		p.skippedTicks /= 2
	}
	p.totalTicks++
}

// NoteSkip records a tick the worker overran.
func (p *StallPolicy) NoteSkip(frame uint64, consecutive int) {
	if p == nil {
		return
	}
	p.skippedTicks++
	if len(p.reasons) < stallReasonLimit {
		p.reasons = append(p.reasons, StallReason{Frame: frame, Consecutive: consecutive})
	}
	p.evaluate()
}

func (p *StallPolicy) evaluate() {
	if p == nil || p.pending || p.skippedTicks == 0 {
		return
	}
	total := p.totalTicks
	if total == 0 {
		total = 1
	}
	if p.skippedTicks*10000 >= total*skipThresholdPerTenThousand {
		p.pending = true
	}
}

// Consume returns the pending signal, if any, and resets the counters.
func (p *StallPolicy) Consume() (StallSignal, bool) {
	if p == nil || !p.pending {
		return StallSignal{}, false
	}
	signal := StallSignal{
		SkippedTicks: p.skippedTicks,
		TotalTicks:   p.totalTicks,
		Reasons:      append([]StallReason(nil), p.reasons...),
	}
	p.pending = false
	p.totalTicks = 0
	p.skippedTicks = 0
	if len(p.reasons) > 0 {
		p.reasons = p.reasons[:0]
	}
	return signal, true
}
