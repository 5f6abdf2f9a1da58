// Package journal keeps a rolling record of applied frame boundaries so
// diagnostics surfaces can answer "what happened recently" without holding
// the pipeline's locks.
package journal

import (
	"sync"
	"time"
)

// Record captures one applied frame boundary.
type Record struct {
	Frame    uint64        `json:"frame"`
	Applied  int           `json:"applied"`
	Rejected int           `json:"rejected"`
	Synced   int           `json:"synced"`
	Reaped   int           `json:"reaped"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Journal accumulates frame records and keeps a rolling window bounded both
// by record count and by age. Old records fall off silently; the journal is
// an observability aid, not a source of truth.
type Journal struct {
	mu        sync.RWMutex
	records   []Record
	maxFrames int
	maxAge    time.Duration
}

// New constructs a journal retaining at most maxFrames records no older
// than maxAge. Non-positive bounds disable the respective limit.
func New(maxFrames int, maxAge time.Duration) *Journal {
	if maxFrames < 0 {
		maxFrames = 0
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &Journal{
		records:   make([]Record, 0, maxFrames),
		maxFrames: maxFrames,
		maxAge:    maxAge,
	}
}

// Append records one frame boundary and evicts anything that fell outside
// the retention window.
func (j *Journal) Append(rec Record) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.records = append(j.records, rec)
	j.evictLocked(rec.At)
}

func (j *Journal) evictLocked(now time.Time) {
	if j.maxFrames > 0 && len(j.records) > j.maxFrames {
		drop := len(j.records) - j.maxFrames
		j.records = append(j.records[:0], j.records[drop:]...)
	}
	if j.maxAge <= 0 || now.IsZero() {
		return
	}
	cutoff := now.Add(-j.maxAge)
	idx := 0
	for idx < len(j.records) && j.records[idx].At.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		j.records = append(j.records[:0], j.records[idx:]...)
	}
}

// Len reports how many records are retained.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.records)
}

// Recent returns up to n records, newest last. The slice is a copy.
func (j *Journal) Recent(n int) []Record {
	if j == nil || n <= 0 {
		return nil
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.records) == 0 {
		return nil
	}
	if n > len(j.records) {
		n = len(j.records)
	}
	out := make([]Record, n)
	copy(out, j.records[len(j.records)-n:])
	return out
}

// Since returns every retained record with a frame number greater than the
// given one, oldest first.
func (j *Journal) Since(frame uint64) []Record {
	if j == nil {
		return nil
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []Record
	for _, rec := range j.records {
		if rec.Frame > frame {
			out = append(out, rec)
		}
	}
	return out
}

// Summary aggregates the retained window.
type Summary struct {
	Frames      int           `json:"frames"`
	Applied     int           `json:"applied"`
	Rejected    int           `json:"rejected"`
	MaxDuration time.Duration `json:"maxDuration"`
}

// Summarize aggregates counters over the retained window.
func (j *Journal) Summarize() Summary {
	if j == nil {
		return Summary{}
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	sum := Summary{Frames: len(j.records)}
	for _, rec := range j.records {
		sum.Applied += rec.Applied
		sum.Rejected += rec.Rejected
		if rec.Duration > sum.MaxDuration {
			sum.MaxDuration = rec.Duration
		}
	}
	return sum
}
