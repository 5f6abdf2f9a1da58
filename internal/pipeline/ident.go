package pipeline

import "sync/atomic"

// Domain identifies one category of shared state flowing through the pipeline.
type Domain uint8

const (
	DomainEntity Domain = iota
	DomainCamera
	DomainAudio
	DomainDebug
	DomainCallback

	domainCount
)

// String returns the stable lowercase name used in metrics and log events.
func (d Domain) String() string {
	switch d {
	case DomainEntity:
		return "entity"
	case DomainCamera:
		return "camera"
	case DomainAudio:
		return "audio"
	case DomainDebug:
		return "debug"
	case DomainCallback:
		return "callback"
	default:
		return "unknown"
	}
}

// StateDomains lists the domains backed by a state store, in swap order.
func StateDomains() []Domain {
	return []Domain{DomainEntity, DomainCamera, DomainAudio, DomainDebug}
}

// ID is an opaque handle unique within its domain. Zero is never allocated
// and always means "no identifier".
type ID uint64

// Allocator hands out monotonically increasing identifiers per domain.
// Generation is single-writer by convention (the processor allocates state
// identifiers on the main thread, the worker side allocates callback
// identifiers), but the counters are atomic so misuse cannot corrupt them.
type Allocator struct {
	next [domainCount]atomic.Uint64
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Next returns a fresh identifier for the domain. Identifiers are never
// reused while the process lives.
func (a *Allocator) Next(domain Domain) ID {
	if a == nil || domain >= domainCount {
		return 0
	}
	return ID(a.next[domain].Add(1))
}

// Peek reports the most recently allocated identifier without advancing.
func (a *Allocator) Peek(domain Domain) ID {
	if a == nil || domain >= domainCount {
		return 0
	}
	return ID(a.next[domain].Load())
}
