package pipeline

import (
	"sync"

	"starhollow/engine/internal/telemetry"
)

// Queue stores staged commands for one domain in a fixed-size ring. It is
// safe for concurrent producers and a single consumer; producers never
// block, they fail fast when the ring is full.
type Queue struct {
	mu      sync.Mutex
	data    []Command
	head    int
	tail    int
	count   int
	domain  Domain
	metrics telemetry.Metrics

	occupancyKey string
	overflowKey  string
}

// NewQueue constructs a ring buffer for the domain with the provided
// capacity. Capacity below one is clamped to one.
func NewQueue(domain Domain, capacity int, metrics telemetry.Metrics) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		data:         make([]Command, capacity),
		domain:       domain,
		metrics:      metrics,
		occupancyKey: "pipeline_queue_" + domain.String() + "_occupancy",
		overflowKey:  "pipeline_queue_" + domain.String() + "_overflow_total",
	}
}

// Domain reports which state domain this queue feeds.
func (q *Queue) Domain() Domain {
	if q == nil {
		return 0
	}
	return q.domain
}

// Capacity reports the maximum number of commands the queue can hold.
func (q *Queue) Capacity() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Len reports the number of staged commands.
func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Submit stages a command, returning false if the queue is full. The command
// is dropped in that case; delivery is never guaranteed to the caller.
func (q *Queue) Submit(cmd Command) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.data) {
		if q.metrics != nil {
			q.metrics.Add(q.overflowKey, 1)
		}
		return false
	}
	q.data[q.tail] = cmd
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	q.storeOccupancyLocked()
	return true
}

// ConsumeAll atomically detaches the entire pending batch and invokes visit
// for each command in submission order on the calling goroutine. It returns
// the number of commands visited.
func (q *Queue) ConsumeAll(visit func(Command)) int {
	batch := q.detach()
	if len(batch) == 0 {
		return 0
	}
	if visit != nil {
		for _, cmd := range batch {
			visit(cmd)
		}
	}
	return len(batch)
}

func (q *Queue) detach() []Command {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	batch := make([]Command, q.count)
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % len(q.data)
		batch[i] = q.data[idx]
		q.data[idx] = Command{}
	}
	q.head = 0
	q.tail = 0
	q.count = 0
	q.storeOccupancyLocked()
	return batch
}

func (q *Queue) storeOccupancyLocked() {
	if q.metrics == nil {
		return
	}
	q.metrics.Store(q.occupancyKey, uint64(q.count))
}
