package pipeline

import "sync"

// CallbackResult is delivered back to a submitter exactly once per pending
// callback. Result carries the identifier produced by a successful creation;
// Err carries the rejection reason when the command could not be applied.
type CallbackResult struct {
	Callback ID     `json:"callbackId"`
	Result   ID     `json:"resultId,omitempty"`
	Err      string `json:"error,omitempty"`
}

// CallbackChannel tracks pending callbacks between the frame that registers
// them and the frame boundary that resolves them. Registration happens on
// the submitter side before enqueueing the command; the processor resolves
// during command application; the submitter drains ready results on its next
// run. Every registered callback resolves at most once and is removed from
// the pending set when it does.
type CallbackChannel struct {
	mu      sync.Mutex
	alloc   *Allocator
	pending map[ID]struct{}
	ready   []CallbackResult
}

func NewCallbackChannel(alloc *Allocator) *CallbackChannel {
	if alloc == nil {
		alloc = NewAllocator()
	}
	return &CallbackChannel{
		alloc:   alloc,
		pending: make(map[ID]struct{}),
	}
}

// Register allocates a callback identifier and records it as pending. The
// identifier travels with the command it belongs to.
func (c *CallbackChannel) Register() ID {
	if c == nil {
		return 0
	}
	id := c.alloc.Next(DomainCallback)
	c.mu.Lock()
	c.pending[id] = struct{}{}
	c.mu.Unlock()
	return id
}

// Resolve records the successful result for a pending callback. Unknown or
// already-resolved identifiers are ignored, so retries and stale commands
// can never duplicate a delivery.
func (c *CallbackChannel) Resolve(callback, result ID) bool {
	return c.complete(CallbackResult{Callback: callback, Result: result})
}

// Fail records a failure for a pending callback with the given reason.
func (c *CallbackChannel) Fail(callback ID, reason string) bool {
	return c.complete(CallbackResult{Callback: callback, Err: reason})
}

func (c *CallbackChannel) complete(res CallbackResult) bool {
	if c == nil || res.Callback == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[res.Callback]; !ok {
		return false
	}
	delete(c.pending, res.Callback)
	c.ready = append(c.ready, res)
	return true
}

// DrainReady removes and returns every resolved result, in resolution order.
// The returned slice is owned by the caller.
func (c *CallbackChannel) DrainReady() []CallbackResult {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.ready) == 0 {
		return nil
	}
	out := c.ready
	c.ready = nil
	return out
}

// PendingCount reports how many callbacks have been registered but not yet
// resolved.
func (c *CallbackChannel) PendingCount() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// FailAllPending resolves every outstanding callback with the given reason.
// Used during shutdown so no submitter waits on a result that will never
// arrive.
func (c *CallbackChannel) FailAllPending(reason string) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.pending)
	for id := range c.pending {
		c.ready = append(c.ready, CallbackResult{Callback: id, Err: reason})
	}
	clear(c.pending)
	return n
}
