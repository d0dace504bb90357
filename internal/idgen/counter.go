package idgen

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// GlobalCounter mints the process-wide monotonic event_id sequence used by
// the event log. It is paired with a per-space sequence kept separately by
// the event log itself; only this counter needs to be shared across spaces.
type GlobalCounter struct {
	next atomic.Int64
}

// NewGlobalCounter creates a counter whose first Next() call returns start+1.
func NewGlobalCounter(start int64) *GlobalCounter {
	c := &GlobalCounter{}
	c.next.Store(start)
	return c
}

// Next atomically allocates and returns the next global event id.
func (c *GlobalCounter) Next() int64 {
	return c.next.Add(1)
}

// Peek returns the last allocated id without consuming a new one (the
// counter's start value if none has been allocated yet).
func (c *GlobalCounter) Peek() int64 {
	return c.next.Load()
}

// NewCorrelationID mints an opaque id for space metadata correlation, e.g.
// request tracing, using github.com/google/uuid for identifiers outside the
// hash-ID scheme.
func NewCorrelationID() string {
	return uuid.NewString()
}
