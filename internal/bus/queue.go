package bus

import (
	"context"
	"errors"
	"sync/atomic"

	"frontrun/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Policy decides what happens when a publish hits a full queue.
type Policy uint8

const (
	// Block makes Publish wait for capacity. Used between stages that must
	// not lose events, such as signal to execution.
	Block Policy = iota

	// DropOldest evicts the oldest queued event to admit the new one.
	// Used on market data paths where fresh state beats complete state.
	DropOldest
)

// Event is the unit passed through the in-memory bus.
type Event struct {
	Header  schema.EventHeader
	Payload []byte
}

// Queue is a bounded event queue with a configurable overflow policy.
type Queue struct {
	ch      chan Event
	policy  Policy
	closed  uint32
	dropped uint64
}

// NewQueue allocates a queue with the given capacity and policy.
func NewQueue(capacity int, policy Policy) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity), policy: policy}
}

// Publish enqueues an event according to the queue policy. With Block it
// waits until there is room or the context is done. With DropOldest it
// never blocks; it evicts queued events until the new one fits.
func (q *Queue) Publish(ctx context.Context, e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}

	if q.policy == DropOldest {
		for {
			select {
			case q.ch <- e:
				return nil
			default:
			}
			select {
			case <-q.ch:
				atomic.AddUint64(&q.dropped, 1)
			default:
			}
		}
	}

	select {
	case q.ch <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryPublish enqueues an event without blocking regardless of policy.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Dropped returns the number of events evicted by the DropOldest policy.
func (q *Queue) Dropped() uint64 {
	return atomic.LoadUint64(&q.dropped)
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
