// Package ringchan provides a bounded channel that drops the oldest element
// instead of blocking the producer.
package ringchan

import "sync/atomic"

// RingChannel carries values from one fast producer to slow observers. The
// sampling loop publishes into it and never waits for a reader.
//
//	rc := ringchan.New[Report](4)
//	rc.Send(r)             // never blocks
//	for r := range rc.C() { render(r) }
type RingChannel[T any] struct {
	ch      chan T
	metrics Metrics
}

// Metrics counts channel traffic. Fields are updated atomically.
type Metrics struct {
	Written     int64
	Overwritten int64
	Received    int64
}

// New creates a ring channel holding up to capacity values.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. Reads through C are not counted in Received.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send enqueues v, discarding the oldest value when full. It reports whether
// a value was discarded.
func (rc *RingChannel[T]) Send(v T) bool {
	for dropped := false; ; {
		select {
		case rc.ch <- v:
			atomic.AddInt64(&rc.metrics.Written, 1)
			return dropped
		default:
		}
		select {
		case <-rc.ch:
			atomic.AddInt64(&rc.metrics.Overwritten, 1)
			dropped = true
		default:
		}
	}
}

// TryReceive returns the oldest value without blocking.
func (rc *RingChannel[T]) TryReceive() (v T, ok bool) {
	select {
	case v, ok = <-rc.ch:
		if ok {
			atomic.AddInt64(&rc.metrics.Received, 1)
		}
		return v, ok
	default:
		return v, false
	}
}

// Len returns the number of buffered values.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Cap returns the capacity.
func (rc *RingChannel[T]) Cap() int {
	return cap(rc.ch)
}

// Close closes the channel; Send panics afterwards.
func (rc *RingChannel[T]) Close() {
	close(rc.ch)
}

// Metrics returns a snapshot of the counters.
func (rc *RingChannel[T]) Metrics() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
		Received:    atomic.LoadInt64(&rc.metrics.Received),
	}
}
