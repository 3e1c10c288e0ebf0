package common

import (
	"sync"
	"sync/atomic"
)

// Queue is an unbounded FIFO channel. Push never blocks for longer than it
// takes the internal goroutine to pick the value up, regardless of how slow the
// consumer of Out is. Values pushed after Close are discarded.
type Queue[T any] struct {
	in     chan T
	out    chan T
	done   chan struct{}
	once   sync.Once
	length int64
}

// NewQueue creates a Queue and starts its buffering goroutine.
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{
		in:   make(chan T),
		out:  make(chan T),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

// Push appends v to the queue. It returns false if the queue was closed.
func (q *Queue[T]) Push(v T) bool {
	select {
	case q.in <- v:
		return true
	case <-q.done:
		return false
	}
}

// Out returns the channel from which queued values are received in order.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Len returns the number of values buffered and not yet received.
func (q *Queue[T]) Len() int {
	return int(atomic.LoadInt64(&q.length))
}

// Close stops the queue. Buffered values are dropped.
func (q *Queue[T]) Close() {
	q.once.Do(func() { close(q.done) })
}

func (q *Queue[T]) run() {
	var buf []T
	var zero T
	for {
		var out chan T
		var head T
		if len(buf) > 0 {
			out = q.out
			head = buf[0]
		}

		select {
		case v := <-q.in:
			buf = append(buf, v)
			atomic.AddInt64(&q.length, 1)
		case out <- head:
			buf[0] = zero
			buf = buf[1:]
			atomic.AddInt64(&q.length, -1)
		case <-q.done:
			return
		}
	}
}
