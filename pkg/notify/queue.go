// Package notify hands "new message" events to the external push
// dispatcher through a bounded in-memory queue. Producers never block on a
// slow notifier; a full queue drops the event and counts it.
package notify

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"

	"chatsync/pkg/telemetry"
)

// Event is a lightweight new-message record destined for the push
// notifier. Payload may be backed by a pooled ByteBuffer; consumers must
// call Item.Done() when finished.
type Event struct {
	Channel  string
	ID       string
	OwnerUID string
	Preview  string
	// Payload holds the marshalled message (may be nil).
	Payload []byte
	// EnqSeq is a monotonic enqueue sequence for deterministic ordering.
	EnqSeq uint64
}

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("notify queue full")

// ErrQueueClosed is returned by TryEnqueue after CloseAndDrain.
var ErrQueueClosed = errors.New("notify queue closed")

// Item wraps an Event and owns a pooled ByteBuffer if one was used.
// Consumers MUST call Done() exactly once after processing.
type Item struct {
	Event *Event

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// maxPooledBuffer controls the largest buffer returned to the pool; bigger
// payloads are dropped so GC can reclaim them.
var maxPooledBuffer = 256 * 1024

// SetMaxPooledBuffer overrides the pool cap (from config).
func SetMaxPooledBuffer(n int) {
	if n > 0 {
		maxPooledBuffer = n
	}
}

// Done releases pooled resources back to their pools.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			if cap(it.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		if it.Event != nil {
			it.Event.Payload = nil
			eventPool.Put(it.Event)
			it.Event = nil
		}
	})
}

var eventPool = sync.Pool{New: func() any { return &Event{} }}

var enqSeq uint64

// Queue is a bounded queue of Events, safe for concurrent producers. The
// close/enqueue race is guarded by mu so producers racing a shutdown get
// ErrQueueClosed instead of a send on a closed channel.
type Queue struct {
	mu       sync.RWMutex
	closed   bool
	ch       chan *Item
	capacity int
	dropped  uint64
}

// NewQueue creates a bounded Queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out returns the consumer side; do not close it from callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

// TryEnqueue copies ev (payload into a pooled buffer) and enqueues it
// without blocking. A full queue returns ErrQueueFull; a closed queue
// returns ErrQueueClosed.
func (q *Queue) TryEnqueue(ev *Event) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	newEv := eventPool.Get().(*Event)
	*newEv = *ev
	newEv.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(ev.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], ev.Payload...)
		newEv.Payload = bb.B[:len(ev.Payload)]
	}
	it := &Item{Event: newEv, buf: bb}

	select {
	case q.ch <- it:
		return nil
	default:
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		eventPool.Put(newEv)
		atomic.AddUint64(&q.dropped, 1)
		telemetry.NotifyDropped.Inc()
		return ErrQueueFull
	}
}

// CloseAndDrain closes the queue and releases remaining items. Enqueues
// arriving after this point fail with ErrQueueClosed.
func (q *Queue) CloseAndDrain() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	for it := range q.ch {
		it.Done()
	}
}

// Len returns the current queue depth.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns how many events were lost to a full queue.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
