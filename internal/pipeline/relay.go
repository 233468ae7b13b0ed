package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/streamcap/agent/internal/logging"
)

var log = logging.L("pipeline")

// DefaultRelayCapacity bounds per-stream buffering during encoder stalls.
const DefaultRelayCapacity = 2048

// Relay is a bounded single-producer/single-consumer byte-buffer queue
// decoupling a real-time capture callback from the encoder pump. The
// producer side never blocks: when the queue is full the buffer is dropped.
type Relay struct {
	name      string
	ch        chan []byte
	closed    atomic.Bool
	closeOnce sync.Once
	dropped   atomic.Uint64
}

// NewRelay creates a relay holding at most capacity buffers.
func NewRelay(name string, capacity int) *Relay {
	if capacity < 1 {
		capacity = 1
	}
	return &Relay{
		name: name,
		ch:   make(chan []byte, capacity),
	}
}

// Offer enqueues buf without blocking. Returns false when the buffer was
// dropped because the relay is full. Safe to call from a real-time callback.
func (r *Relay) Offer(buf []byte) bool {
	if r.closed.Load() {
		return false
	}
	select {
	case r.ch <- buf:
		return true
	default:
		if n := r.dropped.Add(1); n == 1 || n%100 == 0 {
			log.Warn("relay full, dropping buffer", "relay", r.name, "dropped", n)
		}
		return false
	}
}

// Next blocks until a buffer is available. Returns ok=false once the relay
// is closed and fully drained.
func (r *Relay) Next() ([]byte, bool) {
	buf, ok := <-r.ch
	return buf, ok
}

// Close marks the producer side finished. Buffers already enqueued remain
// receivable. The capture driver must be stopped before Close; the closed
// flag only shields stray late callbacks.
func (r *Relay) Close() {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.ch)
	})
}

// Dropped reports how many buffers were discarded due to a full queue.
func (r *Relay) Dropped() uint64 {
	return r.dropped.Load()
}
