package queue

import (
	"sync/atomic"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

// CircQueue is a non-blocking multi-producer single-consumer circular
// queue of fixed-size records (spec §4.8 "circular queue of records").
// Capacity is rounded up to a power of two so slot indices can be
// computed with a bit mask instead of a modulo. A reservation counter
// admits a producer only when a slot is free; the producer publishes
// with a release store; the consumer drains with an acquire load and
// releases the slot by atomically incrementing a released counter, which
// lowers the in-flight count reserved-released (spec §9 "Non-blocking
// queues").
type CircQueue[T any] struct {
	mask uint64
	data []T
	tag  []int32 // 0 = free/unpublished, 1 = published, read by consumer as an acquire load

	reserved uint64 // atomic: count of slots ever reserved by a producer
	released uint64 // atomic: count of slots ever released by the consumer
	head     uint64 // consumer-only (not atomic): next slot index the consumer will read

	name    string
	metrics *telemetry.Metrics
}

// SetMetrics attaches a collector so every Push/Pop updates the
// queue_depth gauge under the given name label. A nil metrics (the
// default) disables recording.
func (q *CircQueue[T]) SetMetrics(name string, m *telemetry.Metrics) {
	q.name = name
	q.metrics = m
}

func (q *CircQueue[T]) observeDepth() {
	if q.metrics != nil {
		q.metrics.QueueDepth.WithLabelValues(q.name).Set(float64(q.Len()))
	}
}

// NewCircQueue allocates a queue whose capacity is the next power of
// two >= n (n must be > 0).
func NewCircQueue[T any](n int) *CircQueue[T] {
	cap := nextPow2(n)
	return &CircQueue[T]{
		mask: uint64(cap - 1),
		data: make([]T, cap),
		tag:  make([]int32, cap),
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Push reserves a slot and publishes rec into it. Fails with
// BufTooSmall if every slot is currently occupied by an unconsumed
// record (spec §4.8 "overflow returns BufTooSmall").
func (q *CircQueue[T]) Push(rec T) error {
	cap64 := q.mask + 1
	for {
		reserved := atomic.LoadUint64(&q.reserved)
		released := atomic.LoadUint64(&q.released)
		if reserved-released >= cap64 {
			return ferr.New(ferr.BufTooSmall, "circular queue: full (%d/%d in flight)", reserved-released, cap64)
		}
		if atomic.CompareAndSwapUint64(&q.reserved, reserved, reserved+1) {
			slot := reserved & q.mask
			q.data[slot] = rec
			atomic.StoreInt32(&q.tag[slot], 1) // release store
			q.observeDepth()
			return nil
		}
	}
}

// Pop drains the next published record in FIFO order. Fails with
// EndOfStream if the queue is empty (spec §4.8 "underflow returns
// EndOfStream"). Pop must only be called from the single consumer
// goroutine.
func (q *CircQueue[T]) Pop() (T, error) {
	var zero T
	head := q.head
	reserved := atomic.LoadUint64(&q.reserved)
	if head >= reserved {
		return zero, ferr.New(ferr.EndOfStream, "circular queue: empty")
	}
	slot := head & q.mask
	if atomic.LoadInt32(&q.tag[slot]) == 0 { // acquire load
		return zero, ferr.New(ferr.EndOfStream, "circular queue: head slot not yet published")
	}
	rec := q.data[slot]
	atomic.StoreInt32(&q.tag[slot], 0)
	q.head++
	atomic.AddUint64(&q.released, 1) // release fetch-add (frees the slot for reuse)
	q.observeDepth()
	return rec, nil
}

// Len reports the number of reserved, unreleased records, including any a
// producer has reserved but not yet published.
func (q *CircQueue[T]) Len() int {
	reserved := atomic.LoadUint64(&q.reserved)
	released := atomic.LoadUint64(&q.released)
	return int(reserved - released)
}

// Cap reports the queue's power-of-two capacity.
func (q *CircQueue[T]) Cap() int { return int(q.mask + 1) }
