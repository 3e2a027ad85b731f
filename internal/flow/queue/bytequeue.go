// Package queue implements the Flow engine's two non-blocking MPSC
// queue disciplines (spec §4.8): a byte-blob queue and a generic
// circular record queue. The Flow core itself uses neither directly —
// they underpin cross-thread logging and UI traffic (spec §4.8) — but
// are built to the exact wait-free/bounded-failure semantics of §9
// "Non-blocking queues". Grounded on original_source/cwNbMpScQueue.h
// (block-pool byte queue) and cwMpScNbCircQueue.h (power-of-two circular
// record queue), with the teacher's engine/queue.Queue as the Go
// packaging precedent (fixed-capacity, push/pop, no unbounded growth).
package queue

import (
	"sync/atomic"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

// ByteQueue is a non-blocking multi-producer single-consumer queue of
// opaque byte blobs, backed by a fixed-size block pool. Producers
// reserve a block via an atomic counter and publish by copying their
// payload in; push fails with BufTooSmall rather than blocking when the
// pool is exhausted (spec §4.8).
type ByteQueue struct {
	blockSize int
	blocks    [][]byte
	lens      []int32 // payload length of each block, stored before its published flag
	published []int32 // atomic 0/1 flag, set last so the consumer never reads a partial block

	reserveIdx uint64 // atomic, next block index to hand to a producer
	headIdx    uint64 // atomic, next block index the consumer will read

	name    string
	metrics *telemetry.Metrics
}

// SetMetrics attaches a collector so every Push/Pop updates the
// queue_depth gauge under the given name label. A nil metrics (the
// default) disables recording.
func (q *ByteQueue) SetMetrics(name string, m *telemetry.Metrics) {
	q.name = name
	q.metrics = m
}

func (q *ByteQueue) observeDepth() {
	if q.metrics != nil {
		q.metrics.QueueDepth.WithLabelValues(q.name).Set(float64(q.Len()))
	}
}

// NewByteQueue allocates a queue of n fixed-size blocks.
func NewByteQueue(n, blockSize int) *ByteQueue {
	return &ByteQueue{
		blockSize: blockSize,
		blocks:    make([][]byte, n),
		lens:      make([]int32, n),
		published: make([]int32, n),
	}
}

func (q *ByteQueue) cap() uint64 { return uint64(len(q.blocks)) }

// Push reserves a block and copies data into it. Fails with BufTooSmall
// if data exceeds the block size or the pool has no free block (the
// consumer hasn't drained far enough yet).
func (q *ByteQueue) Push(data []byte) error {
	if len(data) > q.blockSize {
		return ferr.New(ferr.BufTooSmall, "byte queue: payload %d bytes exceeds block size %d", len(data), q.blockSize)
	}

	for {
		reserve := atomic.LoadUint64(&q.reserveIdx)
		head := atomic.LoadUint64(&q.headIdx)
		if reserve-head >= q.cap() {
			return ferr.New(ferr.BufTooSmall, "byte queue: pool exhausted (%d blocks in flight)", reserve-head)
		}
		if atomic.CompareAndSwapUint64(&q.reserveIdx, reserve, reserve+1) {
			slot := reserve % q.cap()
			if q.blocks[slot] == nil {
				q.blocks[slot] = make([]byte, q.blockSize)
			}
			n := copy(q.blocks[slot], data)
			atomic.StoreInt32(&q.lens[slot], int32(n))
			atomic.StoreInt32(&q.published[slot], 1) // release store
			q.observeDepth()
			return nil
		}
	}
}

// Pop returns the next published block in FIFO order, or EndOfStream if
// the consumer has caught up to every reserved-but-unpublished slot.
// Pop must only be called from the single consumer goroutine.
func (q *ByteQueue) Pop() ([]byte, error) {
	head := atomic.LoadUint64(&q.headIdx)
	reserve := atomic.LoadUint64(&q.reserveIdx)
	if head >= reserve {
		return nil, ferr.New(ferr.EndOfStream, "byte queue: empty")
	}
	slot := head % q.cap()
	if atomic.LoadInt32(&q.published[slot]) == 0 { // acquire load
		// A producer reserved this slot but hasn't published yet.
		return nil, ferr.New(ferr.EndOfStream, "byte queue: head slot not yet published")
	}
	n := atomic.LoadInt32(&q.lens[slot])
	out := make([]byte, n)
	copy(out, q.blocks[slot][:n])
	atomic.StoreInt32(&q.published[slot], 0)
	atomic.AddUint64(&q.headIdx, 1)
	q.observeDepth()
	return out, nil
}

// Len reports the number of reserved, undrained blocks, including any a
// producer has reserved but not yet published.
func (q *ByteQueue) Len() int {
	reserve := atomic.LoadUint64(&q.reserveIdx)
	head := atomic.LoadUint64(&q.headIdx)
	return int(reserve - head)
}
