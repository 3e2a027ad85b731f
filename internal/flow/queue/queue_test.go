package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"

	"github.com/currawong-project/libcw-sub004/internal/flow/ferr"
	"github.com/currawong-project/libcw-sub004/internal/telemetry"
)

// TestMain guards the concurrent producer/consumer test below: every
// goroutine it spawns must actually exit once its target count is
// reached, not linger past the test.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestByteQueueFIFOOrder(t *testing.T) {
	q := NewByteQueue(4, 16)
	require.NoError(t, q.Push([]byte("a")))
	require.NoError(t, q.Push([]byte("b")))
	require.NoError(t, q.Push([]byte("c")))

	a, err := q.Pop()
	require.NoError(t, err)
	require.Equal(t, "a", string(a))
	b, err := q.Pop()
	require.NoError(t, err)
	require.Equal(t, "b", string(b))
}

func TestByteQueueOverflowFails(t *testing.T) {
	q := NewByteQueue(2, 16)
	require.NoError(t, q.Push([]byte("a")))
	require.NoError(t, q.Push([]byte("b")))
	err := q.Push([]byte("c"))
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.BufTooSmall))
}

func TestByteQueueUnderflowFails(t *testing.T) {
	q := NewByteQueue(2, 16)
	_, err := q.Pop()
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.EndOfStream))
}

func TestByteQueuePayloadTooLargeFails(t *testing.T) {
	q := NewByteQueue(2, 4)
	err := q.Push([]byte("toolong"))
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.BufTooSmall))
}

func TestCircQueueRoundsCapacityToPowerOfTwo(t *testing.T) {
	q := NewCircQueue[int](5)
	require.Equal(t, 8, q.Cap())
}

func TestCircQueueFIFOOrder(t *testing.T) {
	q := NewCircQueue[int](4)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Push(i))
	}
	for i := 0; i < 4; i++ {
		v, err := q.Pop()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
}

func TestCircQueueOverflowFails(t *testing.T) {
	q := NewCircQueue[int](2)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	err := q.Push(3)
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.BufTooSmall))
}

func TestCircQueueUnderflowFails(t *testing.T) {
	q := NewCircQueue[int](2)
	_, err := q.Pop()
	require.Error(t, err)
	require.True(t, ferr.Is(err, ferr.EndOfStream))
}

// TestCircQueueReportsDepthMetric confirms Push/Pop actually update the
// queue_depth gauge under the queue's own name label, instead of the
// collector sitting unread.
func TestCircQueueReportsDepthMetric(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := telemetry.NewMetrics(reg)

	q := NewCircQueue[int](4)
	q.SetMetrics("midi_in", m)

	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))

	var gauge dto.Metric
	require.NoError(t, m.QueueDepth.WithLabelValues("midi_in").Write(&gauge))
	require.Equal(t, float64(2), gauge.GetGauge().GetValue())

	_, err := q.Pop()
	require.NoError(t, err)

	gauge = dto.Metric{}
	require.NoError(t, m.QueueDepth.WithLabelValues("midi_in").Write(&gauge))
	require.Equal(t, float64(1), gauge.GetGauge().GetValue())
}

func TestCircQueueSlotReuseAfterPop(t *testing.T) {
	q := NewCircQueue[int](2)
	require.NoError(t, q.Push(1))
	require.NoError(t, q.Push(2))
	_, err := q.Pop()
	require.NoError(t, err)
	require.NoError(t, q.Push(3))

	v, _ := q.Pop()
	require.Equal(t, 2, v)
	v, _ = q.Pop()
	require.Equal(t, 3, v)
}

// TestCircQueueConcurrentProducersFIFOProperty stress-tests the queue
// property from spec §8: for any interleaving of concurrent pushes on
// an N-slot queue, every successful push is delivered exactly once to
// the single consumer, and each producer's records arrive in the order
// that producer pushed them. rapid generates the producer count and the
// number of pushes per producer. The full-queue bound is covered by
// TestCircQueueOverflowFails.
func TestCircQueueConcurrentProducersFIFOProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		producerN := rapid.IntRange(1, 8).Draw(rt, "producerN")
		perProducer := rapid.IntRange(1, 20).Draw(rt, "perProducer")

		q := NewCircQueue[int64](16)

		var wg sync.WaitGroup
		var pushed int64
		for p := 0; p < producerN; p++ {
			wg.Add(1)
			go func(producerID int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					id := int64(producerID)<<32 | int64(i)
					for {
						if err := q.Push(id); err == nil {
							atomic.AddInt64(&pushed, 1)
							break
						}
						// BufTooSmall: the consumer hasn't drained yet, retry.
					}
				}
			}(p)
		}

		var consumed []int64
		done := make(chan struct{})
		go func() {
			defer close(done)
			target := int64(producerN * perProducer)
			for int64(len(consumed)) < target {
				v, err := q.Pop()
				if err != nil {
					continue
				}
				consumed = append(consumed, v)
			}
		}()

		wg.Wait()
		<-done

		require.Equal(t, producerN*perProducer, len(consumed))
		seen := make(map[int64]bool, len(consumed))
		next := make(map[int64]int64, producerN)
		for _, v := range consumed {
			require.False(t, seen[v], "duplicate delivery of %d", v)
			seen[v] = true
			p, i := v>>32, v&0xffffffff
			require.Equal(t, next[p], i, "producer %d delivered out of order", p)
			next[p] = i + 1
		}
	})
}
