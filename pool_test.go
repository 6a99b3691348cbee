package udpqueue

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/udpqueue/metrics"
	"github.com/opd-ai/udpqueue/queue"
	testsim "github.com/opd-ai/udpqueue/testing"
	"github.com/opd-ai/udpqueue/transport"
	"github.com/pion/rtp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int) (*Pool, *testsim.SimulatedTransport) {
	t.Helper()
	sim := testsim.NewSimulatedTransport("pool")
	options := NewOptions()
	options.PoolSize = size
	options.FrameDuration = 2 * time.Millisecond
	options.BufferDuration = 8 * time.Millisecond
	options.Transport = sim

	pool, err := NewPool(options)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	return pool, sim
}

func TestNewOptionsDefaults(t *testing.T) {
	options := NewOptions()
	assert.Equal(t, 400*time.Millisecond, options.BufferDuration)
	assert.Equal(t, 20*time.Millisecond, options.FrameDuration)
	assert.Greater(t, options.PoolSize, 0)
	assert.Equal(t, 4096, options.MaxPacketSize)
	assert.Equal(t, uint32(20), options.Capacity())
}

func TestNewPoolValidation(t *testing.T) {
	sim := testsim.NewSimulatedTransport("pool")

	tests := []struct {
		name   string
		modify func(o *Options)
	}{
		{"no transport", func(o *Options) { o.Transport = nil }},
		{"empty pair", func(o *Options) { o.Transport = nil; o.Pair = transport.NewPair(nil, nil) }},
		{"zero frame", func(o *Options) { o.FrameDuration = 0 }},
		{"buffer below frame", func(o *Options) { o.BufferDuration = time.Millisecond }},
		{"zero pool", func(o *Options) { o.PoolSize = 0 }},
		{"oversized packets", func(o *Options) { o.MaxPacketSize = 70000 }},
		{"negative budget", func(o *Options) { o.TickBudget = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := NewOptions()
			options.Transport = sim
			tt.modify(options)
			pool, err := NewPool(options)
			assert.Error(t, err)
			assert.Nil(t, pool)
		})
	}

	_, err := NewPool(nil)
	assert.Error(t, err)
}

func TestPoolShardsKeys(t *testing.T) {
	pool, _ := newTestPool(t, 3)
	assert.Equal(t, 3, pool.Size())
	assert.Equal(t, 4, pool.Capacity())

	for key := uint64(0); key < 9; key++ {
		w := pool.WrapperForKey(key)
		assert.Equal(t, key, w.Key())
		assert.Same(t, pool.managers[key%3], w.manager)
	}

	first := pool.NextWrapper()
	second := pool.NextWrapper()
	assert.Equal(t, uint64(0), first.Key())
	assert.Equal(t, uint64(1), second.Key())
}

func TestPoolSendsQueuedPackets(t *testing.T) {
	pool, sim := newTestPool(t, 2)

	a := pool.NextWrapper()
	b := pool.NextWrapper()
	for _, payload := range []string{"a1", "a2", "a3"} {
		require.NoError(t, a.Enqueue("10.0.0.1", 5000, []byte(payload)))
	}
	for _, payload := range []string{"b1", "b2"} {
		require.NoError(t, b.Enqueue("10.0.0.2", 5000, []byte(payload)))
	}

	require.Eventually(t, func() bool { return sim.Count() == 5 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"a1", "a2", "a3"}, sim.PayloadsTo("10.0.0.1:5000"))
	assert.Equal(t, []string{"b1", "b2"}, sim.PayloadsTo("10.0.0.2:5000"))
	assert.Equal(t, pool.Capacity(), a.RemainingCapacity())

	stats := pool.Stats()
	assert.Equal(t, uint64(5), stats.Enqueued)
	assert.Equal(t, uint64(5), stats.Sent)
}

func TestPoolBackpressure(t *testing.T) {
	sim := testsim.NewSimulatedTransport("pool")
	options := NewOptions()
	options.PoolSize = 1
	options.Transport = sim
	// A long frame keeps the pacer from draining between enqueues.
	options.FrameDuration = time.Hour
	options.BufferDuration = 3 * time.Hour

	pool, err := NewPool(options)
	require.NoError(t, err)
	defer pool.Close()

	w := pool.NextWrapper()
	require.Eventually(t, func() bool { return pool.Stats().Ticks >= 1 }, time.Second, time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Enqueue("10.0.0.1", 5000, []byte{byte(i)}))
	}
	assert.Equal(t, 0, w.RemainingCapacity())
	assert.ErrorIs(t, w.Enqueue("10.0.0.1", 5000, []byte("x")), queue.ErrQueueFull)

	assert.True(t, w.Delete())
	assert.False(t, w.Delete())
	assert.Equal(t, 3, w.RemainingCapacity())
}

func TestPoolClose(t *testing.T) {
	pool, _ := newTestPool(t, 2)
	w := pool.NextWrapper()

	require.NoError(t, pool.Close())
	assert.True(t, pool.IsClosed())
	require.NoError(t, pool.Close())

	assert.Equal(t, 0, w.RemainingCapacity())
	assert.ErrorIs(t, w.Enqueue("10.0.0.1", 5000, []byte("x")), queue.ErrManagerClosed)
	assert.False(t, w.Delete())
}

func TestPoolPairRouting(t *testing.T) {
	v4 := testsim.NewSimulatedTransport("v4")
	v6 := testsim.NewSimulatedTransport("v6")
	options := NewOptions()
	options.PoolSize = 1
	options.FrameDuration = 2 * time.Millisecond
	options.BufferDuration = 8 * time.Millisecond
	options.Pair = transport.NewPair(v4, v6)

	pool, err := NewPool(options)
	require.NoError(t, err)
	defer pool.Close()

	w := pool.NextWrapper()
	require.NoError(t, w.Enqueue("10.0.0.1", 5000, []byte("four")))
	require.NoError(t, w.Enqueue("2001:db8::1", 5000, []byte("six")))

	require.Eventually(t, func() bool { return v4.Count() == 1 && v6.Count() == 1 }, 2*time.Second, time.Millisecond)
}

// frameSource provides a fixed number of frames.
type frameSource struct {
	mu   sync.Mutex
	left int
}

func (f *frameSource) CanProvide() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.left > 0
}

func (f *frameSource) Provide() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left--
	return []byte{0xf8, 0xff, 0xfe}, nil
}

func TestPoolPoller(t *testing.T) {
	pool, sim := newTestPool(t, 1)

	poller, w, err := pool.NewPoller(&frameSource{left: 6}, "10.0.0.9", 5004)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), w.Key())

	require.NoError(t, poller.Start(context.Background()))
	defer poller.Stop()

	require.Eventually(t, func() bool { return sim.Count() == 6 }, 2*time.Second, time.Millisecond)

	records := sim.Records()
	for i, record := range records {
		packet := &rtp.Packet{}
		require.NoError(t, packet.Unmarshal(record.Payload))
		assert.Equal(t, uint16(i), packet.SequenceNumber)
		// 2ms frames at 48kHz advance the timestamp by 96 samples.
		assert.Equal(t, uint32(i)*96, packet.Timestamp)
	}
}

func TestPoolScopedRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg, "pooltest")
	require.NoError(t, err)

	sim := testsim.NewSimulatedTransport("pool")
	options := NewOptions()
	options.PoolSize = 2
	options.FrameDuration = time.Hour
	options.BufferDuration = time.Hour
	options.Transport = sim
	options.Recorder = rec

	pool, err := NewPool(options)
	require.NoError(t, err)
	defer pool.Close()

	require.NoError(t, pool.WrapperForKey(0).Enqueue("10.0.0.1", 5000, []byte("x")))
	require.NoError(t, pool.WrapperForKey(1).Enqueue("10.0.0.1", 5000, []byte("y")))
	assert.Equal(t, 2, pool.Stats().ActiveQueues)

	// Each manager reports through its own scope, so the gauge is the sum.
	expected := `
# HELP pooltest_udpqueue_queues_active Number of live per-key queues.
# TYPE pooltest_udpqueue_queues_active gauge
pooltest_udpqueue_queues_active 2
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pooltest_udpqueue_queues_active"))
}
