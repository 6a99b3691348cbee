package handle

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/udpqueue/queue"
	testsim "github.com/opd-ai/udpqueue/testing"
	"github.com/opd-ai/udpqueue/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTable(t *testing.T) (*Table, *testsim.SimulatedTransport) {
	t.Helper()
	sim := testsim.NewSimulatedTransport("default")
	table := NewTable(WithDefaultTransport(sim))
	t.Cleanup(func() { _ = table.Close() })
	return table, sim
}

// TestTableScenario runs the enqueue/tick cycle through handles only.
func TestTableScenario(t *testing.T) {
	table, sim := newTestTable(t)

	h, err := table.Create(2, 20*time.Millisecond)
	require.NoError(t, err)
	assert.NotZero(t, h)

	assert.Equal(t, int32(2), table.RemainingCapacity(h, 1))
	assert.True(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("aa"), NoTransport))
	assert.True(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("bb"), NoTransport))
	assert.False(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("cc"), NoTransport))
	assert.Equal(t, int32(0), table.RemainingCapacity(h, 1))

	assert.True(t, table.Tick(h))
	assert.Equal(t, []string{"aa"}, sim.Payloads())
	assert.Equal(t, int32(1), table.RemainingCapacity(h, 1))

	assert.True(t, table.Tick(h))
	assert.Equal(t, []string{"aa", "bb"}, sim.Payloads())
}

// TestTableCreateInvalidConfig checks that bad geometry never yields a handle.
func TestTableCreateInvalidConfig(t *testing.T) {
	table, _ := newTestTable(t)

	h, err := table.Create(0, 20*time.Millisecond)
	assert.Error(t, err)
	assert.Zero(t, h)

	h, err = table.Create(10, 0)
	assert.Error(t, err)
	assert.Zero(t, h)

	assert.Equal(t, 0, table.Len())
}

// TestTableStaleHandle verifies every call rejects a destroyed handle.
func TestTableStaleHandle(t *testing.T) {
	table, sim := newTestTable(t)

	h, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("aa"), NoTransport))

	require.NoError(t, table.Destroy(h))
	assert.Equal(t, 0, table.Len())

	assert.Equal(t, InvalidCapacity, table.RemainingCapacity(h, 1))
	assert.False(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("bb"), NoTransport))
	assert.False(t, table.DeleteQueue(h, 1))
	assert.False(t, table.Tick(h))
	assert.False(t, table.TickWithTransports(h, NoTransport, NoTransport))
	assert.ErrorIs(t, table.Destroy(h), ErrInvalidHandle)

	_, err = table.Manager(h)
	assert.ErrorIs(t, err, ErrInvalidHandle)
	assert.Zero(t, sim.Count())
}

// TestTableSlotReuse checks that a reused slot does not revive old handles.
func TestTableSlotReuse(t *testing.T) {
	table, _ := newTestTable(t)

	first, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, table.Destroy(first))

	second, err := table.Create(8, 20*time.Millisecond)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	assert.Equal(t, InvalidCapacity, table.RemainingCapacity(first, 1))
	assert.Equal(t, int32(8), table.RemainingCapacity(second, 1))
}

// TestTableZeroAndGarbageHandles covers handles that were never issued.
func TestTableZeroAndGarbageHandles(t *testing.T) {
	table, _ := newTestTable(t)

	for _, h := range []InstanceHandle{0, 1, 0xdeadbeef, ^InstanceHandle(0)} {
		assert.Equal(t, InvalidCapacity, table.RemainingCapacity(h, 1))
		assert.False(t, table.Tick(h))
		assert.ErrorIs(t, table.Destroy(h), ErrInvalidHandle)
	}
}

// TestTableDeleteQueue checks deletion through the handle API.
func TestTableDeleteQueue(t *testing.T) {
	table, sim := newTestTable(t)

	h, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)

	assert.False(t, table.DeleteQueue(h, 9))
	require.True(t, table.Enqueue(h, 9, "10.0.0.1", 5000, []byte("aa"), NoTransport))
	assert.True(t, table.DeleteQueue(h, 9))
	assert.Equal(t, int32(4), table.RemainingCapacity(h, 9))

	assert.True(t, table.Tick(h))
	assert.Zero(t, sim.Count())
}

// TestTableExplicitTransport routes a packet through a registered transport.
func TestTableExplicitTransport(t *testing.T) {
	table, sim := newTestTable(t)
	explicit := testsim.NewSimulatedTransport("explicit")

	th, err := table.RegisterTransport(explicit)
	require.NoError(t, err)
	assert.NotEqual(t, NoTransport, th)

	h, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("aa"), th))
	require.True(t, table.Tick(h))

	assert.Equal(t, []string{"aa"}, explicit.Payloads())
	assert.Zero(t, sim.Count())

	require.True(t, table.ReleaseTransport(th))
	assert.False(t, table.ReleaseTransport(th))
	assert.False(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("bb"), th))

	_, err = table.RegisterTransport(nil)
	assert.Error(t, err)
}

// TestTableTickWithTransports selects pair members by address family.
func TestTableTickWithTransports(t *testing.T) {
	table, sim := newTestTable(t)
	v4 := testsim.NewSimulatedTransport("v4")
	v6 := testsim.NewSimulatedTransport("v6")

	a, err := table.RegisterTransport(v4)
	require.NoError(t, err)
	b, err := table.RegisterTransport(v6)
	require.NoError(t, err)

	h, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("four"), NoTransport))
	require.True(t, table.Enqueue(h, 2, "2001:db8::1", 5000, []byte("six"), NoTransport))

	assert.True(t, table.TickWithTransports(h, a, b))
	assert.Equal(t, []string{"four"}, v4.Payloads())
	assert.Equal(t, []string{"six"}, v6.Payloads())
	assert.Zero(t, sim.Count())

	require.True(t, table.ReleaseTransport(b))
	assert.False(t, table.TickWithTransports(h, a, b))
}

// TestTableManagerOptions applies manager options to created instances.
func TestTableManagerOptions(t *testing.T) {
	sim := testsim.NewSimulatedTransport("default")
	table := NewTable(WithDefaultTransport(sim), WithManagerOptions(queue.WithMaxPacketSize(4)))
	defer table.Close()

	h, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("abcd"), NoTransport))
	assert.False(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("abcde"), NoTransport))

	m, err := table.Manager(h)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Capacity())
}

// TestTableClose destroys all instances.
func TestTableClose(t *testing.T) {
	table := NewTable()

	var handles []InstanceHandle
	for i := 0; i < 3; i++ {
		h, err := table.Create(4, 20*time.Millisecond)
		require.NoError(t, err)
		handles = append(handles, h)
	}
	assert.Equal(t, 3, table.Len())

	require.NoError(t, table.Close())
	assert.Equal(t, 0, table.Len())
	for _, h := range handles {
		assert.False(t, table.Tick(h))
	}
}

// TestTableHandlesStayInvalidAfterClose reuses the table after Close and
// checks handles from before Close do not resolve to the new entries.
func TestTableHandlesStayInvalidAfterClose(t *testing.T) {
	table, sim := newTestTable(t)

	old, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)
	oldTh, err := table.RegisterTransport(sim)
	require.NoError(t, err)

	require.NoError(t, table.Close())

	fresh, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)
	freshTh, err := table.RegisterTransport(sim)
	require.NoError(t, err)

	assert.NotEqual(t, old, fresh)
	assert.NotEqual(t, oldTh, freshTh)

	assert.False(t, table.Enqueue(old, 1, "10.0.0.1", 5000, []byte("x"), NoTransport))
	assert.Equal(t, InvalidCapacity, table.RemainingCapacity(old, 1))
	assert.False(t, table.Tick(old))
	assert.ErrorIs(t, table.Destroy(old), ErrInvalidHandle)
	assert.False(t, table.Enqueue(fresh, 1, "10.0.0.1", 5000, []byte("x"), oldTh))
	assert.False(t, table.ReleaseTransport(oldTh))

	assert.True(t, table.Enqueue(fresh, 1, "10.0.0.1", 5000, []byte("x"), freshTh))
	assert.Equal(t, int32(3), table.RemainingCapacity(fresh, 1))
	require.NoError(t, table.Close())
}

// TestTableConcurrentUse exercises the table from many goroutines.
func TestTableConcurrentUse(t *testing.T) {
	table, _ := newTestTable(t)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				h, err := table.Create(4, 20*time.Millisecond)
				if !assert.NoError(t, err) {
					return
				}
				table.Enqueue(h, uint64(g), "10.0.0.1", 5000, []byte("x"), NoTransport)
				table.Tick(h)
				assert.NoError(t, table.Destroy(h))
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 0, table.Len())
}

func TestSlotsEncodeDecode(t *testing.T) {
	h := encode(0, 0)
	assert.Equal(t, uint64(1), h)

	index, generation, ok := decode(encode(41, 7))
	assert.True(t, ok)
	assert.Equal(t, uint32(41), index)
	assert.Equal(t, uint32(7), generation)

	_, _, ok = decode(0)
	assert.False(t, ok)
}

// TestTableTransportFactory gives each instance an owned transport.
func TestTableTransportFactory(t *testing.T) {
	var created []*testsim.SimulatedTransport
	table := NewTable(WithTransportFactory(func() (transport.Transport, error) {
		sim := testsim.NewSimulatedTransport("owned")
		created = append(created, sim)
		return sim, nil
	}))
	defer table.Close()

	h, err := table.Create(4, 20*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, created, 1)

	require.True(t, table.Enqueue(h, 1, "10.0.0.1", 5000, []byte("aa"), NoTransport))
	require.True(t, table.Tick(h))
	assert.Equal(t, []string{"aa"}, created[0].Payloads())

	require.NoError(t, table.Destroy(h))
	assert.True(t, created[0].IsClosed())
}

// TestTableTransportFactoryFailure surfaces allocation failure distinctly.
func TestTableTransportFactoryFailure(t *testing.T) {
	boom := errors.New("no sockets left")
	table := NewTable(WithTransportFactory(func() (transport.Transport, error) {
		return nil, boom
	}))
	defer table.Close()

	h, err := table.Create(4, 20*time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, h)
	assert.Equal(t, 0, table.Len())

	// Invalid geometry fails before any transport is allocated.
	calls := 0
	table = NewTable(WithTransportFactory(func() (transport.Transport, error) {
		calls++
		return testsim.NewSimulatedTransport("owned"), nil
	}))
	defer table.Close()
	_, err = table.Create(0, 20*time.Millisecond)
	assert.Error(t, err)
	assert.Zero(t, calls)
}
