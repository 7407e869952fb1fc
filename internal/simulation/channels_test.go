package simulation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watertank/internal/tank"
)

func TestStateChannel_LatestIsNonConsuming(t *testing.T) {
	sc := NewStateChannel(tank.Default())
	assert.Equal(t, uint64(0), sc.Version())

	next := tank.Default()
	next.Level = 1500
	sc.Publish(next)

	assert.Equal(t, 1500.0, sc.Latest().Level)
	assert.Equal(t, 1500.0, sc.Latest().Level)
	assert.Equal(t, uint64(1), sc.Version())
}

func TestStateChannel_PublishedValueIsACopy(t *testing.T) {
	sc := NewStateChannel(tank.Default())
	s := tank.Default()
	s.Level = 10
	sc.Publish(s)
	s.Level = 99 // caller keeps mutating its own copy
	assert.Equal(t, 10.0, sc.Latest().Level)
}

func TestStateChannel_ChangedFiresOnPublish(t *testing.T) {
	sc := NewStateChannel(tank.Default())
	ch := sc.Changed()
	select {
	case <-ch:
		t.Fatal("changed fired before publish")
	default:
	}

	sc.Publish(tank.Default())
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("changed did not fire")
	}
	assert.NotEqual(t, ch, sc.Changed())
}

// Every published snapshot has Level == Inflow == Outflow == i; a torn read
// would show mismatching fields.
func TestStateChannel_NoTornReads(t *testing.T) {
	sc := NewStateChannel(tank.State{Areal: 1})
	const writes = 20000

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := sc.Latest()
				if s.Level != s.Inflow || s.Inflow != s.Outflow {
					t.Errorf("torn read: %+v", s)
					return
				}
			}
		}()
	}

	for i := 1; i <= writes; i++ {
		v := float64(i)
		sc.Publish(tank.State{Areal: 1, Level: v, Inflow: v, Outflow: v})
	}
	close(stop)
	wg.Wait()
	assert.Equal(t, float64(writes), sc.Latest().Level)
}

func TestControlChannel_FIFO(t *testing.T) {
	c := NewControlChannel(4)
	for i := uint16(1); i <= 3; i++ {
		assert.False(t, c.Send(ControlCommand{OutflowRaw: i}))
	}
	assert.Equal(t, 3, c.Len())

	for i := uint16(1); i <= 3; i++ {
		cmd, missed, ok := c.TryReceive()
		require.True(t, ok)
		assert.Equal(t, i, cmd.OutflowRaw)
		assert.Zero(t, missed)
	}
	_, _, ok := c.TryReceive()
	assert.False(t, ok)
}

func TestControlChannel_DropOldestReportsMissed(t *testing.T) {
	c := NewControlChannel(DefaultControlCapacity)
	assert.False(t, c.Send(ControlCommand{OutflowRaw: 1}))
	assert.False(t, c.Send(ControlCommand{OutflowRaw: 2}))
	assert.True(t, c.Send(ControlCommand{OutflowRaw: 3}))
	assert.True(t, c.Send(ControlCommand{OutflowRaw: 4}))
	assert.Equal(t, 2, c.Len())

	cmd, missed, ok := c.TryReceive()
	require.True(t, ok)
	assert.Equal(t, uint16(3), cmd.OutflowRaw)
	assert.Equal(t, uint64(2), missed)

	cmd, missed, ok = c.TryReceive()
	require.True(t, ok)
	assert.Equal(t, uint16(4), cmd.OutflowRaw)
	assert.Zero(t, missed, "missed is reported once")
}

func TestControlChannel_MinimumCapacity(t *testing.T) {
	c := NewControlChannel(0)
	assert.Equal(t, 1, c.Capacity())
	c.Send(ControlCommand{OutflowRaw: 1})
	assert.True(t, c.Send(ControlCommand{OutflowRaw: 2}))
	cmd, missed, ok := c.TryReceive()
	require.True(t, ok)
	assert.Equal(t, uint16(2), cmd.OutflowRaw)
	assert.Equal(t, uint64(1), missed)
}

func TestControlChannel_ConcurrentProducers(t *testing.T) {
	c := NewControlChannel(DefaultControlCapacity)
	const producers, perProducer = 16, 500

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				c.Send(ControlCommand{OutflowRaw: uint16(p), SetpointRaw: uint16(i)})
			}
		}(p)
	}
	wg.Wait()

	var received, missed uint64
	for {
		_, m, ok := c.TryReceive()
		if !ok {
			break
		}
		received++
		missed += m
	}
	assert.Equal(t, uint64(DefaultControlCapacity), received)
	assert.Equal(t, uint64(producers*perProducer), received+missed)
}
