package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watertank/internal/tank"
)

func TestRedisMirror_WritesLatestSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	m, err := NewRedisMirror("redis://"+mr.Addr(), "tank:latest", time.Minute)
	require.NoError(t, err)
	defer m.Close()

	ctx := context.Background()
	_, ok, err := m.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	s := tank.Default()
	s.Level = 1001.5
	require.NoError(t, m.MirrorSnapshot(ctx, s))
	s.Level = 1002.5
	require.NoError(t, m.MirrorSnapshot(ctx, s))

	snap, ok, err := m.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1002.5, snap.Level)
	assert.Equal(t, uint64(2), snap.Tick)
	assert.Equal(t, time.Minute, mr.TTL("tank:latest"))

	raw, err := mr.Get("tank:latest")
	require.NoError(t, err)
	assert.Contains(t, raw, `"level":1002.5`)
}

func TestRedisMirror_NilIsNoop(t *testing.T) {
	var m *RedisMirror
	assert.NoError(t, m.MirrorSnapshot(context.Background(), tank.Default()))
	_, ok, err := m.Load(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, m.Close())
}

func TestNewRedisMirror_Errors(t *testing.T) {
	_, err := NewRedisMirror("not a url", "k", time.Minute)
	assert.ErrorContains(t, err, "invalid redis url")

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisMirror("redis://"+addr, "k", time.Minute)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func TestDriver_WithRedisMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	m, err := NewRedisMirror("redis://"+mr.Addr(), "tank:latest", time.Minute)
	require.NoError(t, err)
	defer m.Close()

	d, _, _ := newTestDriver(tank.Default(), WithMirror(m))
	published := d.Tick(context.Background())

	snap, ok, err := m.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, published, snap.State)
}
