package simulation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"watertank/internal/tank"
)

// Mirror receives every published snapshot. Errors are logged by the driver
// and never stop the simulation.
type Mirror interface {
	MirrorSnapshot(ctx context.Context, s tank.State) error
}

// MirroredSnapshot is the JSON document stored in Redis
type MirroredSnapshot struct {
	tank.State
	Tick      uint64    `json:"tick"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisMirror keeps the latest snapshot under one key so dashboards can read
// the tank without speaking the TCP protocol. Only the newest value is kept.
type RedisMirror struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	tick   uint64
}

// NewRedisMirror connects to redisURL (redis://host:port/db) and verifies the connection.
func NewRedisMirror(redisURL, key string, ttl time.Duration) (*RedisMirror, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	rdb := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisMirror{client: rdb, key: key, ttl: ttl}, nil
}

// MirrorSnapshot overwrites the key with s. Called only from the driver goroutine.
func (m *RedisMirror) MirrorSnapshot(ctx context.Context, s tank.State) error {
	if m == nil || m.client == nil {
		// mirror disabled
		return nil
	}
	m.tick++
	data, err := json.Marshal(MirroredSnapshot{State: s, Tick: m.tick, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return m.client.Set(ctx, m.key, data, m.ttl).Err()
}

// Load reads the mirrored snapshot back; ok is false when the key is absent.
func (m *RedisMirror) Load(ctx context.Context) (snap MirroredSnapshot, ok bool, err error) {
	if m == nil || m.client == nil {
		return snap, false, nil
	}
	data, err := m.client.Get(ctx, m.key).Bytes()
	if err == redis.Nil {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return snap, false, fmt.Errorf("invalid snapshot in redis key %s: %w", m.key, err)
	}
	return snap, true, nil
}

func (m *RedisMirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}
