package simulation

import (
	"sync"
	"sync/atomic"

	"watertank/internal/tank"
)

// StateReader is the read side of the state channel handed to every connection.
type StateReader interface {
	Latest() tank.State
}

// StateChannel holds the most recently published tank snapshot.
// One writer (the driver) overwrites the slot, any number of readers copy
// it out without blocking and without consuming it.
type StateChannel struct {
	current atomic.Pointer[tank.State]
	version atomic.Uint64

	mu      sync.Mutex
	changed chan struct{} // closed and replaced on every publish
}

// NewStateChannel creates the channel holding the initial snapshot.
func NewStateChannel(initial tank.State) *StateChannel {
	sc := &StateChannel{changed: make(chan struct{})}
	sc.current.Store(&initial)
	return sc
}

// Publish overwrites the slot. Never blocks on readers.
func (sc *StateChannel) Publish(s tank.State) {
	snapshot := s // fresh copy per publish; readers keep the old pointer if they hold one
	sc.current.Store(&snapshot)
	sc.version.Add(1)

	sc.mu.Lock()
	close(sc.changed)
	sc.changed = make(chan struct{})
	sc.mu.Unlock()
}

// Latest returns a copy of the newest snapshot.
func (sc *StateChannel) Latest() tank.State {
	return *sc.current.Load()
}

// Version counts publishes since creation.
func (sc *StateChannel) Version() uint64 {
	return sc.version.Load()
}

// Changed returns a channel that is closed on the next Publish.
func (sc *StateChannel) Changed() <-chan struct{} {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.changed
}
