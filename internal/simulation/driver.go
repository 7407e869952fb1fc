package simulation

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"watertank/internal/metrics"
	"watertank/internal/tank"
	"watertank/pkg/protocol"
)

// DefaultTickInterval is the fixed simulation period
const DefaultTickInterval = 300 * time.Millisecond

// mirrorTimeout bounds one mirror write so a slow Redis cannot eat the tick
const mirrorTimeout = 200 * time.Millisecond

// Driver owns the authoritative tank. It holds the only write handle of the
// state channel and the only read handle of the control channel.
type Driver struct {
	tank     tank.State
	state    *StateChannel
	control  *ControlChannel
	rng      *rand.Rand
	interval time.Duration
	mirror   Mirror
	logger   *slog.Logger
}

// DriverOption customizes a Driver
type DriverOption func(*Driver)

// WithTickInterval overrides DefaultTickInterval
func WithTickInterval(d time.Duration) DriverOption {
	return func(dr *Driver) {
		if d > 0 {
			dr.interval = d
		}
	}
}

// WithMirror attaches a snapshot mirror
func WithMirror(m Mirror) DriverOption {
	return func(dr *Driver) { dr.mirror = m }
}

// WithLogger replaces slog.Default()
func WithLogger(l *slog.Logger) DriverOption {
	return func(dr *Driver) { dr.logger = l }
}

// NewDriver wires the driver to its channels. initial should already be
// published on state (NewStateChannel(initial) does that).
func NewDriver(initial tank.State, state *StateChannel, control *ControlChannel, rng *rand.Rand, opts ...DriverOption) *Driver {
	d := &Driver{
		tank:     initial,
		state:    state,
		control:  control,
		rng:      rng,
		interval: DefaultTickInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Interval returns the tick period.
func (d *Driver) Interval() time.Duration {
	return d.interval
}

// Run ticks until ctx is cancelled. Ticks missed while a tick is running are
// skipped, not caught up.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info("simulation_started",
		"tick_interval", d.interval.String(),
		"control_capacity", d.control.Capacity(),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("simulation_stopped", "level", d.tank.Level)
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick applies at most one pending control command, advances the tank by one
// period and publishes the result. Returns the published snapshot.
func (d *Driver) Tick(ctx context.Context) tank.State {
	outflow := d.tank.Outflow
	if cmd, missed, ok := d.control.TryReceive(); ok {
		if missed > 0 {
			d.logger.Warn("control_commands_dropped", "missed", missed)
			metrics.RecordControlDropped(missed)
		}
		outflow = protocol.FromWire(cmd.OutflowRaw, d.tank.MaxOutflow)
	}

	d.tank = d.tank.Step(d.rng, outflow, d.interval.Seconds())
	d.state.Publish(d.tank)
	metrics.RecordTick(d.tank)

	d.logger.Debug("tick",
		"level", d.tank.Level,
		"inflow", d.tank.Inflow,
		"outflow", d.tank.Outflow,
	)

	if d.mirror != nil {
		mctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
		if err := d.mirror.MirrorSnapshot(mctx, d.tank); err != nil {
			d.logger.Warn("snapshot_mirror_failed", "error", err.Error())
		}
		cancel()
	}
	return d.tank
}
