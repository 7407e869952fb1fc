package dto

import (
	"time"

	"watertank/internal/simulation"
	"watertank/internal/tank"
	"watertank/pkg/protocol"
)

// DTOs for the read-only tank status API

// WireValues are the registers a controller would see for the same snapshot
type WireValues struct {
	TankLevel  uint16 `json:"tank_level"`
	TankInflow uint16 `json:"tank_inflow"`
}

type TankResponse struct {
	Version  uint64     `json:"version"`
	State    tank.State `json:"state"`
	Fill     float64    `json:"fill"`       // level / height
	Capacity float64    `json:"capacity_l"` // litres when full
	Wire     WireValues `json:"wire"`
}

func TankFromState(s tank.State, version uint64) TankResponse {
	return TankResponse{
		Version:  version,
		State:    s,
		Fill:     s.Fill(),
		Capacity: s.Volume() / tank.LiterToCubicMM,
		Wire: WireValues{
			TankLevel:  protocol.ToWire(s.Level, s.Height),
			TankInflow: protocol.ToWire(s.Inflow, s.MaxInflow),
		},
	}
}

// MirrorResponse is what the Redis mirror last stored
type MirrorResponse struct {
	Tick      uint64     `json:"tick"`
	UpdatedAt time.Time  `json:"updated_at"`
	State     tank.State `json:"state"`
}

func MirrorFromSnapshot(snap simulation.MirroredSnapshot) MirrorResponse {
	return MirrorResponse{
		Tick:      snap.Tick,
		UpdatedAt: snap.UpdatedAt,
		State:     snap.State,
	}
}

// WaitQuery binds the long-poll parameters of GET /api/tank
type WaitQuery struct {
	After *uint64       `form:"after"` // return once version > after
	Wait  time.Duration `form:"wait"`  // upper bound, e.g. 2s
}
