package tcp

import (
	"watertank/internal/simulation"
	"watertank/internal/tank"
	"watertank/pkg/protocol"
)

// commandFromPayload turns a decoded request into a control command.
// Out of range registers saturate to [0, 65535].
func commandFromPayload(p protocol.Payload) simulation.ControlCommand {
	return simulation.ControlCommand{
		OutflowRaw:  protocol.Saturate(p.X),
		SetpointRaw: protocol.Saturate(p.Y),
	}
}

// responseFromState encodes a snapshot as the input-register response
func responseFromState(s tank.State) protocol.Response {
	return protocol.Response{
		MsgType:    protocol.ResponseType,
		Address:    0,
		TankLevel:  protocol.ToWire(s.Level, s.Height),
		TankInflow: protocol.ToWire(s.Inflow, s.MaxInflow),
	}
}
