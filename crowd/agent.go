package crowd

import (
	"crowdnav/flowfield"
	"crowdnav/geom"
)

// Agent is one simulated body. Position and velocity mutate every tick; the
// destination field is a non-owning reference into the shared registry.
type Agent struct {
	ID       string
	Group    string
	Position geom.Vec2
	Velocity geom.Vec2
	Radius   float64
	MaxSpeed float64

	destKey flowfield.Key
	field   *flowfield.Generator
	hasDest bool
}

// AgentConfig describes a spawn request. An empty ID gets a generated one.
type AgentConfig struct {
	ID       string
	Group    string
	Position geom.Vec2
	Radius   float64
	MaxSpeed float64
}

// AgentSnapshot is a value copy of an agent's public state, safe to hand to
// renderers and telemetry.
type AgentSnapshot struct {
	ID       string    `json:"id"`
	Group    string    `json:"group,omitempty"`
	Position geom.Vec2 `json:"position"`
	Velocity geom.Vec2 `json:"velocity"`
	Radius   float64   `json:"radius"`
	MaxSpeed float64   `json:"maxSpeed"`
}

func (a *Agent) snapshot() AgentSnapshot {
	return AgentSnapshot{
		ID:       a.ID,
		Group:    a.Group,
		Position: a.Position,
		Velocity: a.Velocity,
		Radius:   a.Radius,
		MaxSpeed: a.MaxSpeed,
	}
}
