// Package crowd moves many agents through a bounded world each tick by
// blending shared flow-field guidance with pairwise separation. No agent
// runs its own path search; steering cost scales with distinct destinations
// plus local density.
package crowd

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"crowdnav/flowfield"
	"crowdnav/geom"
	"crowdnav/telemetry"
)

// Config tunes the simulator. Smoothing is a fixed per-tick blend factor,
// deliberately not dt-scaled: steering response is tied to the host's fixed
// tick rate, matching the rest of the engine's frame-driven contract.
type Config struct {
	WorldWidth  float64
	WorldHeight float64

	FieldCellSize     float64
	MaxAgents         int
	PartitionCellSize float64
	FlowWeight        float64
	SeparationWeight  float64
	MaxNeighbors      int
	Smoothing         float64
}

// Stats is the diagnostic snapshot; nothing in the simulation reads it.
type Stats struct {
	Agents       int `json:"agents"`
	FlowFields   int `json:"flowFields"`
	SpatialCells int `json:"spatialCells"`
}

// coincidentEpsilon is the distance below which two agents count as stacked
// and are split along the X axis instead of a degenerate normalized vector.
const coincidentEpsilon = 1e-9

// Simulator owns the agents, the shared flow-field registry, and the
// per-tick spatial index. All methods are single-threaded by contract:
// mutations happen between ticks, never concurrently with Update.
type Simulator struct {
	cfg     Config
	agents  map[string]*Agent
	order   []string
	fields  *flowfield.Registry
	grid    *spatialGrid
	desired []geom.Vec2
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

// New builds an empty simulator for the configured world.
func New(cfg Config, logger *zap.Logger, metrics *telemetry.Metrics) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		cfg:     cfg,
		agents:  make(map[string]*Agent),
		fields:  flowfield.NewRegistry(cfg.WorldWidth, cfg.WorldHeight, cfg.FieldCellSize, logger),
		grid:    newSpatialGrid(cfg.PartitionCellSize),
		logger:  logger,
		metrics: metrics,
	}
}

// AddAgent registers an agent. At capacity the spawn is refused silently:
// the return reports failure and a warning is logged, but a live scene never
// crashes over one spawn too many.
func (s *Simulator) AddAgent(cfg AgentConfig) (string, bool) {
	if len(s.agents) >= s.cfg.MaxAgents {
		s.logger.Warn("agent refused, simulator full",
			zap.Int("maxAgents", s.cfg.MaxAgents))
		s.metrics.AgentRefused()
		return "", false
	}
	id := cfg.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := s.agents[id]; exists {
		s.logger.Warn("agent refused, duplicate id", zap.String("agent", id))
		return "", false
	}
	agent := &Agent{
		ID:       id,
		Group:    cfg.Group,
		Position: cfg.Position,
		Radius:   cfg.Radius,
		MaxSpeed: cfg.MaxSpeed,
	}
	s.agents[id] = agent
	s.order = append(s.order, id)
	return id, true
}

// RemoveAgent drops an agent and releases its destination reference; the
// shared field is evicted when the last agent referencing it leaves.
func (s *Simulator) RemoveAgent(id string) {
	agent, ok := s.agents[id]
	if !ok {
		return
	}
	if agent.hasDest {
		s.fields.Release(agent.destKey)
	}
	delete(s.agents, id)
	for i, other := range s.order {
		if other == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// SetDestination points an agent at (x, z). A non-empty destID names a
// shared explicit destination; otherwise the key derives from the quantized
// goal position. Every agent sharing the resolved key shares one generator
// and its one-time relaxation.
func (s *Simulator) SetDestination(id string, x, z float64, destID string) bool {
	agent, ok := s.agents[id]
	if !ok {
		return false
	}
	var key flowfield.Key
	if destID != "" {
		key = flowfield.ExplicitKey(destID)
	} else {
		key = flowfield.DerivedKey(x, z, s.cfg.FieldCellSize)
	}
	// Acquire before releasing the old key so retargeting within one key
	// never drops the refcount to zero in between.
	field := s.fields.Acquire(key, x, z)
	if agent.hasDest {
		s.fields.Release(agent.destKey)
	}
	agent.destKey = key
	agent.field = field
	agent.hasDest = true
	return true
}

// SetGroupDestination fans one destination out to every agent carrying the
// group tag, all sharing a single derived key.
func (s *Simulator) SetGroupDestination(group string, x, z float64) int {
	moved := 0
	for _, id := range s.order {
		if s.agents[id].Group != group {
			continue
		}
		if s.SetDestination(id, x, z, "") {
			moved++
		}
	}
	return moved
}

// Update advances every agent by dt seconds. The spatial grid is rebuilt
// first, then every desired velocity is computed from the pre-tick
// positions, and only then does any position move, so agent iteration order
// cannot leak into the result.
func (s *Simulator) Update(dt float64) {
	started := time.Now()

	s.grid.reset()
	for _, id := range s.order {
		s.grid.insert(s.agents[id])
	}

	if cap(s.desired) < len(s.order) {
		s.desired = make([]geom.Vec2, len(s.order))
	}
	s.desired = s.desired[:len(s.order)]
	for i, id := range s.order {
		s.desired[i] = s.desiredVelocity(s.agents[id])
	}

	for i, id := range s.order {
		agent := s.agents[id]
		agent.Velocity = agent.Velocity.Add(s.desired[i].Sub(agent.Velocity).Scale(s.cfg.Smoothing))
		if speed := agent.Velocity.Length(); speed > agent.MaxSpeed {
			agent.Velocity = agent.Velocity.Scale(agent.MaxSpeed / speed)
		}
		agent.Position = agent.Position.Add(agent.Velocity.Scale(dt))
	}

	stats := s.Stats()
	s.metrics.RecordStats(stats.Agents, stats.FlowFields, stats.SpatialCells)
	s.metrics.TickObserved(time.Since(started))
}

// desiredVelocity blends the shared field direction with local separation,
// normalized and scaled to the agent's top speed. An agent with neither
// guidance nor neighbors wants to rest.
func (s *Simulator) desiredVelocity(agent *Agent) geom.Vec2 {
	var flow geom.Vec2
	if agent.field != nil {
		flow = agent.field.Vector(agent.Position.X, agent.Position.Z)
	}
	combined := flow.Scale(s.cfg.FlowWeight).Add(s.separation(agent).Scale(s.cfg.SeparationWeight))
	if combined.Length() == 0 {
		return geom.Vec2{}
	}
	return combined.Normalize().Scale(agent.MaxSpeed)
}

// separation sums repulsion from up to MaxNeighbors nearby agents. Each
// neighbor inside twice the combined radius pushes away with strength
// falling linearly from 1 at contact to 0 at the threshold. Stacked agents
// split along ±X by id order so identical spawns separate deterministically.
func (s *Simulator) separation(agent *Agent) geom.Vec2 {
	var sum geom.Vec2
	count := 0
	s.grid.visitNeighbors(agent.Position, func(other *Agent) bool {
		if other == agent {
			return true
		}
		if count >= s.cfg.MaxNeighbors {
			return false
		}
		threshold := 2 * (agent.Radius + other.Radius)
		distance := agent.Position.Dist(other.Position)
		if distance >= threshold {
			return true
		}
		count++
		if distance < coincidentEpsilon {
			push := geom.Vec2{X: 1}
			if agent.ID > other.ID {
				push.X = -1
			}
			sum = sum.Add(push)
			return true
		}
		strength := (threshold - distance) / threshold
		sum = sum.Add(agent.Position.Sub(other.Position).Normalize().Scale(strength))
		return true
	})
	return sum
}

// AddObstacle blocks a cell in every live flow field; a world obstacle
// affects every active destination.
func (s *Simulator) AddObstacle(x, z float64) {
	s.fields.AddObstacle(x, z)
}

// RemoveObstacle unblocks a cell in every live flow field.
func (s *Simulator) RemoveObstacle(x, z float64) {
	s.fields.RemoveObstacle(x, z)
}

// RegenerateFlowFields marks every live field stale; each recomputes on its
// next read.
func (s *Simulator) RegenerateFlowFields() {
	s.fields.Invalidate()
}

// Agent returns a value snapshot of one agent.
func (s *Simulator) Agent(id string) (AgentSnapshot, bool) {
	agent, ok := s.agents[id]
	if !ok {
		return AgentSnapshot{}, false
	}
	return agent.snapshot(), true
}

// Snapshot copies every agent's public state in registration order.
func (s *Simulator) Snapshot() []AgentSnapshot {
	out := make([]AgentSnapshot, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.agents[id].snapshot())
	}
	return out
}

// Field exposes the shared generator for a destination key, mainly for
// diagnostics and tests.
func (s *Simulator) Field(key flowfield.Key) (*flowfield.Generator, bool) {
	return s.fields.Get(key)
}

// Stats reports the diagnostic counters.
func (s *Simulator) Stats() Stats {
	return Stats{
		Agents:       len(s.agents),
		FlowFields:   s.fields.Len(),
		SpatialCells: s.grid.occupiedCells(),
	}
}
