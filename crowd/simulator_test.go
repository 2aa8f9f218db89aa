package crowd

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdnav/flowfield"
	"crowdnav/geom"
)

func testConfig() Config {
	return Config{
		WorldWidth:        100,
		WorldHeight:       100,
		FieldCellSize:     5,
		MaxAgents:         16,
		PartitionCellSize: 10,
		FlowWeight:        1.0,
		SeparationWeight:  1.5,
		MaxNeighbors:      8,
		Smoothing:         0.25,
	}
}

func addAgent(t *testing.T, s *Simulator, id string, x, z float64) string {
	t.Helper()
	got, ok := s.AddAgent(AgentConfig{
		ID:       id,
		Position: geom.Vec2{X: x, Z: z},
		Radius:   1,
		MaxSpeed: 10,
	})
	require.True(t, ok, "spawn of %q should succeed", id)
	return got
}

func TestAddAgentGeneratesIDWhenEmpty(t *testing.T) {
	s := New(testConfig(), nil, nil)
	id, ok := s.AddAgent(AgentConfig{Position: geom.Vec2{X: 10, Z: 10}, Radius: 1, MaxSpeed: 5})
	require.True(t, ok)
	assert.NotEmpty(t, id)
}

func TestCapacityRefusalIsSilent(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAgents = 2
	s := New(cfg, nil, nil)

	addAgent(t, s, "a", 10, 10)
	addAgent(t, s, "b", 20, 20)

	id, ok := s.AddAgent(AgentConfig{ID: "c", Position: geom.Vec2{X: 30, Z: 30}})
	assert.False(t, ok)
	assert.Empty(t, id)
	assert.Equal(t, 2, s.Stats().Agents)

	// A refused spawn must not wedge the tick.
	s.Update(1.0 / 30)
}

func TestDuplicateIDRefused(t *testing.T) {
	s := New(testConfig(), nil, nil)
	addAgent(t, s, "twin", 10, 10)
	_, ok := s.AddAgent(AgentConfig{ID: "twin", Position: geom.Vec2{X: 12, Z: 12}})
	assert.False(t, ok)
	assert.Equal(t, 1, s.Stats().Agents)
}

func TestSharedDestinationUsesOneFlowField(t *testing.T) {
	s := New(testConfig(), nil, nil)
	a := addAgent(t, s, "a", 10, 10)
	b := addAgent(t, s, "b", 20, 10)
	c := addAgent(t, s, "c", 30, 10)

	require.True(t, s.SetDestination(a, 80, 80, ""))
	require.True(t, s.SetDestination(b, 80, 80, ""))
	assert.Equal(t, 1, s.Stats().FlowFields)

	require.True(t, s.SetDestination(c, 80, 80, ""))
	assert.Equal(t, 1, s.Stats().FlowFields, "field count must not scale with agents")
}

func TestExplicitDestinationIDShared(t *testing.T) {
	s := New(testConfig(), nil, nil)
	a := addAgent(t, s, "a", 10, 10)
	b := addAgent(t, s, "b", 90, 90)

	require.True(t, s.SetDestination(a, 50, 50, "rally"))
	require.True(t, s.SetDestination(b, 50, 50, "rally"))
	assert.Equal(t, 1, s.Stats().FlowFields)

	_, ok := s.Field(flowfield.ExplicitKey("rally"))
	assert.True(t, ok)
}

func TestRetargetReleasesOldField(t *testing.T) {
	s := New(testConfig(), nil, nil)
	a := addAgent(t, s, "a", 10, 10)

	require.True(t, s.SetDestination(a, 80, 80, ""))
	require.True(t, s.SetDestination(a, 20, 20, ""))
	assert.Equal(t, 1, s.Stats().FlowFields, "abandoned destination must be evicted")
}

func TestRemoveAgentEvictsLastFieldReference(t *testing.T) {
	s := New(testConfig(), nil, nil)
	a := addAgent(t, s, "a", 10, 10)
	b := addAgent(t, s, "b", 20, 10)
	require.True(t, s.SetDestination(a, 80, 80, ""))
	require.True(t, s.SetDestination(b, 80, 80, ""))

	s.RemoveAgent(a)
	assert.Equal(t, 1, s.Stats().FlowFields)

	s.RemoveAgent(b)
	assert.Equal(t, 0, s.Stats().FlowFields)
	assert.Equal(t, 0, s.Stats().Agents)
}

func TestGroupDestinationFansOut(t *testing.T) {
	s := New(testConfig(), nil, nil)
	_, ok := s.AddAgent(AgentConfig{ID: "r1", Group: "raiders", Position: geom.Vec2{X: 10, Z: 10}, Radius: 1, MaxSpeed: 10})
	require.True(t, ok)
	_, ok = s.AddAgent(AgentConfig{ID: "r2", Group: "raiders", Position: geom.Vec2{X: 20, Z: 10}, Radius: 1, MaxSpeed: 10})
	require.True(t, ok)
	addAgent(t, s, "solo", 30, 10)

	moved := s.SetGroupDestination("raiders", 80, 80)
	assert.Equal(t, 2, moved)
	assert.Equal(t, 1, s.Stats().FlowFields)
}

func TestAgentsMoveTowardDestination(t *testing.T) {
	s := New(testConfig(), nil, nil)
	a := addAgent(t, s, "a", 10, 50)
	require.True(t, s.SetDestination(a, 90, 50, ""))

	for i := 0; i < 60; i++ {
		s.Update(1.0 / 30)
	}

	snap, ok := s.Agent(a)
	require.True(t, ok)
	assert.Greater(t, snap.Position.X, 15.0, "agent should have made progress toward the goal")
}

func TestCoincidentAgentsGetOpposingVelocities(t *testing.T) {
	s := New(testConfig(), nil, nil)
	a := addAgent(t, s, "a", 50, 50)
	b := addAgent(t, s, "b", 50, 50)

	s.Update(1.0 / 30)

	snapA, _ := s.Agent(a)
	snapB, _ := s.Agent(b)
	require.NotZero(t, snapA.Velocity.X)
	require.NotZero(t, snapB.Velocity.X)
	assert.Less(t, snapA.Velocity.X*snapB.Velocity.X, 0.0, "stacked agents must push apart")
}

func TestSeparationKeepsNeighborsApart(t *testing.T) {
	s := New(testConfig(), nil, nil)
	a := addAgent(t, s, "a", 50, 50)
	b := addAgent(t, s, "b", 51, 50)

	before := 1.0
	for i := 0; i < 10; i++ {
		s.Update(1.0 / 30)
	}
	snapA, _ := s.Agent(a)
	snapB, _ := s.Agent(b)
	assert.Greater(t, snapA.Position.Dist(snapB.Position), before)
}

func TestObstacleRemovalRestoresFiniteCost(t *testing.T) {
	cfg := testConfig()
	cfg.FieldCellSize = 10
	s := New(cfg, nil, nil)
	a := addAgent(t, s, "a", 95, 55)
	require.True(t, s.SetDestination(a, 5, 55, ""))

	// Wall the world in half.
	for z := 5.0; z < 100; z += 10 {
		s.AddObstacle(55, z)
	}
	field, ok := s.Field(flowfield.DerivedKey(5, 55, cfg.FieldCellSize))
	require.True(t, ok)
	require.True(t, math.IsInf(field.Cost(95, 55), 1))

	s.RemoveObstacle(55, 55)
	s.RegenerateFlowFields()
	assert.False(t, math.IsInf(field.Cost(95, 55), 1))
}

func TestStatsCountOccupiedSpatialCells(t *testing.T) {
	s := New(testConfig(), nil, nil)
	addAgent(t, s, "a", 5, 5)
	addAgent(t, s, "b", 6, 5)
	addAgent(t, s, "c", 95, 95)

	s.Update(1.0 / 30)
	stats := s.Stats()
	assert.Equal(t, 3, stats.Agents)
	assert.Equal(t, 2, stats.SpatialCells, "two agents share a cell, one sits alone")
}

func TestSnapshotPreservesRegistrationOrder(t *testing.T) {
	s := New(testConfig(), nil, nil)
	addAgent(t, s, "first", 10, 10)
	addAgent(t, s, "second", 20, 20)
	addAgent(t, s, "third", 30, 30)
	s.RemoveAgent("second")

	snaps := s.Snapshot()
	require.Len(t, snaps, 2)
	assert.Equal(t, "first", snaps[0].ID)
	assert.Equal(t, "third", snaps[1].ID)
}

func TestAgentWithoutPathDecaysTowardRest(t *testing.T) {
	s := New(testConfig(), nil, nil)
	a := addAgent(t, s, "a", 50, 50)

	// Give it motion, then leave it with no destination and no neighbors.
	s.agents[a].Velocity = geom.Vec2{X: 10}
	for i := 0; i < 40; i++ {
		s.Update(1.0 / 30)
	}
	snap, _ := s.Agent(a)
	assert.Less(t, snap.Velocity.Length(), 0.1, "velocity should decay toward rest")
}
