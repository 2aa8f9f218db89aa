package flowfield

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoalCellHasZeroCostAndDirection(t *testing.T) {
	g := NewGenerator(10, 10, 1, nil)
	g.SetGoal(5.5, 5.5)

	assert.Equal(t, 0.0, g.Cost(5.5, 5.5))
	assert.Equal(t, 0.0, g.Vector(5.5, 5.5).Length())
}

func TestCostsGrowAwayFromGoal(t *testing.T) {
	g := NewGenerator(10, 10, 1, nil)
	g.SetGoal(0.5, 0.5)

	assert.InDelta(t, 1.0, g.Cost(1.5, 0.5), 1e-9)
	assert.InDelta(t, math.Sqrt2, g.Cost(1.5, 1.5), 1e-9)
	assert.Greater(t, g.Cost(9.5, 9.5), g.Cost(5.5, 5.5))
}

func TestDirectionsAreUnitLength(t *testing.T) {
	g := NewGenerator(8, 8, 1, nil)
	g.SetGoal(4.5, 4.5)
	g.AddObstacle(2.5, 2.5)

	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			x := float64(col) + 0.5
			z := float64(row) + 0.5
			v := g.Vector(x, z)
			if v.Length() == 0 {
				continue
			}
			assert.InDelta(t, 1.0, v.Length(), 1e-9, "cell %d,%d", col, row)
		}
	}
}

func TestDetourAroundBlockedCell(t *testing.T) {
	g := NewGenerator(4, 4, 1, nil)
	g.SetGoal(0.5, 0.5)
	g.AddObstacle(1.5, 0.5)

	// The straight-line route from (2,0) to the goal runs through the
	// blocked cell; the field must route around it instead.
	v := g.Vector(2.5, 0.5)
	require.NotZero(t, v.Length())
	assert.Greater(t, v.Z, 0.0, "expected a detour off the blocked row, got %+v", v)
}

func TestGreedyDescentReachesGoalOnOpenGrid(t *testing.T) {
	const cols, rows = 12, 12
	g := NewGenerator(cols, rows, 1, nil)
	g.SetGoal(6.5, 6.5)

	col, row := 0, 0
	for step := 0; step < cols+rows; step++ {
		if col == 6 && row == 6 {
			return
		}
		v := g.Vector(float64(col)+0.5, float64(row)+0.5)
		require.NotZero(t, v.Length(), "stalled at %d,%d", col, row)
		col += stepSign(v.X)
		row += stepSign(v.Z)
	}
	t.Fatalf("descent did not reach the goal within %d steps, ended at %d,%d", cols+rows, col, row)
}

func stepSign(component float64) int {
	if component > 0.3 {
		return 1
	}
	if component < -0.3 {
		return -1
	}
	return 0
}

func TestUnreachableCellsKeepZeroDirectionAndInfiniteCost(t *testing.T) {
	g := NewGenerator(6, 6, 1, nil)
	g.SetGoal(0.5, 0.5)
	// Wall off the right column entirely.
	for row := 0; row < 6; row++ {
		g.AddObstacle(4.5, float64(row)+0.5)
	}

	assert.True(t, math.IsInf(g.Cost(5.5, 2.5), 1))
	assert.Equal(t, 0.0, g.Vector(5.5, 2.5).Length())
}

func TestOutOfGridVectorPointsTowardCenter(t *testing.T) {
	g := NewGenerator(10, 10, 1, nil)
	g.SetGoal(5.5, 5.5)

	v := g.Vector(-5, 5)
	require.NotZero(t, v.Length())
	assert.Greater(t, v.X, 0.0)

	v = g.Vector(5, 25)
	require.NotZero(t, v.Length())
	assert.Less(t, v.Z, 0.0)
}

func TestGoalOutsideGridRelaxesNothing(t *testing.T) {
	g := NewGenerator(6, 6, 1, nil)
	g.SetGoal(-10, -10)

	assert.True(t, math.IsInf(g.Cost(2.5, 2.5), 1))
	assert.Equal(t, 0.0, g.Vector(2.5, 2.5).Length())
}

func TestObstacleToggleRestoresReachability(t *testing.T) {
	g := NewGenerator(6, 3, 1, nil)
	g.SetGoal(0.5, 0.5)
	for row := 0; row < 3; row++ {
		g.AddObstacle(2.5, float64(row)+0.5)
	}
	require.True(t, math.IsInf(g.Cost(4.5, 1.5), 1))

	g.RemoveObstacle(2.5, 1.5)
	assert.False(t, math.IsInf(g.Cost(4.5, 1.5), 1))
}

func TestSetGoalSameCellStaysClean(t *testing.T) {
	g := NewGenerator(10, 10, 1, nil)
	g.SetGoal(5.5, 5.5)
	g.Update()
	require.False(t, g.dirty)

	g.SetGoal(5.9, 5.1) // same cell
	assert.False(t, g.dirty)

	g.SetGoal(7.5, 5.5)
	assert.True(t, g.dirty)
}
