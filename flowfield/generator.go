// Package flowfield builds shared direction grids that steer any number of
// agents toward a single goal. One generator serves every agent heading for
// the same destination, so the relaxation cost scales with distinct
// destinations rather than agent count.
package flowfield

import (
	"container/heap"
	"math"

	"go.uber.org/zap"

	"crowdnav/geom"
)

type gridNeighbor struct {
	col      int
	row      int
	cost     float64
	diagonal bool
}

var gridNeighborOffsets = [...]gridNeighbor{
	{col: 0, row: -1, cost: 1, diagonal: false},
	{col: 1, row: 0, cost: 1, diagonal: false},
	{col: 0, row: 1, cost: 1, diagonal: false},
	{col: -1, row: 0, cost: 1, diagonal: false},
	{col: 1, row: -1, cost: math.Sqrt2, diagonal: true},
	{col: 1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: 1, cost: math.Sqrt2, diagonal: true},
	{col: -1, row: -1, cost: math.Sqrt2, diagonal: true},
}

// blockedCost is a large finite sentinel assigned to blocked cells so they
// compare worse than any reachable cell without poisoning float comparisons.
const blockedCost = 1e9

// Generator maintains one direction grid toward one goal. All mutation is
// cheap flag work; the expensive relaxation runs lazily on the next read
// after anything changed.
type Generator struct {
	cols, rows  int
	cellSize    float64
	invCellSize float64
	width       float64
	height      float64

	cost    []float64
	dirX    []float64
	dirZ    []float64
	blocked []bool

	goalIdx int
	dirty   bool

	logger *zap.Logger
}

// NewGenerator sizes a grid over a width×height world. The goal starts
// unset; every cell reports infinite cost until a goal is seeded.
func NewGenerator(width, height, cellSize float64, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	size := cols * rows
	g := &Generator{
		cols:        cols,
		rows:        rows,
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		width:       width,
		height:      height,
		cost:        make([]float64, size),
		dirX:        make([]float64, size),
		dirZ:        make([]float64, size),
		blocked:     make([]bool, size),
		goalIdx:     -1,
		logger:      logger,
	}
	for i := range g.cost {
		g.cost[i] = math.Inf(1)
	}
	return g
}

func (g *Generator) inBounds(col, row int) bool {
	return col >= 0 && row >= 0 && col < g.cols && row < g.rows
}

func (g *Generator) index(col, row int) int {
	return row*g.cols + col
}

func (g *Generator) locate(x, z float64) (int, int, bool) {
	col := int(math.Floor(x * g.invCellSize))
	row := int(math.Floor(z * g.invCellSize))
	if !g.inBounds(col, row) {
		return 0, 0, false
	}
	return col, row, true
}

// SetGoal moves the goal to the cell containing (x, z). The field only goes
// dirty when the goal cell actually changes. A goal outside the grid leaves
// every cell unreachable.
func (g *Generator) SetGoal(x, z float64) {
	idx := -1
	if col, row, ok := g.locate(x, z); ok {
		idx = g.index(col, row)
	}
	if idx == g.goalIdx {
		return
	}
	g.goalIdx = idx
	g.dirty = true
}

// AddObstacle blocks the cell containing (x, z). Out-of-grid positions are
// ignored.
func (g *Generator) AddObstacle(x, z float64) {
	col, row, ok := g.locate(x, z)
	if !ok {
		return
	}
	idx := g.index(col, row)
	if g.blocked[idx] {
		return
	}
	g.blocked[idx] = true
	g.dirty = true
}

// RemoveObstacle unblocks the cell containing (x, z).
func (g *Generator) RemoveObstacle(x, z float64) {
	col, row, ok := g.locate(x, z)
	if !ok {
		return
	}
	idx := g.index(col, row)
	if !g.blocked[idx] {
		return
	}
	g.blocked[idx] = false
	g.dirty = true
}

// Invalidate forces the next read to recompute the field even though no
// local edit happened, e.g. after a world-level obstacle pass.
func (g *Generator) Invalidate() {
	g.dirty = true
}

// diagonalOpen reports whether a diagonal step from (col, row) may pass the
// corner between its two orthogonal cells. Matches the A* corner rule so
// descent never cuts through a blocked corner.
func (g *Generator) diagonalOpen(col, row int, delta gridNeighbor) bool {
	if !delta.diagonal {
		return true
	}
	horizCol, horizRow := col+delta.col, row
	vertCol, vertRow := col, row+delta.row
	if !g.inBounds(horizCol, horizRow) || !g.inBounds(vertCol, vertRow) {
		return false
	}
	return !g.blocked[g.index(horizCol, horizRow)] && !g.blocked[g.index(vertCol, vertRow)]
}

// Update recomputes costs and directions if anything changed since the last
// run. Costs relax outward from the goal (cardinal 1, diagonal √2); each
// reachable cell then points at its cheapest neighbor, normalized to unit
// length. Unreachable cells keep a zero direction and infinite cost.
func (g *Generator) Update() {
	if !g.dirty {
		return
	}
	g.dirty = false

	for i := range g.cost {
		if g.blocked[i] {
			g.cost[i] = blockedCost
		} else {
			g.cost[i] = math.Inf(1)
		}
		g.dirX[i] = 0
		g.dirZ[i] = 0
	}
	if g.goalIdx < 0 || g.blocked[g.goalIdx] {
		return
	}

	g.relax()
	g.descend()
}

func (g *Generator) relax() {
	g.cost[g.goalIdx] = 0
	open := &relaxQueue{{idx: g.goalIdx, cost: 0}}
	heap.Init(open)

	for open.Len() > 0 {
		current := heap.Pop(open).(relaxNode)
		if current.cost > g.cost[current.idx] {
			continue
		}
		col := current.idx % g.cols
		row := current.idx / g.cols
		for _, delta := range gridNeighborOffsets {
			nc := col + delta.col
			nr := row + delta.row
			if !g.inBounds(nc, nr) {
				continue
			}
			if delta.diagonal && !g.diagonalOpen(col, row, delta) {
				continue
			}
			idx := g.index(nc, nr)
			if g.blocked[idx] {
				continue
			}
			next := current.cost + delta.cost
			if next >= g.cost[idx] {
				continue
			}
			g.cost[idx] = next
			heap.Push(open, relaxNode{idx: idx, cost: next})
		}
	}
}

func (g *Generator) descend() {
	for idx := range g.cost {
		if math.IsInf(g.cost[idx], 1) || g.cost[idx] >= blockedCost || idx == g.goalIdx {
			continue
		}
		col := idx % g.cols
		row := idx / g.cols
		best := g.cost[idx]
		bestDX, bestDZ := 0.0, 0.0
		for _, delta := range gridNeighborOffsets {
			nc := col + delta.col
			nr := row + delta.row
			if !g.inBounds(nc, nr) {
				continue
			}
			if delta.diagonal && !g.diagonalOpen(col, row, delta) {
				continue
			}
			nIdx := g.index(nc, nr)
			if g.blocked[nIdx] {
				continue
			}
			if g.cost[nIdx] < best {
				best = g.cost[nIdx]
				bestDX = float64(delta.col)
				bestDZ = float64(delta.row)
			}
		}
		length := math.Hypot(bestDX, bestDZ)
		if length > 0 {
			g.dirX[idx] = bestDX / length
			g.dirZ[idx] = bestDZ / length
		}
	}
}

// Vector returns the unit steering direction at (x, z), recomputing the
// field first if it is stale. Positions outside the grid steer toward the
// grid center so boundary agents drift back in instead of stalling.
func (g *Generator) Vector(x, z float64) geom.Vec2 {
	g.Update()
	col, row, ok := g.locate(x, z)
	if !ok {
		center := geom.Vec2{X: g.width / 2, Z: g.height / 2}
		return center.Sub(geom.Vec2{X: x, Z: z}).Normalize()
	}
	idx := g.index(col, row)
	return geom.Vec2{X: g.dirX[idx], Z: g.dirZ[idx]}
}

// Cost returns the relaxed distance-to-goal at (x, z), +Inf when the cell is
// unreachable or outside the grid.
func (g *Generator) Cost(x, z float64) float64 {
	g.Update()
	col, row, ok := g.locate(x, z)
	if !ok {
		return math.Inf(1)
	}
	return g.cost[g.index(col, row)]
}

// IsBlocked reports whether the cell containing (x, z) is an obstacle.
func (g *Generator) IsBlocked(x, z float64) bool {
	g.Update()
	col, row, ok := g.locate(x, z)
	if !ok {
		return false
	}
	return g.blocked[g.index(col, row)]
}

// Dims returns the grid shape.
func (g *Generator) Dims() (cols, rows int, cellSize float64) {
	return g.cols, g.rows, g.cellSize
}

type relaxNode struct {
	idx  int
	cost float64
}

type relaxQueue []relaxNode

func (q relaxQueue) Len() int { return len(q) }

func (q relaxQueue) Less(i, j int) bool { return q[i].cost < q[j].cost }

func (q relaxQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *relaxQueue) Push(x any) { *q = append(*q, x.(relaxNode)) }

func (q *relaxQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
