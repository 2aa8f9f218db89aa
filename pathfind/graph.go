// Package pathfind provides point-to-point routes over a three-level graph
// hierarchy. Long queries run A* on a coarse graph and refine only the
// segment nearest the start, so per-query cost stays bounded regardless of
// total path length.
package pathfind

import (
	"math"

	"crowdnav/geom"
)

// Graph levels, coarsest first.
const (
	LevelZone    = 1
	LevelCluster = 2
	LevelCell    = 3
)

// levelGraph is one resolution of the hierarchy: a uniform partition of the
// world into size×size nodes with precomputed adjacency. The zone level is
// 4-connected; cluster and cell levels are 8-connected.
type levelGraph struct {
	level     int
	size      float64
	invSize   float64
	cols      int
	rows      int
	centers   []geom.Vec2
	neighbors [][]int32
}

// octileOffsets lists the cardinal moves first so the zone level can take
// the 4-connected prefix.
var octileOffsets = [8][2]int{
	{0, -1}, {1, 0}, {0, 1}, {-1, 0},
	{1, -1}, {1, 1}, {-1, 1}, {-1, -1},
}

func buildLevelGraph(level int, width, height, size float64) *levelGraph {
	cols := int(math.Ceil(width / size))
	rows := int(math.Ceil(height / size))
	if cols <= 0 {
		cols = 1
	}
	if rows <= 0 {
		rows = 1
	}
	g := &levelGraph{
		level:     level,
		size:      size,
		invSize:   1.0 / size,
		cols:      cols,
		rows:      rows,
		centers:   make([]geom.Vec2, cols*rows),
		neighbors: make([][]int32, cols*rows),
	}

	offsets := octileOffsets[:]
	if level == LevelZone {
		offsets = octileOffsets[:4]
	}

	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			id := row*cols + col
			g.centers[id] = geom.Vec2{
				X: (float64(col) + 0.5) * size,
				Z: (float64(row) + 0.5) * size,
			}
			adj := make([]int32, 0, len(offsets))
			for _, delta := range offsets {
				nc := col + delta[0]
				nr := row + delta[1]
				if nc < 0 || nr < 0 || nc >= cols || nr >= rows {
					continue
				}
				adj = append(adj, int32(nr*cols+nc))
			}
			g.neighbors[id] = adj
		}
	}
	return g
}

// locate clamps a world position into the grid and returns its node id.
func (g *levelGraph) locate(p geom.Vec2) int {
	col := int(math.Floor(p.X * g.invSize))
	row := int(math.Floor(p.Z * g.invSize))
	if col < 0 {
		col = 0
	}
	if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	}
	if row >= g.rows {
		row = g.rows - 1
	}
	return row*g.cols + col
}

func (g *levelGraph) center(id int) geom.Vec2 {
	return g.centers[id]
}
