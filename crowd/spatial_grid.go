package crowd

import "crowdnav/geom"

type spatialBucket struct {
	gen    uint64
	agents []*Agent
}

// spatialGrid is the per-tick neighbor index. Buckets persist across ticks
// and carry a generation counter; a stale bucket is truncated on first touch
// instead of reallocated, so a full rebuild costs no new containers.
type spatialGrid struct {
	cellSize    float64
	invCellSize float64
	gen         uint64
	buckets     map[geom.CellKey]*spatialBucket
	occupied    int
}

func newSpatialGrid(cellSize float64) *spatialGrid {
	return &spatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		buckets:     make(map[geom.CellKey]*spatialBucket),
	}
}

// reset starts a new generation. Old bucket contents become stale without
// being visited.
func (g *spatialGrid) reset() {
	g.gen++
	g.occupied = 0
}

func (g *spatialGrid) insert(a *Agent) {
	key := geom.CellOf(a.Position.X, a.Position.Z, g.invCellSize)
	bucket := g.buckets[key]
	if bucket == nil {
		bucket = &spatialBucket{}
		g.buckets[key] = bucket
	}
	if bucket.gen != g.gen {
		bucket.gen = g.gen
		bucket.agents = bucket.agents[:0]
		g.occupied++
	}
	bucket.agents = append(bucket.agents, a)
}

// visitNeighbors walks every agent in the 3×3 cell block around pos. The
// visit callback returns false to stop early.
func (g *spatialGrid) visitNeighbors(pos geom.Vec2, visit func(*Agent) bool) {
	center := geom.CellOf(pos.X, pos.Z, g.invCellSize)
	for row := center.Row - 1; row <= center.Row+1; row++ {
		for col := center.Col - 1; col <= center.Col+1; col++ {
			bucket := g.buckets[geom.CellKey{Col: col, Row: row}]
			if bucket == nil || bucket.gen != g.gen {
				continue
			}
			for _, agent := range bucket.agents {
				if !visit(agent) {
					return
				}
			}
		}
	}
}

// occupiedCells reports how many cells hold at least one agent this tick.
func (g *spatialGrid) occupiedCells() int {
	return g.occupied
}
