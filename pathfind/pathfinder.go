package pathfind

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"crowdnav/geom"
	"crowdnav/telemetry"
)

// Config carries the fixed partition sizes and cache bounds. Sizes must
// satisfy ZoneSize > ClusterSize > CellSize.
type Config struct {
	ZoneSize    float64
	ClusterSize float64
	CellSize    float64

	MaxCacheSize int
	CacheTTL     time.Duration
}

// Path is the result of one query. An unreachable goal yields no waypoints
// and infinite cost; that is a normal outcome, not an error.
type Path struct {
	Waypoints []geom.Vec2
	Cost      float64
	Level     int
	Cached    bool
}

// Request is one entry of a batched query. Priority orders the batch;
// higher runs first.
type Request struct {
	ID       string    `json:"id"`
	Start    geom.Vec2 `json:"start"`
	Goal     geom.Vec2 `json:"goal"`
	Priority float64   `json:"priority"`
}

// HierarchicalPathfinder answers route queries over three fixed-resolution
// graphs. Short queries search the cell graph directly; longer ones search a
// coarse graph and refine only the first leg, trading far-from-start detail
// for bounded per-query cost.
type HierarchicalPathfinder struct {
	cfg      Config
	zones    *levelGraph
	clusters *levelGraph
	cells    *levelGraph
	blocked  map[int]struct{}
	cache    *pathCache
	logger   *zap.Logger
	metrics  *telemetry.Metrics
}

// New builds the three graphs once for a width×height world.
func New(width, height float64, cfg Config, logger *zap.Logger, metrics *telemetry.Metrics) *HierarchicalPathfinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &HierarchicalPathfinder{
		cfg:      cfg,
		zones:    buildLevelGraph(LevelZone, width, height, cfg.ZoneSize),
		clusters: buildLevelGraph(LevelCluster, width, height, cfg.ClusterSize),
		cells:    buildLevelGraph(LevelCell, width, height, cfg.CellSize),
		blocked:  make(map[int]struct{}),
		cache:    newPathCache(cfg.MaxCacheSize, cfg.CacheTTL),
		logger:   logger,
		metrics:  metrics,
	}
	p.logger.Debug("hierarchy built",
		zap.Int("zones", len(p.zones.centers)),
		zap.Int("clusters", len(p.clusters.centers)),
		zap.Int("cells", len(p.cells.centers)))
	return p
}

func (p *HierarchicalPathfinder) graphFor(level int) *levelGraph {
	switch level {
	case LevelZone:
		return p.zones
	case LevelCluster:
		return p.clusters
	default:
		return p.cells
	}
}

// blockedFor returns the obstacle set for a level. Only the finest level
// tracks obstacles; coarse nodes span too much area to block outright.
func (p *HierarchicalPathfinder) blockedFor(level int) map[int]struct{} {
	if level == LevelCell {
		return p.blocked
	}
	return nil
}

// FindPath routes from start to goal, consulting the cache first. Search
// resolution follows query distance: under 2×ClusterSize the cell graph is
// searched directly, under 2×ZoneSize the cluster graph seeds the search,
// beyond that the zone graph does.
func (p *HierarchicalPathfinder) FindPath(start, goal geom.Vec2) Path {
	key := cacheKey{start: p.cells.locate(start), goal: p.cells.locate(goal)}
	if entry, ok := p.cache.get(key); ok {
		p.metrics.CacheHit()
		return Path{
			Waypoints: append([]geom.Vec2(nil), entry.waypoints...),
			Cost:      entry.cost,
			Level:     entry.level,
			Cached:    true,
		}
	}

	path := p.compute(start, goal)
	p.metrics.PathComputed()
	if len(path.Waypoints) > 0 {
		p.cache.put(key, append([]geom.Vec2(nil), path.Waypoints...), path.Cost, path.Level)
	}
	return path
}

func (p *HierarchicalPathfinder) compute(start, goal geom.Vec2) Path {
	distance := start.Dist(goal)
	switch {
	case distance < 2*p.cfg.ClusterSize:
		return p.searchSingle(LevelCell, start, goal)
	case distance < 2*p.cfg.ZoneSize:
		return p.searchRefined(LevelCluster, start, goal)
	default:
		return p.searchRefined(LevelZone, start, goal)
	}
}

// searchSingle runs plain A* at one level.
func (p *HierarchicalPathfinder) searchSingle(level int, start, goal geom.Vec2) Path {
	g := p.graphFor(level)
	nodes, cost, ok := astar(g, g.locate(start), g.locate(goal), p.blockedFor(level))
	if !ok {
		return Path{Cost: math.Inf(1), Level: level}
	}
	waypoints := make([]geom.Vec2, len(nodes))
	for i, id := range nodes {
		waypoints[i] = g.center(id)
	}
	return Path{Waypoints: waypoints, Cost: cost, Level: level}
}

// searchRefined runs A* at the coarse level, then re-searches only the leg
// from start to the second coarse waypoint one level finer. The remaining
// coarse waypoints ride along unmodified; detail improves as the agent
// advances and re-queries.
func (p *HierarchicalPathfinder) searchRefined(coarseLevel int, start, goal geom.Vec2) Path {
	coarse := p.graphFor(coarseLevel)
	nodes, coarseCost, ok := astar(coarse, coarse.locate(start), coarse.locate(goal), nil)
	if !ok {
		// Coarse connectivity said no, but the coarse graph ignores
		// obstacles; the cell graph is the authority.
		return p.searchSingle(LevelCell, start, goal)
	}
	finerLevel := coarseLevel + 1
	if len(nodes) < 2 {
		return p.searchSingle(finerLevel, start, goal)
	}

	joint := coarse.center(nodes[1])
	refined := p.searchSingle(finerLevel, start, joint)
	if len(refined.Waypoints) == 0 {
		return p.searchSingle(LevelCell, start, goal)
	}

	suffixCost := coarseCost - coarse.center(nodes[0]).Dist(joint)
	waypoints := refined.Waypoints
	for _, id := range nodes[2:] {
		waypoints = append(waypoints, coarse.center(id))
	}
	return Path{Waypoints: waypoints, Cost: refined.Cost + suffixCost, Level: finerLevel}
}

// FindPathsBatched resolves a batch under a per-call budget. Cache hits are
// always answered; at most maxPathsPerFrame fresh searches run, highest
// priority first. Requests past the budget are simply absent from the result
// this call; callers hold their stale path and retry next frame.
func (p *HierarchicalPathfinder) FindPathsBatched(requests []Request, maxPathsPerFrame int) map[string]Path {
	ordered := append([]Request(nil), requests...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	results := make(map[string]Path, len(ordered))
	fresh := 0
	for _, req := range ordered {
		key := cacheKey{start: p.cells.locate(req.Start), goal: p.cells.locate(req.Goal)}
		if entry, ok := p.cache.get(key); ok {
			p.metrics.CacheHit()
			results[req.ID] = Path{
				Waypoints: append([]geom.Vec2(nil), entry.waypoints...),
				Cost:      entry.cost,
				Level:     entry.level,
				Cached:    true,
			}
			continue
		}
		if fresh >= maxPathsPerFrame {
			continue
		}
		fresh++
		results[req.ID] = p.FindPath(req.Start, req.Goal)
	}
	return results
}

// AddObstacle blocks the finest-level node containing (x, z) and drops any
// cached path recorded near the change.
func (p *HierarchicalPathfinder) AddObstacle(x, z float64) {
	id := p.cells.locate(geom.Vec2{X: x, Z: z})
	p.blocked[id] = struct{}{}
	p.cache.invalidateNear(p.cells.center(id), 3*p.cfg.CellSize)
}

// RemoveObstacle unblocks the finest-level node containing (x, z). Cached
// paths near the change are dropped too; a detour that is suddenly
// avoidable is as stale as one that is suddenly blocked.
func (p *HierarchicalPathfinder) RemoveObstacle(x, z float64) {
	id := p.cells.locate(geom.Vec2{X: x, Z: z})
	delete(p.blocked, id)
	p.cache.invalidateNear(p.cells.center(id), 3*p.cfg.CellSize)
}

// CachedPaths reports the number of live cache entries.
func (p *HierarchicalPathfinder) CachedPaths() int {
	return p.cache.len()
}
