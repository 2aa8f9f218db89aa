package flowfield

import (
	"go.uber.org/zap"
)

type registryEntry struct {
	field *Generator
	refs  int
}

// Registry owns the shared generators, one per live destination key.
// Entries are reference counted: the generator for a key is created on the
// first Acquire and dropped on the last Release, so abandoned destinations
// do not accumulate for the lifetime of the process.
type Registry struct {
	width    float64
	height   float64
	cellSize float64
	entries  map[Key]*registryEntry
	logger   *zap.Logger
}

// NewRegistry creates an empty registry for a width×height world.
func NewRegistry(width, height, cellSize float64, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		width:    width,
		height:   height,
		cellSize: cellSize,
		entries:  make(map[Key]*registryEntry),
		logger:   logger,
	}
}

// Acquire returns the generator for key, creating it on first use, and
// takes one reference. The goal is re-seeded every call; SetGoal no-ops
// unless the goal cell actually moved, and an explicit destination that did
// move should retarget everyone sharing it.
func (r *Registry) Acquire(key Key, x, z float64) *Generator {
	entry, ok := r.entries[key]
	if !ok {
		entry = &registryEntry{field: NewGenerator(r.width, r.height, r.cellSize, r.logger)}
		r.entries[key] = entry
		r.logger.Debug("flow field created", zap.Stringer("key", key))
	}
	entry.field.SetGoal(x, z)
	entry.refs++
	return entry.field
}

// Release drops one reference on key. The generator is evicted when the last
// reference goes away.
func (r *Registry) Release(key Key) {
	entry, ok := r.entries[key]
	if !ok {
		return
	}
	entry.refs--
	if entry.refs > 0 {
		return
	}
	delete(r.entries, key)
	r.logger.Debug("flow field evicted", zap.Stringer("key", key))
}

// Get looks up the generator for key without touching its reference count.
func (r *Registry) Get(key Key) (*Generator, bool) {
	entry, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return entry.field, true
}

// Len reports the number of live generators.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Each visits every live generator.
func (r *Registry) Each(fn func(*Generator)) {
	for _, entry := range r.entries {
		fn(entry.field)
	}
}

// AddObstacle blocks a cell in every live field; a world obstacle affects
// every destination.
func (r *Registry) AddObstacle(x, z float64) {
	for _, entry := range r.entries {
		entry.field.AddObstacle(x, z)
	}
}

// RemoveObstacle unblocks a cell in every live field.
func (r *Registry) RemoveObstacle(x, z float64) {
	for _, entry := range r.entries {
		entry.field.RemoveObstacle(x, z)
	}
}

// Invalidate marks every live field stale; each recomputes on its next read.
func (r *Registry) Invalidate() {
	for _, entry := range r.entries {
		entry.field.Invalidate()
	}
}
