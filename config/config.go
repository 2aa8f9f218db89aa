// Package config loads and validates the engine tuning parameters.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine tuning surface.
type Config struct {
	World    World    `yaml:"world"`
	Field    Field    `yaml:"flowField"`
	Pathfind Pathfind `yaml:"pathfind"`
	Crowd    Crowd    `yaml:"crowd"`
	Server   Server   `yaml:"server"`
}

// World bounds the playable area.
type World struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Field tunes the shared flow-field grids.
type Field struct {
	CellSize float64 `yaml:"cellSize"`
}

// Pathfind tunes the hierarchy partition sizes and the path cache.
type Pathfind struct {
	ZoneSize         float64  `yaml:"zoneSize"`
	ClusterSize      float64  `yaml:"clusterSize"`
	CellSize         float64  `yaml:"cellSize"`
	MaxCacheSize     int      `yaml:"maxCacheSize"`
	CacheTTL         Duration `yaml:"cacheTTL"`
	MaxPathsPerFrame int      `yaml:"maxPathsPerFrame"`
}

// Duration wraps time.Duration so YAML accepts "5s" style strings as well
// as raw nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", raw, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var nanos int64
	if err := value.Decode(&nanos); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or nanoseconds: %w", err)
	}
	*d = Duration(nanos)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Crowd tunes the steering simulator.
type Crowd struct {
	MaxAgents         int     `yaml:"maxAgents"`
	PartitionCellSize float64 `yaml:"partitionCellSize"`
	FlowWeight        float64 `yaml:"flowWeight"`
	SeparationWeight  float64 `yaml:"separationWeight"`
	MaxNeighbors      int     `yaml:"maxNeighbors"`
	Smoothing         float64 `yaml:"smoothing"`
}

// Server tunes the host loop.
type Server struct {
	Addr     string `yaml:"addr"`
	TickRate int    `yaml:"tickRate"`
}

// Default returns the tuning used when no file overrides it.
func Default() Config {
	return Config{
		World: World{Width: 800, Height: 600},
		Field: Field{CellSize: 10},
		Pathfind: Pathfind{
			ZoneSize:         100,
			ClusterSize:      50,
			CellSize:         10,
			MaxCacheSize:     100,
			CacheTTL:         Duration(5 * time.Second),
			MaxPathsPerFrame: 10,
		},
		Crowd: Crowd{
			MaxAgents:         200,
			PartitionCellSize: 20,
			FlowWeight:        1.0,
			SeparationWeight:  1.5,
			MaxNeighbors:      8,
			Smoothing:         0.25,
		},
		Server: Server{Addr: ":8090", TickRate: 30},
	}
}

// Load reads a YAML file over the defaults. A missing path returns the
// defaults untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects tunings the engine cannot run with.
func (c Config) Validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("world dimensions must be positive, got %.1f×%.1f", c.World.Width, c.World.Height)
	}
	if c.Field.CellSize <= 0 {
		return fmt.Errorf("flow-field cell size must be positive, got %.1f", c.Field.CellSize)
	}
	if c.Pathfind.CellSize <= 0 {
		return fmt.Errorf("pathfind cell size must be positive, got %.1f", c.Pathfind.CellSize)
	}
	if !(c.Pathfind.ZoneSize > c.Pathfind.ClusterSize && c.Pathfind.ClusterSize > c.Pathfind.CellSize) {
		return fmt.Errorf("partition sizes must strictly shrink per level: zone %.1f, cluster %.1f, cell %.1f",
			c.Pathfind.ZoneSize, c.Pathfind.ClusterSize, c.Pathfind.CellSize)
	}
	if c.Crowd.MaxAgents <= 0 {
		return fmt.Errorf("maxAgents must be positive, got %d", c.Crowd.MaxAgents)
	}
	if c.Crowd.PartitionCellSize <= 0 {
		return fmt.Errorf("partition cell size must be positive, got %.1f", c.Crowd.PartitionCellSize)
	}
	if c.Server.TickRate <= 0 {
		return fmt.Errorf("tick rate must be positive, got %d", c.Server.TickRate)
	}
	return nil
}
