package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nav.yaml")
	doc := `
world:
  width: 1600
  height: 1200
pathfind:
  cacheTTL: 30s
  maxCacheSize: 25
crowd:
  maxAgents: 64
server:
  addr: ":9999"
  tickRate: 60
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1600.0, cfg.World.Width)
	assert.Equal(t, 1200.0, cfg.World.Height)
	assert.Equal(t, 30*time.Second, cfg.Pathfind.CacheTTL.Std())
	assert.Equal(t, 25, cfg.Pathfind.MaxCacheSize)
	assert.Equal(t, 64, cfg.Crowd.MaxAgents)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 60, cfg.Server.TickRate)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Crowd.Smoothing, cfg.Crowd.Smoothing)
	assert.Equal(t, Default().Pathfind.ZoneSize, cfg.Pathfind.ZoneSize)
}

func TestValidateRejectsNonShrinkingPartitions(t *testing.T) {
	cfg := Default()
	cfg.Pathfind.ClusterSize = cfg.Pathfind.ZoneSize
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pathfind.CellSize = cfg.Pathfind.ClusterSize + 1
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveSizes(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"world width":    func(c *Config) { c.World.Width = 0 },
		"field cell":     func(c *Config) { c.Field.CellSize = -1 },
		"pathfind cell":  func(c *Config) { c.Pathfind.CellSize = 0 },
		"max agents":     func(c *Config) { c.Crowd.MaxAgents = 0 },
		"partition cell": func(c *Config) { c.Crowd.PartitionCellSize = 0 },
		"tick rate":      func(c *Config) { c.Server.TickRate = 0 },
	} {
		cfg := Default()
		mutate(&cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestLoadRejectsUnreadableFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
