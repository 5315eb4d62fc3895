package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/chase/pkg/pool"
)

// Config defines configuration for the chase CLI.
type Config struct {
	Bucket       string                `yaml:"bucket"`
	Pool         string                `yaml:"pool"`
	Workers      int                   `yaml:"workers"`
	MaxDownloads int                   `yaml:"max_downloads"`
	Progress     bool                  `yaml:"progress"`
	SaveMetainfo bool                  `yaml:"save_metainfo"`
	Pools        map[string]PoolConfig `yaml:"pools"`
}

// PoolConfig describes one dataset layout: where its shards live and how
// resource IDs map onto them.
type PoolConfig struct {
	// BaseDir is the directory of the deterministic shard tree.
	BaseDir string `yaml:"base_dir"`

	// BaseLevels are the modulo-cut depths to try, in priority order.
	BaseLevels []int `yaml:"base_levels"`

	// Naming selects the local naming policy for materialized files:
	// "basename" (default) or "by-id".
	Naming string `yaml:"naming"`

	// MaxCachedShards bounds the shard index cache. 0 uses the default.
	MaxCachedShards int `yaml:"max_cached_shards"`

	// UpdatePrefix, when set, appends dynamically discovered update
	// archives under this prefix as fallback candidates.
	UpdatePrefix string `yaml:"update_prefix"`

	// UpdateModulo filters update archives to those whose name ends in
	// "-<id mod UpdateModulo>.tar". 0 offers every update archive.
	UpdateModulo int `yaml:"update_modulo"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Pool:    "images",
		Workers: 12,
		Pools: map[string]PoolConfig{
			"images": {
				BaseDir:    "images",
				BaseLevels: []int{3},
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file, layered over defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	return Default().Merge(loaded), nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CHASE_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("CHASE_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("CHASE_POOL"); v != "" {
		c.Pool = v
	}
	if v := os.Getenv("CHASE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CHASE_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("CHASE_MAX_DOWNLOADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CHASE_MAX_DOWNLOADS: %w", err)
		}
		c.MaxDownloads = n
	}
	if v := os.Getenv("CHASE_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("CHASE_SAVE_METAINFO"); v != "" {
		c.SaveMetainfo = v == "true" || v == "1"
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	pc, ok := c.Pools[c.Pool]
	if !ok {
		return fmt.Errorf("config: unknown pool %q", c.Pool)
	}
	if pc.BaseDir == "" {
		return fmt.Errorf("config: pool %q: base_dir is required", c.Pool)
	}
	if len(pc.BaseLevels) == 0 {
		return fmt.Errorf("config: pool %q: base_levels is required", c.Pool)
	}
	for _, level := range pc.BaseLevels {
		if level <= 0 || level > 18 {
			return fmt.Errorf("config: pool %q: base level %d out of range", c.Pool, level)
		}
	}
	switch pc.Naming {
	case "", "basename", "by-id":
	default:
		return fmt.Errorf("config: pool %q: unknown naming policy %q", c.Pool, pc.Naming)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored; pool sections merge by name.
func (c Config) Merge(override Config) Config {
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Pool != "" {
		c.Pool = override.Pool
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.MaxDownloads != 0 {
		c.MaxDownloads = override.MaxDownloads
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.SaveMetainfo {
		c.SaveMetainfo = override.SaveMetainfo
	}
	if len(override.Pools) > 0 {
		merged := make(map[string]PoolConfig, len(c.Pools)+len(override.Pools))
		for name, pc := range c.Pools {
			merged[name] = pc
		}
		for name, pc := range override.Pools {
			merged[name] = pc
		}
		c.Pools = merged
	}
	return c
}

// BuildPool constructs the selected pool over the given store. Validate
// must have passed first.
func (c *Config) BuildPool(store pool.ArchiveStore, logger *zap.Logger) (*pool.Pool, error) {
	pc := c.Pools[c.Pool]

	var opts []pool.Option
	if logger != nil {
		opts = append(opts, pool.WithLogger(logger))
	}
	if pc.MaxCachedShards > 0 {
		opts = append(opts, pool.WithMaxCachedShards(pc.MaxCachedShards))
	}
	if pc.Naming == "by-id" {
		opts = append(opts, pool.WithNaming(pool.RenameByID))
	}
	if pc.UpdatePrefix != "" {
		opts = append(opts, pool.WithCandidates(
			pool.UpdateArchiveCandidates(store, pc.UpdatePrefix, updateMatcher(pc.UpdateModulo)),
		))
	}

	return pool.New(store, pool.ModuloCutLocator{
		BaseDir: pc.BaseDir,
		Levels:  pc.BaseLevels,
	}, opts...)
}

// updateMatcher accepts update archives whose name ends in the ID's modulo
// suffix, e.g. "-7.tar" for ID 1237 with modulo 10.
func updateMatcher(modulo int) func(id pool.ResourceID, shard string) bool {
	if modulo <= 0 {
		return nil
	}
	return func(id pool.ResourceID, shard string) bool {
		n, ok := id.Int()
		if !ok {
			return false
		}
		suffix := fmt.Sprintf("-%d.tar", n%int64(modulo))
		return strings.HasSuffix(path.Base(shard), suffix)
	}
}
