package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (CLAIMS_DB_PATH, ...)
const EnvPrefix = "CLAIMS"

// LogConfig controls logger construction
type LogConfig struct {
	Env   string `mapstructure:"env" yaml:"env"`     // "development" or "production"
	Level string `mapstructure:"level" yaml:"level"` // zap level name, empty = env default
}

// SearchConfig holds the n-gram index and ranking parameters
type SearchConfig struct {
	NGramWidth   int           `mapstructure:"ngram_width" yaml:"ngram_width"`
	K1           float64       `mapstructure:"k1" yaml:"k1"`
	B            float64       `mapstructure:"b" yaml:"b"`
	AvgDLTTL     time.Duration `mapstructure:"avgdl_ttl" yaml:"avgdl_ttl"`
	RebuildBatch int           `mapstructure:"rebuild_batch" yaml:"rebuild_batch"`
}

// Config is the full application configuration
type Config struct {
	DBPath   string       `mapstructure:"db_path" yaml:"db_path"`
	PageSize int          `mapstructure:"page_size" yaml:"page_size"`
	Log      LogConfig    `mapstructure:"log" yaml:"log"`
	Search   SearchConfig `mapstructure:"search" yaml:"search"`
}

// DefaultConfig returns the built-in defaults.
// k1 is well below the usual whole-word 1.2: n-gram terms repeat far more
// often within a label, so term frequency saturates sooner.
func DefaultConfig() *Config {
	return &Config{
		PageSize: 25,
		Log: LogConfig{
			Env:   "development",
			Level: "info",
		},
		Search: SearchConfig{
			NGramWidth:   3,
			K1:           0.5,
			B:            0.75,
			AvgDLTTL:     5 * time.Minute,
			RebuildBatch: 500,
		},
	}
}

// SetDefaults registers DefaultConfig values with v
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("db_path", d.DBPath)
	v.SetDefault("page_size", d.PageSize)
	v.SetDefault("log.env", d.Log.Env)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("search.ngram_width", d.Search.NGramWidth)
	v.SetDefault("search.k1", d.Search.K1)
	v.SetDefault("search.b", d.Search.B)
	v.SetDefault("search.avgdl_ttl", d.Search.AvgDLTTL)
	v.SetDefault("search.rebuild_batch", d.Search.RebuildBatch)
}

// Load decodes the effective configuration from v and validates it
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Search.NGramWidth < 1 {
		return fmt.Errorf("search.ngram_width must be >= 1, got %d", c.Search.NGramWidth)
	}
	if c.Search.K1 < 0 {
		return fmt.Errorf("search.k1 must be >= 0, got %g", c.Search.K1)
	}
	if c.Search.B < 0 || c.Search.B > 1 {
		return fmt.Errorf("search.b must be within [0,1], got %g", c.Search.B)
	}
	if c.Search.AvgDLTTL <= 0 {
		return fmt.Errorf("search.avgdl_ttl must be positive, got %s", c.Search.AvgDLTTL)
	}
	if c.Search.RebuildBatch < 1 {
		return fmt.Errorf("search.rebuild_batch must be >= 1, got %d", c.Search.RebuildBatch)
	}
	if c.PageSize < 1 {
		return fmt.Errorf("page_size must be >= 1, got %d", c.PageSize)
	}
	return nil
}
