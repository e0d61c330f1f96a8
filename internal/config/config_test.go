package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Search.NGramWidth)
	assert.Equal(t, 0.5, cfg.Search.K1)
	assert.Equal(t, 0.75, cfg.Search.B)
	assert.Equal(t, 5*time.Minute, cfg.Search.AvgDLTTL)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, "info", cfg.Log.Level, "store debug lines stay off by default")
}

func TestLoad_LogLevelOverride(t *testing.T) {
	t.Setenv("CLAIMS_LOG_LEVEL", "debug")
	v := newViper()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "db_path: /tmp/x.db\nsearch:\n  ngram_width: 4\n  k1: 0.9\n  avgdl_ttl: 30s\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := newViper()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, 4, cfg.Search.NGramWidth)
	assert.Equal(t, 0.9, cfg.Search.K1)
	assert.Equal(t, 30*time.Second, cfg.Search.AvgDLTTL)
	assert.Equal(t, 0.75, cfg.Search.B, "unset keys keep defaults")
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLAIMS_DB_PATH", "/env/claims.db")
	cfg, err := Load(newViper())
	require.NoError(t, err)
	assert.Equal(t, "/env/claims.db", cfg.DBPath)
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero width", func(c *Config) { c.Search.NGramWidth = 0 }},
		{"negative k1", func(c *Config) { c.Search.K1 = -1 }},
		{"b above one", func(c *Config) { c.Search.B = 1.5 }},
		{"zero ttl", func(c *Config) { c.Search.AvgDLTTL = 0 }},
		{"zero batch", func(c *Config) { c.Search.RebuildBatch = 0 }},
		{"zero page", func(c *Config) { c.PageSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
