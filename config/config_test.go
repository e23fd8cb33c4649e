package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	w, err := c.Weight()
	require.NoError(t, err)
	assert.True(t, w.Equal(decimal.RequireFromString("0.25")))
	assert.Equal(t, 9, c.Book.Brokers)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vwap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
book:
  side: both
  brokers: 4
engine:
  weight: "0.5"
  validate: true
feed:
  queue_size: 16
`), 0o644))

	t.Setenv("VWAP_BROKERS", "7")
	t.Setenv("VWAP_LOG_LEVEL", "debug")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "both", c.Book.Side)
	assert.Equal(t, 7, c.Book.Brokers)
	assert.Equal(t, "0.5", c.Engine.Weight)
	assert.True(t, c.Engine.Validate)
	assert.Equal(t, 16, c.Feed.QueueSize)
	assert.Equal(t, "debug", c.Logging.Level)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vwap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("book:\n  side: asks\n"), 0o644))
	t.Setenv("VWAP_CONFIG", path)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "asks", c.Book.Side)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("VWAP_BROKERS", "many")
	_, err = Load("")
	require.ErrorIs(t, err, ErrInvalid)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad side", func(c *Config) { c.Book.Side = "mid" }},
		{"no brokers", func(c *Config) { c.Book.Brokers = 0 }},
		{"no symbol", func(c *Config) { c.Book.Symbol = "" }},
		{"weight not a number", func(c *Config) { c.Engine.Weight = "quarter" }},
		{"weight zero", func(c *Config) { c.Engine.Weight = "0" }},
		{"weight above one", func(c *Config) { c.Engine.Weight = "1.5" }},
		{"empty queue", func(c *Config) { c.Feed.QueueSize = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			require.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}
