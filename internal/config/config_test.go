package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icryo/backplane-tui/internal/errors"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3*time.Second, cfg.Refresh.Inventory)
	assert.Equal(t, 2*time.Second, cfg.Refresh.Stats)
	assert.Equal(t, 5*time.Second, cfg.Refresh.Host)
	assert.Equal(t, 500, cfg.Logs.Tail)
	assert.Equal(t, 2000, cfg.Logs.Buffer)
	assert.Equal(t, 10*time.Second, cfg.TombstoneGrace)
	assert.NotEmpty(t, cfg.Exec.Shells)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero inventory cadence", func(c *Config) { c.Refresh.Inventory = 0 }},
		{"negative stats cadence", func(c *Config) { c.Refresh.Stats = -time.Second }},
		{"zero log buffer", func(c *Config) { c.Logs.Buffer = 0 }},
		{"negative log tail", func(c *Config) { c.Logs.Tail = -1 }},
		{"no shells", func(c *Config) { c.Exec.Shells = nil }},
		{"negative grace", func(c *Config) { c.TombstoneGrace = -time.Second }},
		{"zero command timeout", func(c *Config) { c.CommandTimeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrConfig))
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestWriteDefaultThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestWriteDefaultRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefault(path))

	err := WriteDefault(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadAppliesOverridesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "refresh:\n  stats: 500ms\nlogs:\n  tail: 50\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.Refresh.Stats)
	assert.Equal(t, 50, cfg.Logs.Tail)
	// Unset keys keep defaults.
	assert.Equal(t, 3*time.Second, cfg.Refresh.Inventory)
	assert.Equal(t, 2000, cfg.Logs.Buffer)
}

func TestFindExplicitMissing(t *testing.T) {
	_, err := Find(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadOrDefaultWithoutAnyFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
