package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvOverrides_Engine(t *testing.T) {
	t.Run("FORSYS_PRIORITIES splits and trims", func(t *testing.T) {
		t.Setenv("FORSYS_PRIORITIES", " fire, habitat ,,water")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, []string{"fire", "habitat", "water"}, cfg.Engine.Priorities)
	})

	t.Run("unset FORSYS_PRIORITIES keeps file value", func(t *testing.T) {
		t.Setenv("FORSYS_PRIORITIES", "")

		cfg := &Config{Engine: EngineConfig{Priorities: []string{"p1"}}}
		cfg.applyEnvOverrides()

		assert.Equal(t, []string{"p1"}, cfg.Engine.Priorities)
	})
}

func TestEnvOverrides_Budget(t *testing.T) {
	t.Run("ceilings parse as floats", func(t *testing.T) {
		t.Setenv("FORSYS_MAX_AREA", "25")
		t.Setenv("FORSYS_MAX_COST", "550.5")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		require.NotNil(t, cfg.Budget.MaxArea)
		require.NotNil(t, cfg.Budget.MaxCost)
		assert.Equal(t, 25.0, *cfg.Budget.MaxArea)
		assert.Equal(t, 550.5, *cfg.Budget.MaxCost)
	})

	t.Run("garbage is ignored", func(t *testing.T) {
		t.Setenv("FORSYS_MAX_AREA", "lots")
		t.Setenv("FORSYS_MAX_COST", "")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Nil(t, cfg.Budget.MaxArea)
		assert.Nil(t, cfg.Budget.MaxCost)
	})
}

func TestEnvOverrides_Paths(t *testing.T) {
	t.Setenv("FORSYS_DB", "/var/lib/forsys/runs.db")
	t.Setenv("FORSYS_INBOX", "/srv/forsys/inbox")
	t.Setenv("FORSYS_WORKERS", "8")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "/var/lib/forsys/runs.db", cfg.Store.DatabasePath)
	assert.Equal(t, "/srv/forsys/inbox", cfg.Inbox.Dir)
	assert.Equal(t, 8, cfg.Execution.Workers)
}
