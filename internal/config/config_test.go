package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagecoach/engine/internal/policy"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sage.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "claude-sonnet-4-5", cfg.Model.Name)
	assert.Equal(t, 5, cfg.Safety.MaxActionsPerDay)
	assert.Equal(t, 22, cfg.Safety.QuietHoursStart)
	assert.InDelta(t, 0.05, cfg.Learning.LearningRate, 1e-9)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sage.yaml")
	body := `
db_path: /tmp/coach.db
log_level: debug
safety:
  max_actions_per_day: 2
  forbidden_categories: [push]
learning:
  learning_rate: 0.1
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/coach.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.Safety.MaxActionsPerDay)
	// Untouched keys keep their defaults.
	assert.Equal(t, 22, cfg.Safety.QuietHoursStart)

	g := cfg.GateConfig()
	assert.Equal(t, []policy.Category{policy.CategoryPush}, g.ForbiddenCategories)

	l := cfg.LearnConfig()
	assert.InDelta(t, 0.1, l.LearningRate, 1e-9)
	assert.InDelta(t, 0.001, l.DecayRate, 1e-9)
}

func TestLoadMissingFileIsNotError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "sage.db", cfg.DBPath)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("SAGE_DB_PATH", "/var/lib/sage.db")
	t.Setenv("SAGE_SAFETY_QUIET_HOURS_START", "21")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/sage.db", cfg.DBPath)
	assert.Equal(t, 21, cfg.Safety.QuietHoursStart)
}
