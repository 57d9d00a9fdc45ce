package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("SCHEDULER_FIRE_MAX_ATTEMPTS", "")
	t.Setenv("SCHEDULER_SWEEP_SPEC", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scheduler.FireMaxAttempts)
	assert.Equal(t, "@every 5m", cfg.Scheduler.SweepSpec)
	assert.Contains(t, cfg.Database.DSN(), "sslmode=")
}

func TestLoadScheduler(t *testing.T) {
	t.Setenv("SCHEDULER_FIRE_MAX_ATTEMPTS", "5")
	t.Setenv("SCHEDULER_FIRE_RETRY_BACKOFF_SEC", "30")
	t.Setenv("SCHEDULER_SWEEP_SPEC", "@every 1m")
	t.Setenv("DATABASE_URL", "postgres://db:5432/shop")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Scheduler.FireMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.FireRetryBackoff())
	assert.Equal(t, "@every 1m", cfg.Scheduler.SweepSpec)
	assert.Equal(t, "postgres://db:5432/shop", cfg.Database.DSN())
}

func TestLoadRejectsZeroAttempts(t *testing.T) {
	t.Setenv("SCHEDULER_FIRE_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
}
