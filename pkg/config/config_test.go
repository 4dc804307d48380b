package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Millisecond, cfg.Scheduler.TotalQuantum)
	assert.Equal(t, 0.8, cfg.Scheduler.Alpha)
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
}

func TestLoad_OverridesDefaultsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
scheduler:
  total_quantum: 2ms
  alpha: 0.5
  granularity: 20us
governor:
  min_freq_path: /sys/class/accel/min_freq
  max_freq_path: /sys/class/accel/max_freq
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Millisecond, cfg.Scheduler.TotalQuantum)
	assert.Equal(t, 0.5, cfg.Scheduler.Alpha)
	assert.Equal(t, 20*time.Microsecond, cfg.Scheduler.Granularity)
	assert.Equal(t, "/sys/class/accel/min_freq", cfg.Governor.MinFreqPath)
	// Unset fields keep their defaults
	assert.Equal(t, ":9090", cfg.Metrics.ListenAddr)
}

func TestLoad_RejectsInvalidAlpha(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  alpha: 1.5\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadWorkload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workload.yaml")
	content := `
entities:
  - priority: 0
    models:
      - path: model-a
        profile_path: model-a.profile.json
        frequency: "900000"
        tasks: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	w, err := LoadWorkload(path)
	require.NoError(t, err)
	require.Len(t, w.Entities, 1)
	require.Len(t, w.Entities[0].Models, 1)
	assert.Equal(t, 10, w.Entities[0].Models[0].Tasks)
	assert.Equal(t, "900000", w.Entities[0].Models[0].Frequency)
}
