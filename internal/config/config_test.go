package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, 2*time.Second, cfg.PollInterval)
	require.Equal(t, 180*time.Second, cfg.PollBudget)
	require.Equal(t, 300*time.Millisecond, cfg.DebounceQuiet)
	require.Equal(t, 7, cfg.BucketCap)
	require.Equal(t, 2, cfg.DomainCap)
	require.Equal(t, 3, cfg.SummaryBatch)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"base_url: http://backend:9000\nbucket_cap: 5\n"), 0o644))
	t.Setenv("ORCHESTRATOR_CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "http://backend:9000", cfg.BaseURL)
	require.Equal(t, 5, cfg.BucketCap)
	// Unset keys keep their defaults.
	require.Equal(t, 2, cfg.DomainCap)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bucket_cap: 5\n"), 0o644))
	t.Setenv("ORCHESTRATOR_CONFIG_PATH", path)
	t.Setenv("BUCKET_CAP", "9")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("RESEARCH_BASE_URL", "http://override:8000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9, cfg.BucketCap)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	require.Equal(t, "http://override:8000", cfg.BaseURL)
}

func TestValidateRejectsBrokenConfig(t *testing.T) {
	cfg := Default()
	cfg.PollInterval = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.BaseURL = ""
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.SummaryBatch = 0
	require.Error(t, cfg.Validate())
}
