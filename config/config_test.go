package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devloop-ai/synapse-go-sdk/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.Equal(t, time.Second, cfg.Pipeline.BatchInterval)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.InDelta(t, 0.9, cfg.Pipeline.CriticalThreshold, 1e-9)
	assert.InDelta(t, 0.7, cfg.Graph.ClusterThreshold, 1e-9)
	assert.InDelta(t, 0.8, cfg.Extractor.SimilarityThreshold, 1e-9)
	assert.Equal(t, 384, cfg.Embedder.Dimensions)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  batchSize: 25
  batchInterval: 2s
graph:
  clusterThreshold: 0.85
logging:
  level: debug
  development: true
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.BatchInterval)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.InDelta(t, 0.85, cfg.Graph.ClusterThreshold, 1e-9)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SYNAPSE_PIPELINE_BATCH_SIZE", "5")
	t.Setenv("SYNAPSE_PIPELINE_BATCH_INTERVAL", "500ms")
	t.Setenv("SYNAPSE_GRAPH_MIN_SIMILARITY", "0.6")
	t.Setenv("SYNAPSE_LOG_LEVEL", "warn")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Pipeline.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Pipeline.BatchInterval)
	assert.InDelta(t, 0.6, cfg.Graph.DefaultMinSimilarity, 1e-9)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  maxRetries: 7\n"), 0o600))
	t.Setenv("SYNAPSE_PIPELINE_MAX_RETRIES", "2")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Pipeline.MaxRetries)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "synapse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  criticalThreshold: 1.5\n"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)

	path = filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: verbose\n"), 0o600))
	_, err = config.Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	logger, err := config.NewLogger(config.LoggingConfig{Level: "debug", Development: true})
	require.NoError(t, err)
	require.NotNil(t, logger)

	_, err = config.NewLogger(config.LoggingConfig{Level: "nope"})
	assert.Error(t, err)
}
