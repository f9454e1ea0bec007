package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "")
	t.Setenv("TABULAR_SINK", " SQLite ")
	t.Setenv("JOIN_PARTITIONS", "-3")
	t.Setenv("FLAT_ESCAPE", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.PipelineWorkers)
	assert.Equal(t, "sqlite", cfg.TabularSink)
	assert.Equal(t, 1, cfg.JoinPartitions)
	assert.True(t, cfg.FlatEscape)
	assert.False(t, cfg.FailOnMalformed)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PIPELINE_WORKERS", "16")
	t.Setenv("FAIL_ON_MALFORMED", "yes")
	t.Setenv("FLAT_ESCAPE", "off")
	t.Setenv("BIGQUERY_TABLE", "test2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.PipelineWorkers)
	assert.True(t, cfg.FailOnMalformed)
	assert.False(t, cfg.FlatEscape)
	assert.Equal(t, "test2", cfg.BigQueryTable)
}

func TestRequire(t *testing.T) {
	var cfg Config
	assert.EqualError(t, cfg.Require("GCP_PROJECT", "  "), "missing required env var: GCP_PROJECT")
	assert.NoError(t, cfg.Require("GCP_PROJECT", "p"))
}
