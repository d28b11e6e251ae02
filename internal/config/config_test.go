package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers: 8\nturn_timeout: 5s\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.MaxWorkers)
	assert.Equal(t, 5*time.Second, cfg.TurnTimeout.Std())
	assert.Equal(t, Default().HistoryLimit, cfg.HistoryLimit)
	assert.Equal(t, Default().BackoffBase, cfg.BackoffBase)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_workers: 0\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "max_workers")
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arbor.yaml")
	require.NoError(t, os.WriteFile(path, []byte("turn_timeout: soon\n"), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestWeights_FallsBackToBalanced(t *testing.T) {
	cfg := Default()

	assert.Equal(t, cfg.WeightProfiles["performance"], cfg.Weights("performance"))
	assert.Equal(t, cfg.WeightProfiles["balanced"], cfg.Weights("no-such-profile"))
}
