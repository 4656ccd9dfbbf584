package ingest

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listing-ingest/pkg/config"
)

func buildTestConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := config.Default()
	cfg.Policy.CacheDir = t.TempDir()
	return &cfg
}

func buildTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestBuild_WithoutAssetIndex(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, cleanup, err := Build(ctx, buildTestConfig(t), buildTestLogger())
	require.NoError(t, err)
	require.NotNil(t, pipeline)
	require.NotNil(t, cleanup)
	cleanup()
}

func TestBuild_AssetIndexClosedByCleanup(t *testing.T) {
	cfg := buildTestConfig(t)
	cfg.StateDir = t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pipeline, cleanup, err := Build(ctx, cfg, buildTestLogger())
	require.NoError(t, err)
	require.NotNil(t, pipeline)

	cancel()
	cleanup()

	// Badger holds an exclusive lock on the state dir, so reopening the same
	// dir only works if cleanup really closed the store.
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	pipeline2, cleanup2, err := Build(ctx2, cfg, buildTestLogger())
	require.NoError(t, err)
	assert.NotNil(t, pipeline2)
	cleanup2()
}
