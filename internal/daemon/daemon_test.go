package daemon

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucahq/luca/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataDir = dir
	cfg.Router.CachePath = filepath.Join(dir, "embeddings.db")
	cfg.Router.FeedbackPath = filepath.Join(dir, "feedback.jsonl")
	cfg.Providers.Completion.APIKey = "sk-test"
	cfg.Providers.Embedding.APIKey = "sk-test"
	cfg.Server.Port = 0
	return cfg
}

func TestNewBuildsGraph(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)

	assert.NotNil(t, d.Orchestrator())
	assert.NotNil(t, d.metrics)
	assert.NotNil(t, d.server)
	assert.NotNil(t, d.cache)
}

func TestNewRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Providers.Completion.Provider = "unknown"
	// a provider outside the supported set fails config validation
	// upstream, and graph assembly rejects it as well
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	d, err := New(testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("daemon did not stop after cancel")
	}
}
