package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/event-buffer/internal/testutil"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestConfigWatcher_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "collector:\n  url: http://localhost/events\ncooldown: 5s\n")

	w := NewConfigWatcher(path, testutil.NewTestLogger())
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	writeConfig(t, path, "collector:\n  url: http://localhost/events\ncooldown: 1s\n")

	select {
	case cfg := <-w.Changes():
		assert.Equal(t, time.Second, cfg.Cooldown)
		assert.Same(t, cfg, w.LastConfig())
	case err := <-w.Errors():
		t.Fatalf("unexpected reload error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestConfigWatcher_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, "collector:\n  url: http://localhost/events\n")

	w := NewConfigWatcher(path, testutil.NewTestLogger())
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	writeConfig(t, path, "cooldown: 0s\n")

	select {
	case err := <-w.Errors():
		assert.Contains(t, err.Error(), "collector.url is required")
		assert.Nil(t, w.LastConfig())
	case <-w.Changes():
		t.Fatal("invalid config must not be published")
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload error")
	}
}

func TestConfigWatcher_MissingDirectory(t *testing.T) {
	w := NewConfigWatcher("/nonexistent/dir/config.yaml", testutil.NewTestLogger())
	assert.Error(t, w.Start(context.Background()))
}
