package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesToLogFile(t *testing.T) {
	dir := t.TempDir()

	closeFn, err := Setup(dir, LevelInfo)
	require.NoError(t, err)

	slog.Info("hello from test", "key", "value")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
	assert.Contains(t, string(data), "key=value")
}

func TestSetup_DebugLevelGatesOutput(t *testing.T) {
	dir := t.TempDir()

	closeFn, err := Setup(dir, LevelInfo)
	require.NoError(t, err)
	slog.Debug("invisible")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "invisible")

	closeFn, err = Setup(dir, LevelDebug)
	require.NoError(t, err)
	slog.Debug("now visible")
	require.NoError(t, closeFn())

	data, err = os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "now visible")
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("VORTIX_DEBUG", "")
	assert.Equal(t, LevelInfo, LevelFromEnv())

	t.Setenv("VORTIX_DEBUG", "1")
	assert.Equal(t, LevelDebug, LevelFromEnv())
}
