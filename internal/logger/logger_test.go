package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Howters/ArisanOnChain-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLogLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLogLevel("warning"))
	assert.Equal(t, ERROR, ParseLogLevel("error"))
	assert.Equal(t, INFO, ParseLogLevel("bogus"))
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := NewFromConfig(config.LogConfig{Level: "info", Output: "file", File: path})
	require.NoError(t, err)

	l.Info("checkpoint advanced to %d", 42)
	l.Debug("dropped at info level")
	l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "checkpoint advanced to 42")
	assert.NotContains(t, string(data), "dropped at info level")
}

func TestUnsupportedOutput(t *testing.T) {
	_, err := NewFromConfig(config.LogConfig{Output: "syslog"})
	require.Error(t, err)

	_, err = NewFromConfig(config.LogConfig{Output: "file"})
	require.Error(t, err)
}
