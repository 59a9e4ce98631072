package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func readEntries(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), line)
		entries = append(entries, entry)
	}
	return entries
}

func TestNew(t *testing.T) {
	t.Run("JSON output carries the service name", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.log")
		logger, err := New(Config{Level: "debug", Encoding: "json", OutputPath: path, Service: "nexttale-test"})
		require.NoError(t, err)

		logger.Debug("Polling node", zap.String("nodeID", "n1"))
		_ = logger.Sync()

		entries := readEntries(t, path)
		require.Len(t, entries, 1)
		assert.Equal(t, "DEBUG", entries[0]["level"])
		assert.Equal(t, "nexttale-test", entries[0]["service"])
		assert.Equal(t, "n1", entries[0]["nodeID"])
		assert.Contains(t, entries[0], "timestamp")
		assert.NotContains(t, entries[0], "caller")
	})

	t.Run("Invalid level falls back to info", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.log")
		logger, err := New(Config{Level: "loud", OutputPath: path})
		require.NoError(t, err)

		assert.False(t, logger.Core().Enabled(zap.DebugLevel))
		assert.True(t, logger.Core().Enabled(zap.InfoLevel))
	})

	t.Run("Repeated entries are sampled", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.log")
		logger, err := New(Config{OutputPath: path})
		require.NoError(t, err)

		for i := 0; i < sampleInitial+50; i++ {
			logger.Warn("Failed to fetch node while polling")
		}
		_ = logger.Sync()

		assert.Less(t, len(readEntries(t, path)), sampleInitial+50)
	})

	t.Run("Development mode uses the console encoder", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.log")
		logger, err := New(Config{Development: true, OutputPath: path})
		require.NoError(t, err)

		logger.Info("Session opened")
		_ = logger.Sync()

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), "Session opened")
		assert.False(t, json.Valid([]byte(strings.TrimSpace(string(raw)))))
	})
}
