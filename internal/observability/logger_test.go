// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

// bufferSink returns a WriteSyncer over an in-memory buffer.
func bufferSink() (*bytes.Buffer, zapcore.WriteSyncer) {
	var buf bytes.Buffer
	return &buf, zapcore.AddSync(&buf)
}

func TestInitialize(t *testing.T) {
	t.Run("console logger colorizes levels and names components", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "rateidea-agent",
			Colors:      config.ColorConfig{Info: "green"},
		}, sink)

		GetLogger().Named("workflow").Info("Entering state", zap.String("state", "SET_SCORE"))

		out := buf.String()
		assert.Contains(t, out, colorMap["green"]+"INFO"+colorReset)
		assert.Contains(t, out, "rateidea-agent.workflow.")
		assert.Contains(t, out, "Entering state")
		assert.Contains(t, out, `"state": "SET_SCORE"`)
	})

	t.Run("json logger emits one structured object per entry", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, sink)
		GetLogger().Warn("Slider not visible", zap.String("selector", `input[type="range"]`))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "Slider not visible", entry["msg"])
		assert.Equal(t, `input[type="range"]`, entry["selector"])
	})

	t.Run("level below threshold is dropped", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, sink)
		GetLogger().Info("quiet")
		assert.Empty(t, buf.String())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "chatty", Format: "json"}, sink)
		GetLogger().Debug("hidden")
		GetLogger().Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("writes json to the rotated log file", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		_, sink := bufferSink()
		logFile := filepath.Join(t.TempDir(), "agent.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: logFile, MaxSize: 1}, sink)
		GetLogger().Error("Run failed")
		Sync()

		content, err := os.ReadFile(logFile)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"Run failed"`)
	})

	t.Run("only the first initialization takes effect", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := bufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "First"}, sink)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "Second"}, sink)

		assert.Same(t, first, GetLogger())
		GetLogger().Info("test")
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestGetLogger(t *testing.T) {
	t.Run("fallback before initialization", func(t *testing.T) {
		ResetForTest()
		assert.NotNil(t, GetLogger())
	})

	t.Run("SetLogger overrides the global instance", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)

		l := zaptest.NewLogger(t)
		SetLogger(l)
		assert.Same(t, l, GetLogger())

		SetLogger(nil)
		assert.NotNil(t, GetLogger())
	})
}

func TestIsBenignSyncError(t *testing.T) {
	assert.True(t, isBenignSyncError(errors.New("sync /dev/stdout: invalid argument")))
	assert.True(t, isBenignSyncError(errors.New("sync /dev/stderr: inappropriate ioctl for device")))
	assert.False(t, isBenignSyncError(errors.New("disk full")))
}
