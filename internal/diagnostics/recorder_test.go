// File: internal/diagnostics/recorder_test.go
package diagnostics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/rateidea-agent/internal/config"
	"github.com/xkilldash9x/rateidea-agent/internal/mocks"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func newTestRecorder(t *testing.T, cfg config.DiagnosticsConfig) (*Recorder, afero.Fs, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	fs := afero.NewMemMapFs()
	r := NewRecorder(fs, cfg, zap.New(core))
	r.now = func() time.Time { return time.UnixMilli(1700000000123) }
	return r, fs, logs
}

func TestCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("writes a labelled checkpoint", func(t *testing.T) {
		r, fs, _ := newTestRecorder(t, config.DiagnosticsConfig{Enabled: true, Checkpoints: true, Dir: "shots"})
		page := new(mocks.MockPage)
		page.On("Screenshot", mock.Anything).Return(pngBytes, nil)

		path := r.Capture(ctx, page, "nav-after-rate")
		assert.Equal(t, "shots/debug-nav-after-rate-1700000000123.png", path)

		data, err := afero.ReadFile(fs, path)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, data)
	})

	t.Run("sanitizes labels", func(t *testing.T) {
		r, _, _ := newTestRecorder(t, config.DiagnosticsConfig{Enabled: true, Checkpoints: true, Dir: "."})
		page := new(mocks.MockPage)
		page.On("Screenshot", mock.Anything).Return(pngBytes, nil)

		assert.Equal(t, "debug-before-submit-1700000000123.png", r.Capture(ctx, page, "before submit"))
	})

	t.Run("checkpoints disabled", func(t *testing.T) {
		r, _, _ := newTestRecorder(t, config.DiagnosticsConfig{Enabled: true, Checkpoints: false})
		page := new(mocks.MockPage)

		assert.Empty(t, r.Capture(ctx, page, "nav-explicit"))
		page.AssertNotCalled(t, "Screenshot", mock.Anything)
	})

	t.Run("screenshot failure is logged, not returned", func(t *testing.T) {
		r, fs, logs := newTestRecorder(t, config.DiagnosticsConfig{Enabled: true, Checkpoints: true, Dir: "out"})
		page := new(mocks.MockPage)
		page.On("Screenshot", mock.Anything).Return(nil, errors.New("target closed"))

		assert.Empty(t, r.Capture(ctx, page, "slider-missing"))
		assert.Equal(t, 1, logs.FilterMessage("Failed to capture screenshot.").Len())
		exists, _ := afero.DirExists(fs, "out")
		assert.False(t, exists)
	})

	t.Run("nil page", func(t *testing.T) {
		r, _, _ := newTestRecorder(t, config.DiagnosticsConfig{Enabled: true, Checkpoints: true})
		assert.Empty(t, r.Capture(ctx, nil, "x"))
	})
}

func TestCaptureError(t *testing.T) {
	ctx := context.Background()

	t.Run("ignores the checkpoint switch", func(t *testing.T) {
		r, fs, _ := newTestRecorder(t, config.DiagnosticsConfig{Enabled: true, Checkpoints: false})
		page := new(mocks.MockPage)
		page.On("Screenshot", mock.Anything).Return(pngBytes, nil)

		path := r.CaptureError(ctx, page)
		assert.Equal(t, "error-screenshot-1700000000123.png", path)
		exists, err := afero.Exists(fs, path)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("disabled entirely", func(t *testing.T) {
		r, _, _ := newTestRecorder(t, config.DiagnosticsConfig{Enabled: false, Checkpoints: true})
		page := new(mocks.MockPage)

		assert.Empty(t, r.CaptureError(ctx, page))
		page.AssertNotCalled(t, "Screenshot", mock.Anything)
	})

	t.Run("read-only filesystem", func(t *testing.T) {
		core, logs := observer.New(zap.DebugLevel)
		r := NewRecorder(afero.NewReadOnlyFs(afero.NewMemMapFs()), config.DiagnosticsConfig{Enabled: true, Dir: "out"}, zap.New(core))
		page := new(mocks.MockPage)
		page.On("Screenshot", mock.Anything).Return(pngBytes, nil)

		assert.Empty(t, r.CaptureError(ctx, page))
		assert.Equal(t, 1, logs.FilterMessage("Failed to create diagnostics directory.").Len())
	})
}
