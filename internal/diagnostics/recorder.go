// File: internal/diagnostics/recorder.go
package diagnostics

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

var unsafeLabelChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Recorder writes full-page screenshots for later inspection. Every failure
// is logged and swallowed; a missing screenshot never changes a run's outcome.
type Recorder struct {
	fs     afero.Fs
	cfg    config.DiagnosticsConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder creates a Recorder writing to fs. Pass afero.NewOsFs() outside tests.
func NewRecorder(fs afero.Fs, cfg config.DiagnosticsConfig, logger *zap.Logger) *Recorder {
	return &Recorder{
		fs:     fs,
		cfg:    cfg,
		logger: logger.Named("diagnostics"),
		now:    time.Now,
	}
}

// Capture writes a checkpoint snapshot named debug-<label>-<unixms>.png. It
// returns the written path, or "" when nothing was written.
func (r *Recorder) Capture(ctx context.Context, page schemas.Page, label string) string {
	if !r.cfg.Enabled || !r.cfg.Checkpoints {
		return ""
	}
	label = unsafeLabelChars.ReplaceAllString(label, "-")
	return r.write(ctx, page, fmt.Sprintf("debug-%s-%d.png", label, r.now().UnixMilli()))
}

// CaptureError writes error-screenshot-<unixms>.png. Only diagnostics.enabled gates it.
func (r *Recorder) CaptureError(ctx context.Context, page schemas.Page) string {
	if !r.cfg.Enabled {
		return ""
	}
	return r.write(ctx, page, fmt.Sprintf("error-screenshot-%d.png", r.now().UnixMilli()))
}

func (r *Recorder) write(ctx context.Context, page schemas.Page, name string) string {
	if page == nil {
		return ""
	}
	dir, err := r.dir()
	if err != nil {
		r.logger.Warn("Could not resolve diagnostics directory.", zap.String("dir", r.cfg.Dir), zap.Error(err))
		return ""
	}

	png, err := page.Screenshot(ctx)
	if err != nil {
		r.logger.Warn("Failed to capture screenshot.", zap.String("file", name), zap.Error(err))
		return ""
	}

	if err := r.fs.MkdirAll(dir, 0755); err != nil {
		r.logger.Warn("Failed to create diagnostics directory.", zap.String("dir", dir), zap.Error(err))
		return ""
	}
	path := filepath.Join(dir, name)
	if err := afero.WriteFile(r.fs, path, png, 0644); err != nil {
		r.logger.Warn("Failed to write screenshot.", zap.String("path", path), zap.Error(err))
		return ""
	}
	r.logger.Info("Saved screenshot.", zap.String("path", path), zap.Int("bytes", len(png)))
	return path
}

func (r *Recorder) dir() (string, error) {
	if r.cfg.Dir == "" {
		return ".", nil
	}
	// Safely expand potential home directory references (~).
	return homedir.Expand(r.cfg.Dir)
}
