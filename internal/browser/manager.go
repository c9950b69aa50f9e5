// internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

const shutdownGracePeriod = 10 * time.Second

// Manager launches one headless browser per session and keeps track of the
// sessions that are still open.
type Manager struct {
	logger *zap.Logger
	cfg    config.BrowserConfig

	sessions map[string]*Session
	mu       sync.Mutex
}

var _ schemas.SessionFactory = (*Manager)(nil)

// NewManager creates a browser manager. No process is started until NewSession.
func NewManager(cfg config.BrowserConfig, logger *zap.Logger) *Manager {
	return &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// NewSession launches a browser process, opens its tab and verifies that it
// responds. The browser outlives ctx; it stops when the session is closed.
func (m *Manager) NewSession(ctx context.Context) (schemas.Session, error) {
	m.logger.Info("Launching browser.", zap.Bool("headless", m.cfg.Headless))

	// The browser lifetime belongs to Session.Close, not to the caller's context.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), m.buildAllocatorOptions()...)

	sugar := m.logger.Named("cdp").Sugar()
	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	}
	if m.cfg.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(sugar.Debugf))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)

	cleanup := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run allocates the browser. It must not carry a deadline, or the
	// deadline would end the whole process.
	if err := chromedp.Run(tabCtx); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	probeCtx, cancelProbe := combineContext(tabCtx, ctx)
	defer cancelProbe()
	if m.cfg.LaunchTimeout > 0 {
		var cancelTimeout context.CancelFunc
		probeCtx, cancelTimeout = context.WithTimeout(probeCtx, m.cfg.LaunchTimeout)
		defer cancelTimeout()
	}
	if err := chromedp.Run(probeCtx, chromedp.Navigate("about:blank")); err != nil {
		cleanup()
		return nil, fmt.Errorf("browser failed to start or respond: %w", err)
	}

	s := newSession(uuid.New().String(), tabCtx, tabCancel, allocCancel, m.cfg, m.logger)
	s.onClose = func() {
		m.mu.Lock()
		delete(m.sessions, s.ID())
		m.mu.Unlock()
	}
	s.traffic.Start(tabCtx)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("Browser launched successfully and is responsive.", zap.String("session_id", s.ID()))
	return s, nil
}

// ActiveSessions returns the number of sessions not yet closed.
func (m *Manager) ActiveSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Shutdown closes every session that is still open.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	if len(open) == 0 {
		return nil
	}
	m.logger.Warn("Closing sessions left open.", zap.Int("count", len(open)))

	closeCtx, cancel := context.WithTimeout(ctx, shutdownGracePeriod)
	defer cancel()

	var firstErr error
	for _, s := range open {
		if err := s.Close(closeCtx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close session %s: %w", s.ID(), err)
		}
	}
	return firstErr
}

// launchFlag is one command-line switch passed to the browser.
type launchFlag struct {
	Name  string
	Value interface{}
}

// buildAllocatorOptions assembles the default chromedp options plus the
// configured flags. Flags are keyed by name, so a later false value removes a default.
func (m *Manager) buildAllocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	for _, f := range launchFlags(m.cfg, runtime.GOOS) {
		opts = append(opts, chromedp.Flag(f.Name, f.Value))
	}
	if m.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(m.cfg.UserAgent))
	}
	if w, h := viewport(m.cfg); w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	if m.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(m.cfg.ExecPath))
	}
	return opts
}

// launchFlags returns the switches for cfg on the given OS. Later entries win
// over earlier ones, so custom args can override the defaults.
func launchFlags(cfg config.BrowserConfig, goos string) []launchFlag {
	flags := []launchFlag{
		{"enable-automation", false},
		{"headless", cfg.Headless},
		{"ignore-certificate-errors", cfg.IgnoreTLSErrors},
		{"disable-blink-features", "AutomationControlled"},
		{"disable-extensions", true},
		{"disable-gpu", cfg.Headless},
	}

	// Flags required for running inside containers.
	if goos == "linux" {
		flags = append(flags,
			launchFlag{"no-sandbox", true},
			launchFlag{"disable-dev-shm-usage", true},
			launchFlag{"disable-setuid-sandbox", true},
		)
	}

	for _, arg := range cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if name == "" {
			continue
		}
		if len(parts) == 2 {
			flags = append(flags, launchFlag{name, parts[1]})
		} else {
			flags = append(flags, launchFlag{name, true})
		}
	}
	return flags
}

func viewport(cfg config.BrowserConfig) (int, int) {
	return cfg.Viewport["width"], cfg.Viewport["height"]
}
