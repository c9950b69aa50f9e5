// internal/browser/session.go
package browser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

// ErrSessionClosed is returned by page operations issued after Close.
var ErrSessionClosed = errors.New("browser session is closed")

// Session is one browser process with a single tab. It implements schemas.Session.
type Session struct {
	id          string
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	cfg         config.BrowserConfig

	traffic *trafficMonitor
	page    *Page

	onClose func()

	mu       sync.Mutex
	isClosed bool
}

var _ schemas.Session = (*Session)(nil)

func newSession(id string, tabCtx context.Context, cancel, allocCancel context.CancelFunc, cfg config.BrowserConfig, logger *zap.Logger) *Session {
	sessionLogger := logger.With(zap.String("session_id", id))
	s := &Session{
		id:          id,
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      sessionLogger,
		cfg:         cfg,
		traffic:     newTrafficMonitor(sessionLogger),
	}
	s.page = &Page{session: s, logger: sessionLogger.Named("page")}
	return s
}

// ID returns the unique identifier for the session.
func (s *Session) ID() string {
	return s.id
}

// Page returns the session's only tab.
func (s *Session) Page() schemas.Page {
	return s.page
}

// Close shuts the browser down. Only the first call does any work.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	s.traffic.Stop()

	// chromedp.Cancel closes the browser gracefully and waits for the process,
	// bounded by ctx. The cancels below reap anything left behind.
	closeCtx, cancel := combineContext(s.ctx, ctx)
	err := chromedp.Cancel(closeCtx)
	cancel()
	s.cancel()
	s.allocCancel()

	if s.onClose != nil {
		s.onClose()
	}

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return nil
	case errors.Is(err, chromedp.ErrInvalidContext):
		// The tab was never attached to a browser.
		return nil
	default:
		s.logger.Warn("Browser did not close cleanly.", zap.Error(err))
		return err
	}
}

func (s *Session) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isClosed
}

// run executes actions bound to both the session lifetime and the caller's
// context, with timeout as an extra bound when positive.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if s.closed() {
		return ErrSessionClosed
	}
	runCtx, cancel := combineContext(s.ctx, ctx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	return chromedp.Run(runCtx, actions...)
}
