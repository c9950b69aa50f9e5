// internal/browser/traffic.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// trafficMonitor counts in-flight network requests for one tab so that
// callers can wait for the page to go quiet.
type trafficMonitor struct {
	logger *zap.Logger

	// A separate context for the listener so it can be stopped before the tab closes.
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	isStarted    bool
}

func newTrafficMonitor(logger *zap.Logger) *trafficMonitor {
	return &trafficMonitor{
		logger:       logger.Named("traffic"),
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

// Start attaches the listener to the tab behind tabCtx. The network domain is
// already enabled by chromedp for every target it creates.
func (t *trafficMonitor) Start(tabCtx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isStarted {
		return
	}

	t.listenerCtx, t.cancelListener = context.WithCancel(tabCtx)
	chromedp.ListenTarget(t.listenerCtx, t.handleEvent)
	t.isStarted = true
	t.logger.Debug("Traffic monitor started.")
}

// Stop detaches the listener. It is safe to call more than once.
func (t *trafficMonitor) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.isStarted {
		return
	}
	t.cancelListener()
	t.isStarted = false
	t.inflight = make(map[network.RequestID]struct{})
}

func (t *trafficMonitor) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.begin(e.RequestID)
	case *network.EventLoadingFinished:
		t.end(e.RequestID)
	case *network.EventLoadingFailed:
		t.end(e.RequestID)
	}
}

func (t *trafficMonitor) begin(id network.RequestID) {
	t.mu.Lock()
	t.inflight[id] = struct{}{}
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

func (t *trafficMonitor) end(id network.RequestID) {
	t.mu.Lock()
	delete(t.inflight, id)
	t.lastActivity = time.Now()
	t.mu.Unlock()
}

// Inflight returns the number of requests that have started but not finished.
func (t *trafficMonitor) Inflight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight)
}

// WaitIdle polls until no request has been in flight for quietPeriod.
// It returns ctx.Err() if ctx ends first.
func (t *trafficMonitor) WaitIdle(ctx context.Context, quietPeriod time.Duration) error {
	interval := quietPeriod / 2
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		t.mu.Lock()
		count := len(t.inflight)
		quietFor := time.Since(t.lastActivity)
		t.mu.Unlock()

		if count == 0 && quietFor >= quietPeriod {
			return nil
		}

		select {
		case <-ctx.Done():
			t.logger.Debug("Network idle wait ended before the page went quiet.",
				zap.Int("inflight_requests", count),
				zap.Error(ctx.Err()),
			)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
