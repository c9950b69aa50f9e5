// internal/browser/page.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
)

const defaultPollInterval = 100 * time.Millisecond

// Page drives the session's tab through chromedp. It implements schemas.Page.
type Page struct {
	session *Session
	logger  *zap.Logger
}

var _ schemas.Page = (*Page)(nil)

type textResult struct {
	Found bool   `json:"found"`
	Value string `json:"value"`
}

type attributeResult struct {
	Found   bool   `json:"found"`
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

// Navigate loads url and waits for the load event, then gives the network a
// bounded chance to settle. A page that never goes quiet is not an error.
func (p *Page) Navigate(ctx context.Context, url string) error {
	cfg := p.session.cfg
	p.logger.Debug("Navigating.", zap.String("url", url))
	if err := p.session.run(ctx, cfg.NavigationTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if _, err := p.WaitNetworkIdle(ctx, cfg.NetworkIdleTimeout); err != nil {
		return err
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	var location string
	if err := p.session.run(ctx, p.session.cfg.ActionTimeout, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read page URL: %w", err)
	}
	return location, nil
}

// WaitVisible polls at browser.poll_interval until loc has a visible match or
// timeout elapses. Evaluation errors while polling (a document being replaced,
// for instance) count as "not yet visible".
func (p *Page) WaitVisible(ctx context.Context, loc schemas.Locator, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := p.session.cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var visible bool
		err := p.session.run(waitCtx, 0, chromedp.Evaluate(locatorScript(loc, visibleBody), &visible))
		switch {
		case err == nil && visible:
			return true, nil
		case errors.Is(err, ErrSessionClosed):
			return false, err
		case err != nil:
			p.logger.Debug("Visibility probe failed, retrying.", zap.Stringer("locator", loc), zap.Error(err))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			p.logger.Debug("Element not visible within bound.", zap.Stringer("locator", loc), zap.Duration("timeout", timeout))
			return false, nil
		case <-ticker.C:
		}
	}
}

func (p *Page) IsVisible(ctx context.Context, loc schemas.Locator) (bool, error) {
	var visible bool
	if err := p.eval(ctx, locatorScript(loc, visibleBody), &visible); err != nil {
		return false, fmt.Errorf("failed to check visibility of %s: %w", loc, err)
	}
	return visible, nil
}

// Snapshot captures every match of loc in document order.
func (p *Page) Snapshot(ctx context.Context, loc schemas.Locator) ([]schemas.ElementSnapshot, error) {
	var snaps []schemas.ElementSnapshot
	if err := p.eval(ctx, locatorScript(loc, snapshotBody), &snaps); err != nil {
		return nil, fmt.Errorf("failed to snapshot %s: %w", loc, err)
	}
	return snaps, nil
}

// Text returns the trimmed rendered text of the first visible match, or of
// the first match if none is visible.
func (p *Page) Text(ctx context.Context, loc schemas.Locator) (string, error) {
	var res textResult
	if err := p.eval(ctx, locatorScript(loc, textBody), &res); err != nil {
		return "", fmt.Errorf("failed to read text of %s: %w", loc, err)
	}
	if !res.Found {
		return "", fmt.Errorf("%w: %s", schemas.ErrElementNotFound, loc)
	}
	return res.Value, nil
}

func (p *Page) Attribute(ctx context.Context, loc schemas.Locator, name string) (string, bool, error) {
	var res attributeResult
	if err := p.eval(ctx, locatorScript(loc, attributeBody(name)), &res); err != nil {
		return "", false, fmt.Errorf("failed to read attribute %q of %s: %w", name, loc, err)
	}
	if !res.Found {
		return "", false, fmt.Errorf("%w: %s", schemas.ErrElementNotFound, loc)
	}
	return res.Value, res.Present, nil
}

// Fill replaces the value of the first visible match.
func (p *Page) Fill(ctx context.Context, loc schemas.Locator, value string) error {
	return p.setValue(ctx, loc, value)
}

// SetRangeValue moves a range input to value.
func (p *Page) SetRangeValue(ctx context.Context, loc schemas.Locator, value string) error {
	return p.setValue(ctx, loc, value)
}

func (p *Page) setValue(ctx context.Context, loc schemas.Locator, value string) error {
	var ok bool
	if err := p.eval(ctx, locatorScript(loc, setValueBody(value)), &ok); err != nil {
		return fmt.Errorf("failed to set value of %s: %w", loc, err)
	}
	if !ok {
		return fmt.Errorf("%w: no visible %s", schemas.ErrElementNotFound, loc)
	}
	return nil
}

// Click tags the first visible match with a temporary attribute and clicks it
// through real mouse events.
func (p *Page) Click(ctx context.Context, loc schemas.Locator) error {
	id := uuid.New().String()
	var tagged bool
	if err := p.eval(ctx, locatorScript(loc, tagBody(id)), &tagged); err != nil {
		return fmt.Errorf("failed to locate %s for click: %w", loc, err)
	}
	if !tagged {
		return fmt.Errorf("%w: no visible %s", schemas.ErrElementNotFound, loc)
	}

	err := p.session.run(ctx, p.session.cfg.ActionTimeout,
		chromedp.Click(targetSelector(id), chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err != nil {
		return fmt.Errorf("failed to click %s: %w", loc, err)
	}

	// The click may have navigated away, in which case the tag is already gone.
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	var ignored bool
	if err := p.eval(cleanupCtx, untagScript(id), &ignored); err != nil {
		p.logger.Debug("Could not remove click target attribute.", zap.Error(err))
	}
	return nil
}

// WaitNetworkIdle waits until browser.network_quiet_period passes with no request in flight.
func (p *Page) WaitNetworkIdle(ctx context.Context, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.session.traffic.WaitIdle(waitCtx, p.session.cfg.NetworkQuietPeriod); err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Debug("Network did not go idle within bound.",
			zap.Duration("timeout", timeout),
			zap.Int("inflight_requests", p.session.traffic.Inflight()),
		)
		return false, nil
	}
	return true, nil
}

// Screenshot captures the full page as PNG.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 selects PNG encoding.
	if err := p.session.run(ctx, p.session.cfg.ActionTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

func (p *Page) eval(ctx context.Context, script string, res interface{}) error {
	return p.session.run(ctx, p.session.cfg.ActionTimeout, chromedp.Evaluate(script, res))
}
