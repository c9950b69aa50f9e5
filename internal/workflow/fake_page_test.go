package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
)

type valueCall struct {
	Loc   schemas.Locator
	Value string
}

// fakePage is a small in-memory site. Elements are keyed by locator string and
// can be shown or hidden by navigations and clicks.
type fakePage struct {
	mu sync.Mutex

	url         string
	navigations []string
	redirects   map[string]string
	navErr      error

	visible    map[string]bool
	snapshots  map[string][]schemas.ElementSnapshot
	texts      map[string]string
	attributes map[string]map[string]string
	onClick    map[string]func(p *fakePage)

	fills  []valueCall
	ranges []valueCall
	clicks []schemas.Locator
	waits  []time.Duration
}

func newFakePage() *fakePage {
	return &fakePage{
		redirects:  make(map[string]string),
		visible:    make(map[string]bool),
		snapshots:  make(map[string][]schemas.ElementSnapshot),
		texts:      make(map[string]string),
		attributes: make(map[string]map[string]string),
		onClick:    make(map[string]func(p *fakePage)),
	}
}

var _ schemas.Page = (*fakePage)(nil)

func (p *fakePage) show(locs ...schemas.Locator) {
	for _, l := range locs {
		p.visible[l.String()] = true
	}
}

func (p *fakePage) hide(locs ...schemas.Locator) {
	for _, l := range locs {
		delete(p.visible, l.String())
	}
}

func (p *fakePage) isShown(loc schemas.Locator) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[loc.String()]
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.navErr != nil {
		return p.navErr
	}
	p.navigations = append(p.navigations, url)
	if to, ok := p.redirects[url]; ok {
		url = to
	}
	p.url = url
	return ctx.Err()
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

// WaitVisible behaves like the real driver: it returns as soon as the element
// is visible and otherwise blocks for the full timeout.
func (p *fakePage) WaitVisible(ctx context.Context, loc schemas.Locator, timeout time.Duration) (bool, error) {
	p.mu.Lock()
	p.waits = append(p.waits, timeout)
	p.mu.Unlock()
	if p.isShown(loc) {
		return true, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-timer.C:
		return p.isShown(loc), nil
	}
}

func (p *fakePage) IsVisible(ctx context.Context, loc schemas.Locator) (bool, error) {
	return p.isShown(loc), nil
}

func (p *fakePage) Snapshot(ctx context.Context, loc schemas.Locator) ([]schemas.ElementSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshots[loc.String()], nil
}

func (p *fakePage) Text(ctx context.Context, loc schemas.Locator) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.texts[loc.String()]
	if !ok {
		return "", schemas.ErrElementNotFound
	}
	return t, nil
}

func (p *fakePage) Attribute(ctx context.Context, loc schemas.Locator, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visible[loc.String()] {
		return "", false, schemas.ErrElementNotFound
	}
	v, ok := p.attributes[loc.String()][name]
	return v, ok, nil
}

func (p *fakePage) Fill(ctx context.Context, loc schemas.Locator, value string) error {
	if !p.isShown(loc) {
		return schemas.ErrElementNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fills = append(p.fills, valueCall{loc, value})
	return nil
}

func (p *fakePage) SetRangeValue(ctx context.Context, loc schemas.Locator, value string) error {
	if !p.isShown(loc) {
		return schemas.ErrElementNotFound
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ranges = append(p.ranges, valueCall{loc, value})
	return nil
}

func (p *fakePage) Click(ctx context.Context, loc schemas.Locator) error {
	if !p.isShown(loc) {
		return schemas.ErrElementNotFound
	}
	p.mu.Lock()
	p.clicks = append(p.clicks, loc)
	effect := p.onClick[loc.String()]
	p.mu.Unlock()
	if effect != nil {
		p.mu.Lock()
		effect(p)
		p.mu.Unlock()
	}
	return nil
}

func (p *fakePage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) (bool, error) {
	return true, ctx.Err()
}

func (p *fakePage) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

// writes reports whether any fill, range or click happened.
func (p *fakePage) writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.fills) + len(p.ranges) + len(p.clicks)
}

// recordingCapture stores checkpoint labels.
type recordingCapture struct {
	mu     sync.Mutex
	labels []string
}

func (r *recordingCapture) Capture(ctx context.Context, page schemas.Page, label string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.labels = append(r.labels, label)
	return label
}

func (r *recordingCapture) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.labels...)
}
