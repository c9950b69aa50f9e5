// Package locator picks the listing entry that most needs attention.
package locator

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

// Finder scans the current page for candidate links and ranks them.
type Finder struct {
	logger *zap.Logger
	site   config.SiteConfig
	waits  config.WaitsConfig
	signal Signal

	excluded map[string]struct{}
}

// NewFinder creates a Finder ranking by signal.
func NewFinder(site config.SiteConfig, waits config.WaitsConfig, signal Signal, logger *zap.Logger) *Finder {
	excluded := make(map[string]struct{}, len(site.Exclusions))
	for _, href := range site.Exclusions {
		excluded[href] = struct{}{}
	}
	return &Finder{
		logger:   logger.Named("locator"),
		site:     site,
		waits:    waits,
		signal:   signal,
		excluded: excluded,
	}
}

// FindLowestRanked returns the candidate with the smallest signal on the page
// that is currently loaded. It returns nil, nil when no candidate link shows
// up within waits.candidates or every link is excluded.
func (f *Finder) FindLowestRanked(ctx context.Context, page schemas.Page) (*schemas.Candidate, error) {
	loc := schemas.CSS(f.site.CandidateSelector)

	visible, err := page.WaitVisible(ctx, loc, f.waits.Candidates)
	if err != nil {
		return nil, fmt.Errorf("failed waiting for candidates: %w", err)
	}
	if !visible {
		f.logger.Warn("No candidate links appeared on the page.", zap.Duration("waited", f.waits.Candidates))
		return nil, nil
	}

	snaps, err := page.Snapshot(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot candidates: %w", err)
	}

	candidates := f.Candidates(snaps)
	best := SelectLowest(candidates)
	if best == nil {
		f.logger.Info("No eligible candidates after filtering.", zap.Int("links", len(snaps)))
		return nil, nil
	}
	f.logger.Info("Selected candidate.",
		zap.String("url", best.URL),
		zap.String("title", best.Title),
		zap.String("signal", f.signal.Name()),
		zap.Int("value", best.Signal),
		zap.Int("eligible", len(candidates)),
	)
	return best, nil
}

// Candidates turns element snapshots into candidates, dropping hidden
// elements, links without an href and excluded paths. Document order is kept.
func (f *Finder) Candidates(snaps []schemas.ElementSnapshot) []schemas.Candidate {
	out := make([]schemas.Candidate, 0, len(snaps))
	for _, snap := range snaps {
		href := strings.TrimSpace(snap.Attributes["href"])
		if href == "" {
			continue
		}
		if _, skip := f.excluded[href]; skip {
			continue
		}
		if !snap.Visible {
			f.logger.Debug("Skipping hidden candidate.", zap.String("href", href))
			continue
		}

		c, err := f.parse(snap, href)
		if err != nil {
			f.logger.Debug("Skipping unparseable candidate.", zap.String("href", href), zap.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out
}

func (f *Finder) parse(snap schemas.ElementSnapshot, href string) (schemas.Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snap.OuterHTML))
	if err != nil {
		return schemas.Candidate{}, err
	}
	value, ok := f.signal.Extract(doc.Selection)
	return schemas.Candidate{
		URL:       href,
		Title:     title(doc.Selection, snap.Text),
		Signal:    value,
		HasSignal: ok,
		Position:  snap.Position,
	}, nil
}

// title prefers the first heading inside the entry and falls back to its text.
func title(sel *goquery.Selection, fallback string) string {
	if h := sel.Find("h1, h2, h3, h4").First(); h.Length() > 0 {
		if t := collapse(h.Text()); t != "" {
			return t
		}
	}
	if t := collapse(fallback); t != "" {
		return t
	}
	return collapse(sel.Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SelectLowest returns the candidate with the strictly smallest signal. When
// several share it, the first one in the slice wins. It returns nil for an
// empty slice.
func SelectLowest(candidates []schemas.Candidate) *schemas.Candidate {
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Signal < best.Signal {
			best = c
		}
	}
	return &best
}
