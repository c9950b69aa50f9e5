// internal/workflow/rate.go
package workflow

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
)

const RateAndCommentName = "rate_and_comment"

// RateAndComment finds the least-reviewed idea, scores it and leaves a comment.
type RateAndComment struct {
	deps   Deps
	finder CandidateFinder
	logger *zap.Logger
}

var _ Workflow = (*RateAndComment)(nil)

func NewRateAndComment(deps Deps, finder CandidateFinder) *RateAndComment {
	return &RateAndComment{
		deps:   deps,
		finder: finder,
		logger: deps.Logger.Named("workflow.rate"),
	}
}

func (w *RateAndComment) Name() string { return RateAndCommentName }

// Run executes the workflow on page. A nil error with a non-completed status
// is a normal ending; a *SessionError means the browser or backend failed.
func (w *RateAndComment) Run(ctx context.Context, page schemas.Page) (Outcome, error) {
	m := newMachine(RateAndCommentName, page, w.deps, w.logger)
	site := w.deps.Site

	// -- LOCATE_TARGET --
	m.enter(StateLocateTarget)
	listing, err := m.resolve(site.ListingPath)
	if err != nil {
		return m.fail(err)
	}
	if err := m.navigate(ctx, listing); err != nil {
		return m.fail(err)
	}
	candidate, err := w.finder.FindLowestRanked(ctx, page)
	if err != nil {
		return m.fail(err)
	}
	if candidate == nil {
		return m.finish(StatusSkipped, ErrCodeNotFound, "no eligible candidate on the listing")
	}
	m.target = candidate.URL

	// -- LOAD_TARGET_PAGE --
	m.enter(StateLoadTargetPage)
	itemURL, err := m.resolve(candidate.URL)
	if err != nil {
		return m.fail(err)
	}
	if err := m.navigate(ctx, itemURL); err != nil {
		return m.fail(err)
	}
	m.checkpoint(ctx, "nav-explicit")
	title, err := w.readTitle(ctx, page, candidate.Title)
	if err != nil {
		return m.fail(err)
	}

	// -- GENERATE_CONTENT --
	m.enter(StateGenerateContent)
	w.logger.Info("Generating feedback.", zap.String("title", title))
	feedback, err := w.deps.Content.GenerateFeedback(ctx, title)
	if err != nil {
		return m.fail(err)
	}
	if !feedback.HasComment() && feedback.Score == nil {
		w.logger.Warn("Backend produced no usable comment or score.")
	}

	// -- NAVIGATE_TO_FEEDBACK_FORM --
	m.enter(StateNavigateToFeedbackForm)
	reached, err := w.openFeedbackForm(ctx, m, candidate.URL)
	if err != nil {
		return m.fail(err)
	}
	if !reached {
		if ok, err := w.clickRateLink(ctx, m, itemURL); err != nil {
			return m.fail(err)
		} else if !ok {
			return m.abort(ctx, "rate-button", "rate link not found on the item page")
		}
	}
	m.checkpoint(ctx, "nav-after-rate")

	// -- SET_SCORE --
	m.enter(StateSetScore)
	if err := w.setScore(ctx, m, feedback.Score); err != nil {
		return m.fail(err)
	}

	// -- ADVANCE_TO_COMMENT_STEP --
	m.enter(StateAdvanceToCommentStep)
	if _, clicked, err := m.clickFirstVisible(ctx, site.NextButtonName); err != nil {
		return m.fail(err)
	} else if clicked {
		if err := m.pause(ctx, w.deps.Delays.AfterNext); err != nil {
			return m.fail(err)
		}
		m.checkpoint(ctx, "nav-after-next")
	} else {
		w.logger.Debug("No Next button on the feedback form.", zap.String("code", string(ErrCodeNotFound)))
	}

	if !feedback.HasComment() {
		return m.finish(StatusSkipped, ErrCodeNotFound, "no comment was generated")
	}

	commentBox := schemas.CSS(site.CommentSelector)
	visible, err := page.WaitVisible(ctx, commentBox, w.deps.Waits.CommentBox)
	if err != nil {
		return m.fail(err)
	}
	if !visible {
		return m.abort(ctx, "comment-box-missing", "comment box did not appear")
	}

	// -- SUBMIT_COMMENT --
	m.enter(StateSubmitComment)
	if err := m.fill(ctx, commentBox, feedback.Comment); err != nil {
		if errors.Is(err, schemas.ErrElementNotFound) {
			return m.abort(ctx, "comment-box-missing", "comment box vanished before it could be filled")
		}
		return m.fail(err)
	}
	if err := m.pause(ctx, w.deps.Delays.AfterFill); err != nil {
		return m.fail(err)
	}

	name, clicked, err := m.clickFirstVisible(ctx, site.SubmitButtonName, site.SubmitFallbackName)
	if err != nil {
		return m.fail(err)
	}
	if !clicked {
		return m.abort(ctx, "submit-missing", "no submit button found")
	}
	w.logger.Info("Feedback submitted.", zap.String("button", name))

	if _, err := page.WaitNetworkIdle(ctx, w.deps.Waits.NetworkIdle); err != nil {
		return m.fail(err)
	}

	// -- CONFIRMED --
	m.enter(StateConfirmed)
	if site.FeedbackAckText == "" {
		return m.finish(StatusCompleted, "", "")
	}
	acked, err := page.WaitVisible(ctx, schemas.Text(site.FeedbackAckText), w.deps.Waits.Ack)
	if err != nil {
		return m.fail(err)
	}
	if !acked {
		w.logger.Warn("Submission acknowledgement not observed.", zap.String("expected", site.FeedbackAckText))
		return m.finish(StatusUnconfirmed, ErrCodeNotFound, "acknowledgement not observed")
	}
	return m.finish(StatusCompleted, "", "")
}

// readTitle reads the item page heading, falling back to the listing title.
func (w *RateAndComment) readTitle(ctx context.Context, page schemas.Page, fallback string) (string, error) {
	selector := w.deps.Site.TitleSelector
	if selector == "" {
		return fallback, nil
	}
	title, err := page.Text(ctx, schemas.CSS(selector))
	switch {
	case errors.Is(err, schemas.ErrElementNotFound):
		w.logger.Debug("No heading on the item page, using the listing title.", zap.String("code", string(ErrCodeNotFound)))
		return fallback, nil
	case err != nil:
		return "", err
	case strings.TrimSpace(title) == "":
		return fallback, nil
	}
	return strings.TrimSpace(title), nil
}

// feedbackPath rewrites an item path into its feedback form path by replacing
// the first occurrence of the item prefix.
func feedbackPath(itemPath, itemPrefix, feedbackPrefix string) (string, bool) {
	if itemPrefix == "" || !strings.Contains(itemPath, itemPrefix) {
		return "", false
	}
	return strings.Replace(itemPath, itemPrefix, feedbackPrefix, 1), true
}

// openFeedbackForm navigates straight to the feedback form and reports whether
// it was confirmed: the URL carries the feedback prefix and the form marker is visible.
func (w *RateAndComment) openFeedbackForm(ctx context.Context, m *machine, itemPath string) (bool, error) {
	site := w.deps.Site
	path, ok := feedbackPath(itemPath, site.ItemPrefix, site.FeedbackPrefix)
	if !ok {
		w.logger.Info("Item path has no item prefix, using the rate link.", zap.String("path", itemPath))
		return false, nil
	}
	target, err := m.resolve(path)
	if err != nil {
		return false, err
	}
	w.logger.Info("Opening feedback form directly.", zap.String("url", target))
	if err := m.navigate(ctx, target); err != nil {
		return false, err
	}

	current, err := m.page.URL(ctx)
	if err != nil {
		return false, err
	}
	if !strings.Contains(current, site.FeedbackPrefix) {
		w.logger.Warn("Feedback URL redirected elsewhere.", zap.String("url", current))
		return false, nil
	}
	if site.FeedbackFormSelector == "" {
		return true, nil
	}
	visible, err := m.page.WaitVisible(ctx, schemas.CSS(site.FeedbackFormSelector), w.deps.Waits.FeedbackForm)
	if err != nil {
		return false, err
	}
	if !visible {
		w.logger.Warn("Feedback form did not render.", zap.String("url", current))
	}
	return visible, nil
}

// clickRateLink reloads the item page and follows its Rate link.
func (w *RateAndComment) clickRateLink(ctx context.Context, m *machine, itemURL string) (bool, error) {
	site := w.deps.Site
	if err := m.navigate(ctx, itemURL); err != nil {
		return false, err
	}
	link := schemas.Role("link", site.RateLinkName)
	visible, err := m.page.WaitVisible(ctx, link, w.deps.Waits.RateControl)
	if err != nil || !visible {
		return false, err
	}
	if href, ok, err := m.page.Attribute(ctx, link, "href"); err != nil {
		w.logger.Debug("Could not read the rate link target.", zap.Error(err))
	} else if ok {
		w.logger.Info("Following rate link.", zap.String("href", href))
	}
	if err := m.click(ctx, link); err != nil {
		if errors.Is(err, schemas.ErrElementNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := m.pause(ctx, w.deps.Delays.AfterRateClick); err != nil {
		return false, err
	}
	if current, err := m.page.URL(ctx); err == nil {
		w.logger.Info("Followed rate link.", zap.String("url", current))
	}
	return true, nil
}

// setScore moves the slider to score. A missing slider is logged and the
// workflow continues without a score.
func (w *RateAndComment) setScore(ctx context.Context, m *machine, score *int) error {
	if score == nil {
		w.logger.Info("No score to apply.")
		return nil
	}
	slider := schemas.CSS(w.deps.Site.SliderSelector)
	visible, err := m.page.WaitVisible(ctx, slider, w.deps.Waits.Slider)
	if err != nil {
		return err
	}
	if !visible {
		w.logger.Warn("Slider not found, continuing without a score.", zap.String("code", string(ErrCodeNotFound)))
		m.checkpoint(ctx, "slider-missing")
		return nil
	}

	w.logger.Info("Setting score.", zap.Int("score", *score))
	if err := m.setRange(ctx, slider, strconv.Itoa(*score)); err != nil {
		if errors.Is(err, schemas.ErrElementNotFound) {
			w.logger.Warn("Slider disappeared before it could be set.")
			m.checkpoint(ctx, "slider-missing")
			return nil
		}
		return err
	}
	return m.pause(ctx, w.deps.Delays.AfterSlider)
}
