// Package workflow drives the site's multi-step forms as explicit state machines.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

// Workflow is one write action against the site.
type Workflow interface {
	Name() string
	Run(ctx context.Context, page schemas.Page) (Outcome, error)
}

// CandidateFinder picks the listing entry to rate.
type CandidateFinder interface {
	FindLowestRanked(ctx context.Context, page schemas.Page) (*schemas.Candidate, error)
}

// ContentSource produces the text posted by the workflows.
type ContentSource interface {
	GenerateFeedback(ctx context.Context, title string) (schemas.Feedback, error)
	GenerateIdea(ctx context.Context) (schemas.Idea, error)
}

// Pacer spaces interactions out.
type Pacer interface {
	Pause(ctx context.Context, d time.Duration) error
	Pace(ctx context.Context) error
}

// Recorder captures checkpoint screenshots. Failures are its own concern.
type Recorder interface {
	Capture(ctx context.Context, page schemas.Page, label string) string
}

// Deps are the collaborators shared by both workflows.
type Deps struct {
	Site    config.SiteConfig
	Waits   config.WaitsConfig
	Delays  config.DelaysConfig
	Content ContentSource
	Pacer   Pacer
	Capture Recorder
	Logger  *zap.Logger
}

// machine tracks the current state of one workflow run and builds its outcome.
type machine struct {
	workflow string
	state    State
	page     schemas.Page
	deps     Deps
	logger   *zap.Logger
	target   string
}

func newMachine(workflow string, page schemas.Page, deps Deps, logger *zap.Logger) *machine {
	return &machine{workflow: workflow, state: StateStart, page: page, deps: deps, logger: logger}
}

func (m *machine) enter(next State) {
	m.logger.Info("State transition.", zap.Stringer("from", m.state), zap.Stringer("to", next))
	m.state = next
}

func (m *machine) outcome(status Status, code ErrorCode, reason string) Outcome {
	return Outcome{
		Workflow: m.workflow,
		Status:   status,
		State:    m.state,
		Code:     code,
		Reason:   reason,
		Target:   m.target,
	}
}

// finish records a terminal status that is not a failure.
func (m *machine) finish(status Status, code ErrorCode, reason string) (Outcome, error) {
	out := m.outcome(status, code, reason)
	m.logger.Info("Workflow finished.",
		zap.String("status", string(status)),
		zap.Stringer("state", m.state),
		zap.String("code", string(code)),
		zap.String("reason", reason),
		zap.String("target", m.target),
	)
	return out, nil
}

// abort ends the run after a form failed to advance, leaving a labelled screenshot behind.
func (m *machine) abort(ctx context.Context, label, reason string) (Outcome, error) {
	m.logger.Error("Form did not advance, aborting.", zap.Stringer("state", m.state), zap.String("reason", reason))
	m.checkpoint(ctx, label)
	return m.finish(StatusAborted, ErrCodeFormTransition, reason)
}

// fail wraps err as a SessionError for the current state.
func (m *machine) fail(err error) (Outcome, error) {
	m.logger.Error("Workflow failed.", zap.Stringer("state", m.state), zap.Error(err))
	return m.outcome(StatusFailed, ErrCodeSessionFailure, err.Error()),
		&SessionError{Workflow: m.workflow, State: m.state, Err: err}
}

func (m *machine) checkpoint(ctx context.Context, label string) {
	if m.deps.Capture != nil {
		m.deps.Capture.Capture(ctx, m.page, label)
	}
}

func (m *machine) pause(ctx context.Context, d time.Duration) error {
	return m.deps.Pacer.Pause(ctx, d)
}

// -- Paced page interactions --

func (m *machine) navigate(ctx context.Context, url string) error {
	if err := m.deps.Pacer.Pace(ctx); err != nil {
		return err
	}
	return m.page.Navigate(ctx, url)
}

func (m *machine) click(ctx context.Context, loc schemas.Locator) error {
	if err := m.deps.Pacer.Pace(ctx); err != nil {
		return err
	}
	return m.page.Click(ctx, loc)
}

func (m *machine) fill(ctx context.Context, loc schemas.Locator, value string) error {
	if err := m.deps.Pacer.Pace(ctx); err != nil {
		return err
	}
	return m.page.Fill(ctx, loc, value)
}

func (m *machine) setRange(ctx context.Context, loc schemas.Locator, value string) error {
	if err := m.deps.Pacer.Pace(ctx); err != nil {
		return err
	}
	return m.page.SetRangeValue(ctx, loc, value)
}

// clickFirstVisible clicks the first of names that is rendered as a visible
// button. It reports false when none is.
func (m *machine) clickFirstVisible(ctx context.Context, names ...string) (string, bool, error) {
	for _, name := range names {
		if name == "" {
			continue
		}
		loc := schemas.Role("button", name)
		visible, err := m.page.IsVisible(ctx, loc)
		if err != nil {
			return "", false, err
		}
		if !visible {
			m.logger.Debug("Button not visible.", zap.String("name", name))
			continue
		}
		if err := m.click(ctx, loc); err != nil {
			if errors.Is(err, schemas.ErrElementNotFound) {
				continue
			}
			return "", false, err
		}
		return name, true, nil
	}
	return "", false, nil
}

func (m *machine) resolve(ref string) (string, error) {
	u, err := m.deps.Site.Resolve(ref)
	if err != nil {
		return "", fmt.Errorf("cannot build URL: %w", err)
	}
	return u, nil
}
