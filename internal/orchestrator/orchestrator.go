// File: internal/orchestrator/orchestrator.go
// Description: Runs one scheduled action inside one browser session and
// guarantees the session is released however the action ends.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
	"github.com/xkilldash9x/rateidea-agent/internal/schedule"
	"github.com/xkilldash9x/rateidea-agent/internal/workflow"
)

const (
	idleWorkflowName = "idle"

	sessionCloseTimeout = 30 * time.Second
	errorCaptureTimeout = 15 * time.Second
)

// ErrPanic marks a run that was ended by a recovered panic.
var ErrPanic = errors.New("run panicked")

// ErrorRecorder captures the page when a run fails.
type ErrorRecorder interface {
	CaptureError(ctx context.Context, page schemas.Page) string
}

// Report summarizes one run.
type Report struct {
	RunID     string           `json:"run_id"`
	Action    schedule.Action  `json:"action"`
	Outcome   workflow.Outcome `json:"outcome"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
}

// Orchestrator opens a session, performs exactly one action and closes the session.
type Orchestrator struct {
	cfg       *config.Config
	logger    *zap.Logger
	sessions  schemas.SessionFactory
	policy    schedule.Policy
	pacer     workflow.Pacer
	recorder  ErrorRecorder
	workflows map[schedule.Action]workflow.Workflow

	override schedule.Action
	now      func() time.Time
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithAction bypasses the schedule and always performs a.
func WithAction(a schedule.Action) Option {
	return func(o *Orchestrator) { o.override = a }
}

// WithClock replaces time.Now for schedule decisions.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator. workflows maps the rate and create actions to
// their implementations; the idle action is built in.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	sessions schemas.SessionFactory,
	policy schedule.Policy,
	pacer workflow.Pacer,
	recorder ErrorRecorder,
	workflows map[schedule.Action]workflow.Workflow,
	opts ...Option,
) (*Orchestrator, error) {
	if cfg == nil ||
		logger == nil ||
		sessions == nil ||
		policy == nil ||
		pacer == nil ||
		recorder == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	for _, a := range []schedule.Action{schedule.ActionRate, schedule.ActionCreate} {
		if workflows[a] == nil {
			return nil, fmt.Errorf("no workflow registered for action %q", a)
		}
	}

	o := &Orchestrator{
		cfg:       cfg,
		logger:    logger.Named("orchestrator"),
		sessions:  sessions,
		policy:    policy,
		pacer:     pacer,
		recorder:  recorder,
		workflows: workflows,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// SelectAction returns the action a run started at now would perform.
func (o *Orchestrator) SelectAction(now time.Time) schedule.Action {
	if o.override != "" {
		return o.override
	}
	return o.policy.Select(now)
}

// Run performs one action. Workflows that end early (nothing to rate, a form
// that never advanced, a missing acknowledgement) are reported through the
// outcome with a nil error. Browser and backend failures and panics are
// returned after an error screenshot has been taken. The session is closed
// exactly once on every path.
func (o *Orchestrator) Run(ctx context.Context) (report Report, err error) {
	startedAt := o.now()
	report = Report{
		RunID:     uuid.New().String(),
		StartedAt: startedAt,
		Action:    o.SelectAction(startedAt),
	}
	logger := o.logger.With(zap.String("run_id", report.RunID), zap.String("action", string(report.Action)))
	logger.Info("Run starting.", zap.String("policy", o.policy.Name()), zap.Bool("override", o.override != ""))

	session, err := o.sessions.NewSession(ctx)
	if err != nil {
		report.Outcome = workflow.Outcome{Status: workflow.StatusFailed, Code: workflow.ErrCodeSessionFailure, Reason: err.Error()}
		report.Duration = time.Since(startedAt)
		logger.Error("Could not open a browser session.", zap.Error(err))
		return report, fmt.Errorf("failed to open browser session: %w", err)
	}
	defer o.release(ctx, session, logger)

	page := session.Page()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic during run.", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			report.Outcome.Status = workflow.StatusFailed
			report.Outcome.Code = workflow.ErrCodeSessionFailure
			report.Outcome.Reason = err.Error()
		}
		if err != nil {
			o.captureError(ctx, page, logger)
		}
		report.Duration = time.Since(startedAt)
		o.logReport(logger, report, err)
	}()

	if err := o.pacer.Pace(ctx); err != nil {
		return report, err
	}
	if err := page.Navigate(ctx, o.cfg.Site.BaseURL); err != nil {
		report.Outcome = workflow.Outcome{Status: workflow.StatusFailed, Code: workflow.ErrCodeSessionFailure, Reason: err.Error()}
		return report, fmt.Errorf("initial navigation failed: %w", err)
	}

	report.Outcome, err = o.perform(ctx, report.Action, page, logger)
	return report, err
}

func (o *Orchestrator) perform(ctx context.Context, action schedule.Action, page schemas.Page, logger *zap.Logger) (workflow.Outcome, error) {
	if action == schedule.ActionIdle {
		return o.idle(ctx, page, logger)
	}
	wf, ok := o.workflows[action]
	if !ok {
		return workflow.Outcome{Status: workflow.StatusFailed}, fmt.Errorf("no workflow for action %q", action)
	}
	logger.Info("Running workflow.", zap.String("workflow", wf.Name()))
	return wf.Run(ctx, page)
}

// idle browses the dashboard and waits. It never writes to the site.
func (o *Orchestrator) idle(ctx context.Context, page schemas.Page, logger *zap.Logger) (workflow.Outcome, error) {
	out := workflow.Outcome{Workflow: idleWorkflowName, Status: workflow.StatusCompleted}
	logger.Info("No action scheduled today. Browsing.")

	dashboard, err := o.cfg.Site.Resolve(o.cfg.Site.DashboardPath)
	if err != nil {
		out.Status = workflow.StatusFailed
		return out, err
	}
	if err := o.pacer.Pace(ctx); err != nil {
		out.Status = workflow.StatusFailed
		return out, err
	}
	if err := page.Navigate(ctx, dashboard); err != nil {
		out.Status = workflow.StatusFailed
		return out, fmt.Errorf("failed to open dashboard: %w", err)
	}
	if err := o.pacer.Pause(ctx, o.cfg.Delays.IdleBrowse); err != nil {
		out.Status = workflow.StatusFailed
		return out, err
	}
	return out, nil
}

// captureError snapshots the page on a context that survives the run's cancellation.
func (o *Orchestrator) captureError(ctx context.Context, page schemas.Page, logger *zap.Logger) {
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorCaptureTimeout)
	defer cancel()
	if path := o.recorder.CaptureError(captureCtx, page); path != "" {
		logger.Info("Error screenshot saved.", zap.String("path", path))
	}
}

func (o *Orchestrator) release(ctx context.Context, session schemas.Session, logger *zap.Logger) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionCloseTimeout)
	defer cancel()
	if err := session.Close(closeCtx); err != nil {
		logger.Warn("Failed to close browser session cleanly.", zap.Error(err))
		return
	}
	logger.Debug("Browser session closed.")
}

func (o *Orchestrator) logReport(logger *zap.Logger, r Report, err error) {
	fields := []zap.Field{
		zap.String("workflow", r.Outcome.Workflow),
		zap.String("status", string(r.Outcome.Status)),
		zap.String("code", string(r.Outcome.Code)),
		zap.String("target", r.Outcome.Target),
		zap.Duration("duration", r.Duration),
	}
	if err != nil {
		logger.Error("Run failed.", append(fields, zap.Error(err))...)
		return
	}
	logger.Info("Run finished.", fields...)
}
