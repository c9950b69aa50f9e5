// internal/workflow/create.go
package workflow

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
)

const CreateIdeaName = "create_idea"

// CreateIdea posts a freshly generated idea through the two-step create form.
type CreateIdea struct {
	deps   Deps
	logger *zap.Logger
}

var _ Workflow = (*CreateIdea)(nil)

func NewCreateIdea(deps Deps) *CreateIdea {
	return &CreateIdea{deps: deps, logger: deps.Logger.Named("workflow.create")}
}

func (w *CreateIdea) Name() string { return CreateIdeaName }

// Run executes the workflow on page. An empty idea is still submitted; the
// site decides whether to accept it.
func (w *CreateIdea) Run(ctx context.Context, page schemas.Page) (Outcome, error) {
	m := newMachine(CreateIdeaName, page, w.deps, w.logger)
	site := w.deps.Site
	waits := w.deps.Waits

	// -- LOAD_CREATE_PAGE --
	m.enter(StateLoadCreatePage)
	createURL, err := m.resolve(site.CreatePath)
	if err != nil {
		return m.fail(err)
	}
	if err := m.navigate(ctx, createURL); err != nil {
		return m.fail(err)
	}

	// -- GENERATE_CONTENT --
	m.enter(StateGenerateContent)
	idea, err := w.deps.Content.GenerateIdea(ctx)
	if err != nil {
		return m.fail(err)
	}
	if idea.IsEmpty() {
		w.logger.Warn("Backend produced an empty idea, submitting blank fields.")
	}
	m.target = idea.Title
	w.logger.Info("Submitting new idea.", zap.String("title", idea.Title))

	// -- FILL_STEP1 --
	m.enter(StateFillStep1)
	titleField := schemas.Placeholder(site.TitlePlaceholder)
	visible, err := page.WaitVisible(ctx, titleField, waits.FormField)
	if err != nil {
		return m.fail(err)
	}
	if !visible {
		return m.abort(ctx, "create-form-missing", "title field did not appear")
	}
	fields := []struct {
		loc   schemas.Locator
		value string
	}{
		{titleField, idea.Title},
		{schemas.Placeholder(site.DescriptionPlaceholder), idea.Description},
	}
	for _, f := range fields {
		if err := m.fill(ctx, f.loc, f.value); err != nil {
			if errors.Is(err, schemas.ErrElementNotFound) {
				return m.abort(ctx, "create-form-missing", "form field not found: "+f.loc.String())
			}
			return m.fail(err)
		}
	}
	if err := m.pause(ctx, w.deps.Delays.AfterFill); err != nil {
		return m.fail(err)
	}

	// -- ADVANCE --
	m.enter(StateAdvance)
	next := schemas.Role("button", site.NextButtonName)
	if ok, err := w.waitAndClick(ctx, m, next); err != nil {
		return m.fail(err)
	} else if !ok {
		return m.abort(ctx, "next-button-missing", "next button did not appear")
	}
	if err := m.pause(ctx, w.deps.Delays.AfterNext); err != nil {
		return m.fail(err)
	}

	// -- CONFIRM --
	m.enter(StateConfirm)
	create := schemas.Role("button", site.CreateButtonName)
	visible, err = page.WaitVisible(ctx, create, waits.Control)
	if err != nil {
		return m.fail(err)
	}
	if !visible {
		return m.abort(ctx, "step2-button-missing", "create button did not appear")
	}
	m.checkpoint(ctx, "before-submit")

	// -- SUBMIT --
	m.enter(StateSubmit)
	if err := m.click(ctx, create); err != nil {
		if errors.Is(err, schemas.ErrElementNotFound) {
			return m.abort(ctx, "step2-button-missing", "create button vanished before the click")
		}
		return m.fail(err)
	}

	// -- WAIT_FOR_ACK --
	m.enter(StateWaitForAck)
	acked, err := page.WaitVisible(ctx, schemas.Text(site.CreateAckText), waits.Ack)
	if err != nil {
		return m.fail(err)
	}
	if !acked {
		w.logger.Warn("Did not see the creation acknowledgement.", zap.String("expected", site.CreateAckText))
		m.checkpoint(ctx, "submission-failed")
		return m.finish(StatusUnconfirmed, ErrCodeNotFound, "acknowledgement not observed")
	}
	if current, err := page.URL(ctx); err == nil {
		w.logger.Info("Idea created.", zap.String("url", current))
	}
	return m.finish(StatusCompleted, "", "")
}

func (w *CreateIdea) waitAndClick(ctx context.Context, m *machine, loc schemas.Locator) (bool, error) {
	visible, err := m.page.WaitVisible(ctx, loc, w.deps.Waits.Control)
	if err != nil || !visible {
		return false, err
	}
	if err := m.click(ctx, loc); err != nil {
		if errors.Is(err, schemas.ErrElementNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
