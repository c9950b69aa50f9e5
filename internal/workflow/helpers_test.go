package workflow

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
	"github.com/xkilldash9x/rateidea-agent/internal/content"
	"github.com/xkilldash9x/rateidea-agent/internal/locator"
	"github.com/xkilldash9x/rateidea-agent/internal/mocks"
	"github.com/xkilldash9x/rateidea-agent/internal/pacing"
)

const testWait = 20 * time.Millisecond

type harness struct {
	cfg     *config.Config
	deps    Deps
	llm     *mocks.MockLLMClient
	capture *recordingCapture
	finder  *locator.Finder
	page    *fakePage
}

// newHarness wires the real generator, locator and pacer around a mocked
// backend and a fake page. All waits are short and all delays zero.
func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cfg := config.NewDefaultConfig()
	cfg.Waits = config.WaitsConfig{
		Candidates:   testWait,
		FeedbackForm: testWait,
		RateControl:  testWait,
		Slider:       testWait,
		CommentBox:   testWait,
		FormField:    testWait,
		Control:      testWait,
		NetworkIdle:  testWait,
		Ack:          testWait,
	}
	cfg.Delays = config.DelaysConfig{}

	llm := new(mocks.MockLLMClient)
	gen, err := content.NewGenerator(llm, cfg.Content, 0, logger)
	require.NoError(t, err)

	capture := &recordingCapture{}
	h := &harness{
		cfg:     cfg,
		llm:     llm,
		capture: capture,
		page:    newFakePage(),
		finder:  locator.NewFinder(cfg.Site, cfg.Waits, locator.FeedbackSignal(), logger),
	}
	h.deps = Deps{
		Site:    cfg.Site,
		Waits:   cfg.Waits,
		Delays:  cfg.Delays,
		Content: gen,
		Pacer:   pacing.New(config.PacingConfig{}, logger),
		Capture: capture,
		Logger:  logger,
	}
	return h
}

func (h *harness) respond(payload string) {
	h.llm.On("Generate", mock.Anything, mock.Anything).Return(payload, nil)
}

// -- Locators the site exposes --

func (h *harness) candidates() schemas.Locator { return schemas.CSS(h.cfg.Site.CandidateSelector) }
func (h *harness) form() schemas.Locator { return schemas.CSS(h.cfg.Site.FeedbackFormSelector) }
func (h *harness) slider() schemas.Locator { return schemas.CSS(h.cfg.Site.SliderSelector) }
func (h *harness) commentBox() schemas.Locator { return schemas.CSS(h.cfg.Site.CommentSelector) }
func (h *harness) next() schemas.Locator { return schemas.Role("button", h.cfg.Site.NextButtonName) }
func (h *harness) submit() schemas.Locator { return schemas.Role("button", h.cfg.Site.SubmitButtonName) }
func (h *harness) fallbackSubmit() schemas.Locator {
	return schemas.Role("button", h.cfg.Site.SubmitFallbackName)
}
func (h *harness) rateLink() schemas.Locator { return schemas.Role("link", h.cfg.Site.RateLinkName) }
func (h *harness) titleField() schemas.Locator {
	return schemas.Placeholder(h.cfg.Site.TitlePlaceholder)
}
func (h *harness) descriptionField() schemas.Locator {
	return schemas.Placeholder(h.cfg.Site.DescriptionPlaceholder)
}
func (h *harness) createButton() schemas.Locator {
	return schemas.Role("button", h.cfg.Site.CreateButtonName)
}
func (h *harness) createAck() schemas.Locator { return schemas.Text(h.cfg.Site.CreateAckText) }

func card(pos int, href, label string) schemas.ElementSnapshot {
	html := fmt.Sprintf(`<a href=%q><h3>Idea %d</h3>`, href, pos)
	if label != "" {
		html += fmt.Sprintf(`<span>%s</span>`, label)
	}
	return schemas.ElementSnapshot{
		Position:   pos,
		OuterHTML:  html + `</a>`,
		Attributes: map[string]string{"href": href},
		Visible:    true,
	}
}

// listing shows three ideas: a with 2 feedback, b without a label and c with 5.
func (h *harness) listing() {
	h.page.show(h.candidates())
	h.page.snapshots[h.candidates().String()] = []schemas.ElementSnapshot{
		card(0, "/create", ""),
		card(1, "/idea/a", "2 feedback"),
		card(2, "/idea/b", ""),
		card(3, "/idea/c", "5 feedback"),
	}
	h.page.texts[schemas.CSS(h.cfg.Site.TitleSelector).String()] = "Idea B"
}

// feedbackForm renders step one of the form; clicking Next reveals step two.
func (h *harness) feedbackForm() {
	h.page.show(h.form(), h.slider(), h.next())
	h.page.onClick[h.next().String()] = func(p *fakePage) {
		p.hide(h.slider())
		p.show(h.commentBox(), h.submit())
	}
}

// createForm renders step one; Next reveals the Create Idea button and
// Create Idea reveals the acknowledgement.
func (h *harness) createForm() {
	h.page.show(h.titleField(), h.descriptionField(), h.next())
	h.page.onClick[h.next().String()] = func(p *fakePage) {
		p.show(h.createButton())
	}
	h.page.onClick[h.createButton().String()] = func(p *fakePage) {
		p.show(h.createAck())
	}
}
