// File: internal/content/generator.go
package content

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
	"github.com/xkilldash9x/rateidea-agent/internal/llmutil"
)

// ErrBackend wraps every transport failure of the text-generation backend.
var ErrBackend = errors.New("text-generation backend failure")

// Role selects the instruction set sent to the backend.
type Role int

const (
	RoleRateAndComment Role = iota
	RoleCreateIdea
)

func (r Role) String() string {
	switch r {
	case RoleRateAndComment:
		return "rate_and_comment"
	case RoleCreateIdea:
		return "create_idea"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

const (
	minScore = 1
	maxScore = 10
)

// Generator asks the backend for structured content and parses it into typed
// records. Unusable payloads produce empty records, not errors.
type Generator struct {
	client      schemas.LLMClient
	logger      *zap.Logger
	cfg         config.ContentConfig
	temperature float64
	rateTmpl    *template.Template
}

// NewGenerator compiles the prompt templates and returns a ready Generator.
func NewGenerator(client schemas.LLMClient, cfg config.ContentConfig, temperature float32, logger *zap.Logger) (*Generator, error) {
	tmpl, err := template.New("rate_user").Option("missingkey=zero").Parse(cfg.RateUserTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: content.rate_user_template: %w", config.ErrConfiguration, err)
	}
	return &Generator{
		client:      client,
		logger:      logger.Named("content"),
		cfg:         cfg,
		temperature: float64(temperature),
		rateTmpl:    tmpl,
	}, nil
}

// GenerateFeedback produces a comment and an optional 1-10 score for the titled idea.
func (g *Generator) GenerateFeedback(ctx context.Context, title string) (schemas.Feedback, error) {
	out, err := g.Generate(ctx, RoleRateAndComment, title)
	if err != nil {
		return schemas.Feedback{}, err
	}
	return out.Feedback, nil
}

// GenerateIdea produces a title and description for a new idea.
func (g *Generator) GenerateIdea(ctx context.Context) (schemas.Idea, error) {
	out, err := g.Generate(ctx, RoleCreateIdea, "")
	if err != nil {
		return schemas.Idea{}, err
	}
	return out.Idea, nil
}

// Generate runs one backend call for role. contextText is the idea title for
// the rate role and ignored for the create role.
func (g *Generator) Generate(ctx context.Context, role Role, contextText string) (schemas.GeneratedContent, error) {
	req, err := g.buildRequest(role, contextText)
	if err != nil {
		return schemas.GeneratedContent{}, err
	}

	g.logger.Debug("Requesting content", zap.Stringer("role", role), zap.String("context", contextText))
	raw, err := g.client.Generate(ctx, req)
	if err != nil {
		return schemas.GeneratedContent{}, fmt.Errorf("%w: %w", ErrBackend, err)
	}

	fields := g.parseFields(role, raw)
	var out schemas.GeneratedContent
	switch role {
	case RoleRateAndComment:
		out.Feedback = feedbackFromFields(fields)
		g.logger.Info("Generated feedback",
			zap.Int("comment_length", len(out.Feedback.Comment)),
			zap.Bool("has_score", out.Feedback.Score != nil),
		)
	case RoleCreateIdea:
		out.Idea = ideaFromFields(fields)
		g.logger.Info("Generated idea", zap.String("title", out.Idea.Title))
	}
	return out, nil
}

func (g *Generator) buildRequest(role Role, contextText string) (schemas.GenerationRequest, error) {
	req := schemas.GenerationRequest{
		Options: schemas.GenerationOptions{
			ForceJSONFormat: true,
			Temperature:     g.temperature,
		},
	}
	switch role {
	case RoleRateAndComment:
		var buf bytes.Buffer
		if err := g.rateTmpl.Execute(&buf, struct{ Title string }{Title: contextText}); err != nil {
			return req, fmt.Errorf("failed to render rate prompt: %w", err)
		}
		req.SystemPrompt = g.cfg.RateSystemPrompt
		req.UserPrompt = buf.String()
	case RoleCreateIdea:
		req.SystemPrompt = g.cfg.CreateSystemPrompt
		req.UserPrompt = g.cfg.CreateUserPrompt
	default:
		return req, fmt.Errorf("unknown content role %v", role)
	}
	return req, nil
}

// parseFields decodes the payload as a flat object. Anything unusable yields nil.
func (g *Generator) parseFields(role Role, raw string) map[string]any {
	parsed, err := llmutil.ParseJSONResponse[map[string]any](raw)
	if err != nil {
		g.logger.Warn("Backend payload not usable, continuing with empty content",
			zap.Stringer("role", role),
			zap.Error(err),
		)
		return nil
	}
	return *parsed
}

func feedbackFromFields(fields map[string]any) schemas.Feedback {
	fb := schemas.Feedback{Comment: stringField(fields, "comment")}
	if score, ok := normalizeScore(fields["score"]); ok {
		fb.Score = &score
	}
	return fb
}

func ideaFromFields(fields map[string]any) schemas.Idea {
	return schemas.Idea{
		Title:       stringField(fields, "title"),
		Description: stringField(fields, "description"),
	}
}

// stringField returns the trimmed string at key; non-strings count as absent.
func stringField(fields map[string]any, key string) string {
	s, ok := fields[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// normalizeScore accepts a JSON number or a numeric string such as "7" or
// "7/10", rounds it, and rejects anything outside 1..10.
func normalizeScore(v any) (int, bool) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case string:
		s := strings.TrimSpace(val)
		if i := strings.Index(s, "/"); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	score := int(math.Round(f))
	if score < minScore || score > maxScore {
		return 0, false
	}
	return score, true
}
