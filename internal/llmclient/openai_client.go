// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
)

// OpenAIClient implements schemas.LLMClient over the chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
	cfg    config.LLMConfig
	logger *zap.Logger
}

var _ schemas.LLMClient = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration. Retries are disabled:
// a run makes one bounded attempt per request.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai client requires an API key")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}

	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		cfg:    cfg,
		logger: logger.Named("llm_client.openai"),
	}, nil
}

// Generate sends one chat completion and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	if c.cfg.APITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.APITimeout)
		defer cancel()
	}

	params := c.buildParams(req)
	start := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		c.logger.Warn("OpenAI returned no choices", zap.String("model", c.model))
		return "", nil
	}

	c.logger.Debug("LLM generation complete (OpenAI)",
		zap.String("model", resp.Model),
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
		zap.String("finish_reason", resp.Choices[0].FinishReason),
	)
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAIClient) buildParams(req schemas.GenerationRequest) openai.ChatCompletionNewParams {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}

	temperature := req.Options.Temperature
	if temperature == 0 {
		temperature = float64(c.cfg.Temperature)
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}

	maxTokens := req.Options.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	if req.Options.ForceJSONFormat {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}
	return params
}

// Close is a no-op; the underlying HTTP client holds no resources that need releasing.
func (c *OpenAIClient) Close() error { return nil }
