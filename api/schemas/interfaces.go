package schemas

import (
	"context"
)

// -- LLM Client Schemas & Interface --

// GenerationOptions provides detailed parameters to control the text generation
// process of the LLM, such as creativity (temperature) and output format.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`       // Zero leaves the provider default in place.
	ForceJSONFormat bool    `json:"force_json_format"` // If true, forces the model to output a JSON object.
	MaxTokens       int     `json:"max_tokens"`
}

// GenerationRequest encapsulates a complete request to the LLM, including the
// system and user prompts and generation options.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"` // Instructions for the model's persona and task.
	UserPrompt   string            `json:"user_prompt"`   // The specific query or input.
	Options      GenerationOptions `json:"options"`
}

// LLMClient defines a standard interface for interacting with a Large Language
// Model, abstracting the specifics of the underlying provider.
type LLMClient interface {
	// Generate produces a text completion based on the provided request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close cleans up any resources held by the client.
	Close() error
}
