// internal/llmutil/parser.go
package llmutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// ErrEmptyResponse is returned when the model produced no text at all.
var ErrEmptyResponse = errors.New("empty LLM response")

var (
	json = jsoniter.ConfigCompatibleWithStandardLibrary

	// Backticks are written as \x60 because Go raw strings cannot contain them.
	// fencedObjectRegex extracts a JSON object wrapped in a markdown code fence.
	fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json|JSON)?\\s*({.*})\\s*\x60\x60\x60")
)

// ParseJSONResponse parses an LLM response into T. It tolerates the usual
// formatting noise: markdown fences and conversational text around the object.
func ParseJSONResponse[T any](response string) (*T, error) {
	candidate := ExtractJSONObject(response)
	if candidate == "" {
		return nil, ErrEmptyResponse
	}

	var result T
	if err := json.Unmarshal([]byte(candidate), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LLM JSON response: %w. Extracted JSON (truncated): %s", err, truncateString(candidate, 500))
	}
	return &result, nil
}

// ExtractJSONObject returns the most plausible JSON object text in response,
// or the trimmed response itself when no braces are found.
func ExtractJSONObject(response string) string {
	response = strings.TrimSpace(response)
	if response == "" {
		return ""
	}

	if strings.HasPrefix(response, "```") {
		if matches := fencedObjectRegex.FindStringSubmatch(response); len(matches) > 1 {
			return matches[1]
		}
	}

	if strings.HasPrefix(response, "{") {
		return response
	}

	first := strings.Index(response, "{")
	last := strings.LastIndex(response, "}")
	if first != -1 && last > first {
		return response[first : last+1]
	}
	return response
}

// truncateString truncates a string to a maximum length.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(s) <= maxLen {
		return s
	}
	// Byte truncation; good enough for error messages.
	return s[:maxLen] + "..."
}
