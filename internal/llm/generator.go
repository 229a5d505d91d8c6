// Package llm provides the text-generation gateways taskpilot calls.
//
// Every backend implements Generator: given a prompt, a prior conversation
// and per-call options, it returns the raw completion text and, when the
// backend enforced a JSON shape, the decoded object. Parsing the text is the
// caller's job (see internal/structured).
package llm

import (
	"context"

	"github.com/harrison/taskpilot/internal/models"
)

// FormatJSON requests a JSON object response
const FormatJSON = "json"

// Options are per-call generation settings
type Options struct {
	// Model overrides the gateway's default model
	Model string

	// Temperature is the sampling temperature. Backends that cannot set it
	// ignore it.
	Temperature float64

	// ResponseFormat is FormatJSON or empty for free text
	ResponseFormat string

	// Schema is an optional JSON schema for structured output
	Schema string
}

// Completion is the result of one generation call
type Completion struct {
	// Text is the raw completion text
	Text string

	// Structured is the decoded JSON object when the backend returned one
	Structured map[string]interface{}
}

// Generator is the generation capability consumed by the planner, intent
// classifier and evaluator. history may be empty; prompt may be empty when
// history already carries the conversation.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []models.Message, opts Options) (Completion, error)
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, prompt string, history []models.Message, opts Options) (Completion, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, history []models.Message, opts Options) (Completion, error) {
	return f(ctx, prompt, history, opts)
}
