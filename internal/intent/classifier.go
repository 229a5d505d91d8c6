// Package intent decides whether a user turn needs multi-step execution
// ("agent") or a plain reply ("chat").
package intent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/taskpilot/internal/llm"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/prompt"
	"github.com/harrison/taskpilot/internal/structured"
)

// ErrRemoteUnavailable is returned when a subscription model is requested
// but no remote detector is configured
var ErrRemoteUnavailable = errors.New("remote intent detector not configured")

// ModelConfig selects the model and execution mode
type ModelConfig struct {
	Name        string
	IsSubscribe bool
}

// Options carries the per-call classification context
type Options struct {
	ConversationID string
	Model          ModelConfig
}

// RemoteDetector classifies intent on a remote server
type RemoteDetector interface {
	DetectIntent(ctx context.Context, conversationID, message string, history []models.Message) (models.IntentResult, error)
}

// Classifier makes one generation call per turn and decodes the answer
// through a fixed chain of fallbacks. It never retries.
type Classifier struct {
	Generator llm.Generator
	Templates *prompt.Loader
	Remote    RemoteDetector
	Logger    logger.Logger
}

// New creates a Classifier
func New(gen llm.Generator, templates *prompt.Loader) *Classifier {
	return &Classifier{Generator: gen, Templates: templates}
}

// Classify returns the intent for message given the prior conversation.
// Only transport failures and upstream failure sentinels are errors; an
// undecodable answer falls back to agent.
func (c *Classifier) Classify(ctx context.Context, message string, history []models.Message, opts Options) (models.IntentResult, error) {
	log := logger.OrNop(c.Logger)

	if opts.Model.IsSubscribe {
		if c.Remote == nil {
			return models.IntentResult{}, ErrRemoteUnavailable
		}
		res, err := c.Remote.DetectIntent(ctx, opts.ConversationID, message, history)
		if err != nil {
			return models.IntentResult{}, fmt.Errorf("remote intent detection: %w", err)
		}
		res.Branch = models.BranchRemote
		return res, nil
	}

	historyText := prompt.Conversation(history)
	if historyText == "" {
		historyText = "(no earlier messages)"
	}

	text, err := c.Templates.Render(prompt.TemplateIntent, map[string]interface{}{
		"history": historyText,
		"message": message,
	})
	if err != nil {
		return models.IntentResult{}, fmt.Errorf("render intent prompt: %w", err)
	}

	completion, err := c.Generator.Generate(ctx, text, nil, llm.Options{
		Model:          opts.Model.Name,
		ResponseFormat: llm.FormatJSON,
	})
	if err != nil {
		return models.IntentResult{}, fmt.Errorf("intent generation: %w", err)
	}

	answer, _ := structured.StripThinking(completion.Text)
	if strings.TrimSpace(answer) == structured.BadRequestSentinel {
		return models.IntentResult{}, &structured.GenerationFailedError{Raw: answer}
	}

	res := decide(completion)
	log.LogDebug(fmt.Sprintf("intent %s via %s branch", res.Intent, res.Branch))
	return res, nil
}

// decide picks the first decoding branch that yields a known intent:
// structured object, JSON text, keyword scan, then the agent default.
func decide(c llm.Completion) models.IntentResult {
	if res, ok := fromObject(c.Structured); ok {
		res.Branch = models.BranchStructured
		return res
	}

	if parsed := structured.ParseObject(c.Text); parsed.Ok() {
		if res, ok := fromObject(parsed.Value()); ok {
			res.Branch = models.BranchJSON
			return res
		}
	}

	lower := strings.ToLower(c.Text)
	switch {
	case strings.Contains(lower, string(models.IntentChat)):
		return models.IntentResult{
			Intent:    models.IntentChat,
			Reasoning: "answer mentions chat",
			Branch:    models.BranchKeyword,
		}
	case strings.Contains(lower, string(models.IntentAgent)):
		return models.IntentResult{
			Intent:    models.IntentAgent,
			Reasoning: "answer mentions agent",
			Branch:    models.BranchKeyword,
		}
	}

	return models.IntentResult{
		Intent:    models.IntentAgent,
		Reasoning: "intent could not be determined; defaulting to agent",
		Branch:    models.BranchDefault,
	}
}

func fromObject(obj map[string]interface{}) (models.IntentResult, bool) {
	if obj == nil {
		return models.IntentResult{}, false
	}
	raw, _ := obj["intent"].(string)
	kind, ok := models.ParseIntentKind(raw)
	if !ok {
		return models.IntentResult{}, false
	}
	reasoning, _ := obj["reasoning"].(string)
	return models.IntentResult{Intent: kind, Reasoning: reasoning}, true
}
