package llm

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/prompt"
	"github.com/harrison/taskpilot/internal/structured"
)

// DefaultSystemPrompt is sent with every Claude CLI call unless overridden
const DefaultSystemPrompt = "You are a planning and evaluation assistant inside an automated pipeline. Follow the output format the prompt asks for exactly. Do not add greetings, explanations or closing remarks."

// jsonSystemSuffix is appended to the system prompt when JSON output is requested
const jsonSystemSuffix = " Your ONLY output must be a single valid JSON object. No markdown, no code fences, no prose."

// ClaudeGateway generates text by invoking the Claude CLI in print mode.
// It follows the http.Client pattern: create once, use many times.
// Safe for concurrent use.
type ClaudeGateway struct {
	// ClaudePath is the path to the claude CLI binary (default "claude")
	ClaudePath string

	// Model is the default model; Options.Model overrides it per call
	Model string

	// Timeout bounds each invocation (0 = only the caller's context)
	Timeout time.Duration

	// SystemPrompt defaults to DefaultSystemPrompt when empty
	SystemPrompt string

	Logger logger.Logger
}

// NewClaudeGateway creates a ClaudeGateway with default settings
func NewClaudeGateway() *ClaudeGateway {
	return &ClaudeGateway{
		ClaudePath:   "claude",
		SystemPrompt: DefaultSystemPrompt,
	}
}

// BuildArgs constructs the CLI arguments for one call.
// Always includes: --system-prompt, -p, --output-format json, --settings.
// Optional: --json-schema (Schema set), --model (model set).
func (g *ClaudeGateway) BuildArgs(text string, opts Options) []string {
	systemPrompt := g.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if opts.ResponseFormat == FormatJSON {
		systemPrompt += jsonSystemSuffix
	}

	args := []string{"--system-prompt", systemPrompt, "-p", text}

	if opts.Schema != "" {
		args = append(args, "--json-schema", opts.Schema)
	}

	model := opts.Model
	if model == "" {
		model = g.Model
	}
	if model != "" {
		args = append(args, "--model", model)
	}

	args = append(args, "--output-format", "json")

	// hooks would run project automation inside a planning call
	args = append(args, "--settings", `{"disableAllHooks": true}`)

	return args
}

// renderPrompt folds the conversation history into a single CLI prompt
func renderPrompt(text string, history []models.Message) string {
	conv := prompt.Conversation(history)
	switch {
	case conv == "":
		return text
	case strings.TrimSpace(text) == "":
		return conv + "\n\nContinue the conversation: reply to the last user message."
	default:
		return conv + "\n\n" + text
	}
}

// Generate implements Generator. Temperature is not supported by the CLI and
// is ignored.
func (g *ClaudeGateway) Generate(ctx context.Context, text string, history []models.Message, opts Options) (Completion, error) {
	log := logger.OrNop(g.Logger)

	full := renderPrompt(text, history)
	if strings.TrimSpace(full) == "" {
		return Completion{}, fmt.Errorf("prompt is required")
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	claudePath := g.ClaudePath
	if claudePath == "" {
		claudePath = "claude"
	}

	cmd := exec.CommandContext(ctx, claudePath, g.BuildArgs(full, opts)...)
	SetCleanEnv(cmd)

	start := time.Now()
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return Completion{}, fmt.Errorf("claude invocation cancelled: %w", ctx.Err())
		}
		stderr := ""
		if exitErr, ok := err.(*exec.ExitError); ok {
			stderr = string(exitErr.Stderr)
		}
		// the CLI still prints its envelope on some failures
		if env, _ := decodeEnvelope(output); env != nil && env.IsError {
			log.LogWarn(fmt.Sprintf("claude reported an error: %s", env.Result))
			return Completion{Text: structured.BadRequestSentinel}, nil
		}
		return Completion{}, fmt.Errorf("claude invocation failed: %w (output: %s%s)", err, string(output), stderr)
	}
	log.LogDebug(fmt.Sprintf("claude responded in %s (%d bytes)", time.Since(start).Round(time.Millisecond), len(output)))

	return completionFromCLI(output), nil
}

// completionFromCLI converts CLI stdout into a Completion. An is_error
// envelope becomes the bad-request sentinel so parsers surface it as a
// generation failure rather than a format problem.
func completionFromCLI(output []byte) Completion {
	env, doc := decodeEnvelope(output)
	if env == nil {
		return Completion{Text: strings.TrimSpace(string(output))}
	}
	if env.IsError {
		return Completion{Text: structured.BadRequestSentinel}
	}

	c := Completion{Text: envelopeContent(env, doc), Structured: env.structured()}
	if c.Text == "" {
		c.Text = strings.TrimSpace(string(output))
	}
	return c
}
