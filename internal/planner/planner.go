// Package planner turns a goal into an ordered task tree.
//
// The local path renders the planning template, asks the generator for a
// Markdown list and converts it into tasks inside a retry-with-repair loop.
// Subscription models route the whole call to a remote planner instead.
// Plan never returns a nil slice: when no attempt yields a usable list the
// result is an empty plan.
package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harrison/taskpilot/internal/llm"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/prompt"
	"github.com/harrison/taskpilot/internal/retry"
	"github.com/harrison/taskpilot/internal/structured"
)

// ErrRemoteUnavailable is returned when a subscription model is requested
// but no remote planner is configured
var ErrRemoteUnavailable = errors.New("remote planner not configured")

// ModelConfig selects the model and execution mode
type ModelConfig struct {
	Name string

	// IsSubscribe routes planning to the remote planner
	IsSubscribe bool
}

// Options carries the per-call planning context
type Options struct {
	ConversationID string
	Files          []string
	PreviousResult string
	Memory         string
	Model          ModelConfig
}

// RemoteRequest is the payload sent to a remote planner
type RemoteRequest struct {
	ConversationID string   `json:"conversation_id,omitempty"`
	Goal           string   `json:"goal"`
	Files          []string `json:"files,omitempty"`
	PreviousResult string   `json:"previous_result,omitempty"`
	Memory         string   `json:"memory,omitempty"`
	Model          string   `json:"model,omitempty"`
}

// RemotePlanner plans on a remote server. Its output is used as returned.
type RemotePlanner interface {
	Plan(ctx context.Context, req RemoteRequest) ([]models.Task, error)
}

// Planner produces task plans
type Planner struct {
	Generator llm.Generator
	Templates *prompt.Loader
	Converter TaskConverter
	Remote    RemotePlanner
	Retry     retry.Config
	Logger    logger.Logger

	// Now supplies the date rendered into the prompt
	Now func() time.Time
}

// New creates a Planner with the Markdown converter and default retry settings
func New(gen llm.Generator, templates *prompt.Loader) *Planner {
	return &Planner{
		Generator: gen,
		Templates: templates,
		Converter: NewMarkdownConverter(),
		Retry:     retry.DefaultConfig(),
		Now:       time.Now,
	}
}

// Plan turns goal into tasks
func (p *Planner) Plan(ctx context.Context, goal string, opts Options) ([]models.Task, error) {
	log := logger.OrNop(p.Logger)

	if opts.Model.IsSubscribe {
		return p.planRemote(ctx, goal, opts)
	}

	text, err := p.Templates.Render(prompt.TemplatePlanning, p.values(goal, opts))
	if err != nil {
		return []models.Task{}, fmt.Errorf("render planning prompt: %w", err)
	}

	cfg := p.Retry
	cfg.Options.Model = opts.Model.Name

	loop := &retry.Loop[[]models.Task]{
		Generator: p.Generator,
		Process:   p.process,
		Validate:  func(tasks []models.Task) bool { return len(tasks) > 0 },
		Config:    cfg,
		Logger:    log,
	}

	tasks, err := loop.Run(ctx, text)
	if tasks == nil {
		tasks = []models.Task{}
	}
	if err != nil {
		return tasks, err
	}

	if len(tasks) == 0 {
		log.LogWarn(fmt.Sprintf("planning produced no tasks for goal %q", truncate(goal, 80)))
	} else {
		log.LogInfo(fmt.Sprintf("planned %d tasks (%d including sub-steps)", len(tasks), models.Count(tasks)))
	}
	return tasks, nil
}

func (p *Planner) planRemote(ctx context.Context, goal string, opts Options) ([]models.Task, error) {
	if p.Remote == nil {
		return []models.Task{}, ErrRemoteUnavailable
	}

	tasks, err := p.Remote.Plan(ctx, RemoteRequest{
		ConversationID: opts.ConversationID,
		Goal:           goal,
		Files:          opts.Files,
		PreviousResult: opts.PreviousResult,
		Memory:         opts.Memory,
		Model:          opts.Model.Name,
	})
	if tasks == nil {
		tasks = []models.Task{}
	}
	if err != nil {
		return tasks, fmt.Errorf("remote planning: %w", err)
	}
	logger.OrNop(p.Logger).LogInfo(fmt.Sprintf("remote planner returned %d tasks", len(tasks)))
	return tasks, nil
}

// process converts one raw completion into tasks
func (p *Planner) process(raw string) ([]models.Task, error) {
	answer, _ := structured.StripThinking(raw)
	if strings.Contains(answer, structured.BadRequestSentinel) {
		return nil, &structured.GenerationFailedError{Raw: answer}
	}
	return p.Converter.Convert(structured.ExtractMarkdown(answer)), nil
}

func (p *Planner) values(goal string, opts Options) map[string]interface{} {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	return map[string]interface{}{
		"date":            now().Format("2006-01-02"),
		"goal":            goal,
		"files":           formatFiles(opts.Files),
		"previous_result": orNone(opts.PreviousResult),
		"memory":          orNone(opts.Memory),
	}
}

func formatFiles(files []string) string {
	if len(files) == 0 {
		return "(none)"
	}
	lines := make([]string, len(files))
	for i, f := range files {
		lines[i] = "- " + f
	}
	return strings.Join(lines, "\n")
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
