// Package runner executes planned tasks with the Claude CLI in agent mode
// and reports each outcome as an ActionResult.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/harrison/taskpilot/internal/llm"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/prompt"
	"github.com/harrison/taskpilot/internal/structured"
)

// responseFormat is appended to every task prompt
const responseFormat = `When you are done, reply with a single JSON object and nothing else:
{"status": "success" | "failed", "summary": "...", "output": "...", "errors": ["..."], "files_modified": ["..."]}`

// agentResponse is the JSON reply requested from the agent
type agentResponse struct {
	Status  string   `json:"status"`
	Summary string   `json:"summary"`
	Output  string   `json:"output"`
	Errors  []string `json:"errors"`
	Files   []string `json:"files_modified"`
}

// ClaudeRunner runs each task as one non-interactive Claude CLI session
// with permissions skipped so the agent can edit files.
type ClaudeRunner struct {
	ClaudePath string
	Model      string
	Timeout    time.Duration
	Logger     logger.Logger
}

// NewClaudeRunner creates a ClaudeRunner with default settings
func NewClaudeRunner() *ClaudeRunner {
	return &ClaudeRunner{ClaudePath: "claude"}
}

// BuildArgs constructs the command-line arguments for one task
func (r *ClaudeRunner) BuildArgs(text string) []string {
	args := []string{"-p", text, "--dangerously-skip-permissions"}
	if r.Model != "" {
		args = append(args, "--model", r.Model)
	}
	args = append(args,
		"--settings", `{"disableAllHooks": true}`,
		"--output-format", "json",
	)
	return args
}

// BuildPrompt renders the task and memorized context into the agent prompt
func BuildPrompt(task models.Task, memory string) string {
	var sections []string
	if strings.TrimSpace(memory) != "" {
		sections = append(sections, prompt.XMLSection("memory", memory))
	}
	sections = append(sections, prompt.XMLSection("task", task.Prompt()), responseFormat)
	return strings.Join(sections, "\n\n")
}

// Run executes task. A non-zero exit or running past Timeout is a failure
// result, not an error; errors are reserved for a binary that cannot start
// or a cancelled ctx.
func (r *ClaudeRunner) Run(ctx context.Context, task models.Task, memory string) (models.ActionResult, error) {
	log := logger.OrNop(r.Logger)

	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	path := r.ClaudePath
	if path == "" {
		path = "claude"
	}

	start := time.Now()
	cmd := exec.CommandContext(runCtx, path, r.BuildArgs(BuildPrompt(task, memory))...)
	llm.SetCleanEnv(cmd)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	log.LogDebug(fmt.Sprintf("task %q ran for %s", task.Title, time.Since(start).Round(time.Millisecond)))

	if ctxErr := ctx.Err(); ctxErr != nil {
		return models.ActionResult{}, ctxErr
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return models.ActionResult{
			Status: models.ActionFailure,
			Error:  fmt.Sprintf("timed out after %s", r.Timeout),
		}, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return models.ActionResult{}, fmt.Errorf("start claude: %w", err)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(string(output))
		}
		return models.ActionResult{
			Status: models.ActionFailure,
			Error:  fmt.Sprintf("claude exited with code %d: %s", exitErr.ExitCode(), msg),
		}, nil
	}

	return interpret(output), nil
}

// interpret maps the CLI output onto an ActionResult. Anything that is not
// a recognisable agent response is reported as running so reflection
// decides.
func interpret(output []byte) models.ActionResult {
	content, _, err := llm.ParseResponse(output)
	if err != nil || strings.TrimSpace(content) == "" {
		content = strings.TrimSpace(string(output))
	}

	parsed := structured.Parse[agentResponse](llm.ExtractJSON(content))
	if !parsed.Ok() {
		return models.ActionResult{Status: models.ActionRunning, Content: content}
	}
	resp := parsed.Value()

	switch strings.ToLower(resp.Status) {
	case "success":
		return models.ActionResult{Status: models.ActionSuccess, Content: describe(resp)}
	case "failed", "failure":
		errs := strings.Join(resp.Errors, "; ")
		if errs == "" {
			errs = resp.Summary
		}
		return models.ActionResult{Status: models.ActionFailure, Content: describe(resp), Error: errs}
	default:
		return models.ActionResult{Status: models.ActionRunning, Content: content}
	}
}

func describe(resp agentResponse) string {
	parts := []string{}
	if resp.Summary != "" {
		parts = append(parts, resp.Summary)
	}
	if resp.Output != "" {
		parts = append(parts, resp.Output)
	}
	if len(resp.Files) > 0 {
		parts = append(parts, "files modified: "+strings.Join(resp.Files, ", "))
	}
	return strings.Join(parts, "\n")
}
