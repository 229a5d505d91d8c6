package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/orchestrator"
)

// Tasks writes the task tree as a numbered list, children indented under
// their parent
func Tasks(w io.Writer, tasks []models.Task) {
	writeTasks(w, tasks, 0)
}

func writeTasks(w io.Writer, tasks []models.Task, depth int) {
	indent := strings.Repeat("   ", depth)
	done := color.New(color.FgGreen)
	pending := color.New(color.FgCyan)

	for i, t := range tasks {
		mark := pending.Sprint("[ ]")
		if t.IsDone() {
			mark = done.Sprint("[x]")
		}
		line := fmt.Sprintf("%s%d. %s %s", indent, i+1, mark, t.Title)
		if t.Description != "" {
			line += ": " + t.Description
		}
		fmt.Fprintln(w, line)
		writeTasks(w, t.Children, depth+1)
	}
}

// Turn writes the outcome of one handled turn
func Turn(w io.Writer, conversation string, result *orchestrator.TurnResult) {
	fmt.Fprintf(w, "Conversation: %s\n", conversation)
	if result.Intent.Intent != "" {
		fmt.Fprintf(w, "Intent: %s\n", result.Intent.Intent)
	}

	if len(result.Outcomes) > 0 {
		color.New(color.Bold).Fprintln(w, "\nTasks:")
		for i, out := range result.Outcomes {
			status := logger.VerdictColor(out.Verdict.Status).Sprint(out.Verdict.Status)
			fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, status, out.Task.Title)
			if out.Verdict.Comments != "" {
				fmt.Fprintf(w, "     %s\n", out.Verdict.Comments)
			}
		}
		fmt.Fprintln(w)
	}

	if result.Summary == "" {
		return
	}
	summary := color.New(color.FgGreen)
	switch {
	case result.PlanningFailed:
		summary = color.New(color.FgYellow)
	case result.Failed > 0:
		summary = color.New(color.FgRed)
	}
	summary.Fprintf(w, "%s\n", result.Summary)
	if result.Intent.Intent == models.IntentAgent {
		fmt.Fprintf(w, "Duration: %s\n", result.Duration.Round(time.Millisecond))
	}
}
