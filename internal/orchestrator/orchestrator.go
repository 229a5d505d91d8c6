// Package orchestrator runs one user turn end to end: classify the message,
// plan when it needs agent work, execute and judge each task, and record
// what was learned in memory.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harrison/taskpilot/internal/intent"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/memory"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/planner"
)

// ModuleName is the logger registry module for turn logs
const ModuleName = "orchestrator"

// Classifier decides the intent of a turn
type Classifier interface {
	Classify(ctx context.Context, message string, history []models.Message, opts intent.Options) (models.IntentResult, error)
}

// Planner turns a goal into tasks
type Planner interface {
	Plan(ctx context.Context, goal string, opts planner.Options) ([]models.Task, error)
}

// ToolRunner executes one task with the memorized context of the turn
type ToolRunner interface {
	Run(ctx context.Context, task models.Task, memory string) (models.ActionResult, error)
}

// Reflector judges an action against its requirement
type Reflector interface {
	Reflect(ctx context.Context, requirement string, result models.ActionResult) (models.Verdict, error)
}

// verdictLogger is implemented by loggers that render verdicts specially
type verdictLogger interface {
	LogVerdict(title string, verdict models.Verdict, duration time.Duration)
}

// Turn is one user message and its context
type Turn struct {
	ConversationID string
	Message        string
	History        []models.Message
	Files          []string
	PreviousResult string
	Model          string
	IsSubscribe    bool
}

// TaskOutcome is what happened to one top-level task
type TaskOutcome struct {
	Task     models.Task
	Action   models.ActionResult
	Verdict  models.Verdict
	Duration time.Duration
}

// TurnResult summarizes a handled turn
type TurnResult struct {
	Intent   models.IntentResult
	Tasks    []models.Task
	Outcomes []TaskOutcome

	// PlanningFailed is set when the planner returned an empty plan
	PlanningFailed bool

	Completed int
	Failed    int
	Summary   string
	Duration  time.Duration
}

// Orchestrator wires the pipeline components together. Memory and Logs are
// optional.
type Orchestrator struct {
	Classifier Classifier
	Planner    Planner
	Runner     ToolRunner
	Reflector  Reflector
	Memory     *memory.Manager
	Logs       *logger.Registry
	Logger     logger.Logger

	// Namespace scopes memory records; the conversation id is the key
	Namespace string

	// HandleSignals cancels the turn on SIGINT/SIGTERM
	HandleSignals bool
}

// HandleTurn processes one turn. An empty plan is not an error; it is
// reported through TurnResult.PlanningFailed.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) (*TurnResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := o.turnLogger(turn.ConversationID)

	if o.HandleSignals {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		go func() {
			select {
			case <-sigChan:
				log.LogWarn("received interrupt signal, shutting down gracefully")
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	start := time.Now()
	result := &TurnResult{Tasks: []models.Task{}}
	defer func() { result.Duration = time.Since(start) }()

	res, err := o.Classifier.Classify(ctx, turn.Message, turn.History, intent.Options{
		ConversationID: turn.ConversationID,
		Model:          intent.ModelConfig{Name: turn.Model, IsSubscribe: turn.IsSubscribe},
	})
	if err != nil {
		return result, &TurnError{Phase: PhaseClassify, Err: err}
	}
	result.Intent = res
	log.LogInfo(fmt.Sprintf("intent: %s (%s)", res.Intent, res.Branch))

	store := o.store(turn.ConversationID)

	if res.Intent == models.IntentChat {
		if err := o.record(ctx, store, models.RoleUser, turn.Message, "message", false, nil); err != nil {
			return result, err
		}
		result.Summary = "chat turn recorded"
		return result, nil
	}

	memorized := ""
	if store != nil {
		memorized = store.GetMemorizedContent(ctx)
	}

	tasks, err := o.Planner.Plan(ctx, turn.Message, planner.Options{
		ConversationID: turn.ConversationID,
		Files:          turn.Files,
		PreviousResult: turn.PreviousResult,
		Memory:         memorized,
		Model:          planner.ModelConfig{Name: turn.Model, IsSubscribe: turn.IsSubscribe},
	})
	if err != nil {
		return result, &TurnError{Phase: PhasePlan, Err: err}
	}
	if err := o.record(ctx, store, models.RoleUser, turn.Message, "goal", false, nil); err != nil {
		return result, err
	}
	if len(tasks) == 0 {
		result.PlanningFailed = true
		result.Summary = "planning could not be completed"
		log.LogWarn(result.Summary)
		return result, nil
	}
	result.Tasks = tasks

	for i := range result.Tasks {
		if err := ctx.Err(); err != nil {
			return result, &TurnError{Phase: PhaseRun, Task: result.Tasks[i].Title, Err: err}
		}

		outcome, err := o.runTask(ctx, log, &result.Tasks[i], memorized)
		if err != nil {
			return result, err
		}
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Verdict.Passed() {
			result.Completed++
		} else {
			result.Failed++
		}

		if err := o.record(ctx, store, models.RoleUser, outcome.Verdict.Comments, result.Tasks[i].Title, true, map[string]interface{}{
			"action": map[string]interface{}{
				"name":   result.Tasks[i].Title,
				"params": map[string]interface{}{"description": result.Tasks[i].Description},
			},
			"status": string(outcome.Verdict.Status),
		}); err != nil {
			return result, err
		}
		if store != nil {
			memorized = store.GetMemorizedContent(ctx)
		}
	}

	result.Summary = fmt.Sprintf("completed %d of %d tasks", result.Completed, len(result.Tasks))
	if err := o.record(ctx, store, models.RoleAssistant, result.Summary, "summary", false, nil); err != nil {
		return result, err
	}
	log.LogInfo(result.Summary)
	return result, nil
}

func (o *Orchestrator) runTask(ctx context.Context, log logger.Logger, task *models.Task, memorized string) (TaskOutcome, error) {
	start := time.Now()
	log.LogInfo(fmt.Sprintf("running task %q", task.Title))

	action, err := o.Runner.Run(ctx, *task, memorized)
	if err != nil {
		return TaskOutcome{}, &TurnError{Phase: PhaseRun, Task: task.Title, Err: err}
	}

	verdict, err := o.Reflector.Reflect(ctx, task.Prompt(), action)
	if err != nil {
		return TaskOutcome{}, &TurnError{Phase: PhaseReflect, Task: task.Title, Err: err}
	}
	if verdict.Passed() {
		task.MarkDone(verdict.Comments)
	}

	duration := time.Since(start)
	if vl, ok := o.Logger.(verdictLogger); ok {
		vl.LogVerdict(task.Title, verdict, duration)
	}
	log.LogDebug(fmt.Sprintf("task %q verdict %s", task.Title, verdict.Status))

	return TaskOutcome{Task: *task, Action: action, Verdict: verdict, Duration: duration}, nil
}

func (o *Orchestrator) store(conversationID string) *memory.Store {
	if o.Memory == nil || conversationID == "" {
		return nil
	}
	return o.Memory.Open(o.Namespace, conversationID)
}

// record appends to memory; write failures end the turn
func (o *Orchestrator) record(ctx context.Context, store *memory.Store, role, content, actionType string, memorized bool, meta map[string]interface{}) error {
	if store == nil {
		return nil
	}
	if err := store.AddMessage(ctx, role, content, actionType, memorized, meta); err != nil {
		return &TurnError{Phase: PhaseMemory, Err: err}
	}
	return nil
}

// turnLogger fans out to the console logger and the per-conversation file
// log when a registry is configured
func (o *Orchestrator) turnLogger(conversationID string) logger.Logger {
	console := logger.OrNop(o.Logger)
	if o.Logs == nil || conversationID == "" {
		return console
	}
	fileLog, err := o.Logs.Open(conversationID, ModuleName)
	if err != nil {
		console.LogWarn(fmt.Sprintf("open turn log: %v", err))
		return console
	}
	return logger.Multi(console, fileLog)
}
