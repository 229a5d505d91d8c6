package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harrison/taskpilot/internal/intent"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/memory"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClassifier struct {
	result models.IntentResult
	err    error
	opts   intent.Options
}

func (f *fakeClassifier) Classify(ctx context.Context, message string, history []models.Message, opts intent.Options) (models.IntentResult, error) {
	f.opts = opts
	return f.result, f.err
}

type fakePlanner struct {
	tasks []models.Task
	err   error
	opts  planner.Options
	calls int
}

func (f *fakePlanner) Plan(ctx context.Context, goal string, opts planner.Options) ([]models.Task, error) {
	f.calls++
	f.opts = opts
	return f.tasks, f.err
}

type fakeRunner struct {
	results  map[string]models.ActionResult
	memories []string
	err      error
}

func (f *fakeRunner) Run(ctx context.Context, task models.Task, memory string) (models.ActionResult, error) {
	f.memories = append(f.memories, memory)
	if f.err != nil {
		return models.ActionResult{}, f.err
	}
	return f.results[task.Title], nil
}

// passthroughReflector trusts runner statuses the way the evaluator does
type passthroughReflector struct{}

func (passthroughReflector) Reflect(ctx context.Context, requirement string, r models.ActionResult) (models.Verdict, error) {
	if r.Status == models.ActionSuccess {
		return models.Verdict{Status: models.VerdictSuccess, Comments: r.Content}, nil
	}
	return models.Verdict{Status: models.VerdictFailure, Comments: r.Error}, nil
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *fakeClassifier, *fakePlanner, *fakeRunner) {
	t.Helper()
	c := &fakeClassifier{result: models.IntentResult{Intent: models.IntentAgent}}
	p := &fakePlanner{}
	r := &fakeRunner{results: map[string]models.ActionResult{}}
	o := &Orchestrator{
		Classifier: c,
		Planner:    p,
		Runner:     r,
		Reflector:  passthroughReflector{},
		Memory:     memory.NewManager(&memory.FileBackend{Root: t.TempDir()}, nil),
	}
	return o, c, p, r
}

func TestHandleTurn_Chat(t *testing.T) {
	o, c, p, _ := newTestOrchestrator(t)
	c.result = models.IntentResult{Intent: models.IntentChat}

	res, err := o.HandleTurn(context.Background(), Turn{ConversationID: "c1", Message: "thanks!", Model: "m"})
	require.NoError(t, err)

	assert.Equal(t, models.IntentChat, res.Intent.Intent)
	assert.Equal(t, 0, p.calls, "chat must not plan")
	assert.Equal(t, "m", c.opts.Model.Name)

	msgs := o.Memory.Open("", "c1").GetMessages(context.Background())
	require.Len(t, msgs, 1)
	assert.Equal(t, "thanks!", msgs[0].Content)
	assert.False(t, msgs[0].Memorized)
}

func TestHandleTurn_AgentFlow(t *testing.T) {
	o, _, p, r := newTestOrchestrator(t)
	p.tasks = []models.Task{
		models.NewTask("Scaffold", "create layout"),
		models.NewTask("Test", "add tests"),
	}
	r.results["Scaffold"] = models.ActionResult{Status: models.ActionSuccess, Content: "created cmd/"}
	r.results["Test"] = models.ActionResult{Status: models.ActionFailure, Error: "go test failed"}

	ctx := context.Background()
	res, err := o.HandleTurn(ctx, Turn{ConversationID: "c2", Message: "build a cli", Files: []string{"go.mod"}})
	require.NoError(t, err)

	assert.False(t, res.PlanningFailed)
	assert.Equal(t, 1, res.Completed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, "completed 1 of 2 tasks", res.Summary)
	assert.Equal(t, models.TaskDone, res.Tasks[0].Status)
	assert.Equal(t, "created cmd/", res.Tasks[0].Result)
	assert.Equal(t, models.TaskPending, res.Tasks[1].Status)
	assert.Equal(t, []string{"go.mod"}, p.opts.Files)

	// the second task sees what the first one recorded
	require.Len(t, r.memories, 2)
	assert.Equal(t, "", r.memories[0])
	assert.Contains(t, r.memories[1], "<name>Scaffold</name>")

	memorized := o.Memory.Open("", "c2").GetMemorizedContent(ctx)
	lines := strings.Split(memorized, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `<action><name>Scaffold</name><params>{"description":"create layout"}</params><status>success</status><result>created cmd/</result></action>`, lines[0])
	assert.Contains(t, lines[1], "<status>failure</status>")

	msgs := o.Memory.Open("", "c2").GetMessages(ctx)
	require.Len(t, msgs, 4)
	assert.Equal(t, models.RoleAssistant, msgs[3].Role)
}

func TestHandleTurn_MemoryFeedsPlanner(t *testing.T) {
	o, _, p, _ := newTestOrchestrator(t)
	ctx := context.Background()
	require.NoError(t, o.Memory.Open("", "c3").AddMessage(ctx, models.RoleUser, "read go.mod", "read", true, nil))

	_, err := o.HandleTurn(ctx, Turn{ConversationID: "c3", Message: "goal"})
	require.NoError(t, err)
	assert.Equal(t, "READ: read go.mod", p.opts.Memory)
}

func TestHandleTurn_PlanningFailed(t *testing.T) {
	o, _, p, r := newTestOrchestrator(t)
	p.tasks = []models.Task{}

	res, err := o.HandleTurn(context.Background(), Turn{ConversationID: "c4", Message: "???"})
	require.NoError(t, err)
	assert.True(t, res.PlanningFailed)
	assert.NotNil(t, res.Tasks)
	assert.Empty(t, r.memories, "nothing should run")
}

func TestHandleTurn_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		setup     func(o *Orchestrator, c *fakeClassifier, p *fakePlanner, r *fakeRunner)
		wantPhase Phase
		wantTask  string
	}{
		{
			name:      "classify",
			setup:     func(o *Orchestrator, c *fakeClassifier, p *fakePlanner, r *fakeRunner) { c.err = boom },
			wantPhase: PhaseClassify,
		},
		{
			name:      "plan",
			setup:     func(o *Orchestrator, c *fakeClassifier, p *fakePlanner, r *fakeRunner) { p.err = boom },
			wantPhase: PhasePlan,
		},
		{
			name: "run",
			setup: func(o *Orchestrator, c *fakeClassifier, p *fakePlanner, r *fakeRunner) {
				p.tasks = []models.Task{models.NewTask("Only", "")}
				r.err = boom
			},
			wantPhase: PhaseRun,
			wantTask:  "Only",
		},
		{
			name: "memory write",
			setup: func(o *Orchestrator, c *fakeClassifier, p *fakePlanner, r *fakeRunner) {
				c.result = models.IntentResult{Intent: models.IntentChat}
				blocked := filepath.Join(t.TempDir(), "blocked")
				require.NoError(t, os.WriteFile(blocked, []byte("file"), 0644))
				o.Memory = memory.NewManager(&memory.FileBackend{Root: blocked}, nil)
			},
			wantPhase: PhaseMemory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, c, p, r := newTestOrchestrator(t)
			tt.setup(o, c, p, r)

			_, err := o.HandleTurn(context.Background(), Turn{ConversationID: "c", Message: "m"})
			var te *TurnError
			require.True(t, errors.As(err, &te), "err = %v", err)
			assert.Equal(t, tt.wantPhase, te.Phase)
			assert.Equal(t, tt.wantTask, te.Task)
			if tt.wantPhase != PhaseMemory {
				assert.ErrorIs(t, err, boom)
			}
		})
	}
}

func TestHandleTurn_CancelledBeforeTasks(t *testing.T) {
	o, _, p, r := newTestOrchestrator(t)
	p.tasks = []models.Task{models.NewTask("A", "")}
	o.HandleSignals = true
	o.Memory = nil

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.HandleTurn(ctx, Turn{ConversationID: "c5", Message: "m"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, r.memories)
}

func TestHandleTurn_WritesTurnLog(t *testing.T) {
	o, _, p, r := newTestOrchestrator(t)
	p.tasks = []models.Task{models.NewTask("A", "")}
	r.results["A"] = models.ActionResult{Status: models.ActionSuccess, Content: "ok"}

	dir := t.TempDir()
	o.Logs = logger.NewRegistry(dir, "debug")

	_, err := o.HandleTurn(context.Background(), Turn{ConversationID: "conv-9", Message: "m"})
	require.NoError(t, err)
	require.NoError(t, o.Logs.Close())

	data, err := os.ReadFile(filepath.Join(dir, "conv-9", ModuleName+".log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "completed 1 of 1 tasks")
	assert.Contains(t, string(data), `"conversation":"conv-9"`)
}

func TestTurnError(t *testing.T) {
	err := &TurnError{Phase: PhaseReflect, Task: "Write docs", Err: errors.New("timeout")}
	assert.Equal(t, `turn failed during reflect (task "Write docs"): timeout`, err.Error())
	assert.Equal(t, "unknown", Phase(42).String())
}
