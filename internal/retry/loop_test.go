package retry

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/harrison/taskpilot/internal/llm"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/structured"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	prompt      string
	history     []models.Message
	temperature float64
}

// scripted returns a generator replying with outputs in order and recording calls
func scripted(outputs []string, errs []error) (llm.Generator, *[]call) {
	var calls []call
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, history []models.Message, opts llm.Options) (llm.Completion, error) {
		i := len(calls)
		calls = append(calls, call{prompt: prompt, history: history, temperature: opts.Temperature})
		if i < len(errs) && errs[i] != nil {
			return llm.Completion{}, errs[i]
		}
		return llm.Completion{Text: outputs[i]}, nil
	})
	return gen, &calls
}

func parseInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		if raw == structured.BadRequestSentinel {
			return 0, &structured.GenerationFailedError{Raw: raw}
		}
		return 0, &structured.ParseError{Raw: raw, Message: err.Error(), Err: err}
	}
	return n, nil
}

func positive(n int) bool { return n > 0 }

func TestLoop_FirstAttemptValid(t *testing.T) {
	gen, calls := scripted([]string{"42"}, nil)
	loop := &Loop[int]{Generator: gen, Process: parseInt, Validate: positive, Config: DefaultConfig()}

	got, err := loop.Run(context.Background(), "give me a number")
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	require.Len(t, *calls, 1)
	assert.Equal(t, "give me a number", (*calls)[0].prompt)
	assert.Empty(t, (*calls)[0].history)
	assert.InDelta(t, 0.5, (*calls)[0].temperature, 1e-9)
}

func TestLoop_TranscriptGrowth(t *testing.T) {
	gen, calls := scripted([]string{"nope", "-1", "still nope"}, nil)

	var lengths []int
	loop := &Loop[int]{
		Generator: gen,
		Process:   parseInt,
		Validate:  positive,
		Config:    DefaultConfig(),
		OnAttempt: func(attempt int, tr Transcript) { lengths = append(lengths, tr.Len()) },
	}

	got, err := loop.Run(context.Background(), "number please")
	require.NoError(t, err, "exhaustion is a soft fail")
	assert.Equal(t, 0, got)

	// 2n+1 after n failed validations
	assert.Equal(t, []int{3, 5, 7}, lengths)

	require.Len(t, *calls, 3)
	for i, c := range *calls {
		assert.InDelta(t, 0.5+0.1*float64(i), c.temperature, 1e-9, "attempt %d temperature", i)
		if i > 0 {
			assert.Empty(t, c.prompt, "later attempts send only the transcript")
			assert.Len(t, c.history, 2*i+1)
		}
	}

	second := (*calls)[1].history
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: "number please"}, second[0])
	assert.Equal(t, models.Message{Role: models.RoleAssistant, Content: "nope"}, second[1])
	assert.Equal(t, models.Message{Role: models.RoleUser, Content: CorrectionInstruction}, second[2])
}

func TestLoop_RepairSucceeds(t *testing.T) {
	gen, calls := scripted([]string{"```\nprose\n```", "7"}, nil)
	loop := &Loop[int]{Generator: gen, Process: parseInt, Validate: positive, Config: DefaultConfig()}

	got, err := loop.Run(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Len(t, *calls, 2)
}

func TestLoop_GenerationErrors(t *testing.T) {
	boom := errors.New("connection reset")

	t.Run("recovered before last attempt", func(t *testing.T) {
		gen, calls := scripted([]string{"", "3"}, []error{boom})
		loop := &Loop[int]{Generator: gen, Process: parseInt, Validate: positive, Config: DefaultConfig()}

		got, err := loop.Run(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, 3, got)

		hist := (*calls)[1].history
		require.Len(t, hist, 2)
		assert.Equal(t, "p", hist[0].Content)
		assert.Contains(t, hist[1].Content, "connection reset")
	})

	t.Run("last attempt propagates", func(t *testing.T) {
		gen, _ := scripted([]string{"x", "x", ""}, []error{nil, nil, boom})
		loop := &Loop[int]{Generator: gen, Process: parseInt, Validate: positive, Config: DefaultConfig()}

		_, err := loop.Run(context.Background(), "p")
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "attempt 3/3")
	})
}

func TestLoop_GenerationFailedEscalates(t *testing.T) {
	gen, calls := scripted([]string{structured.BadRequestSentinel, "5"}, nil)
	loop := &Loop[int]{Generator: gen, Process: parseInt, Validate: positive, Config: DefaultConfig()}

	_, err := loop.Run(context.Background(), "p")
	var failed *structured.GenerationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Len(t, *calls, 1, "sentinel failures are not retried")
}

func TestLoop_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, history []models.Message, opts llm.Options) (llm.Completion, error) {
		cancel()
		return llm.Completion{}, ctx.Err()
	})
	loop := &Loop[int]{Generator: gen, Process: parseInt, Config: DefaultConfig()}

	_, err := loop.Run(ctx, "p")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoop_NilValidateAcceptsAll(t *testing.T) {
	gen, _ := scripted([]string{"-3"}, nil)
	loop := &Loop[int]{Generator: gen, Process: parseInt, Config: Config{MaxAttempts: 0}}

	got, err := loop.Run(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, -3, got)
}

func TestTranscriptIsValue(t *testing.T) {
	var empty Transcript
	one := empty.Rejected("p", "bad")
	two := one.Failed("p", errors.New("x"))

	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, 3, one.Len())
	assert.Equal(t, 4, two.Len(), "prompt is recorded only once")

	msgs := one.Messages()
	msgs[0].Content = "mutated"
	assert.Equal(t, "p", one.Messages()[0].Content)
}

func TestConfigTemperature(t *testing.T) {
	c := DefaultConfig()
	for i, want := range []float64{0.5, 0.6, 0.7} {
		if math.Abs(c.Temperature(i)-want) > 1e-9 {
			t.Errorf("Temperature(%d) = %v, want %v", i, c.Temperature(i), want)
		}
	}
}
