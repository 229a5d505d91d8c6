// Package retry implements the retry-with-repair generation loop.
//
// Each attempt asks the generator for output, processes it into a candidate
// and validates the candidate. A rejected candidate is fed back to the
// generator together with a correction instruction, and the sampling
// temperature rises with each attempt. When every attempt is rejected the
// loop soft-fails with the zero value.
package retry

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrison/taskpilot/internal/llm"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/structured"
)

// Config controls attempts and sampling
type Config struct {
	MaxAttempts     int
	BaseTemperature float64
	TemperatureStep float64

	// Options are passed to every generation call; Temperature is
	// overwritten per attempt
	Options llm.Options
}

// DefaultConfig returns 3 attempts at temperatures 0.5, 0.6, 0.7
func DefaultConfig() Config {
	return Config{
		MaxAttempts:     3,
		BaseTemperature: 0.5,
		TemperatureStep: 0.1,
	}
}

// Temperature returns the sampling temperature for attempt i (0-based)
func (c Config) Temperature(i int) float64 {
	return c.BaseTemperature + c.TemperatureStep*float64(i)
}

// Loop runs generate → process → validate until a candidate passes
type Loop[T any] struct {
	Generator llm.Generator

	// Process turns raw output into a candidate. A *structured.ParseError
	// counts as a rejected candidate; a *structured.GenerationFailedError
	// ends the loop immediately; any other error is handled like a
	// generation error.
	Process func(raw string) (T, error)

	// Validate accepts or rejects a processed candidate. nil accepts all.
	Validate func(T) bool

	Config Config
	Logger logger.Logger

	// OnAttempt, when set, is called after every attempt with the transcript
	// the next attempt will send
	OnAttempt func(attempt int, transcript Transcript)
}

// Run executes the loop for prompt. It returns the first valid candidate,
// or the zero value and nil when every attempt was rejected. Errors are
// returned for a generation failure on the last attempt, an upstream
// failure sentinel, and context cancellation.
func (l *Loop[T]) Run(ctx context.Context, prompt string) (T, error) {
	var zero T
	log := logger.OrNop(l.Logger)

	maxAttempts := l.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var transcript Transcript
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		opts := l.Config.Options
		opts.Temperature = l.Config.Temperature(i)

		sendPrompt := prompt
		history := transcript.Messages()
		if i > 0 {
			sendPrompt = ""
		}

		log.LogDebug(fmt.Sprintf("generation attempt %d/%d (temperature %.2f, %d history messages)", i+1, maxAttempts, opts.Temperature, len(history)))

		completion, err := l.Generator.Generate(ctx, sendPrompt, history, opts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			if i == maxAttempts-1 {
				return zero, fmt.Errorf("generation attempt %d/%d: %w", i+1, maxAttempts, err)
			}
			log.LogWarn(fmt.Sprintf("generation attempt %d/%d failed: %v", i+1, maxAttempts, err))
			transcript = transcript.Failed(prompt, err)
			l.notify(i, transcript)
			continue
		}

		raw := completion.Text
		candidate, err := l.Process(raw)
		if err != nil {
			var failed *structured.GenerationFailedError
			if errors.As(err, &failed) {
				return zero, err
			}

			var parseErr *structured.ParseError
			if !errors.As(err, &parseErr) {
				if i == maxAttempts-1 {
					return zero, fmt.Errorf("generation attempt %d/%d: %w", i+1, maxAttempts, err)
				}
				log.LogWarn(fmt.Sprintf("processing attempt %d/%d failed: %v", i+1, maxAttempts, err))
				transcript = transcript.Failed(prompt, err)
				l.notify(i, transcript)
				continue
			}

			log.LogDebug(fmt.Sprintf("attempt %d/%d rejected: %s", i+1, maxAttempts, parseErr.Message))
			transcript = transcript.Rejected(prompt, raw)
			l.notify(i, transcript)
			continue
		}

		if l.Validate == nil || l.Validate(candidate) {
			if i > 0 {
				log.LogInfo(fmt.Sprintf("output accepted on attempt %d/%d", i+1, maxAttempts))
			}
			return candidate, nil
		}

		log.LogDebug(fmt.Sprintf("attempt %d/%d failed validation", i+1, maxAttempts))
		transcript = transcript.Rejected(prompt, raw)
		l.notify(i, transcript)
	}

	log.LogWarn(fmt.Sprintf("no valid output after %d attempts", maxAttempts))
	return zero, nil
}

func (l *Loop[T]) notify(attempt int, t Transcript) {
	if l.OnAttempt != nil {
		l.OnAttempt(attempt, t)
	}
}
