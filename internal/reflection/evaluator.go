// Package reflection judges whether an executed action satisfied its
// requirement.
package reflection

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrison/taskpilot/internal/llm"
	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/prompt"
	"github.com/harrison/taskpilot/internal/structured"
)

// Evaluator produces verdicts. Definitive runner outcomes are trusted as-is;
// only ambiguous ones are sent to the generator, once.
type Evaluator struct {
	Generator llm.Generator
	Templates *prompt.Loader
	Model     string
	Logger    logger.Logger
}

// New creates an Evaluator
func New(gen llm.Generator, templates *prompt.Loader) *Evaluator {
	return &Evaluator{Generator: gen, Templates: templates}
}

// Reflect evaluates result against requirement. An evaluation that cannot
// be parsed yields a partial verdict with ParseError set rather than an
// error; only gateway failures are returned.
func (e *Evaluator) Reflect(ctx context.Context, requirement string, result models.ActionResult) (models.Verdict, error) {
	switch {
	case result.Status == models.ActionFailure && result.Error != "":
		return models.Verdict{Status: models.VerdictFailure, Comments: result.Error}, nil
	case result.Status == models.ActionSuccess:
		return models.Verdict{Status: models.VerdictSuccess, Comments: result.Content}, nil
	}

	log := logger.OrNop(e.Logger)

	text, err := e.Templates.Render(prompt.TemplateReflection, map[string]interface{}{
		"requirement": requirement,
		"result":      describe(result),
	})
	if err != nil {
		return models.Verdict{}, fmt.Errorf("render reflection prompt: %w", err)
	}

	completion, err := e.Generator.Generate(ctx, text, nil, llm.Options{Model: e.Model})
	if err != nil {
		return models.Verdict{}, fmt.Errorf("reflection generation: %w", err)
	}

	verdict := parseVerdict(completion.Text)
	if verdict.Degraded() {
		log.LogWarn(fmt.Sprintf("reflection output unparseable, treating as partial: %v", verdict.ParseError))
	} else {
		log.LogDebug(fmt.Sprintf("reflection verdict: %s", verdict.Status))
	}
	return verdict, nil
}

func describe(r models.ActionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "status: %s\n", r.Status)
	if r.Content != "" {
		fmt.Fprintf(&b, "content:\n%s\n", r.Content)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "error:\n%s\n", r.Error)
	}
	return strings.TrimSpace(b.String())
}

// parseVerdict reads <evaluation><status/><comments/></evaluation>, then a
// JSON {status, comments} object, then degrades to partial
func parseVerdict(raw string) models.Verdict {
	var parseErr error

	doc, err := structured.ParseXML(raw, structured.XMLOptions{})
	if err == nil {
		if eval, ok := doc["evaluation"].(map[string]interface{}); ok {
			if v, ok := fromFields(eval); ok {
				return v
			}
			parseErr = &structured.ParseError{Raw: raw, Message: fmt.Sprintf("unknown evaluation status %q", eval["status"])}
		}
	} else {
		parseErr = err
	}

	if obj := structured.ParseObject(raw); obj.Ok() {
		if v, ok := fromFields(obj.Value()); ok {
			return v
		}
	}

	if parseErr == nil {
		parseErr = &structured.ParseError{Raw: raw, Message: "no evaluation element"}
	}

	comments, _ := structured.StripThinking(raw)
	return models.Verdict{
		Status:     models.VerdictPartial,
		Comments:   comments,
		ParseError: parseErr,
	}
}

func fromFields(m map[string]interface{}) (models.Verdict, bool) {
	s, _ := m["status"].(string)
	status, ok := models.NormalizeVerdictStatus(s)
	if !ok {
		return models.Verdict{}, false
	}
	comments, _ := m["comments"].(string)
	return models.Verdict{Status: status, Comments: strings.TrimSpace(comments)}, true
}
