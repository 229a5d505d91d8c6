package llm

import (
	"fmt"

	"github.com/harrison/taskpilot/internal/config"
	"github.com/harrison/taskpilot/internal/logger"
)

// New builds the Generator selected by cfg.Backend
func New(cfg config.GenerationConfig, log logger.Logger) (Generator, error) {
	switch cfg.Backend {
	case config.BackendClaude, "":
		g := NewClaudeGateway()
		if cfg.ClaudePath != "" {
			g.ClaudePath = cfg.ClaudePath
		}
		if cfg.SystemPrompt != "" {
			g.SystemPrompt = cfg.SystemPrompt
		}
		g.Model = cfg.Model
		g.Timeout = cfg.Timeout
		g.Logger = log
		return g, nil
	case config.BackendOllama:
		return NewOllamaGateway(cfg.BaseURL, cfg.Model, cfg.Timeout, log).
			WithSystemPrompt(cfg.SystemPrompt), nil
	default:
		return nil, fmt.Errorf("unknown generation backend %q", cfg.Backend)
	}
}
