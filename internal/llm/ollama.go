package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
	"github.com/harrison/taskpilot/internal/structured"
)

// DefaultOllamaURL is the local Ollama API address. The explicit IPv4
// address avoids localhost resolving to ::1.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// DefaultOllamaModel is used when neither the gateway nor the call names one
const DefaultOllamaModel = "qwen2.5-coder:14b"

// OllamaGateway generates text through the Ollama /api/chat endpoint.
// Safe for concurrent use.
type OllamaGateway struct {
	baseURL      string
	model        string
	systemPrompt string
	client       *http.Client
	log          logger.Logger
}

// NewOllamaGateway creates a gateway for baseURL. Empty values fall back to
// DefaultOllamaURL and DefaultOllamaModel; timeout 0 disables the client
// timeout.
func NewOllamaGateway(baseURL, model string, timeout time.Duration, log logger.Logger) *OllamaGateway {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: timeout},
		log:     logger.OrNop(log),
	}
}

// WithSystemPrompt sets a system message sent ahead of every conversation
func (g *OllamaGateway) WithSystemPrompt(s string) *OllamaGateway {
	g.systemPrompt = s
	return g
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   interface{}     `json:"format,omitempty"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
	Error   string        `json:"error"`
}

func (g *OllamaGateway) buildRequest(text string, history []models.Message, opts Options) ollamaChatRequest {
	req := ollamaChatRequest{
		Model:  g.model,
		Stream: false,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}

	if g.systemPrompt != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: models.RoleSystem, Content: g.systemPrompt})
	}
	for _, m := range history {
		req.Messages = append(req.Messages, ollamaMessage{Role: m.Role, Content: m.Content})
	}
	if strings.TrimSpace(text) != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: models.RoleUser, Content: text})
	}

	switch {
	case opts.Schema != "" && json.Valid([]byte(opts.Schema)):
		req.Format = json.RawMessage(opts.Schema)
	case opts.ResponseFormat == FormatJSON:
		req.Format = FormatJSON
	}

	temp := opts.Temperature
	req.Options = &ollamaOptions{Temperature: &temp}
	return req
}

// Generate implements Generator
func (g *OllamaGateway) Generate(ctx context.Context, text string, history []models.Message, opts Options) (Completion, error) {
	chatReq := g.buildRequest(text, history, opts)
	if len(chatReq.Messages) == 0 {
		return Completion{}, fmt.Errorf("prompt is required")
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.log.LogWarn(fmt.Sprintf("ollama rejected the request: %s", strings.TrimSpace(string(msg))))
		return Completion{Text: structured.BadRequestSentinel}, nil
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Completion{}, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Completion{}, fmt.Errorf("failed to decode response: %w", err)
	}
	if chatResp.Error != "" {
		return Completion{}, fmt.Errorf("ollama error: %s", chatResp.Error)
	}

	c := Completion{Text: chatResp.Message.Content}
	if chatReq.Format != nil {
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimSpace(c.Text)), &obj); err == nil {
			c.Structured = obj
		}
	}
	return c, nil
}
