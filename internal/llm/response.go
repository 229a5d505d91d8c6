package llm

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// cliEnvelope is the JSON document printed by `claude --output-format json`.
// Older agents print {"content": ..., "error": ...} instead; both shapes
// decode into this struct.
type cliEnvelope struct {
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype"`
	IsError          bool            `json:"is_error"`
	Result           string          `json:"result"`
	Content          string          `json:"content"`
	Error            string          `json:"error"`
	SessionID        string          `json:"session_id"`
	StructuredOutput json.RawMessage `json:"structured_output"`
}

var fencedJSONRegex = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n?```")

// structured returns the structured_output object, or nil when it is
// absent, null or empty
func (e *cliEnvelope) structured() map[string]interface{} {
	if len(e.StructuredOutput) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(e.StructuredOutput, &m); err != nil || len(m) == 0 {
		return nil
	}
	return m
}

// decodeEnvelope locates the JSON document in CLI output. The whole output is
// tried first, then a fenced ```json block, then the outermost {...} span.
// It returns the decoded envelope and the JSON text it came from, or nil when
// no JSON object could be found.
func decodeEnvelope(raw []byte) (*cliEnvelope, string) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, ""
	}

	candidates := []string{string(trimmed)}
	if m := fencedJSONRegex.FindSubmatch(trimmed); m != nil {
		candidates = append(candidates, strings.TrimSpace(string(m[1])))
	}
	if extracted := ExtractJSON(string(trimmed)); extracted != "" {
		candidates = append(candidates, extracted)
	}

	for _, c := range candidates {
		var env cliEnvelope
		if err := json.Unmarshal([]byte(c), &env); err == nil {
			return &env, c
		}
	}
	return nil, ""
}

// ParseResponse extracts the response content and session id from Claude CLI
// output.
//
// Content is chosen in order: a non-empty structured_output object (as
// compact JSON), the content field, the result field, and finally the JSON
// document itself when it carries none of those. Output with no decodable
// JSON object yields empty content and no error; callers decide whether to
// fall back to the raw text.
func ParseResponse(raw []byte) (content string, sessionID string, err error) {
	env, doc := decodeEnvelope(raw)
	if env == nil {
		return "", "", nil
	}
	return envelopeContent(env, doc), env.SessionID, nil
}

func envelopeContent(env *cliEnvelope, doc string) string {
	if env.structured() != nil {
		var buf bytes.Buffer
		if err := json.Compact(&buf, env.StructuredOutput); err == nil {
			return buf.String()
		}
		return string(env.StructuredOutput)
	}
	if env.Content != "" {
		return env.Content
	}
	if env.Result != "" {
		return env.Result
	}
	if env.Type == "" && env.Error == "" && env.SessionID == "" {
		return doc
	}
	return ""
}

// ExtractJSON returns the span from the first '{' to the last '}' in content,
// or "" when there is no such span.
func ExtractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return ""
}
