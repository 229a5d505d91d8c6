package structured

import (
	"encoding/json"
	"strings"
)

// Parse recovers a JSON value of type T from generation output.
//
// Steps:
//  1. Strip a leading thinking block
//  2. If a ```json fence is present, only its body is parsed
//  3. Unmarshal into T
//
// A parse failure yields a *ParseError, unless the content carries the
// BadRequestSentinel, which yields a *GenerationFailedError.
func Parse[T any](raw string) Result[T] {
	content, _ := StripThinking(raw)
	if body, ok := ExtractJSONFence(content); ok {
		content = body
	}

	var v T
	if err := json.Unmarshal([]byte(content), &v); err != nil {
		if strings.Contains(content, BadRequestSentinel) {
			return Fail[T](&GenerationFailedError{Raw: content})
		}
		return Fail[T](&ParseError{Raw: content, Message: err.Error(), Err: err})
	}
	return Ok(v)
}

// ParseObject parses generation output into a generic JSON object
func ParseObject(raw string) Result[map[string]interface{}] {
	return Parse[map[string]interface{}](raw)
}
