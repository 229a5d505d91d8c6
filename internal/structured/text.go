// Package structured recovers clean payloads from generation output: it strips
// thinking preambles, unwraps fenced blocks and CDATA, and parses JSON or
// XML-ish text into values or typed parse errors.
package structured

import (
	"regexp"
	"strings"
)

// Thinking markers bound a free-form reasoning block emitted before the answer.
const (
	ThinkOpen  = "<think>"
	ThinkClose = "</think>"
)

var (
	jsonFenceRegex     = regexp.MustCompile("(?is)```json[ \t]*\\r?\\n?(.*?)```")
	markdownFenceRegex = regexp.MustCompile("(?is)```(?:markdown|md)[ \t]*\\r?\\n?(.*?)```")
	xmlFenceRegex      = regexp.MustCompile("(?is)```xml[ \t]*\\r?\\n?(.*?)```")
)

// StripThinking trims raw and removes a leading thinking block. The answer is
// the trimmed remainder after the closing marker; thinking holds the block body.
// Input that does not start with the opening marker, or never closes it, is
// returned trimmed and unchanged.
func StripThinking(raw string) (answer, thinking string) {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, ThinkOpen) {
		return s, ""
	}
	end := strings.Index(s, ThinkClose)
	if end < 0 {
		return s, ""
	}
	thinking = strings.TrimSpace(s[len(ThinkOpen):end])
	answer = strings.TrimSpace(s[end+len(ThinkClose):])
	return answer, thinking
}

// ExtractJSONFence returns the body of the first ```json fence in s
func ExtractJSONFence(s string) (string, bool) {
	return extractFence(jsonFenceRegex, s)
}

// ExtractMarkdown returns the body of a ```markdown or ```md fence, or s
// trimmed when no such fence exists
func ExtractMarkdown(s string) string {
	if body, ok := extractFence(markdownFenceRegex, s); ok {
		return body
	}
	return strings.TrimSpace(s)
}

func extractFence(re *regexp.Regexp, s string) (string, bool) {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
