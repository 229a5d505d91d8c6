package structured

import (
	"fmt"
	"unicode/utf8"
)

// BadRequestSentinel is the marker a generation backend returns in place of
// content when the upstream request was rejected.
const BadRequestSentinel = "ERR_BAD_REQUEST"

// ParseError reports structured output that did not parse. It is recoverable by
// generating again.
type ParseError struct {
	Raw     string // Content that failed to parse
	Message string // Parser message
	Err     error  // Underlying parser error (optional)
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse structured output: %s (content: %s)", e.Message, truncate(e.Raw, 200))
}

// Unwrap returns the underlying parser error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// GenerationFailedError reports that the backend answered with its failure
// sentinel. Callers should pause or escalate instead of retrying silently.
type GenerationFailedError struct {
	Raw string
}

// Error implements the error interface for GenerationFailedError.
func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed upstream: %s", truncate(e.Raw, 200))
}

// truncate cuts s to at most maxLen bytes on a rune boundary, adding "..." when shortened.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
