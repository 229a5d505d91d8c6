package models

import "strings"

// ActionStatus is the status an external tool runner reports for an action
type ActionStatus string

const (
	ActionSuccess ActionStatus = "success"
	ActionFailure ActionStatus = "failure"
	ActionRunning ActionStatus = "running"
)

// ActionResult is produced by the tool runner and consumed once by reflection
type ActionResult struct {
	Status  ActionStatus `json:"status"`
	Content string       `json:"content,omitempty"`
	Error   string       `json:"error,omitempty"`
}

// VerdictStatus is the outcome of evaluating an action against its requirement
type VerdictStatus string

const (
	VerdictSuccess VerdictStatus = "success"
	VerdictFailure VerdictStatus = "failure"
	VerdictPartial VerdictStatus = "partial"
)

// Verdict is the terminal judgment of reflection
type Verdict struct {
	Status   VerdictStatus `json:"status"`
	Comments string        `json:"comments"`

	// ParseError is set when the evaluation could not be parsed and the
	// verdict was degraded to partial.
	ParseError error `json:"-"`
}

// Degraded reports whether the verdict came from an unparseable evaluation
func (v Verdict) Degraded() bool {
	return v.ParseError != nil
}

// Passed returns true for success and partial verdicts
func (v Verdict) Passed() bool {
	return v.Status == VerdictSuccess || v.Status == VerdictPartial
}

// NormalizeVerdictStatus maps free text onto one of the three verdict literals.
// The second return value is false when the text names none of them.
func NormalizeVerdictStatus(s string) (VerdictStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "success", "succeeded", "pass", "passed":
		return VerdictSuccess, true
	case "failure", "failed", "fail":
		return VerdictFailure, true
	case "partial", "partially":
		return VerdictPartial, true
	default:
		return "", false
	}
}
