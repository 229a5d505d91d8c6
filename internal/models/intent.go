package models

import "strings"

// IntentKind is the routing decision for a user turn
type IntentKind string

const (
	// IntentAgent routes the turn into multi-step planning and execution
	IntentAgent IntentKind = "agent"
	// IntentChat answers the turn with a plain conversational reply
	IntentChat IntentKind = "chat"
)

// IntentBranch names which decoding branch produced an intent
type IntentBranch string

const (
	BranchStructured IntentBranch = "structured"
	BranchJSON       IntentBranch = "json"
	BranchKeyword    IntentBranch = "keyword"
	BranchDefault    IntentBranch = "default"
	BranchRemote     IntentBranch = "remote"
)

// IntentResult is the classifier output for one turn
type IntentResult struct {
	Intent    IntentKind   `json:"intent"`
	Reasoning string       `json:"reasoning"`
	Branch    IntentBranch `json:"-"`
}

// ParseIntentKind accepts "agent" or "chat" in any case
func ParseIntentKind(s string) (IntentKind, bool) {
	switch IntentKind(strings.ToLower(strings.TrimSpace(s))) {
	case IntentAgent:
		return IntentAgent, true
	case IntentChat:
		return IntentChat, true
	}
	return "", false
}
