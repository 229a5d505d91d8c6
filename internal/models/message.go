package models

// Conversation roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation sent to the generation backend
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryEntry is one append-only record in a task's memory
type MemoryEntry struct {
	Role       string                 `json:"role"`
	Content    string                 `json:"content"`
	ActionType string                 `json:"action_type"`
	Memorized  bool                   `json:"memorized"`
	Meta       map[string]interface{} `json:"meta,omitempty"`
}

// ActionMemory returns the precomputed meta.action_memory, if any
func (e *MemoryEntry) ActionMemory() (string, bool) {
	if e.Meta == nil {
		return "", false
	}
	s, ok := e.Meta["action_memory"].(string)
	return s, ok && s != ""
}
