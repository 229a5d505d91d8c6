package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/harrison/taskpilot/internal/logger"
	"github.com/harrison/taskpilot/internal/models"
)

// Manager hands out Stores over a shared backend
type Manager struct {
	backend Backend
	log     logger.Logger
}

// NewManager creates a Manager. A nil logger discards read warnings.
func NewManager(backend Backend, log logger.Logger) *Manager {
	return &Manager{backend: backend, log: logger.OrNop(log)}
}

// Open returns the Store for key within namespace. Nothing is read until
// the first call.
func (m *Manager) Open(namespace, key string) *Store {
	return &Store{backend: m.backend, log: m.log, namespace: namespace, key: key}
}

// Close releases the backend if it holds resources
func (m *Manager) Close() error {
	if c, ok := m.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Store is the append-only entry log of one task
type Store struct {
	backend   Backend
	log       logger.Logger
	namespace string
	key       string
}

// AddMessage appends one entry and rewrites the record. Memorized user
// entries get meta.action_memory computed here unless the caller supplied
// one. A record that exists but cannot be read is left untouched and the
// read error is returned, as are write failures.
func (s *Store) AddMessage(ctx context.Context, role, content, actionType string, memorized bool, meta map[string]interface{}) error {
	entry := models.MemoryEntry{
		Role:       role,
		Content:    content,
		ActionType: actionType,
		Memorized:  memorized,
		Meta:       cloneMeta(meta),
	}

	if role == models.RoleUser && memorized {
		if _, ok := entry.ActionMemory(); !ok {
			if summary, ok := actionMemory(entry.Meta, content); ok {
				if entry.Meta == nil {
					entry.Meta = make(map[string]interface{})
				}
				entry.Meta["action_memory"] = summary
			}
		}
	}

	entries, err := s.load(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, entry)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode memory %s/%s: %w", s.namespace, s.key, err)
	}
	if err := s.backend.Write(ctx, s.namespace, s.key, data); err != nil {
		return fmt.Errorf("write memory %s/%s: %w", s.namespace, s.key, err)
	}
	return nil
}

// GetMessages returns all entries in insertion order. A missing record is
// empty; any other read or decode failure is logged and also yields empty.
func (s *Store) GetMessages(ctx context.Context) []models.MemoryEntry {
	entries, err := s.load(ctx)
	if err != nil {
		s.log.LogWarn(err.Error())
		return []models.MemoryEntry{}
	}
	return entries
}

// load reads and decodes the record. Only a missing record maps to empty.
func (s *Store) load(ctx context.Context) ([]models.MemoryEntry, error) {
	data, err := s.backend.Read(ctx, s.namespace, s.key)
	if errors.Is(err, ErrNotFound) {
		return []models.MemoryEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read memory %s/%s: %w", s.namespace, s.key, err)
	}

	var entries []models.MemoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("read memory %s/%s: decode: %w", s.namespace, s.key, err)
	}
	if entries == nil {
		entries = []models.MemoryEntry{}
	}
	return entries, nil
}

// GetMemorizedContent renders memorized entries one per line, for
// re-injection into later prompts
func (s *Store) GetMemorizedContent(ctx context.Context) string {
	var lines []string
	for _, e := range s.GetMessages(ctx) {
		if !e.Memorized {
			continue
		}
		if summary, ok := e.ActionMemory(); ok {
			lines = append(lines, summary)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(e.ActionType), e.Content))
	}
	return strings.Join(lines, "\n")
}

// ClearMemory deletes the record. Clearing a missing record succeeds.
func (s *Store) ClearMemory(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.namespace, s.key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("clear memory %s/%s: %w", s.namespace, s.key, err)
	}
	return nil
}

// xmlText escapes the characters that would end or open an element
var xmlText = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// actionMemory serializes meta.action, meta.status and content as
// <action><name/><params/><status/><result/></action> with element text
// escaped
func actionMemory(meta map[string]interface{}, content string) (string, bool) {
	action, ok := meta["action"].(map[string]interface{})
	if !ok {
		return "", false
	}

	name, _ := action["name"].(string)
	if name == "" {
		name, _ = action["type"].(string)
	}

	var b strings.Builder
	b.WriteString("<action>")
	fmt.Fprintf(&b, "<name>%s</name>", xmlText.Replace(name))
	if params, ok := action["params"]; ok && params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			encoded = []byte(fmt.Sprint(params))
		}
		fmt.Fprintf(&b, "<params>%s</params>", xmlText.Replace(string(encoded)))
	}
	status, _ := meta["status"].(string)
	fmt.Fprintf(&b, "<status>%s</status>", xmlText.Replace(status))
	fmt.Fprintf(&b, "<result>%s</result>", xmlText.Replace(content))
	b.WriteString("</action>")
	return b.String(), true
}

func cloneMeta(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
