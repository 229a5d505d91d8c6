package prompt

import (
	"fmt"
	"strings"

	"github.com/harrison/taskpilot/internal/models"
)

// XMLSection creates a section with proper formatting
// Output: <name>\ncontent\n</name>
func XMLSection(name, content string) string {
	return fmt.Sprintf("<%s>\n%s\n</%s>", name, strings.TrimSpace(content), name)
}

// Conversation renders messages as a <conversation> section, one
// <message role="..."> element per turn. Returns "" for no messages.
func Conversation(messages []models.Message) string {
	if len(messages) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&sb, "<message role=%q>\n%s\n</message>\n", m.Role, strings.TrimSpace(m.Content))
	}
	return XMLSection("conversation", sb.String())
}
