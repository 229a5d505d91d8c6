package retry

import (
	"fmt"

	"github.com/harrison/taskpilot/internal/models"
)

// CorrectionInstruction is sent after an output that failed validation
const CorrectionInstruction = "Your previous response could not be used because it did not follow the requested format. Reply again to the original request using exactly the requested format and nothing else."

// Transcript is the conversation accumulated across attempts of one loop.
// It is a value: methods return the extended transcript and never mutate
// the receiver's backing array in a way visible to earlier copies.
type Transcript struct {
	messages []models.Message
}

// Messages returns a copy of the accumulated messages
func (t Transcript) Messages() []models.Message {
	out := make([]models.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of accumulated messages
func (t Transcript) Len() int {
	return len(t.messages)
}

func (t Transcript) with(msgs ...models.Message) Transcript {
	next := make([]models.Message, 0, len(t.messages)+len(msgs))
	next = append(next, t.messages...)
	next = append(next, msgs...)
	return Transcript{messages: next}
}

func (t Transcript) withPrompt(prompt string) Transcript {
	if len(t.messages) > 0 {
		return t
	}
	return t.with(models.Message{Role: models.RoleUser, Content: prompt})
}

// Rejected records an output that failed validation: the original prompt
// (first time only), the rejected output, and the correction instruction.
func (t Transcript) Rejected(prompt, raw string) Transcript {
	return t.withPrompt(prompt).with(
		models.Message{Role: models.RoleAssistant, Content: raw},
		models.Message{Role: models.RoleUser, Content: CorrectionInstruction},
	)
}

// Failed records a generation error: the original prompt (first time only)
// and a user message describing the failure.
func (t Transcript) Failed(prompt string, err error) Transcript {
	return t.withPrompt(prompt).with(models.Message{
		Role:    models.RoleUser,
		Content: fmt.Sprintf("The previous attempt failed with an error: %v. Please answer the original request again.", err),
	})
}
