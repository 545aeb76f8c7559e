package llm

import (
	"errors"
	"strings"
)

// DefaultHistoryWindow is the number of past turns kept when none is configured.
const DefaultHistoryWindow = 10

// ErrInvalidInput is returned when the new message is empty.
var ErrInvalidInput = errors.New("message must not be empty")

// BuildWindow turns a client transcript and a new message into a bounded
// window. Entries without content are dropped, only the last size entries are
// kept, and the trimmed message is appended as the final user turn.
func BuildWindow(history []HistoryEntry, message string, size int) (Window, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return Window{}, ErrInvalidInput
	}

	usable := make([]Turn, 0, len(history))
	for _, entry := range history {
		if strings.TrimSpace(entry.Content) == "" {
			continue
		}
		role := RoleAssistant
		if entry.IsUser {
			role = RoleUser
		}
		usable = append(usable, Turn{Role: role, Content: entry.Content})
	}

	if size < 0 {
		size = 0
	}
	if len(usable) > size {
		usable = usable[len(usable)-size:]
	}

	turns := make([]Turn, 0, len(usable)+1)
	turns = append(turns, usable...)
	turns = append(turns, Turn{Role: RoleUser, Content: message})

	return Window{Turns: turns}, nil
}
