package llm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Role tags a conversation turn with its author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message of a conversation. Turns are values and are never
// modified after construction.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// HistoryEntry is one transcript item as submitted by the browser client.
type HistoryEntry struct {
	Content string `json:"content"`
	IsUser  bool   `json:"isUser"`
}

// Window is the bounded context handed to a provider: the retained history
// followed by the new user message.
type Window struct {
	Turns []Turn
}

// Len returns the number of turns in the window.
func (w Window) Len() int {
	return len(w.Turns)
}

// Last returns the final turn, which is always the new user message.
func (w Window) Last() Turn {
	if len(w.Turns) == 0 {
		return Turn{}
	}
	return w.Turns[len(w.Turns)-1]
}

// ModelCandidate is one entry of the fallback chain. Lower priority values are
// tried first.
type ModelCandidate struct {
	ID       string `json:"id" yaml:"id"`
	Priority int    `json:"priority" yaml:"priority"`
}

// ErrNoCandidates is returned when a fallback chain is configured without models.
var ErrNoCandidates = errors.New("model chain is empty")

// ErrDuplicatePriority is returned when two candidates share a priority.
var ErrDuplicatePriority = errors.New("model priorities must be unique")

// NormalizeCandidates validates a candidate list and returns a copy sorted by
// priority. Empty identifiers, duplicate priorities and an empty list are
// rejected.
func NormalizeCandidates(candidates []ModelCandidate) ([]ModelCandidate, error) {
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	out := make([]ModelCandidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })

	for i, c := range out {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("model at priority %d has no id", c.Priority)
		}
		if i > 0 && out[i-1].Priority == c.Priority {
			return nil, fmt.Errorf("%w: %q and %q both have priority %d",
				ErrDuplicatePriority, out[i-1].ID, c.ID, c.Priority)
		}
	}

	return out, nil
}

// CandidatesFromIDs builds a chain from an ordered list of model ids, assigning
// priorities 1..n in list order.
func CandidatesFromIDs(ids []string) []ModelCandidate {
	out := make([]ModelCandidate, 0, len(ids))
	for i, id := range ids {
		out = append(out, ModelCandidate{ID: id, Priority: i + 1})
	}
	return out
}
