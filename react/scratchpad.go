package react

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FinalAnswerAction is the reserved action name that terminates the loop.
// Matching is case-insensitive.
const FinalAnswerAction = "final answer"

// Action is a structured tool call emitted by the model.
type Action struct {
	Name  string `json:"action"`
	Input any    `json:"action_input"`
}

// IsFinal reports whether the action is the terminal answer.
func (a *Action) IsFinal() bool {
	return a != nil && strings.EqualFold(a.Name, FinalAnswerAction)
}

// InputString renders the action input as the text handed to the tool or
// the user. Objects render as compact JSON, strings pass through, other
// scalars are formatted.
func (a *Action) InputString() string {
	switch v := a.Input.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	default:
		return fmt.Sprint(v)
	}
}

// Unit is one completed round of the loop: what the model thought, what
// it did and what came back. Terminal rounds carry Response instead of
// Observation.
type Unit struct {
	Thought     string  `json:"thought,omitempty"`
	ActionRaw   string  `json:"action_raw,omitempty"`
	Action      *Action `json:"action,omitempty"`
	Observation string  `json:"observation,omitempty"`
	Response    string  `json:"response,omitempty"`
}

// IsFinal reports whether this unit ended the loop.
func (u *Unit) IsFinal() bool {
	return u.Action.IsFinal()
}
