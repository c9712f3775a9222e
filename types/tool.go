package types

import "encoding/json"

// ToolSchema describes one tool in the catalogue rendered into the system
// prompt: name, human description and a JSON Schema for its input. Both
// locally registered tools and remote-protocol tools are reduced to this
// shape before prompt assembly.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}
