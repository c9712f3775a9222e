package tools

import (
	"encoding/json"

	"github.com/BaSui01/reagent/types"
)

// ProviderType identifies where a local tool comes from.
type ProviderType string

const (
	ProviderBuiltin  ProviderType = "builtin"
	ProviderAPI      ProviderType = "api"
	ProviderWorkflow ProviderType = "workflow"
)

// ParameterForm declares who supplies a parameter's value.
type ParameterForm string

const (
	// FormLLM parameters are filled in by the model.
	FormLLM ParameterForm = "llm"
	// FormFixed parameters are filled in by configuration at runtime.
	FormFixed ParameterForm = "form"
)

// Parameter describes one declared tool parameter.
type Parameter struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Form        ParameterForm `json:"form"`
	Required    bool          `json:"required,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Entity is a local tool descriptor. RuntimeParameters are values set by
// the hosting application that persist across loop rounds; they are merged
// under (never replaced by) the model-supplied arguments at dispatch time.
type Entity struct {
	Provider          ProviderType   `json:"provider_type"`
	ProviderID        string         `json:"provider"`
	Name              string         `json:"name"`
	Description       string         `json:"description,omitempty"`
	Parameters        []Parameter    `json:"parameters,omitempty"`
	RuntimeParameters map[string]any `json:"runtime_parameters,omitempty"`
}

// LLMParameters returns the parameters the model is expected to fill in.
func (e *Entity) LLMParameters() []Parameter {
	out := make([]Parameter, 0, len(e.Parameters))
	for _, p := range e.Parameters {
		if p.Form == FormLLM {
			out = append(out, p)
		}
	}
	return out
}

// Schema renders the entity into the uniform catalogue shape used for
// prompt assembly.
func (e *Entity) Schema() types.ToolSchema {
	props := make(map[string]any, len(e.Parameters))
	var required []string
	for _, p := range e.Parameters {
		if p.Form != FormLLM {
			continue
		}
		typ := p.Type
		if typ == "" {
			typ = "string"
		}
		props[p.Name] = map[string]any{
			"type":        typ,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return types.ToolSchema{
		Name:        e.Name,
		Description: e.Description,
		Parameters:  raw,
	}
}
