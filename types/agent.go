package types

import "encoding/json"

// ToolSchema describes a callable in OpenAI function-call form.
// Parameters holds a JSON Schema object describing the parameter set.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

// AgentInfo is the static metadata every registered agent exposes.
// InputSchema declares the structured parameters the agent accepts; the
// input formatter uses it to translate free text into a parameter object.
type AgentInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	InputSchema ToolSchema `json:"input_schema"`
	OutputType  string     `json:"output_type,omitempty"`
}

// ObjectSchema builds a JSON Schema object for a flat set of string
// properties. It is a convenience for agents whose inputs are all text.
func ObjectSchema(props map[string]string, required ...string) json.RawMessage {
	type property struct {
		Type        string `json:"type"`
		Description string `json:"description,omitempty"`
	}
	schema := struct {
		Type       string              `json:"type"`
		Properties map[string]property `json:"properties"`
		Required   []string            `json:"required,omitempty"`
	}{
		Type:       "object",
		Properties: make(map[string]property, len(props)),
		Required:   required,
	}
	for name, desc := range props {
		schema.Properties[name] = property{Type: "string", Description: desc}
	}
	raw, _ := json.Marshal(schema)
	return raw
}
