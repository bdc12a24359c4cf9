package models

// DefaultSchema returns the empty object schema used when a workflow node
// declares no input or output schema of its own.
func DefaultSchema() map[string]any {
	return map[string]any{
		"type":        "object",
		"properties":  map[string]any{},
		"required":    []string{},
		"definitions": map[string]any{},
	}
}
