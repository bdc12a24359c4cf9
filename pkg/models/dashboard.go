package models

import "time"

// DashboardField describes one input of a dashboard form. Name is the key
// sent to the remote workflow, Label is what the user sees.
type DashboardField struct {
	ID           string   `json:"id"`
	DashboardID  string   `json:"dashboard_id"`
	Name         string   `json:"name"          validate:"required"`
	Label        string   `json:"label"         validate:"required"`
	Type         string   `json:"type"          validate:"required,oneof=text number email boolean select"`
	Required     bool     `json:"required"`
	DefaultValue string   `json:"default_value,omitempty"`
	Description  string   `json:"description,omitempty"`
	Options      []string `json:"options,omitempty"`
}

// Dashboard binds a set of form fields to a workflow on a specific instance.
type Dashboard struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required"`
	Description string           `json:"description,omitempty"`
	WorkflowID  string           `json:"workflow_id" validate:"required"`
	InstanceID  string           `json:"instance_id" validate:"required"`
	ThemeColor  string           `json:"theme_color"`
	Fields      []DashboardField `json:"fields"`
	CreatedAt   time.Time        `json:"created_at"`
}

// InputSchema compiles the dashboard's field definitions into a JSON schema
// suitable for validating execute-request inputs.
func (d *Dashboard) InputSchema() map[string]any {
	properties := make(map[string]any, len(d.Fields))
	required := make([]string, 0, len(d.Fields))

	for _, field := range d.Fields {
		property := map[string]any{
			"type": jsonSchemaType(field.Type),
		}

		if field.Description != "" {
			property["description"] = field.Description
		}

		if len(field.Options) > 0 {
			property["enum"] = field.Options
		}

		properties[field.Name] = property

		if field.Required {
			required = append(required, field.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	// Draft-04 forbids an empty required array.
	if len(required) > 0 {
		schema["required"] = required
	}

	return schema
}

func jsonSchemaType(fieldType string) string {
	switch fieldType {
	case "number":
		return "number"
	case "boolean":
		return "boolean"
	default:
		// text, email and select inputs all carry strings
		return "string"
	}
}
