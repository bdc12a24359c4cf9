// Package web provides the HTTP handlers and REST API endpoints of the relay.
package web

// CreateInstanceRequest represents the request body for registering an n8n instance.
type CreateInstanceRequest struct {
	Name   string `json:"name"    validate:"required,min=1"`
	URL    string `json:"url"     validate:"required,url"`
	APIKey string `json:"api_key" validate:"required"`
}

// QueueExecutionRequest represents the request body for queueing a workflow execution.
type QueueExecutionRequest struct {
	WorkflowID string         `json:"workflow_id" validate:"required"`
	InstanceID string         `json:"instance_id" validate:"required"`
	UserID     string         `json:"user_id"`
	InputData  map[string]any `json:"input_data"  validate:"required"`
}

// QueueExecutionResponse acknowledges an accepted execution.
type QueueExecutionResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// DashboardFieldRequest describes one form field of a dashboard being created.
type DashboardFieldRequest struct {
	Name         string   `json:"name"          validate:"required"`
	Label        string   `json:"label"         validate:"required"`
	Type         string   `json:"type"          validate:"required,oneof=text number email boolean select"`
	Required     bool     `json:"required"`
	DefaultValue string   `json:"default_value,omitempty"`
	Description  string   `json:"description,omitempty"`
	Options      []string `json:"options,omitempty"`
}

// CreateDashboardRequest represents the request body for creating a dashboard.
type CreateDashboardRequest struct {
	Name        string                  `json:"name"        validate:"required,min=1"`
	Description string                  `json:"description"`
	WorkflowID  string                  `json:"workflow_id" validate:"required"`
	InstanceID  string                  `json:"instance_id" validate:"required"`
	ThemeColor  string                  `json:"theme_color"`
	Fields      []DashboardFieldRequest `json:"fields"      validate:"dive"`
}

// ExecuteDashboardRequest represents a public dashboard submission.
type ExecuteDashboardRequest struct {
	InputData map[string]any `json:"input_data" validate:"required"`
}

// CallbackRequest represents the completion callback posted by a remote workflow.
type CallbackRequest struct {
	OutputData map[string]any `json:"output_data"`
	SecretKey  string         `json:"secret_key"`
}

// CallbackResponse acknowledges a callback. Success is false when the
// callback was rejected or could not be reconciled.
type CallbackResponse struct {
	Success bool `json:"success"`
}
