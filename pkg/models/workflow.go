package models

// WorkflowSummary is the normalized shape of one entry in an n8n workflow
// listing. Unknown or missing fields keep their zero values.
type WorkflowSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// WorkflowNode is a single node inside a remote workflow definition.
type WorkflowNode struct {
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
}

// WorkflowDefinition is the full workflow document fetched on demand from the
// remote instance. The connections graph is carried opaquely; only the node
// list is inspected here.
type WorkflowDefinition struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Active      bool           `json:"active"`
	Nodes       []WorkflowNode `json:"nodes"`
	Connections map[string]any `json:"connections"`
}

// TriggerType classifies the node that starts a remote workflow.
type TriggerType string

const (
	TriggerTypeWebhook TriggerType = "webhook"
	TriggerTypeManual  TriggerType = "manual"
	TriggerTypeTrigger TriggerType = "trigger"
	TriggerTypeUnknown TriggerType = "unknown"
)
