// Package models defines the core domain models for the workflow relay.
package models

import "time"

// ExecutionStatus represents the lifecycle state of a queued run.
type ExecutionStatus string

const (
	ExecutionStatusPending ExecutionStatus = "pending" // Record inserted, dispatch not started
	ExecutionStatusRunning ExecutionStatus = "running" // Remote trigger in flight or awaiting callback
	ExecutionStatusSuccess ExecutionStatus = "success" // Callback reconciled with output data
	ExecutionStatusFailed  ExecutionStatus = "failed"  // Dispatch error or timeout
)

// IsValid reports whether s is one of the known lifecycle states.
func (s ExecutionStatus) IsValid() bool {
	switch s {
	case ExecutionStatusPending, ExecutionStatusRunning, ExecutionStatusSuccess, ExecutionStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status permits no further transition.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusSuccess || s == ExecutionStatusFailed
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition. Statuses only move forward: pending -> running -> {success, failed}.
// A success arriving while still pending is allowed because the remote callback
// can race the dispatch task's own running write.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case ExecutionStatusPending:
		return next == ExecutionStatusRunning || next == ExecutionStatusSuccess || next == ExecutionStatusFailed
	case ExecutionStatusRunning:
		return next == ExecutionStatusSuccess || next == ExecutionStatusFailed
	default:
		return false
	}
}

// ExecutionRecord tracks one queued attempt to execute a remote workflow.
// RunID is generated at queue time and never changes; timestamps are each set
// at most once and are monotonically ordered when present.
type ExecutionRecord struct {
	RunID        string          `json:"run_id"`
	WorkflowID   string          `json:"workflow_id"`
	WorkflowName string          `json:"workflow_name,omitempty"`
	InstanceID   string          `json:"instance_id"`
	UserID       string          `json:"user_id"`
	Status       ExecutionStatus `json:"status"`
	InputData    map[string]any  `json:"input_data"`
	OutputData   map[string]any  `json:"output_data,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
