package services

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Execution exposes read access to execution records and the persistence
// health check.
type Execution struct {
	persistence persistence.Persistence
}

// NewExecution creates a new execution service.
func NewExecution(persistence persistence.Persistence) *Execution {
	return &Execution{persistence: persistence}
}

// HealthCheck checks the health of the persistence layer.
func (s *Execution) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	if err := s.persistence.HealthCheck(ctx); err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListExecutionsRequest contains options for listing executions.
type ListExecutionsRequest struct {
	WorkflowID    string
	InstanceID    string
	Status        string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// ListExecutions retrieves execution records, newest first, with filtering
// and pagination.
func (s *Execution) ListExecutions(ctx context.Context, req ListExecutionsRequest) ([]*models.ExecutionRecord, error) {
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}

	if req.Limit > maxListLimit {
		req.Limit = maxListLimit
	}

	if req.Offset < 0 {
		req.Offset = 0
	}

	opts := persistence.ListExecutionsOptions{
		WorkflowID:    req.WorkflowID,
		InstanceID:    req.InstanceID,
		CreatedAfter:  req.CreatedAfter,
		CreatedBefore: req.CreatedBefore,
		Limit:         req.Limit,
		Offset:        req.Offset,
	}

	if req.Status != "" {
		status := models.ExecutionStatus(req.Status)
		if !status.IsValid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, req.Status)
		}

		opts.Status = &status
	}

	records, err := s.persistence.ExecutionRepository().List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	return records, nil
}

// GetExecution retrieves a single execution record by run ID.
func (s *Execution) GetExecution(ctx context.Context, runID string) (*models.ExecutionRecord, error) {
	record, err := s.persistence.ExecutionRepository().GetByRunID(ctx, runID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, runID)
		}

		return nil, fmt.Errorf("failed to get execution %s: %w", runID, err)
	}

	return record, nil
}
