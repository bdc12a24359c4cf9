// Package persistence provides the data storage abstraction for execution
// records, instances and dashboards.
package persistence

import (
	"context"
	"time"

	"github.com/flowgate/flowgate/pkg/models"
)

type Persistence interface {
	ExecutionRepository() ExecutionRepository
	InstanceRepository() InstanceRepository
	DashboardRepository() DashboardRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ListExecutionsOptions filters and paginates execution listings.
type ListExecutionsOptions struct {
	WorkflowID    string
	InstanceID    string
	Status        *models.ExecutionStatus
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// ExecutionRepository stores execution records. Terminal transitions are
// compare-and-swap style: MarkRunning applies only to a pending record, and
// MarkSucceeded/MarkFailed apply only while the current status still permits
// the transition. A write that matches an existing record but loses the swap
// returns ErrStaleTransition so racing writers can no-op.
type ExecutionRepository interface {
	Insert(ctx context.Context, record *models.ExecutionRecord) error
	GetByRunID(ctx context.Context, runID string) (*models.ExecutionRecord, error)
	List(ctx context.Context, opts ListExecutionsOptions) ([]*models.ExecutionRecord, error)
	MarkRunning(ctx context.Context, runID string, startedAt time.Time) error
	MarkSucceeded(ctx context.Context, runID string, outputData map[string]any, completedAt time.Time) error
	MarkFailed(ctx context.Context, runID string, errorMessage string, completedAt time.Time) error
}

// InstanceRepository stores n8n instance connections. Deactivate is a soft
// delete; GetActive resolves only instances with is_active set.
type InstanceRepository interface {
	Insert(ctx context.Context, instance *models.Instance) error
	GetByID(ctx context.Context, id string) (*models.Instance, error)
	GetActive(ctx context.Context, id string) (*models.Instance, error)
	ListActive(ctx context.Context) ([]*models.Instance, error)
	Deactivate(ctx context.Context, id string) error
}

// DashboardRepository stores dashboards together with their field definitions.
type DashboardRepository interface {
	Insert(ctx context.Context, dashboard *models.Dashboard) error
	GetByID(ctx context.Context, id string) (*models.Dashboard, error)
	List(ctx context.Context) ([]*models.Dashboard, error)
}
