package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
)

// AnonymousDashboardUser is recorded on executions queued through a public
// dashboard, where no caller identity exists.
const AnonymousDashboardUser = "anonymous_dashboard_user"

var dashboardFieldTypes = []string{"text", "number", "email", "boolean", "select"}

// ExecutionQueuer hands validated dashboard submissions to the orchestrator.
type ExecutionQueuer interface {
	Queue(ctx context.Context, workflowID, userID string, inputData map[string]any, instanceID string) (string, error)
}

// Dashboard manages dashboard definitions and their public execute surface.
type Dashboard struct {
	persistence persistence.Persistence
	queuer      ExecutionQueuer
	logger      *slog.Logger
}

// NewDashboard creates a new dashboard service.
func NewDashboard(persistence persistence.Persistence, queuer ExecutionQueuer, logger *slog.Logger) *Dashboard {
	return &Dashboard{
		persistence: persistence,
		queuer:      queuer,
		logger:      logger.With("module", "dashboard_service"),
	}
}

// CreateDashboard validates and stores a dashboard with its field definitions.
func (s *Dashboard) CreateDashboard(ctx context.Context, dashboard *models.Dashboard) (*models.Dashboard, error) {
	if dashboard.Name == "" {
		return nil, ErrDashboardNameRequired
	}

	if dashboard.WorkflowID == "" || dashboard.InstanceID == "" {
		return nil, ErrDashboardTargetInvalid
	}

	if err := validateDashboardFields(dashboard.Fields); err != nil {
		return nil, err
	}

	dashboard.ID = uuid.NewString()

	for i := range dashboard.Fields {
		dashboard.Fields[i].ID = uuid.NewString()
		dashboard.Fields[i].DashboardID = dashboard.ID
	}

	if err := s.persistence.DashboardRepository().Insert(ctx, dashboard); err != nil {
		return nil, fmt.Errorf("failed to store dashboard: %w", err)
	}

	s.logger.InfoContext(ctx, "Created dashboard",
		"dashboard_id", dashboard.ID, "workflow_id", dashboard.WorkflowID)

	return dashboard, nil
}

func validateDashboardFields(fields []models.DashboardField) error {
	seen := make(map[string]struct{}, len(fields))

	for _, field := range fields {
		if field.Name == "" || field.Label == "" {
			return fmt.Errorf("%w: every field needs a name and a label", ErrInvalidRequest)
		}

		if !slices.Contains(dashboardFieldTypes, field.Type) {
			return fmt.Errorf("%w: unknown field type %q, expected one of %s",
				ErrInvalidRequest, field.Type, strings.Join(dashboardFieldTypes, ", "))
		}

		if field.Type == "select" && len(field.Options) == 0 {
			return fmt.Errorf("%w: select field %q needs options", ErrInvalidRequest, field.Name)
		}

		if _, duplicate := seen[field.Name]; duplicate {
			return fmt.Errorf("%w: duplicate field name %q", ErrInvalidRequest, field.Name)
		}

		seen[field.Name] = struct{}{}
	}

	return nil
}

// GetDashboard retrieves a dashboard with its fields.
func (s *Dashboard) GetDashboard(ctx context.Context, id string) (*models.Dashboard, error) {
	dashboard, err := s.persistence.DashboardRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsDashboardNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrDashboardNotFound, id)
		}

		return nil, fmt.Errorf("failed to get dashboard %s: %w", id, err)
	}

	return dashboard, nil
}

// ListDashboards retrieves all dashboards.
func (s *Dashboard) ListDashboards(ctx context.Context) ([]*models.Dashboard, error) {
	dashboards, err := s.persistence.DashboardRepository().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}

	return dashboards, nil
}

// ExecuteDashboard validates the submitted inputs against the dashboard's
// field schema and queues the bound workflow as the anonymous dashboard user.
// It returns the run ID of the queued execution.
func (s *Dashboard) ExecuteDashboard(ctx context.Context, dashboardID string, inputData map[string]any) (string, error) {
	dashboard, err := s.GetDashboard(ctx, dashboardID)
	if err != nil {
		return "", err
	}

	if err := validateAgainstSchema(dashboard.InputSchema(), inputData); err != nil {
		return "", err
	}

	runID, err := s.queuer.Queue(ctx, dashboard.WorkflowID, AnonymousDashboardUser, inputData, dashboard.InstanceID)
	if err != nil {
		return "", fmt.Errorf("failed to queue dashboard execution: %w", err)
	}

	s.logger.InfoContext(ctx, "Queued dashboard execution",
		"dashboard_id", dashboardID, "run_id", runID)

	return runID, nil
}

func validateAgainstSchema(schema map[string]any, inputData map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(schema),
		gojsonschema.NewGoLoader(inputData),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInputSchemaViolation, err)
	}

	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, resultError := range result.Errors() {
		details = append(details, resultError.String())
	}

	return fmt.Errorf("%w: %s", ErrInputSchemaViolation, strings.Join(details, "; "))
}
