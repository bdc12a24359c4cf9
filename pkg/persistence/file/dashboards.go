package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
)

// DashboardRepository handles dashboard file operations. Fields are embedded
// in the dashboard document, so one file covers the whole aggregate.
type DashboardRepository struct {
	root string
}

// NewDashboardRepository creates a new dashboard repository.
func NewDashboardRepository(root string) *DashboardRepository {
	return &DashboardRepository{root: root}
}

func (dr *DashboardRepository) dir() string {
	return filepath.Join(dr.root, "dashboards")
}

func (dr *DashboardRepository) path(id string) string {
	return filepath.Join(dr.dir(), id+".json")
}

func (dr *DashboardRepository) Insert(_ context.Context, dashboard *models.Dashboard) error {
	if err := os.MkdirAll(dr.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create dashboards directory: %w", err)
	}

	if dashboard.CreatedAt.IsZero() {
		dashboard.CreatedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dashboard %s: %w", dashboard.ID, err)
	}

	if err := os.WriteFile(dr.path(dashboard.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write dashboard %s: %w", dashboard.ID, err)
	}

	return nil
}

func (dr *DashboardRepository) GetByID(_ context.Context, id string) (*models.Dashboard, error) {
	data, err := os.ReadFile(dr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrDashboardNotFound
		}

		return nil, fmt.Errorf("failed to read dashboard %s: %w", id, err)
	}

	dashboard := &models.Dashboard{}
	if err := json.Unmarshal(data, dashboard); err != nil {
		return nil, fmt.Errorf("failed to decode dashboard %s: %w", id, err)
	}

	return dashboard, nil
}

func (dr *DashboardRepository) List(ctx context.Context) ([]*models.Dashboard, error) {
	root := os.DirFS(dr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboard files: %w", err)
	}

	dashboards := make([]*models.Dashboard, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		dashboard, err := dr.GetByID(ctx, file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		dashboards = append(dashboards, dashboard)
	}

	sort.Slice(dashboards, func(i, j int) bool {
		return dashboards[i].CreatedAt.After(dashboards[j].CreatedAt)
	})

	return dashboards, nil
}
