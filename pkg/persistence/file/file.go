// Package file provides file-based persistence used for development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/flowgate/flowgate/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on the file
// system: one JSON document per entity, grouped in per-table directories.
type Persistence struct {
	root          string
	executionRepo *ExecutionRepository
	instanceRepo  *InstanceRepository
	dashboardRepo *DashboardRepository
}

// NewPersistence creates a new file persistence rooted at the given directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		executionRepo: NewExecutionRepository(cleanRoot),
		instanceRepo:  NewInstanceRepository(cleanRoot),
		dashboardRepo: NewDashboardRepository(cleanRoot),
	}
}

func (fp *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) InstanceRepository() persistence.InstanceRepository {
	return fp.instanceRepo
}

func (fp *Persistence) DashboardRepository() persistence.DashboardRepository {
	return fp.dashboardRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
