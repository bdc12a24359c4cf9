package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
	"github.com/flowgate/flowgate/pkg/persistence/file"
)

func seedExecutions(t *testing.T, p persistence.Persistence, count int, workflowID string) []string {
	t.Helper()

	runIDs := make([]string, 0, count)

	for i := range count {
		runID := workflowID + "-run-" + string(rune('a'+i))
		err := p.ExecutionRepository().Insert(t.Context(), &models.ExecutionRecord{
			RunID:      runID,
			WorkflowID: workflowID,
			InstanceID: "inst-1",
			UserID:     "user-1",
			Status:     models.ExecutionStatusPending,
			InputData:  map[string]any{"k": "v"},
			CreatedAt:  time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		})
		require.NoError(t, err)

		runIDs = append(runIDs, runID)
	}

	return runIDs
}

func TestExecution_ListExecutions(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(t.TempDir())
	service := NewExecution(p)

	seedExecutions(t, p, 3, "wf-1")
	seedExecutions(t, p, 2, "wf-2")

	all, err := service.ListExecutions(t.Context(), ListExecutionsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	filtered, err := service.ListExecutions(t.Context(), ListExecutionsRequest{WorkflowID: "wf-2"})
	require.NoError(t, err)
	assert.Len(t, filtered, 2)

	paged, err := service.ListExecutions(t.Context(), ListExecutionsRequest{Limit: 2, Offset: 4})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestExecution_ListExecutions_StatusFilter(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(t.TempDir())
	service := NewExecution(p)

	runIDs := seedExecutions(t, p, 2, "wf-1")
	require.NoError(t, p.ExecutionRepository().MarkRunning(t.Context(), runIDs[0], time.Now().UTC()))

	running, err := service.ListExecutions(t.Context(), ListExecutionsRequest{Status: "running"})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, runIDs[0], running[0].RunID)

	_, err = service.ListExecutions(t.Context(), ListExecutionsRequest{Status: "bogus"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.True(t, IsValidationError(err))
}

func TestExecution_GetExecution(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(t.TempDir())
	service := NewExecution(p)

	runIDs := seedExecutions(t, p, 1, "wf-1")

	record, err := service.GetExecution(t.Context(), runIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "wf-1", record.WorkflowID)

	_, err = service.GetExecution(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrExecutionNotFound)
	assert.True(t, IsNotFoundError(err))
}

func TestExecution_HealthCheck(t *testing.T) {
	t.Parallel()

	service := NewExecution(file.NewPersistence(t.TempDir()))

	message, healthy := service.HealthCheck(t.Context())
	assert.True(t, healthy)
	assert.NotEmpty(t, message)

	message, healthy = NewExecution(nil).HealthCheck(t.Context())
	assert.False(t, healthy)
	assert.Contains(t, message, "not initialized")
}
