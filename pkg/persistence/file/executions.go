package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
)

// ExecutionRepository handles execution record file operations. A process-wide
// mutex serializes status writes so the compare-and-swap semantics hold even
// when the dispatch task and a callback race.
type ExecutionRepository struct {
	root string
	mu   sync.Mutex
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir() string {
	return filepath.Join(er.root, "executions")
}

func (er *ExecutionRepository) path(runID string) string {
	return filepath.Join(er.dir(), runID+".json")
}

func (er *ExecutionRepository) Insert(_ context.Context, record *models.ExecutionRecord) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if err := os.MkdirAll(er.dir(), 0o755); err != nil {
		return persistence.NewExecutionError("Insert", record.RunID, err)
	}

	if _, err := os.Stat(er.path(record.RunID)); err == nil {
		return persistence.NewExecutionError("Insert", record.RunID, persistence.ErrExecutionAlreadyExists)
	}

	return er.write(record)
}

func (er *ExecutionRepository) GetByRunID(_ context.Context, runID string) (*models.ExecutionRecord, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	return er.read(runID)
}

func (er *ExecutionRepository) List(_ context.Context, opts persistence.ListExecutionsOptions) ([]*models.ExecutionRecord, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 50
	}

	root := os.DirFS(er.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		record, err := er.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if !matchesFilter(record, opts) {
			continue
		}

		records = append(records, record)
	}

	// Newest first, matching the API's listing contract
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})

	if opts.Offset >= len(records) {
		return []*models.ExecutionRecord{}, nil
	}

	end := opts.Offset + opts.Limit
	if end > len(records) {
		end = len(records)
	}

	return records[opts.Offset:end], nil
}

func matchesFilter(record *models.ExecutionRecord, opts persistence.ListExecutionsOptions) bool {
	if opts.WorkflowID != "" && record.WorkflowID != opts.WorkflowID {
		return false
	}

	if opts.InstanceID != "" && record.InstanceID != opts.InstanceID {
		return false
	}

	if opts.Status != nil && record.Status != *opts.Status {
		return false
	}

	if opts.CreatedAfter != nil && record.CreatedAt.Before(*opts.CreatedAfter) {
		return false
	}

	if opts.CreatedBefore != nil && record.CreatedAt.After(*opts.CreatedBefore) {
		return false
	}

	return true
}

func (er *ExecutionRepository) MarkRunning(_ context.Context, runID string, startedAt time.Time) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.read(runID)
	if err != nil {
		return persistence.NewExecutionError("MarkRunning", runID, err)
	}

	if record.Status != models.ExecutionStatusPending {
		return persistence.NewExecutionError("MarkRunning", runID, persistence.ErrStaleTransition)
	}

	record.Status = models.ExecutionStatusRunning
	record.StartedAt = &startedAt

	return er.write(record)
}

func (er *ExecutionRepository) MarkSucceeded(_ context.Context, runID string, outputData map[string]any, completedAt time.Time) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.read(runID)
	if err != nil {
		return persistence.NewExecutionError("MarkSucceeded", runID, err)
	}

	if !record.Status.CanTransitionTo(models.ExecutionStatusSuccess) {
		return persistence.NewExecutionError("MarkSucceeded", runID, persistence.ErrStaleTransition)
	}

	record.Status = models.ExecutionStatusSuccess
	record.OutputData = outputData
	record.CompletedAt = &completedAt

	return er.write(record)
}

func (er *ExecutionRepository) MarkFailed(_ context.Context, runID string, errorMessage string, completedAt time.Time) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	record, err := er.read(runID)
	if err != nil {
		return persistence.NewExecutionError("MarkFailed", runID, err)
	}

	if !record.Status.CanTransitionTo(models.ExecutionStatusFailed) {
		return persistence.NewExecutionError("MarkFailed", runID, persistence.ErrStaleTransition)
	}

	record.Status = models.ExecutionStatusFailed
	record.ErrorMessage = errorMessage
	record.CompletedAt = &completedAt

	return er.write(record)
}

func (er *ExecutionRepository) read(runID string) (*models.ExecutionRecord, error) {
	data, err := os.ReadFile(er.path(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", runID, err)
	}

	record := &models.ExecutionRecord{}
	if err := json.Unmarshal(data, record); err != nil {
		return nil, fmt.Errorf("failed to decode execution %s: %w", runID, err)
	}

	return record, nil
}

func (er *ExecutionRepository) write(record *models.ExecutionRecord) error {
	if err := os.MkdirAll(er.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode execution %s: %w", record.RunID, err)
	}

	if err := os.WriteFile(er.path(record.RunID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write execution %s: %w", record.RunID, err)
	}

	return nil
}
