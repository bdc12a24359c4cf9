package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
)

// ExecutionRepository implements persistence.ExecutionRepository on
// PostgreSQL. Terminal transitions rely on conditional UPDATEs so that two
// writers racing on the same run resolve through row-level semantics alone.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (er *ExecutionRepository) Insert(ctx context.Context, record *models.ExecutionRecord) error {
	inputJSON, err := json.Marshal(record.InputData)
	if err != nil {
		return persistence.NewExecutionError("Insert", record.RunID, fmt.Errorf("failed to serialize input data: %w", err))
	}

	query := `
		INSERT INTO execution_logs (
			run_id, workflow_id, workflow_name, instance_id, user_id,
			status, input_data, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err = er.db.ExecContext(ctx, query,
		record.RunID,
		record.WorkflowID,
		record.WorkflowName,
		record.InstanceID,
		record.UserID,
		record.Status,
		string(inputJSON),
		record.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return persistence.NewExecutionError("Insert", record.RunID, persistence.ErrExecutionAlreadyExists)
		}

		er.logger.ErrorContext(ctx, "Failed to insert execution", "run_id", record.RunID, "error", err)

		return persistence.NewExecutionError("Insert", record.RunID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByRunID(ctx context.Context, runID string) (*models.ExecutionRecord, error) {
	query := `
		SELECT run_id, workflow_id, workflow_name, instance_id, user_id,
			status, input_data, output_data, error_message,
			created_at, started_at, completed_at
		FROM execution_logs
		WHERE run_id = $1
	`

	record, err := er.scanRecord(er.db.QueryRowContext(ctx, query, runID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, persistence.NewExecutionError("GetByRunID", runID, err)
	}

	return record, nil
}

func (er *ExecutionRepository) List(ctx context.Context, opts persistence.ListExecutionsOptions) ([]*models.ExecutionRecord, error) {
	if opts.Limit <= 0 || opts.Limit > 100 {
		opts.Limit = 50
	}

	query := strings.Builder{}
	query.WriteString(`
		SELECT run_id, workflow_id, workflow_name, instance_id, user_id,
			status, input_data, output_data, error_message,
			created_at, started_at, completed_at
		FROM execution_logs
		WHERE 1=1
	`)

	args := make([]any, 0, 7)

	appendFilter := func(clause string, value any) {
		args = append(args, value)
		query.WriteString(" AND " + clause + " $" + strconv.Itoa(len(args)))
	}

	if opts.WorkflowID != "" {
		appendFilter("workflow_id =", opts.WorkflowID)
	}

	if opts.InstanceID != "" {
		appendFilter("instance_id =", opts.InstanceID)
	}

	if opts.Status != nil {
		appendFilter("status =", string(*opts.Status))
	}

	if opts.CreatedAfter != nil {
		appendFilter("created_at >=", *opts.CreatedAfter)
	}

	if opts.CreatedBefore != nil {
		appendFilter("created_at <=", *opts.CreatedBefore)
	}

	args = append(args, opts.Limit, opts.Offset)
	query.WriteString(fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)))

	rows, err := er.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		record, err := er.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}

		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate execution rows: %w", err)
	}

	return records, nil
}

func (er *ExecutionRepository) MarkRunning(ctx context.Context, runID string, startedAt time.Time) error {
	query := `
		UPDATE execution_logs
		SET status = $1, started_at = $2
		WHERE run_id = $3 AND status = $4
	`

	result, err := er.db.ExecContext(ctx, query,
		models.ExecutionStatusRunning, startedAt, runID, models.ExecutionStatusPending)
	if err != nil {
		return persistence.NewExecutionError("MarkRunning", runID, err)
	}

	return er.checkSwap(ctx, "MarkRunning", runID, result)
}

func (er *ExecutionRepository) MarkSucceeded(ctx context.Context, runID string, outputData map[string]any, completedAt time.Time) error {
	outputJSON, err := json.Marshal(outputData)
	if err != nil {
		return persistence.NewExecutionError("MarkSucceeded", runID, fmt.Errorf("failed to serialize output data: %w", err))
	}

	query := `
		UPDATE execution_logs
		SET status = $1, output_data = $2, completed_at = $3
		WHERE run_id = $4 AND status IN ($5, $6)
	`

	result, err := er.db.ExecContext(ctx, query,
		models.ExecutionStatusSuccess, string(outputJSON), completedAt,
		runID, models.ExecutionStatusPending, models.ExecutionStatusRunning)
	if err != nil {
		return persistence.NewExecutionError("MarkSucceeded", runID, err)
	}

	return er.checkSwap(ctx, "MarkSucceeded", runID, result)
}

func (er *ExecutionRepository) MarkFailed(ctx context.Context, runID string, errorMessage string, completedAt time.Time) error {
	query := `
		UPDATE execution_logs
		SET status = $1, error_message = $2, completed_at = $3
		WHERE run_id = $4 AND status IN ($5, $6)
	`

	result, err := er.db.ExecContext(ctx, query,
		models.ExecutionStatusFailed, errorMessage, completedAt,
		runID, models.ExecutionStatusPending, models.ExecutionStatusRunning)
	if err != nil {
		return persistence.NewExecutionError("MarkFailed", runID, err)
	}

	return er.checkSwap(ctx, "MarkFailed", runID, result)
}

// checkSwap distinguishes a lost compare-and-swap from a missing record when a
// conditional UPDATE matched no rows.
func (er *ExecutionRepository) checkSwap(ctx context.Context, op, runID string, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError(op, runID, err)
	}

	if affected > 0 {
		return nil
	}

	var exists bool

	err = er.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM execution_logs WHERE run_id = $1)", runID).Scan(&exists)
	if err != nil {
		return persistence.NewExecutionError(op, runID, err)
	}

	if !exists {
		return persistence.NewExecutionError(op, runID, persistence.ErrExecutionNotFound)
	}

	return persistence.NewExecutionError(op, runID, persistence.ErrStaleTransition)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (er *ExecutionRepository) scanRecord(row rowScanner) (*models.ExecutionRecord, error) {
	var (
		inputJSON    string
		outputJSON   sql.NullString
		errorMessage string
		startedAt    sql.NullTime
		completedAt  sql.NullTime
	)

	record := &models.ExecutionRecord{}

	err := row.Scan(
		&record.RunID,
		&record.WorkflowID,
		&record.WorkflowName,
		&record.InstanceID,
		&record.UserID,
		&record.Status,
		&inputJSON,
		&outputJSON,
		&errorMessage,
		&record.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(inputJSON), &record.InputData); err != nil {
		return nil, fmt.Errorf("failed to deserialize input data: %w", err)
	}

	if outputJSON.Valid && outputJSON.String != "" {
		if err := json.Unmarshal([]byte(outputJSON.String), &record.OutputData); err != nil {
			return nil, fmt.Errorf("failed to deserialize output data: %w", err)
		}
	}

	record.ErrorMessage = errorMessage

	if startedAt.Valid {
		record.StartedAt = &startedAt.Time
	}

	if completedAt.Valid {
		record.CompletedAt = &completedAt.Time
	}

	return record, nil
}
