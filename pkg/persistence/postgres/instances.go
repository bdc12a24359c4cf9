package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
)

// InstanceRepository implements persistence.InstanceRepository on PostgreSQL.
type InstanceRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (ir *InstanceRepository) Insert(ctx context.Context, instance *models.Instance) error {
	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	query := `
		INSERT INTO instances (id, name, url, api_key_encrypted, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := ir.db.ExecContext(ctx, query,
		instance.ID,
		instance.Name,
		instance.URL,
		instance.APIKey,
		instance.IsActive,
		instance.CreatedAt,
		instance.UpdatedAt,
	)
	if err != nil {
		ir.logger.ErrorContext(ctx, "Failed to insert instance", "instance_id", instance.ID, "error", err)

		return fmt.Errorf("failed to insert instance: %w", err)
	}

	return nil
}

const instanceColumns = "id, name, url, api_key_encrypted, is_active, created_at, updated_at"

func (ir *InstanceRepository) GetByID(ctx context.Context, id string) (*models.Instance, error) {
	row := ir.db.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM instances WHERE id = $1", id)

	return scanInstance(row)
}

func (ir *InstanceRepository) GetActive(ctx context.Context, id string) (*models.Instance, error) {
	row := ir.db.QueryRowContext(ctx,
		"SELECT "+instanceColumns+" FROM instances WHERE id = $1 AND is_active = TRUE", id)

	return scanInstance(row)
}

func (ir *InstanceRepository) ListActive(ctx context.Context) ([]*models.Instance, error) {
	rows, err := ir.db.QueryContext(ctx,
		"SELECT "+instanceColumns+" FROM instances WHERE is_active = TRUE ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}
	defer rows.Close()

	instances := make([]*models.Instance, 0)

	for rows.Next() {
		instance, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}

		instances = append(instances, instance)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate instance rows: %w", err)
	}

	return instances, nil
}

func (ir *InstanceRepository) Deactivate(ctx context.Context, id string) error {
	result, err := ir.db.ExecContext(ctx,
		"UPDATE instances SET is_active = FALSE, updated_at = $1 WHERE id = $2",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to deactivate instance: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate instance: %w", err)
	}

	if affected == 0 {
		return persistence.ErrInstanceNotFound
	}

	return nil
}

func scanInstance(row rowScanner) (*models.Instance, error) {
	instance := &models.Instance{}

	err := row.Scan(
		&instance.ID,
		&instance.Name,
		&instance.URL,
		&instance.APIKey,
		&instance.IsActive,
		&instance.CreatedAt,
		&instance.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("failed to scan instance: %w", err)
	}

	return instance, nil
}
