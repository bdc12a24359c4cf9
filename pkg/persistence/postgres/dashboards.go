package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
)

// DashboardRepository implements persistence.DashboardRepository on
// PostgreSQL. A dashboard and its fields are written in one transaction.
type DashboardRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (dr *DashboardRepository) Insert(ctx context.Context, dashboard *models.Dashboard) error {
	if dashboard.CreatedAt.IsZero() {
		dashboard.CreatedAt = time.Now().UTC()
	}

	transaction, err := dr.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin dashboard transaction: %w", err)
	}

	_, err = transaction.ExecContext(ctx, `
		INSERT INTO dashboards (id, name, description, workflow_id, instance_id, theme_color, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		dashboard.ID,
		dashboard.Name,
		dashboard.Description,
		dashboard.WorkflowID,
		dashboard.InstanceID,
		dashboard.ThemeColor,
		dashboard.CreatedAt,
	)
	if err != nil {
		_ = transaction.Rollback()

		return fmt.Errorf("failed to insert dashboard: %w", err)
	}

	for _, field := range dashboard.Fields {
		var optionsJSON sql.NullString

		if len(field.Options) > 0 {
			optionsBytes, err := json.Marshal(field.Options)
			if err != nil {
				_ = transaction.Rollback()

				return fmt.Errorf("failed to serialize field options: %w", err)
			}

			optionsJSON = sql.NullString{String: string(optionsBytes), Valid: true}
		}

		_, err = transaction.ExecContext(ctx, `
			INSERT INTO dashboard_fields (id, dashboard_id, name, label, type, required, default_value, description, options)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			field.ID,
			dashboard.ID,
			field.Name,
			field.Label,
			field.Type,
			field.Required,
			field.DefaultValue,
			field.Description,
			optionsJSON,
		)
		if err != nil {
			_ = transaction.Rollback()

			return fmt.Errorf("failed to insert dashboard field %s: %w", field.Name, err)
		}
	}

	if err := transaction.Commit(); err != nil {
		return fmt.Errorf("failed to commit dashboard transaction: %w", err)
	}

	return nil
}

func (dr *DashboardRepository) GetByID(ctx context.Context, id string) (*models.Dashboard, error) {
	row := dr.db.QueryRowContext(ctx, `
		SELECT id, name, description, workflow_id, instance_id, theme_color, created_at
		FROM dashboards
		WHERE id = $1
	`, id)

	dashboard := &models.Dashboard{}

	err := row.Scan(
		&dashboard.ID,
		&dashboard.Name,
		&dashboard.Description,
		&dashboard.WorkflowID,
		&dashboard.InstanceID,
		&dashboard.ThemeColor,
		&dashboard.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrDashboardNotFound
		}

		return nil, fmt.Errorf("failed to scan dashboard: %w", err)
	}

	fields, err := dr.fieldsByDashboard(ctx, id)
	if err != nil {
		return nil, err
	}

	dashboard.Fields = fields

	return dashboard, nil
}

func (dr *DashboardRepository) List(ctx context.Context) ([]*models.Dashboard, error) {
	rows, err := dr.db.QueryContext(ctx, `
		SELECT id FROM dashboards ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan dashboard id: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dashboard rows: %w", err)
	}

	dashboards := make([]*models.Dashboard, 0, len(ids))

	for _, id := range ids {
		dashboard, err := dr.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		dashboards = append(dashboards, dashboard)
	}

	return dashboards, nil
}

func (dr *DashboardRepository) fieldsByDashboard(ctx context.Context, dashboardID string) ([]models.DashboardField, error) {
	rows, err := dr.db.QueryContext(ctx, `
		SELECT id, dashboard_id, name, label, type, required, default_value, description, options
		FROM dashboard_fields
		WHERE dashboard_id = $1
		ORDER BY name
	`, dashboardID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboard fields: %w", err)
	}
	defer rows.Close()

	fields := make([]models.DashboardField, 0)

	for rows.Next() {
		var (
			field       models.DashboardField
			optionsJSON sql.NullString
		)

		err := rows.Scan(
			&field.ID,
			&field.DashboardID,
			&field.Name,
			&field.Label,
			&field.Type,
			&field.Required,
			&field.DefaultValue,
			&field.Description,
			&optionsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dashboard field: %w", err)
		}

		if optionsJSON.Valid && optionsJSON.String != "" {
			if err := json.Unmarshal([]byte(optionsJSON.String), &field.Options); err != nil {
				return nil, fmt.Errorf("failed to deserialize field options: %w", err)
			}
		}

		fields = append(fields, field)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate dashboard field rows: %w", err)
	}

	return fields, nil
}
