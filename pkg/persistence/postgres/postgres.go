// Package postgres provides PostgreSQL-backed persistence for execution
// records, instances and dashboards.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/flowgate/flowgate/pkg/persistence"
	"github.com/flowgate/flowgate/pkg/persistence/sqlbase"
)

// Persistence implements persistence.Persistence using PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	executionRepo *ExecutionRepository
	instanceRepo  *InstanceRepository
	dashboardRepo *DashboardRepository
}

// NewPersistence opens a connection pool, runs migrations and returns the
// persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("component", "postgres_persistence")

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.InfoContext(ctx, "PostgreSQL persistence initialized")

	return &Persistence{
		db:            database,
		logger:        logger,
		executionRepo: &ExecutionRepository{db: database, logger: logger},
		instanceRepo:  &InstanceRepository{db: database, logger: logger},
		dashboardRepo: &DashboardRepository{db: database, logger: logger},
	}, nil
}

func (p *Persistence) ExecutionRepository() persistence.ExecutionRepository {
	return p.executionRepo
}

func (p *Persistence) InstanceRepository() persistence.InstanceRepository {
	return p.instanceRepo
}

func (p *Persistence) DashboardRepository() persistence.DashboardRepository {
	return p.dashboardRepo
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Persistence) Close(_ context.Context) error {
	return p.db.Close()
}

// migrations returns the versioned schema for the relay tables.
func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE IF NOT EXISTS execution_logs (
				run_id TEXT PRIMARY KEY,
				workflow_id TEXT NOT NULL,
				workflow_name TEXT NOT NULL DEFAULT '',
				instance_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				input_data JSONB NOT NULL,
				output_data JSONB,
				error_message TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				started_at TIMESTAMP WITH TIME ZONE,
				completed_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX IF NOT EXISTS idx_execution_logs_workflow_id ON execution_logs (workflow_id);
			CREATE INDEX IF NOT EXISTS idx_execution_logs_instance_id ON execution_logs (instance_id);
			CREATE INDEX IF NOT EXISTS idx_execution_logs_status ON execution_logs (status);
			CREATE INDEX IF NOT EXISTS idx_execution_logs_created_at ON execution_logs (created_at DESC);
		`,
		2: `
			CREATE TABLE IF NOT EXISTS instances (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				url TEXT NOT NULL,
				api_key_encrypted TEXT NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX IF NOT EXISTS idx_instances_is_active ON instances (is_active);
		`,
		3: `
			CREATE TABLE IF NOT EXISTS dashboards (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				workflow_id TEXT NOT NULL,
				instance_id TEXT NOT NULL,
				theme_color TEXT NOT NULL DEFAULT 'blue',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE TABLE IF NOT EXISTS dashboard_fields (
				id TEXT PRIMARY KEY,
				dashboard_id TEXT NOT NULL REFERENCES dashboards (id) ON DELETE CASCADE,
				name TEXT NOT NULL,
				label TEXT NOT NULL,
				type TEXT NOT NULL,
				required BOOLEAN NOT NULL DEFAULT FALSE,
				default_value TEXT NOT NULL DEFAULT '',
				description TEXT NOT NULL DEFAULT '',
				options JSONB
			);

			CREATE INDEX IF NOT EXISTS idx_dashboard_fields_dashboard_id ON dashboard_fields (dashboard_id);
		`,
	}
}
