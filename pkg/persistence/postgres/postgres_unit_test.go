package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrations(t *testing.T) {
	t.Parallel()

	schema := migrations()

	executions, exists := schema[1]
	assert.True(t, exists, "Migration version 1 should exist")
	assert.Contains(t, executions, "CREATE TABLE IF NOT EXISTS execution_logs")
	assert.Contains(t, executions, "idx_execution_logs_created_at")

	instances, exists := schema[2]
	assert.True(t, exists, "Migration version 2 should exist")
	assert.Contains(t, instances, "CREATE TABLE IF NOT EXISTS instances")
	assert.Contains(t, instances, "api_key_encrypted")

	dashboards, exists := schema[3]
	assert.True(t, exists, "Migration version 3 should exist")
	assert.Contains(t, dashboards, "CREATE TABLE IF NOT EXISTS dashboards")
	assert.Contains(t, dashboards, "dashboard_fields")
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	persistence, err := NewPersistence(context.Background(), logger, "not-a-valid-url")
	assert.Error(t, err)
	assert.Nil(t, persistence)
}
