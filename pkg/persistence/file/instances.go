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

// InstanceRepository handles instance file operations.
type InstanceRepository struct {
	root string
}

// NewInstanceRepository creates a new instance repository.
func NewInstanceRepository(root string) *InstanceRepository {
	return &InstanceRepository{root: root}
}

func (ir *InstanceRepository) dir() string {
	return filepath.Join(ir.root, "instances")
}

func (ir *InstanceRepository) path(id string) string {
	return filepath.Join(ir.dir(), id+".json")
}

func (ir *InstanceRepository) Insert(_ context.Context, instance *models.Instance) error {
	if err := os.MkdirAll(ir.dir(), 0o755); err != nil {
		return fmt.Errorf("failed to create instances directory: %w", err)
	}

	now := time.Now().UTC()
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = now
	}

	instance.UpdatedAt = now

	return ir.write(instance)
}

func (ir *InstanceRepository) GetByID(_ context.Context, id string) (*models.Instance, error) {
	return ir.read(id)
}

func (ir *InstanceRepository) GetActive(ctx context.Context, id string) (*models.Instance, error) {
	instance, err := ir.read(id)
	if err != nil {
		return nil, err
	}

	if !instance.IsActive {
		return nil, persistence.ErrInstanceNotFound
	}

	return instance, nil
}

func (ir *InstanceRepository) ListActive(_ context.Context) ([]*models.Instance, error) {
	root := os.DirFS(ir.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list instance files: %w", err)
	}

	instances := make([]*models.Instance, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		instance, err := ir.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if instance.IsActive {
			instances = append(instances, instance)
		}
	}

	sort.Slice(instances, func(i, j int) bool {
		return instances[i].CreatedAt.After(instances[j].CreatedAt)
	})

	return instances, nil
}

func (ir *InstanceRepository) Deactivate(_ context.Context, id string) error {
	instance, err := ir.read(id)
	if err != nil {
		return err
	}

	instance.IsActive = false
	instance.UpdatedAt = time.Now().UTC()

	return ir.write(instance)
}

// fileInstance mirrors models.Instance but persists the API key, which the
// model deliberately excludes from JSON serialization.
type fileInstance struct {
	models.Instance

	APIKey string `json:"api_key"`
}

func (ir *InstanceRepository) read(id string) (*models.Instance, error) {
	data, err := os.ReadFile(ir.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrInstanceNotFound
		}

		return nil, fmt.Errorf("failed to read instance %s: %w", id, err)
	}

	stored := &fileInstance{}
	if err := json.Unmarshal(data, stored); err != nil {
		return nil, fmt.Errorf("failed to decode instance %s: %w", id, err)
	}

	instance := stored.Instance
	instance.APIKey = stored.APIKey

	return &instance, nil
}

func (ir *InstanceRepository) write(instance *models.Instance) error {
	stored := &fileInstance{Instance: *instance, APIKey: instance.APIKey}

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode instance %s: %w", instance.ID, err)
	}

	if err := os.WriteFile(ir.path(instance.ID), data, 0o600); err != nil {
		return fmt.Errorf("failed to write instance %s: %w", instance.ID, err)
	}

	return nil
}
