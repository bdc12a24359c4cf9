package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/n8n"
	"github.com/flowgate/flowgate/pkg/persistence"
)

const workflowCacheTTL = 30 * time.Second

// WorkflowClient is the slice of the remote API the workflow service needs.
type WorkflowClient interface {
	ListWorkflows(ctx context.Context) ([]models.WorkflowSummary, error)
	WorkflowByID(ctx context.Context, workflowID string) (*models.WorkflowDefinition, error)
}

// WorkflowClientFactory builds a remote API client for an instance.
type WorkflowClientFactory func(instanceURL, apiKey string, logger *slog.Logger) (WorkflowClient, error)

func defaultWorkflowClientFactory(instanceURL, apiKey string, logger *slog.Logger) (WorkflowClient, error) {
	return n8n.NewClient(instanceURL, apiKey, logger)
}

// Workflow proxies workflow metadata from remote instances. Listings are
// cached briefly in Redis when a cache client is configured; the remote API
// stays the source of truth.
type Workflow struct {
	persistence   persistence.Persistence
	logger        *slog.Logger
	clientFactory WorkflowClientFactory
	cache         redis.Cmdable
	cacheTTL      time.Duration
}

// NewWorkflow creates a new workflow service. The cache client may be nil,
// in which case every listing goes to the remote API.
func NewWorkflow(persistence persistence.Persistence, cache redis.Cmdable, logger *slog.Logger) *Workflow {
	return &Workflow{
		persistence:   persistence,
		logger:        logger.With("module", "workflow_service"),
		clientFactory: defaultWorkflowClientFactory,
		cache:         cache,
		cacheTTL:      workflowCacheTTL,
	}
}

// WorkflowDetail is the enriched view of a single workflow: the listing
// fields plus derived trigger and schema metadata.
type WorkflowDetail struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Active       bool               `json:"active"`
	TriggerType  models.TriggerType `json:"trigger_type"`
	InputSchema  map[string]any     `json:"input_schema"`
	OutputSchema map[string]any     `json:"output_schema"`
}

// ListWorkflows lists the workflows of one active instance.
func (s *Workflow) ListWorkflows(ctx context.Context, instanceID string) ([]models.WorkflowSummary, error) {
	instance, err := s.activeInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	if cached, ok := s.cachedWorkflows(ctx, instanceID); ok {
		return cached, nil
	}

	client, err := s.clientFactory(instance.URL, instance.APIKey, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build client for instance %s: %w", instanceID, err)
	}

	workflows, err := client.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows on instance %s: %w", instanceID, err)
	}

	s.storeWorkflows(ctx, instanceID, workflows)

	return workflows, nil
}

// GetWorkflowDetail fetches one workflow definition and derives its trigger
// type and input/output schemas.
func (s *Workflow) GetWorkflowDetail(ctx context.Context, instanceID, workflowID string) (*WorkflowDetail, error) {
	instance, err := s.activeInstance(ctx, instanceID)
	if err != nil {
		return nil, err
	}

	client, err := s.clientFactory(instance.URL, instance.APIKey, s.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build client for instance %s: %w", instanceID, err)
	}

	definition, err := client.WorkflowByID(ctx, workflowID)
	if err != nil {
		if n8n.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	triggerType, _ := n8n.DetectTriggerType(definition)

	return &WorkflowDetail{
		ID:           definition.ID,
		Name:         definition.Name,
		Active:       definition.Active,
		TriggerType:  triggerType,
		InputSchema:  n8n.ExtractInputSchema(definition),
		OutputSchema: n8n.ExtractOutputSchema(definition),
	}, nil
}

func (s *Workflow) activeInstance(ctx context.Context, instanceID string) (*models.Instance, error) {
	instance, err := s.persistence.InstanceRepository().GetActive(ctx, instanceID)
	if err != nil {
		if persistence.IsInstanceNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
		}

		return nil, fmt.Errorf("failed to resolve instance %s: %w", instanceID, err)
	}

	return instance, nil
}

func workflowCacheKey(instanceID string) string {
	return "flowgate:workflows:" + instanceID
}

// cachedWorkflows reads the listing cache. Cache failures are logged and
// treated as misses.
func (s *Workflow) cachedWorkflows(ctx context.Context, instanceID string) ([]models.WorkflowSummary, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, workflowCacheKey(instanceID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.logger.DebugContext(ctx, "Workflow cache read failed", "instance_id", instanceID, "error", err)
		}

		return nil, false
	}

	var workflows []models.WorkflowSummary
	if err := json.Unmarshal(data, &workflows); err != nil {
		s.logger.DebugContext(ctx, "Workflow cache entry invalid", "instance_id", instanceID, "error", err)

		return nil, false
	}

	return workflows, true
}

func (s *Workflow) storeWorkflows(ctx context.Context, instanceID string, workflows []models.WorkflowSummary) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(workflows)
	if err != nil {
		return
	}

	if err := s.cache.Set(ctx, workflowCacheKey(instanceID), data, s.cacheTTL).Err(); err != nil {
		s.logger.DebugContext(ctx, "Workflow cache write failed", "instance_id", instanceID, "error", err)
	}
}
