package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/n8n"
	"github.com/flowgate/flowgate/pkg/persistence"
)

// CredentialChecker validates instance credentials against the remote API.
type CredentialChecker interface {
	ValidateCredentials(ctx context.Context) bool
}

// ClientFactory builds a remote API client for an instance. Tests swap this
// out to avoid network calls.
type ClientFactory func(instanceURL, apiKey string, logger *slog.Logger) (CredentialChecker, error)

func defaultClientFactory(instanceURL, apiKey string, logger *slog.Logger) (CredentialChecker, error) {
	return n8n.NewClient(instanceURL, apiKey, logger)
}

// Instance manages remote n8n instance connections.
type Instance struct {
	persistence   persistence.Persistence
	logger        *slog.Logger
	clientFactory ClientFactory
}

// NewInstance creates a new instance service.
func NewInstance(persistence persistence.Persistence, logger *slog.Logger) *Instance {
	return &Instance{
		persistence:   persistence,
		logger:        logger.With("module", "instance_service"),
		clientFactory: defaultClientFactory,
	}
}

// CreateInstanceRequest carries the inputs for registering an instance.
type CreateInstanceRequest struct {
	Name   string
	URL    string
	APIKey string
}

func (r CreateInstanceRequest) validate() error {
	if r.Name == "" {
		return ErrInstanceNameRequired
	}

	if r.URL == "" {
		return ErrInstanceURLRequired
	}

	if r.APIKey == "" {
		return ErrInstanceAPIKeyRequired
	}

	return nil
}

// CreateInstance validates the credentials against the remote API and stores
// the connection. Credentials that fail a live listing call are rejected.
func (s *Instance) CreateInstance(ctx context.Context, req CreateInstanceRequest) (*models.Instance, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	client, err := s.clientFactory(req.URL, req.APIKey, s.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	if !client.ValidateCredentials(ctx) {
		return nil, fmt.Errorf("%w: %s", ErrCredentialsRejected, req.URL)
	}

	instance := &models.Instance{
		ID:       uuid.NewString(),
		Name:     req.Name,
		URL:      req.URL,
		APIKey:   req.APIKey,
		IsActive: true,
	}

	if err := s.persistence.InstanceRepository().Insert(ctx, instance); err != nil {
		return nil, fmt.Errorf("failed to store instance: %w", err)
	}

	s.logger.InfoContext(ctx, "Registered instance", "instance_id", instance.ID, "url", instance.URL)

	return instance, nil
}

// GetInstance retrieves an instance by ID, active or not.
func (s *Instance) GetInstance(ctx context.Context, id string) (*models.Instance, error) {
	instance, err := s.persistence.InstanceRepository().GetByID(ctx, id)
	if err != nil {
		if persistence.IsInstanceNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}

		return nil, fmt.Errorf("failed to get instance %s: %w", id, err)
	}

	return instance, nil
}

// ListInstances retrieves all active instances, newest first.
func (s *Instance) ListInstances(ctx context.Context) ([]*models.Instance, error) {
	instances, err := s.persistence.InstanceRepository().ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	return instances, nil
}

// DeactivateInstance soft-deletes an instance. Existing execution records
// keep referencing it.
func (s *Instance) DeactivateInstance(ctx context.Context, id string) error {
	if err := s.persistence.InstanceRepository().Deactivate(ctx, id); err != nil {
		if persistence.IsInstanceNotFound(err) {
			return fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
		}

		return fmt.Errorf("failed to deactivate instance %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Deactivated instance", "instance_id", id)

	return nil
}
