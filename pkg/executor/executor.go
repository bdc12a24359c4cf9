// Package executor owns the asynchronous run lifecycle: queueing an
// execution, dispatching the remote trigger in the background, and
// reconciling callbacks or failures against the record.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
)

const (
	// DefaultBackendURL is used for callback addresses when no backend URL is configured.
	DefaultBackendURL = "http://localhost:8000"

	// DefaultDispatchTimeout caps the single outbound trigger call. Long-running
	// remote workflows are expected, so this is generous.
	DefaultDispatchTimeout = 15 * time.Minute

	defaultMaxInflight = 64
)

// Reserved payload keys injected into every trigger request. Queue rejects
// inputs that carry them so caller data is never silently overwritten.
const (
	callbackURLKey = "_callback_url"
	runIDKey       = "_run_id"
)

var (
	// ErrInvalidInput indicates the input data is empty or carries a reserved key.
	ErrInvalidInput = errors.New("input data must be a non-empty object")

	// ErrInstanceNotFound indicates no matching active instance exists.
	ErrInstanceNotFound = persistence.ErrInstanceNotFound

	// ErrMissingCredentials indicates the resolved instance has no URL or API key.
	ErrMissingCredentials = errors.New("missing instance URL or API key")
)

// Config carries the orchestrator's process-level settings. It is injected at
// construction so reconciliation stays testable without environment mutation.
type Config struct {
	// BackendURL is the externally reachable base URL of this service, used to
	// compute callback addresses.
	BackendURL string

	// CallbackSecret is the shared secret the remote system must echo back.
	CallbackSecret string

	// DispatchTimeout caps the outbound trigger call. Zero means DefaultDispatchTimeout.
	DispatchTimeout time.Duration
}

func (c Config) backendURL() string {
	if c.BackendURL == "" {
		return DefaultBackendURL
	}

	return c.BackendURL
}

func (c Config) dispatchTimeout() time.Duration {
	if c.DispatchTimeout <= 0 {
		return DefaultDispatchTimeout
	}

	return c.DispatchTimeout
}

// Executor orchestrates execution runs against remote n8n instances.
type Executor struct {
	persistence persistence.Persistence
	config      Config
	logger      *slog.Logger
	dispatcher  Dispatcher
	triggerHTTP *http.Client
}

// NewExecutor creates an executor with the default in-process task dispatcher.
func NewExecutor(p persistence.Persistence, config Config, logger *slog.Logger) *Executor {
	executor := &Executor{
		persistence: p,
		config:      config,
		logger:      logger.With("module", "executor"),
		triggerHTTP: &http.Client{Timeout: config.dispatchTimeout()},
	}
	executor.dispatcher = NewTaskDispatcher(logger, defaultMaxInflight, executor.runDispatch)

	return executor
}

// Queue creates an execution record, resolves the target instance and hands
// the trigger off to the background dispatcher. It returns the fresh run ID
// immediately; callers never wait for remote dispatch or execution.
func (e *Executor) Queue(ctx context.Context, workflowID, userID string, inputData map[string]any, instanceID string) (string, error) {
	if len(inputData) == 0 {
		return "", ErrInvalidInput
	}

	for _, reserved := range []string{callbackURLKey, runIDKey} {
		if _, exists := inputData[reserved]; exists {
			return "", fmt.Errorf("%w: %q is a reserved key", ErrInvalidInput, reserved)
		}
	}

	runID := uuid.NewString()

	record := &models.ExecutionRecord{
		RunID:      runID,
		WorkflowID: workflowID,
		InstanceID: instanceID,
		UserID:     userID,
		Status:     models.ExecutionStatusPending,
		InputData:  inputData,
		CreatedAt:  time.Now().UTC(),
	}

	if err := e.persistence.ExecutionRepository().Insert(ctx, record); err != nil {
		return "", fmt.Errorf("failed to insert execution record: %w", err)
	}

	instance, err := e.persistence.InstanceRepository().GetActive(ctx, instanceID)
	if err != nil {
		if persistence.IsInstanceNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
		}

		return "", fmt.Errorf("failed to resolve instance %s: %w", instanceID, err)
	}

	if !instance.HasCredentials() {
		return "", ErrMissingCredentials
	}

	job := DispatchJob{
		RunID:       runID,
		WorkflowID:  workflowID,
		CallbackURL: e.CallbackURL(runID),
		InputData:   inputData,
		InstanceURL: instance.URL,
		APIKey:      instance.APIKey,
	}

	e.dispatcher.Dispatch(job)

	e.logger.InfoContext(ctx, "Queued workflow execution",
		"run_id", runID, "workflow_id", workflowID, "instance_id", instanceID)

	return runID, nil
}

// CallbackURL computes the callback address for a run, deterministically from
// the run ID and the configured backend base URL.
func (e *Executor) CallbackURL(runID string) string {
	return strings.TrimSuffix(e.config.backendURL(), "/") + "/api/v1/webhook/callback/" + runID
}

// Shutdown drains the background dispatcher.
func (e *Executor) Shutdown(ctx context.Context) error {
	return e.dispatcher.Shutdown(ctx)
}
