package n8n

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration indicates the client was constructed with a bad
	// base URL or an empty API key.
	ErrInvalidConfiguration = errors.New("invalid client configuration")

	// ErrUnauthorized indicates the instance rejected the API key. Never retried.
	ErrUnauthorized = errors.New("unauthorized: invalid API key")

	// ErrWorkflowNotFound indicates the remote instance returned 404. Never retried.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNoWebhookNode indicates a workflow definition has no webhook trigger node.
	ErrNoWebhookNode = errors.New("no webhook node found in workflow")

	// ErrMissingWebhookPath indicates the webhook node has no path configured.
	ErrMissingWebhookPath = errors.New("webhook node has no path configured")
)

// ConnectionError wraps the last underlying error after retries are
// exhausted, or an immediate authentication failure.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to n8n instance %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsConnectionError checks if an error is a connection failure to the remote instance.
func IsConnectionError(err error) bool {
	var connErr *ConnectionError

	return errors.As(err, &connErr)
}

// IsNotFound checks if an error indicates a missing remote resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsUnauthorized checks if an error indicates rejected credentials.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
