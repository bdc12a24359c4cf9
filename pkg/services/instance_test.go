package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/persistence/file"
)

type fakeCredentialChecker struct {
	valid bool
	calls int
}

func (f *fakeCredentialChecker) ValidateCredentials(_ context.Context) bool {
	f.calls++

	return f.valid
}

func newInstanceService(t *testing.T, checker *fakeCredentialChecker) *Instance {
	t.Helper()

	service := NewInstance(file.NewPersistence(t.TempDir()), slog.Default())
	service.clientFactory = func(_, _ string, _ *slog.Logger) (CredentialChecker, error) {
		return checker, nil
	}

	return service
}

func TestInstance_CreateInstance_Validation(t *testing.T) {
	t.Parallel()

	checker := &fakeCredentialChecker{valid: true}
	service := newInstanceService(t, checker)

	tests := []struct {
		name    string
		req     CreateInstanceRequest
		wantErr error
	}{
		{"missing name", CreateInstanceRequest{URL: "https://n8n.example.com", APIKey: "k"}, ErrInstanceNameRequired},
		{"missing url", CreateInstanceRequest{Name: "Prod", APIKey: "k"}, ErrInstanceURLRequired},
		{"missing api key", CreateInstanceRequest{Name: "Prod", URL: "https://n8n.example.com"}, ErrInstanceAPIKeyRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.CreateInstance(t.Context(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}

	assert.Zero(t, checker.calls, "invalid requests never reach the remote API")
}

func TestInstance_CreateInstance_RejectedCredentials(t *testing.T) {
	t.Parallel()

	service := newInstanceService(t, &fakeCredentialChecker{valid: false})

	_, err := service.CreateInstance(t.Context(), CreateInstanceRequest{
		Name: "Prod", URL: "https://n8n.example.com", APIKey: "bad",
	})
	assert.ErrorIs(t, err, ErrCredentialsRejected)
	assert.True(t, IsConflictError(err))

	instances, listErr := service.ListInstances(t.Context())
	require.NoError(t, listErr)
	assert.Empty(t, instances, "rejected instances are not stored")
}

func TestInstance_Lifecycle(t *testing.T) {
	t.Parallel()

	service := newInstanceService(t, &fakeCredentialChecker{valid: true})

	created, err := service.CreateInstance(t.Context(), CreateInstanceRequest{
		Name: "Prod", URL: "https://n8n.example.com", APIKey: "key",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.True(t, created.IsActive)

	fetched, err := service.GetInstance(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Prod", fetched.Name)
	assert.Equal(t, "key", fetched.APIKey)

	instances, err := service.ListInstances(t.Context())
	require.NoError(t, err)
	assert.Len(t, instances, 1)

	require.NoError(t, service.DeactivateInstance(t.Context(), created.ID))

	instances, err = service.ListInstances(t.Context())
	require.NoError(t, err)
	assert.Empty(t, instances)

	// The record itself survives deactivation.
	fetched, err = service.GetInstance(t.Context(), created.ID)
	require.NoError(t, err)
	assert.False(t, fetched.IsActive)
}

func TestInstance_NotFound(t *testing.T) {
	t.Parallel()

	service := newInstanceService(t, &fakeCredentialChecker{valid: true})

	_, err := service.GetInstance(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrInstanceNotFound)

	err = service.DeactivateInstance(t.Context(), "missing")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}
