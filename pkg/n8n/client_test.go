package n8n

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, serverURL string) (*Client, *atomic.Int32) {
	t.Helper()

	client, err := NewClient(serverURL, "test-key", slog.Default())
	require.NoError(t, err)

	sleeps := &atomic.Int32{}
	client.sleep = func(time.Duration) { sleeps.Add(1) }

	return client, sleeps
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		instanceURL string
		apiKey      string
		wantErr     bool
	}{
		{"valid", "https://n8n.example.com", "key", false},
		{"missing scheme", "n8n.example.com", "key", true},
		{"missing host", "https://", "key", true},
		{"empty api key", "https://n8n.example.com", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(tt.instanceURL, tt.apiKey, slog.Default())
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfiguration)
				assert.Nil(t, client)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
			}
		})
	}
}

func TestNewClient_SanitizesPageDeepLinks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		instanceURL string
		wantBase    string
	}{
		{"workflow deep link", "https://n8n.example.com/workflow/abc123", "https://n8n.example.com/"},
		{"home deep link", "https://n8n.example.com/home/workflows", "https://n8n.example.com/"},
		{"plain base", "https://n8n.example.com", "https://n8n.example.com/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := NewClient(tt.instanceURL, "key", slog.Default())
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, client.BaseURL())
		})
	}
}

func TestClient_ListWorkflows_WrappedResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-N8N-API-KEY"))
		_, _ = w.Write([]byte(`{"data": [{"id": "wf-1", "name": "First", "active": true}, {"name": "No ID"}]}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	workflows, err := client.ListWorkflows(t.Context())
	require.NoError(t, err)
	require.Len(t, workflows, 2)
	assert.Equal(t, "wf-1", workflows[0].ID)
	assert.True(t, workflows[0].Active)
	assert.Empty(t, workflows[1].ID, "missing fields default to zero values")
	assert.False(t, workflows[1].Active)
}

func TestClient_ListWorkflows_BareArrayResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id": "wf-1", "name": "First", "active": false}]`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	workflows, err := client.ListWorkflows(t.Context())
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "First", workflows[0].Name)
}

func TestClient_RetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client, sleeps := newTestClient(t, server.URL)

	workflows, err := client.ListWorkflows(t.Context())
	require.NoError(t, err)
	assert.Empty(t, workflows)
	assert.Equal(t, int32(3), calls.Load(), "succeeds on the third attempt")
	assert.Equal(t, int32(2), sleeps.Load(), "sleeps between attempts")
}

func TestClient_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	_, err := client.ListWorkflows(t.Context())
	assert.True(t, IsConnectionError(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_UnauthorizedFailsImmediately(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, sleeps := newTestClient(t, server.URL)

	_, err := client.ListWorkflows(t.Context())
	assert.True(t, IsUnauthorized(err))
	assert.True(t, IsConnectionError(err))
	assert.Equal(t, int32(1), calls.Load(), "no retry on 401")
	assert.Equal(t, int32(0), sleeps.Load(), "no sleep on 401")
}

func TestClient_WorkflowByID(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/workflows/wf-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"id": "wf-1",
			"name": "Invoice Pipeline",
			"active": true,
			"nodes": [{"name": "Webhook", "type": "n8n-nodes-base.webhook", "parameters": {"path": "invoices"}}],
			"connections": {}
		}`))
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)

	definition, err := client.WorkflowByID(t.Context(), "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "Invoice Pipeline", definition.Name)
	require.Len(t, definition.Nodes, 1)
	assert.Equal(t, "invoices", definition.Nodes[0].Parameters["path"])
}

func TestClient_WorkflowByID_NotFound(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, sleeps := newTestClient(t, server.URL)

	_, err := client.WorkflowByID(t.Context(), "missing")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(0), sleeps.Load(), "no retry on 404")
}

func TestClient_ValidateCredentials(t *testing.T) {
	t.Parallel()

	okServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer okServer.Close()

	client, _ := newTestClient(t, okServer.URL)
	assert.True(t, client.ValidateCredentials(t.Context()))

	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer badServer.Close()

	client, _ = newTestClient(t, badServer.URL)
	assert.False(t, client.ValidateCredentials(t.Context()))

	unreachable, _ := newTestClient(t, "http://127.0.0.1:1")
	assert.False(t, unreachable.ValidateCredentials(t.Context()))
}
