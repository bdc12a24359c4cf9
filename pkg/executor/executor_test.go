package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgate/flowgate/pkg/models"
	"github.com/flowgate/flowgate/pkg/persistence"
	"github.com/flowgate/flowgate/pkg/persistence/file"
)

// recordingDispatcher captures jobs instead of running them, so Queue can be
// tested without remote calls.
type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []DispatchJob
}

func (d *recordingDispatcher) Dispatch(job DispatchJob) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.jobs = append(d.jobs, job)
}

func (d *recordingDispatcher) Shutdown(_ context.Context) error { return nil }

func (d *recordingDispatcher) captured() []DispatchJob {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]DispatchJob(nil), d.jobs...)
}

func newTestExecutor(t *testing.T, config Config) (*Executor, persistence.Persistence, *recordingDispatcher) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	dispatcher := &recordingDispatcher{}

	executor := NewExecutor(p, config, slog.Default())
	executor.dispatcher = dispatcher

	return executor, p, dispatcher
}

func insertActiveInstance(t *testing.T, p persistence.Persistence, id, url, apiKey string) {
	t.Helper()

	err := p.InstanceRepository().Insert(t.Context(), &models.Instance{
		ID:       id,
		Name:     "Test Instance",
		URL:      url,
		APIKey:   apiKey,
		IsActive: true,
	})
	require.NoError(t, err)
}

func TestQueue_InvalidInput(t *testing.T) {
	t.Parallel()

	executor, p, dispatcher := newTestExecutor(t, Config{})

	tests := []struct {
		name  string
		input map[string]any
	}{
		{"nil input", nil},
		{"empty input", map[string]any{}},
		{"reserved callback key", map[string]any{"_callback_url": "x"}},
		{"reserved run id key", map[string]any{"_run_id": "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runID, err := executor.Queue(t.Context(), "wf-1", "user-1", tt.input, "inst-1")
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Empty(t, runID)
		})
	}

	// Validation failures happen before any record is written.
	records, err := p.ExecutionRepository().List(t.Context(), persistence.ListExecutionsOptions{})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, dispatcher.captured())
}

func TestQueue_UnknownInstance(t *testing.T) {
	t.Parallel()

	executor, p, dispatcher := newTestExecutor(t, Config{})

	runID, err := executor.Queue(t.Context(), "wf-1", "user-1", map[string]any{"k": "v"}, "missing")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
	assert.Empty(t, runID)
	assert.Empty(t, dispatcher.captured())

	// The record was already inserted and stays pending.
	records, err := p.ExecutionRepository().List(t.Context(), persistence.ListExecutionsOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ExecutionStatusPending, records[0].Status)
	assert.Nil(t, records[0].StartedAt)
}

func TestQueue_InactiveInstance(t *testing.T) {
	t.Parallel()

	executor, p, dispatcher := newTestExecutor(t, Config{})

	err := p.InstanceRepository().Insert(t.Context(), &models.Instance{
		ID: "inst-1", Name: "Off", URL: "https://n8n.example.com", APIKey: "key", IsActive: false,
	})
	require.NoError(t, err)

	_, err = executor.Queue(t.Context(), "wf-1", "user-1", map[string]any{"k": "v"}, "inst-1")
	assert.ErrorIs(t, err, ErrInstanceNotFound)
	assert.Empty(t, dispatcher.captured())
}

func TestQueue_MissingCredentials(t *testing.T) {
	t.Parallel()

	executor, p, dispatcher := newTestExecutor(t, Config{})
	insertActiveInstance(t, p, "inst-1", "https://n8n.example.com", "")

	_, err := executor.Queue(t.Context(), "wf-1", "user-1", map[string]any{"k": "v"}, "inst-1")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Empty(t, dispatcher.captured())
}

func TestQueue_DispatchesJob(t *testing.T) {
	t.Parallel()

	executor, p, dispatcher := newTestExecutor(t, Config{BackendURL: "https://relay.example.com"})
	insertActiveInstance(t, p, "inst-1", "https://n8n.example.com", "key")

	input := map[string]any{"email_body": "hello"}

	runID, err := executor.Queue(t.Context(), "wf-1", "user-1", input, "inst-1")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	record, err := p.ExecutionRepository().GetByRunID(t.Context(), runID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, record.Status)
	assert.Equal(t, "wf-1", record.WorkflowID)
	assert.Equal(t, "user-1", record.UserID)
	assert.Equal(t, input, record.InputData)

	jobs := dispatcher.captured()
	require.Len(t, jobs, 1)
	assert.Equal(t, runID, jobs[0].RunID)
	assert.Equal(t, "https://relay.example.com/api/v1/webhook/callback/"+runID, jobs[0].CallbackURL)
	assert.Equal(t, "https://n8n.example.com", jobs[0].InstanceURL)
	assert.Equal(t, "key", jobs[0].APIKey)
}

func TestCallbackURL_DefaultBase(t *testing.T) {
	t.Parallel()

	executor, _, _ := newTestExecutor(t, Config{})
	assert.Equal(t, "http://localhost:8000/api/v1/webhook/callback/run-1", executor.CallbackURL("run-1"))
}

func TestRunDispatch_TriggersWebhook(t *testing.T) {
	t.Parallel()

	var (
		triggerMu      sync.Mutex
		triggerPayload map[string]any
		triggerPath    string
		triggerMethod  string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/v1/workflows/wf-1":
			_, _ = w.Write([]byte(`{
				"id": "wf-1",
				"name": "Pipeline",
				"nodes": [{"name": "Hook", "type": "n8n-nodes-base.webhook", "parameters": {"path": "intake", "httpMethod": "POST"}}]
			}`))
		default:
			triggerMu.Lock()
			triggerPath = r.URL.Path
			triggerMethod = r.Method
			_ = json.NewDecoder(r.Body).Decode(&triggerPayload)
			triggerMu.Unlock()
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	executor, p, _ := newTestExecutor(t, Config{BackendURL: "https://relay.example.com"})

	record := &models.ExecutionRecord{
		RunID:      "run-1",
		WorkflowID: "wf-1",
		InstanceID: "inst-1",
		UserID:     "user-1",
		Status:     models.ExecutionStatusPending,
		InputData:  map[string]any{"email_body": "hello"},
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, p.ExecutionRepository().Insert(t.Context(), record))

	executor.runDispatch(t.Context(), DispatchJob{
		RunID:       "run-1",
		WorkflowID:  "wf-1",
		CallbackURL: executor.CallbackURL("run-1"),
		InputData:   record.InputData,
		InstanceURL: server.URL,
		APIKey:      "key",
	})

	triggerMu.Lock()
	defer triggerMu.Unlock()

	assert.Equal(t, "/webhook/intake", triggerPath)
	assert.Equal(t, http.MethodPost, triggerMethod)
	assert.Equal(t, "hello", triggerPayload["email_body"])
	assert.Equal(t, "https://relay.example.com/api/v1/webhook/callback/run-1", triggerPayload["_callback_url"])
	assert.Equal(t, "run-1", triggerPayload["_run_id"])

	stored, err := p.ExecutionRepository().GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, stored.Status)
	require.NotNil(t, stored.StartedAt)
	assert.Nil(t, stored.CompletedAt)
}

func TestRunDispatch_NoWebhookNode(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": "wf-1", "name": "Pipeline", "nodes": [{"name": "Set", "type": "n8n-nodes-base.set"}]}`))
	}))
	defer server.Close()

	executor, p, _ := newTestExecutor(t, Config{})
	insertPendingRun(t, p, "run-1")

	executor.runDispatch(t.Context(), DispatchJob{
		RunID: "run-1", WorkflowID: "wf-1", InstanceURL: server.URL, APIKey: "key",
		InputData: map[string]any{"k": "v"},
	})

	stored, err := p.ExecutionRepository().GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "webhook")
	require.NotNil(t, stored.CompletedAt)
}

func TestRunDispatch_TriggerRejected(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/workflows/wf-1" {
			_, _ = w.Write([]byte(`{"id": "wf-1", "nodes": [{"type": "n8n-nodes-base.webhook", "parameters": {"path": "intake"}}]}`))

			return
		}

		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	executor, p, _ := newTestExecutor(t, Config{})
	insertPendingRun(t, p, "run-1")

	executor.runDispatch(t.Context(), DispatchJob{
		RunID: "run-1", WorkflowID: "wf-1", InstanceURL: server.URL, APIKey: "key",
		InputData: map[string]any{"k": "v"},
	})

	stored, err := p.ExecutionRepository().GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMessage, "status 503")
}

func TestRunDispatch_TriggerTimeout(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/workflows/wf-1" {
			_, _ = w.Write([]byte(`{"id": "wf-1", "nodes": [{"type": "n8n-nodes-base.webhook", "parameters": {"path": "slow"}}]}`))

			return
		}

		<-block
	}))
	defer server.Close()
	defer close(block)

	executor, p, _ := newTestExecutor(t, Config{DispatchTimeout: 50 * time.Millisecond})
	insertPendingRun(t, p, "run-1")

	executor.runDispatch(t.Context(), DispatchJob{
		RunID: "run-1", WorkflowID: "wf-1", InstanceURL: server.URL, APIKey: "key",
		InputData: map[string]any{"k": "v"},
	})

	stored, err := p.ExecutionRepository().GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusFailed, stored.Status)
	assert.Equal(t, "Execution timed out after 15 minutes", stored.ErrorMessage)
}

func TestRunDispatch_AbortsWhenRunningWriteFails(t *testing.T) {
	t.Parallel()

	var triggered atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		triggered.Store(true)
	}))
	defer server.Close()

	executor, _, _ := newTestExecutor(t, Config{})

	// No record exists, so the running transition fails and nothing is sent.
	executor.runDispatch(t.Context(), DispatchJob{
		RunID: "ghost", WorkflowID: "wf-1", InstanceURL: server.URL, APIKey: "key",
		InputData: map[string]any{"k": "v"},
	})

	assert.False(t, triggered.Load())
}

func TestHandleCallback(t *testing.T) {
	t.Parallel()

	executor, p, _ := newTestExecutor(t, Config{CallbackSecret: "s3cret"})

	insertPendingRun(t, p, "run-1")
	require.NoError(t, p.ExecutionRepository().MarkRunning(t.Context(), "run-1", time.Now().UTC()))

	output := map[string]any{"result": "done"}

	assert.False(t, executor.HandleCallback(t.Context(), "run-1", output, "wrong"),
		"wrong secret is rejected")
	assert.False(t, executor.HandleCallback(t.Context(), "missing", output, "s3cret"),
		"unknown run is rejected")
	assert.True(t, executor.HandleCallback(t.Context(), "run-1", output, "s3cret"))

	stored, err := p.ExecutionRepository().GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, stored.Status)
	assert.Equal(t, output, stored.OutputData)
	require.NotNil(t, stored.CompletedAt)

	// Duplicate callbacks are acknowledged negatively and change nothing.
	assert.False(t, executor.HandleCallback(t.Context(), "run-1", map[string]any{"result": "other"}, "s3cret"))

	again, err := p.ExecutionRepository().GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, output, again.OutputData)
	assert.Equal(t, stored.CompletedAt, again.CompletedAt)
}

func TestHandleCallback_NoSecretConfigured(t *testing.T) {
	t.Parallel()

	executor, p, _ := newTestExecutor(t, Config{})
	insertPendingRun(t, p, "run-1")

	// Without a configured secret every callback is rejected, including one
	// presenting an empty secret.
	assert.False(t, executor.HandleCallback(t.Context(), "run-1", map[string]any{"r": 1}, ""))
}

func TestHandleCallback_WhilePending(t *testing.T) {
	t.Parallel()

	executor, p, _ := newTestExecutor(t, Config{CallbackSecret: "s3cret"})
	insertPendingRun(t, p, "run-1")

	// A fast remote workflow can call back before the dispatcher records the
	// running transition.
	assert.True(t, executor.HandleCallback(t.Context(), "run-1", map[string]any{"r": 1}, "s3cret"))

	stored, err := p.ExecutionRepository().GetByRunID(t.Context(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, stored.Status)
}

func TestExecutor_EndToEnd(t *testing.T) {
	t.Parallel()

	p := file.NewPersistence(t.TempDir())
	config := Config{BackendURL: "https://relay.example.com", CallbackSecret: "s3cret"}
	executor := NewExecutor(p, config, slog.Default())

	var (
		mu      sync.Mutex
		payload map[string]any
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/workflows/wf-1" {
			_, _ = w.Write([]byte(`{
				"id": "wf-1",
				"name": "Pipeline",
				"nodes": [{"name": "Hook", "type": "n8n-nodes-base.webhook", "parameters": {"path": "intake"}}]
			}`))

			return
		}

		mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&payload)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	insertActiveInstance(t, p, "inst-1", server.URL, "key")

	runID, err := executor.Queue(t.Context(), "wf-1", "user-1", map[string]any{"email_body": "hello"}, "inst-1")
	require.NoError(t, err)

	require.NoError(t, executor.Shutdown(t.Context()), "dispatch drains before shutdown returns")

	mu.Lock()
	require.NotNil(t, payload)
	assert.Equal(t, runID, payload["_run_id"])
	callbackURL, _ := payload["_callback_url"].(string)
	mu.Unlock()
	assert.Equal(t, "https://relay.example.com/api/v1/webhook/callback/"+runID, callbackURL)

	running, err := p.ExecutionRepository().GetByRunID(t.Context(), runID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, running.Status)

	// The remote workflow completes and reports back.
	require.True(t, executor.HandleCallback(t.Context(), runID, map[string]any{"summary": "ok"}, "s3cret"))

	final, err := p.ExecutionRepository().GetByRunID(t.Context(), runID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, final.Status)
	assert.Equal(t, map[string]any{"summary": "ok"}, final.OutputData)
}

func insertPendingRun(t *testing.T, p persistence.Persistence, runID string) {
	t.Helper()

	err := p.ExecutionRepository().Insert(t.Context(), &models.ExecutionRecord{
		RunID:      runID,
		WorkflowID: "wf-1",
		InstanceID: "inst-1",
		UserID:     "user-1",
		Status:     models.ExecutionStatusPending,
		InputData:  map[string]any{"k": "v"},
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
}
