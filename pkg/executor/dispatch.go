package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/flowgate/flowgate/pkg/n8n"
	"github.com/flowgate/flowgate/pkg/persistence"
)

const timeoutMessage = "Execution timed out after 15 minutes"

// runDispatch performs the background trigger for one queued run. The record
// is moved to running before any remote work; every failure after that point
// is reconciled into a failed record. Store errors here are logged and
// swallowed, there is nobody left to report them to.
func (e *Executor) runDispatch(ctx context.Context, job DispatchJob) {
	logger := e.logger.With("run_id", job.RunID, "workflow_id", job.WorkflowID)

	if err := e.persistence.ExecutionRepository().MarkRunning(ctx, job.RunID, time.Now().UTC()); err != nil {
		logger.Error("Failed to mark execution running, aborting dispatch", "error", err)

		return
	}

	client, err := n8n.NewClient(job.InstanceURL, job.APIKey, e.logger)
	if err != nil {
		e.markFailed(ctx, job.RunID, err.Error())

		return
	}

	definition, err := client.WorkflowByID(ctx, job.WorkflowID)
	if err != nil {
		e.markFailed(ctx, job.RunID, fmt.Sprintf("failed to fetch workflow: %v", err))

		return
	}

	path, method, err := n8n.WebhookTrigger(definition)
	if err != nil {
		e.markFailed(ctx, job.RunID, err.Error())

		return
	}

	triggerURL := strings.TrimSuffix(client.BaseURL(), "/") + "/webhook/" + path

	payload := make(map[string]any, len(job.InputData)+2)
	for key, value := range job.InputData {
		payload[key] = value
	}

	payload[callbackURLKey] = job.CallbackURL
	payload[runIDKey] = job.RunID

	body, err := json.Marshal(payload)
	if err != nil {
		e.markFailed(ctx, job.RunID, fmt.Sprintf("failed to encode trigger payload: %v", err))

		return
	}

	req, err := http.NewRequestWithContext(ctx, method, triggerURL, bytes.NewReader(body))
	if err != nil {
		e.markFailed(ctx, job.RunID, fmt.Sprintf("failed to build trigger request: %v", err))

		return
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := e.triggerHTTP.Do(req)
	if err != nil {
		if isTimeout(err) {
			e.markFailed(ctx, job.RunID, timeoutMessage)
		} else {
			e.markFailed(ctx, job.RunID, fmt.Sprintf("trigger request failed: %v", err))
		}

		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		e.markFailed(ctx, job.RunID, fmt.Sprintf("trigger returned status %d", resp.StatusCode))

		return
	}

	logger.Info("Workflow triggered, awaiting callback", "trigger_url", triggerURL)
}

// markFailed records a dispatch failure. A run that already reached a
// terminal state (a callback won the race) is left alone.
func (e *Executor) markFailed(ctx context.Context, runID, message string) {
	err := e.persistence.ExecutionRepository().MarkFailed(ctx, runID, message, time.Now().UTC())
	if err == nil {
		e.logger.Warn("Execution failed during dispatch", "run_id", runID, "error_message", message)

		return
	}

	if persistence.IsStaleTransition(err) {
		e.logger.Debug("Skipping failure write, execution already terminal", "run_id", runID)

		return
	}

	e.logger.Error("Failed to record dispatch failure", "run_id", runID, "error", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var urlErr *url.Error

	return errors.As(err, &urlErr) && urlErr.Timeout()
}
