package executor

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/flowgate/flowgate/pkg/persistence"
)

// HandleCallback reconciles a completion callback from the remote system. It
// reports whether the record was transitioned to success and never returns an
// error: a relay must acknowledge callbacks even when it cannot use them.
//
// The shared secret is checked before any store access, so a caller without
// the secret learns nothing about which run IDs exist.
func (e *Executor) HandleCallback(ctx context.Context, runID string, outputData map[string]any, secretKey string) bool {
	if e.config.CallbackSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secretKey), []byte(e.config.CallbackSecret)) != 1 {
		e.logger.WarnContext(ctx, "Rejected callback with invalid secret", "run_id", runID)

		return false
	}

	record, err := e.persistence.ExecutionRepository().GetByRunID(ctx, runID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			e.logger.WarnContext(ctx, "Received callback for unknown run", "run_id", runID)
		} else {
			e.logger.ErrorContext(ctx, "Failed to load execution for callback", "run_id", runID, "error", err)
		}

		return false
	}

	if record.Status.IsTerminal() {
		e.logger.WarnContext(ctx, "Ignoring callback for terminal execution",
			"run_id", runID, "status", record.Status)

		return false
	}

	err = e.persistence.ExecutionRepository().MarkSucceeded(ctx, runID, outputData, time.Now().UTC())
	if err != nil {
		if persistence.IsStaleTransition(err) {
			e.logger.WarnContext(ctx, "Lost callback race, execution already terminal", "run_id", runID)
		} else {
			e.logger.ErrorContext(ctx, "Failed to record callback result", "run_id", runID, "error", err)
		}

		return false
	}

	e.logger.InfoContext(ctx, "Execution completed via callback", "run_id", runID)

	return true
}
