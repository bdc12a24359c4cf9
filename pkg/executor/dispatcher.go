package executor

import (
	"context"
	"log/slog"
	"sync"
)

// DispatchJob is everything the background task needs to trigger one run.
// Instance credentials are resolved before the handoff so the task never
// touches the instance repository.
type DispatchJob struct {
	RunID       string
	WorkflowID  string
	CallbackURL string
	InputData   map[string]any
	InstanceURL string
	APIKey      string
}

// Dispatcher hands jobs to background workers. Dispatch never blocks the
// caller beyond admission into the bounded task set.
type Dispatcher interface {
	Dispatch(job DispatchJob)
	Shutdown(ctx context.Context) error
}

// TaskDispatcher runs each job in its own goroutine, bounded by a semaphore.
// Jobs get a fresh background context so an aborted HTTP request does not
// cancel an in-flight trigger.
type TaskDispatcher struct {
	logger  *slog.Logger
	run     func(ctx context.Context, job DispatchJob)
	slots   chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewTaskDispatcher creates a dispatcher running at most maxInflight jobs
// concurrently.
func NewTaskDispatcher(logger *slog.Logger, maxInflight int, run func(ctx context.Context, job DispatchJob)) *TaskDispatcher {
	if maxInflight <= 0 {
		maxInflight = defaultMaxInflight
	}

	return &TaskDispatcher{
		logger: logger.With("module", "dispatcher"),
		run:    run,
		slots:  make(chan struct{}, maxInflight),
	}
}

// Dispatch admits the job into the task set and runs it in the background.
// Jobs arriving after Shutdown are dropped with a warning.
func (d *TaskDispatcher) Dispatch(job DispatchJob) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.logger.Warn("Dispatcher stopped, dropping job", "run_id", job.RunID)

		return
	}

	d.wg.Add(1)
	d.mu.Unlock()

	d.slots <- struct{}{}

	go func() {
		defer func() {
			<-d.slots
			d.wg.Done()
		}()

		d.run(context.Background(), job)
	}()
}

// Shutdown stops admission and waits for in-flight jobs to finish, or for the
// context to expire.
func (d *TaskDispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
