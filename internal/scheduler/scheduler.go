// Package scheduler supervises the worker's long-lived tasks: it starts
// each one, restarts it with backoff if it returns an error, and declares
// a crash loop (too many restarts too quickly) fatal for the whole
// process rather than retrying forever. This mirrors the respawn loop in
// worker/main.rs, where a panicked task is simply restarted by the
// surrounding tokio::spawn, generalized with an explicit crash-loop
// threshold since a Go process has no supervisor tree to fall back on.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openbook-candles-go/internal/metrics"
	"github.com/openbook-candles-go/internal/resilience"
)

// Task is one independent unit of work the Scheduler supervises. Run
// should block until ctx is canceled or a fatal error occurs; a
// transient condition should be retried internally rather than returned,
// the same convention internal/scraper's Run methods follow.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// CrashLoopError is returned by Supervise/Run when a task crashes more
// than CrashLoopMax times within CrashLoopWindow. The caller should treat
// this as fatal for the whole process.
type CrashLoopError struct {
	Task string
}

func (e *CrashLoopError) Error() string {
	return fmt.Sprintf("scheduler: task %q crash-looped", e.Task)
}

// Config controls restart backoff and crash-loop detection.
type Config struct {
	CrashLoopWindow time.Duration
	CrashLoopMax    int
	BackoffBase     time.Duration
	BackoffMax      time.Duration
}

// Scheduler restarts failed tasks with exponential backoff and stops
// restarting a task once it crash-loops.
type Scheduler struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// New constructs a Scheduler.
func New(cfg Config, m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, metrics: m, logger: logger}
}

// Run starts every task concurrently and blocks until ctx is canceled or
// any task crash-loops, in which case it cancels the rest and returns
// the CrashLoopError.
func (s *Scheduler) Run(ctx context.Context, tasks []Task) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(tasks))
	var wg sync.WaitGroup
	for _, t := range tasks {
		t := t
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Supervise(ctx, t)
		}()
	}

	go func() {
		wg.Wait()
		close(errs)
	}()

	var first error
	for err := range errs {
		if err == nil || errors.Is(err, context.Canceled) {
			continue
		}
		var crashLoop *CrashLoopError
		if errors.As(err, &crashLoop) && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

// Supervise runs task.Run, restarting it with exponential backoff on
// every non-nil, non-cancellation error. It returns nil when ctx is
// canceled, and a *CrashLoopError once the task has crashed more than
// cfg.CrashLoopMax times within cfg.CrashLoopWindow. Each invocation of
// task.Run is tagged with a fresh run id, threaded through the context
// and logged on restart, so a given crash can be traced back to the
// specific run that produced it.
func (s *Scheduler) Supervise(ctx context.Context, task Task) error {
	var crashes []time.Time
	attempt := 0

	for {
		runID := uuid.NewString()
		runCtx := context.WithValue(ctx, runIDKey{}, runID)

		err := task.Run(runCtx)
		if err == nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}

		now := time.Now()
		s.logger.Error("task exited, restarting",
			zap.String("task", task.Name), zap.String("run_id", runID), zap.Error(err))
		if s.metrics != nil {
			s.metrics.TaskRestartsTotal.WithLabelValues(task.Name).Inc()
		}

		crashes = append(crashes, now)
		crashes = pruneOlderThan(crashes, now.Add(-s.cfg.CrashLoopWindow))
		if len(crashes) > s.cfg.CrashLoopMax {
			s.logger.Error("task crash-looped, giving up", zap.String("task", task.Name))
			return &CrashLoopError{Task: task.Name}
		}

		delay := resilience.Backoff(attempt, s.cfg.BackoffBase, s.cfg.BackoffMax)
		attempt++
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// runIDKey is the context key Supervise uses to stash each run's
// correlation id; RunID reads it back out for tasks that want to log it.
type runIDKey struct{}

// RunID returns the correlation id of the current supervised run, or ""
// if ctx wasn't produced by Supervise.
func RunID(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

func pruneOlderThan(ts []time.Time, cutoff time.Time) []time.Time {
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
