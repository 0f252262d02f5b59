// internal/jobs/runner.go
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/DylanCa/ideaboard-api-sub001/internal/errors"
)

// Workable is any unit of background work. The Runner is generic over this
// capability, not over a concrete job type.
type Workable interface {
	Name() string
	Execute(ctx context.Context) error
}

// Func adapts a plain function to a Workable. A Func whose Run is nil fails
// with ErrNotImplemented: that is a programming-contract violation and is
// never retried.
type Func struct {
	JobName string
	Run     func(ctx context.Context) error
}

func (f Func) Name() string { return f.JobName }

func (f Func) Execute(ctx context.Context) error {
	if f.Run == nil {
		return apperrors.ErrNotImplemented
	}
	return f.Run(ctx)
}

// maxCauseFrames bounds the unwrap chain included in failure events.
const maxCauseFrames = 10

// Runner wraps work units with uniform lifecycle instrumentation: a start
// event, a completion event with elapsed wall-clock time, or a failure event
// with the error category and a bounded cause trace. It re-returns the
// original error unchanged and is agnostic of any retry counting around it.
// Every background unit of work goes through here; no other component may
// swallow a failure silently.
type Runner struct {
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	return &Runner{logger: logger}
}

// Perform executes w, logging start/completion/failure. args must already be
// sanitized (see Sanitize); the Runner does no inspection of its own at log
// time.
func (r *Runner) Perform(ctx context.Context, w Workable, args LoggableArgs) error {
	log := r.logger.With(
		"job", w.Name(),
		"invocation_id", uuid.NewString(),
		"args", []string(args),
	)
	log.Info("Job started")

	start := time.Now()
	err := w.Execute(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		log.Error("Job failed",
			"elapsed_ms", elapsed,
			"category", apperrors.Category(err),
			"error", err.Error(),
			"cause_trace", causeTrace(err),
		)
		return err
	}
	log.Info("Job completed", "elapsed_ms", elapsed)
	return nil
}

// causeTrace collects the error's unwrap chain, capped at maxCauseFrames.
func causeTrace(err error) []string {
	var trace []string
	for err != nil && len(trace) < maxCauseFrames {
		trace = append(trace, err.Error())
		err = errors.Unwrap(err)
	}
	return trace
}

// RetryPolicy governs how many times a failed work unit is re-performed.
// The policy is fixed at registration time, not inherited job state.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy retries each work unit up to 3 attempts total.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 10 * time.Second}
}

// Run performs w through runner until it succeeds or the attempt budget is
// exhausted, returning the last error. Contract violations
// (ErrNotImplemented) and context cancellation are not retried.
func (p RetryPolicy) Run(ctx context.Context, runner *Runner, w Workable, args LoggableArgs) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = runner.Perform(ctx, w, args)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperrors.ErrNotImplemented) || ctx.Err() != nil {
			return err
		}
		if attempt < attempts && p.Backoff > 0 {
			select {
			case <-time.After(p.Backoff):
			case <-ctx.Done():
				return err
			}
		}
	}
	return err
}
