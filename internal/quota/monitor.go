// internal/quota/monitor.go
package quota

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gh "github.com/google/go-github/v62/github"

	"github.com/DylanCa/ideaboard-api-sub001/internal/jobs"
	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

// RateLimitClient reads the remote API's current rate-limit status.
type RateLimitClient interface {
	RateLimit(ctx context.Context) (*gh.Rate, error)
}

// MonitorStore receives the monitor's quota observations.
type MonitorStore interface {
	InsertQuotaLedgerEntry(ctx context.Context, entry model.QuotaLedgerEntry) error
}

// Monitor periodically probes the remaining API budget and appends a
// zero-cost ledger entry with the observed remaining/reset values, so quota
// headroom shows up in the same stream as billed calls.
type Monitor struct {
	gh        RateLimitClient
	db        MonitorStore
	logger    *slog.Logger
	runner    *jobs.Runner
	retry     jobs.RetryPolicy
	threshold int
	interval  time.Duration
}

func NewMonitor(gh RateLimitClient, db MonitorStore, logger *slog.Logger, threshold int, interval time.Duration) *Monitor {
	return &Monitor{
		gh:        gh,
		db:        db,
		logger:    logger,
		runner:    jobs.NewRunner(logger),
		retry:     jobs.DefaultRetryPolicy(),
		threshold: threshold,
		interval:  interval,
	}
}

// Start runs the recurring rate-limit check until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.logger.Info("Starting quota monitor", "interval", m.interval.String(), "warn_threshold", m.threshold)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runCheck(ctx)

	for {
		select {
		case <-ticker.C:
			m.runCheck(ctx)
		case <-ctx.Done():
			m.logger.Info("Quota monitor shutting down", "reason", ctx.Err())
			return
		}
	}
}

func (m *Monitor) runCheck(ctx context.Context) {
	work := jobs.Func{JobName: "quota_check", Run: m.Check}
	if err := m.retry.Run(ctx, m.runner, work, jobs.Sanitize(m.threshold)); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Error("Quota check failed after retries", "error", err)
	}
}

// Check probes the REST rate-limit endpoint (which costs no points itself)
// and records the observation.
func (m *Monitor) Check(ctx context.Context) error {
	rate, err := m.gh.RateLimit(ctx)
	if err != nil {
		return err
	}

	entry := model.QuotaLedgerEntry{
		Caller:          "quota_monitor",
		QueryName:       "rateLimit",
		Cost:            0,
		RemainingPoints: rate.Remaining,
		ResetAt:         rate.Reset.Time,
		ExecutedAt:      time.Now().UTC(),
	}
	if err := m.db.InsertQuotaLedgerEntry(ctx, entry); err != nil {
		// Observation only; losing one probe must not fail the job stream.
		m.logger.Error("Failed to record quota observation", "error", err)
	}

	if rate.Remaining < m.threshold {
		m.logger.Warn("API quota running low",
			"remaining", rate.Remaining, "limit", rate.Limit, "resets_at", rate.Reset.Time)
	} else {
		m.logger.Debug("API quota ok", "remaining", rate.Remaining, "limit", rate.Limit)
	}
	return nil
}
