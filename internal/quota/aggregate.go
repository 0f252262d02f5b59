// internal/quota/aggregate.go
package quota

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

const dateLayout = "2006-01-02"

// UsageStore is the read side the aggregator folds over.
type UsageStore interface {
	GetTokenSettings(ctx context.Context, userID string) (model.TokenSettings, error)
	ListUsageLogs(ctx context.Context, userID string, start, end time.Time) ([]model.UsageLog, error)
}

// Aggregator builds on-demand usage reports from stored usage logs.
type Aggregator struct {
	db UsageStore
}

func NewAggregator(db UsageStore) *Aggregator {
	return &Aggregator{db: db}
}

// AggregateUsage returns the user's token settings, range-wide totals and
// one bucket per calendar day in [start, end] inclusive. Days without
// activity still appear, pre-seeded with zeros for every usage type, so
// callers never special-case missing days. Both bounds are interpreted as
// UTC dates.
func (a *Aggregator) AggregateUsage(ctx context.Context, userID string, start, end time.Time) (model.UsageReport, error) {
	start = truncateToDay(start)
	end = truncateToDay(end)
	if end.Before(start) {
		return model.UsageReport{}, fmt.Errorf("invalid date range: %s is before %s",
			end.Format(dateLayout), start.Format(dateLayout))
	}

	settings, err := a.db.GetTokenSettings(ctx, userID)
	if err != nil {
		return model.UsageReport{}, err
	}

	logs, err := a.db.ListUsageLogs(ctx, userID, start, end.AddDate(0, 0, 1))
	if err != nil {
		return model.UsageReport{}, err
	}

	return model.UsageReport{
		TokenSettings: settings,
		TotalStats:    totalStats(logs),
		DailyUsage:    dailyBuckets(logs, start, end),
	}, nil
}

// dailyBuckets seeds one all-zero bucket per day, then folds each log into
// its day.
func dailyBuckets(logs []model.UsageLog, start, end time.Time) []model.DailyUsageBucket {
	var buckets []model.DailyUsageBucket
	index := make(map[string]int)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		index[key] = len(buckets)
		byType := make(map[model.UsageType]int, len(model.UsageTypes()))
		for _, t := range model.UsageTypes() {
			byType[t] = 0
		}
		buckets = append(buckets, model.DailyUsageBucket{Date: key, ByType: byType})
	}

	for _, log := range logs {
		i, ok := index[log.CreatedAt.UTC().Format(dateLayout)]
		if !ok {
			continue
		}
		buckets[i].TotalQueries++
		buckets[i].TotalPoints += log.PointsUsed
		buckets[i].ByType[log.UsageType] += log.PointsUsed
	}
	return buckets
}

func totalStats(logs []model.UsageLog) model.TotalUsageStats {
	stats := model.TotalUsageStats{
		PointsByType: make(map[model.UsageType]int, len(model.UsageTypes())),
	}
	for _, t := range model.UsageTypes() {
		stats.PointsByType[t] = 0
	}

	for _, log := range logs {
		stats.TotalQueries++
		stats.TotalPointsUsed += log.PointsUsed
		stats.PointsByType[log.UsageType] += log.PointsUsed
	}

	if stats.TotalQueries > 0 {
		avg := float64(stats.TotalPointsUsed) / float64(stats.TotalQueries)
		stats.AverageCostPerQuery = roundHalfUp(avg, 2)
	}
	return stats
}

// roundHalfUp rounds half up to the given number of decimal places. Inputs
// are averages of non-negative integers, so no negative-tie subtleties.
func roundHalfUp(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Floor(v*shift+0.5) / shift
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
