// internal/quota/aggregate_test.go
package quota

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DylanCa/ideaboard-api-sub001/internal/model"
)

// fakeUsageStore serves canned rows to the aggregator.
type fakeUsageStore struct {
	settings model.TokenSettings
	logs     []model.UsageLog
	err      error
}

func (f *fakeUsageStore) GetTokenSettings(_ context.Context, userID string) (model.TokenSettings, error) {
	if f.settings.UserID == "" {
		return model.TokenSettings{UserID: userID, DefaultUsageType: model.UsageTypeGlobalPool}, nil
	}
	return f.settings, nil
}

func (f *fakeUsageStore) ListUsageLogs(_ context.Context, _ string, start, end time.Time) ([]model.UsageLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.UsageLog
	for _, l := range f.logs {
		if !l.CreatedAt.Before(start) && l.CreatedAt.Before(end) {
			out = append(out, l)
		}
	}
	return out, nil
}

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func logAt(t time.Time, usageType model.UsageType, points int) model.UsageLog {
	return model.UsageLog{
		UserID:     "u1",
		UsageType:  usageType,
		PointsUsed: points,
		CreatedAt:  t,
	}
}

func TestAggregator_AggregateUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("seeds every calendar day with zero values for every usage type", func(t *testing.T) {
		db := &fakeUsageStore{logs: []model.UsageLog{
			logAt(day(2).Add(10*time.Hour), model.UsageTypePersonal, 4),
			logAt(day(4).Add(23*time.Hour), model.UsageTypeGlobalPool, 6),
		}}
		agg := NewAggregator(db)

		report, err := agg.AggregateUsage(ctx, "u1", day(1), day(5))

		require.NoError(t, err)
		require.Len(t, report.DailyUsage, 5)

		for i, bucket := range report.DailyUsage {
			assert.Equal(t, day(i+1).Format("2006-01-02"), bucket.Date)
			require.Len(t, bucket.ByType, len(model.UsageTypes()))
			for _, ut := range model.UsageTypes() {
				assert.Contains(t, bucket.ByType, ut)
			}
		}

		assert.Equal(t, 1, report.DailyUsage[1].TotalQueries)
		assert.Equal(t, 4, report.DailyUsage[1].TotalPoints)
		assert.Equal(t, 4, report.DailyUsage[1].ByType[model.UsageTypePersonal])

		assert.Equal(t, 6, report.DailyUsage[3].TotalPoints)

		// The three inactive days are present with all-zero values.
		for _, i := range []int{0, 2, 4} {
			assert.Zero(t, report.DailyUsage[i].TotalQueries)
			assert.Zero(t, report.DailyUsage[i].TotalPoints)
			for _, ut := range model.UsageTypes() {
				assert.Zero(t, report.DailyUsage[i].ByType[ut])
			}
		}
	})

	t.Run("totals across mixed usage types", func(t *testing.T) {
		db := &fakeUsageStore{logs: []model.UsageLog{
			logAt(day(1).Add(time.Hour), model.UsageTypePersonal, 10),
			logAt(day(1).Add(2*time.Hour), model.UsageTypeContributed, 5),
			logAt(day(2).Add(time.Hour), model.UsageTypeGlobalPool, 3),
		}}
		agg := NewAggregator(db)

		report, err := agg.AggregateUsage(ctx, "u1", day(1), day(3))

		require.NoError(t, err)
		assert.Equal(t, 3, report.TotalStats.TotalQueries)
		assert.Equal(t, 18, report.TotalStats.TotalPointsUsed)
		assert.Equal(t, 6.0, report.TotalStats.AverageCostPerQuery)
		assert.Equal(t, 10, report.TotalStats.PointsByType[model.UsageTypePersonal])
		assert.Equal(t, 5, report.TotalStats.PointsByType[model.UsageTypeContributed])
		assert.Equal(t, 3, report.TotalStats.PointsByType[model.UsageTypeGlobalPool])
	})

	t.Run("the mean is rounded half up to two decimals", func(t *testing.T) {
		db := &fakeUsageStore{logs: []model.UsageLog{
			logAt(day(1).Add(time.Hour), model.UsageTypePersonal, 1),
			logAt(day(1).Add(2*time.Hour), model.UsageTypePersonal, 1),
			logAt(day(1).Add(3*time.Hour), model.UsageTypePersonal, 6),
		}}
		agg := NewAggregator(db)

		report, err := agg.AggregateUsage(ctx, "u1", day(1), day(1))

		require.NoError(t, err)
		// 8 / 3 = 2.666... rounds up to 2.67
		assert.Equal(t, 2.67, report.TotalStats.AverageCostPerQuery)
	})

	t.Run("an empty log set yields zeros, not an error", func(t *testing.T) {
		agg := NewAggregator(&fakeUsageStore{})

		report, err := agg.AggregateUsage(ctx, "u1", day(1), day(3))

		require.NoError(t, err)
		assert.Zero(t, report.TotalStats.TotalQueries)
		assert.Zero(t, report.TotalStats.TotalPointsUsed)
		assert.Equal(t, 0.0, report.TotalStats.AverageCostPerQuery)
		assert.Len(t, report.DailyUsage, 3)
	})

	t.Run("rejects a reversed date range", func(t *testing.T) {
		agg := NewAggregator(&fakeUsageStore{})

		_, err := agg.AggregateUsage(ctx, "u1", day(5), day(1))

		require.Error(t, err)
	})

	t.Run("includes the user's token settings", func(t *testing.T) {
		db := &fakeUsageStore{settings: model.TokenSettings{
			UserID:           "u1",
			HasPersonalToken: true,
			DefaultUsageType: model.UsageTypePersonal,
		}}
		agg := NewAggregator(db)

		report, err := agg.AggregateUsage(ctx, "u1", day(1), day(1))

		require.NoError(t, err)
		assert.True(t, report.TokenSettings.HasPersonalToken)
		assert.Equal(t, model.UsageTypePersonal, report.TokenSettings.DefaultUsageType)
	})
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 2.67, roundHalfUp(8.0/3.0, 2))
	assert.Equal(t, 2.5, roundHalfUp(2.5, 2))
	assert.Equal(t, 1.13, roundHalfUp(1.125, 2))
	assert.Equal(t, 0.0, roundHalfUp(0, 2))
}
