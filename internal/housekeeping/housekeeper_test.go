package housekeeping

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tophosts/internal/config"
	"tophosts/internal/database"
	"tophosts/internal/history"
)

var now = time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

func newHousekeeper(t *testing.T) (*Housekeeper, *database.BoltStore) {
	t.Helper()
	store, err := database.NewBoltStore(filepath.Join(t.TempDir(), "hk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	require.NoError(t, store.CreateHost(ctx, &database.Host{ID: "h1", Name: "web-01"}))
	require.NoError(t, store.CreateItem(ctx, &database.Item{ID: "cpu", HostID: "h1", Name: "CPU", ValueType: database.ValueTypeFloat}))
	require.NoError(t, store.CreateItem(ctx, &database.Item{ID: "os", HostID: "h1", Name: "OS", ValueType: database.ValueTypeStr, History: time.Hour}))

	h := NewHousekeeper(store, config.DatabaseConfig{
		HistoryRetention: 24 * time.Hour,
		TrendsRetention:  48 * time.Hour,
	}, nil)
	h.now = func() time.Time { return now }
	return h, store
}

func TestRollupTrends(t *testing.T) {
	h, store := newHousekeeper(t)
	ctx := context.Background()

	require.NoError(t, store.AddHistory(ctx, []database.HistoryValue{
		{ItemID: "cpu", Clock: now.Add(-150 * time.Minute), Num: 10}, // 10:00 hour
		{ItemID: "cpu", Clock: now.Add(-140 * time.Minute), Num: 30},
		{ItemID: "cpu", Clock: now.Add(-80 * time.Minute), Num: 5}, // 11:00 hour
		{ItemID: "cpu", Clock: now.Add(-10 * time.Minute), Num: 99}, // current hour, not complete
		{ItemID: "os", Clock: now.Add(-80 * time.Minute), Str: "Linux"},
	}))

	saved, err := h.RollupTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	trends, err := store.GetTrends(ctx, "cpu", now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, trends, 2)

	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), trends[0].Clock.UTC())
	assert.Equal(t, 2, trends[0].Num)
	assert.Equal(t, 10.0, trends[0].Min)
	assert.Equal(t, 20.0, trends[0].Avg)
	assert.Equal(t, 30.0, trends[0].Max)
	assert.Equal(t, 5.0, trends[1].Avg)

	clock, err := store.GetMeta(ctx, RollupClockKey)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01T12:00:00Z", clock)

	// Same hour again: nothing new to roll up.
	saved, err = h.RollupTrends(ctx)
	require.NoError(t, err)
	assert.Zero(t, saved)

	// Next hour picks up the previously incomplete one.
	h.now = func() time.Time { return now.Add(time.Hour) }
	saved, err = h.RollupTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, saved)
}

func TestPurgeExpired(t *testing.T) {
	h, store := newHousekeeper(t)
	ctx := context.Background()

	require.NoError(t, store.AddHistory(ctx, []database.HistoryValue{
		{ItemID: "cpu", Clock: now.Add(-30 * time.Hour), Num: 1},
		{ItemID: "cpu", Clock: now.Add(-2 * time.Hour), Num: 2},
		{ItemID: "os", Clock: now.Add(-2 * time.Hour), Str: "old"},
		{ItemID: "os", Clock: now.Add(-time.Minute), Str: "new"},
	}))
	require.NoError(t, store.SaveTrends(ctx, []database.Trend{
		{ItemID: "cpu", Clock: now.Add(-72 * time.Hour), Num: 1},
		{ItemID: "cpu", Clock: now.Add(-24 * time.Hour), Num: 1},
	}))

	result, err := h.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Items)
	assert.Equal(t, 2, result.HistoryDeleted, "global retention for cpu, item retention for os")
	assert.Equal(t, 1, result.TrendsDeleted)

	cpu, err := store.GetHistory(ctx, "cpu", now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, cpu, 1)
	assert.Equal(t, 2.0, cpu[0].Num)

	os, err := store.GetHistory(ctx, "os", now.Add(-48*time.Hour), now)
	require.NoError(t, err)
	require.Len(t, os, 1)
	assert.Equal(t, "new", os[0].Str)
}

func TestLongWindowReadsTrendsAfterPurge(t *testing.T) {
	h, store := newHousekeeper(t)
	h.config.TrendsRetention = 30 * 24 * time.Hour
	ctx := context.Background()

	// 72 hourly samples for an item without its own retention: 100 for the
	// oldest two days, 10 for the last one.
	base := now.Truncate(time.Hour).Add(-72 * time.Hour)
	var values []database.HistoryValue
	for k := 0; k < 72; k++ {
		num := 100.0
		if k >= 48 {
			num = 10
		}
		values = append(values, database.HistoryValue{ItemID: "cpu", Clock: base.Add(time.Duration(k)*time.Hour + 10*time.Minute), Num: num})
	}
	require.NoError(t, store.AddHistory(ctx, values))
	require.NoError(t, store.SetMeta(ctx, RollupClockKey, base.Format(time.RFC3339)))

	saved, err := h.RollupTrends(ctx)
	require.NoError(t, err)
	assert.Equal(t, 72, saved)

	_, err = h.PurgeExpired(ctx)
	require.NoError(t, err)

	svc := history.NewService(store, h.config.Retention())
	item, err := store.GetItem(ctx, "cpu")
	require.NoError(t, err)

	tr := history.TimeRange{From: now.Add(-72 * time.Hour), To: now}
	source := svc.PickDataSource(item, tr.From, now)
	assert.Equal(t, history.SourceTrends, source)

	v, ok, err := svc.AggregatedValue(ctx, item, source, history.AggregateAvg, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 70.0, v.Num, 1e-9)

	// A window inside history retention still reads the raw samples.
	recent := history.TimeRange{From: now.Add(-6 * time.Hour), To: now}
	assert.Equal(t, history.SourceHistory, svc.PickDataSource(item, recent.From, now))
}

func TestRollupHours_Empty(t *testing.T) {
	assert.Empty(t, rollupHours("x", nil))
}
