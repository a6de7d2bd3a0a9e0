package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tophosts/internal/database"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	history map[string][]database.HistoryValue
	trends  map[string][]database.Trend
	err     error

	trendCalls int
}

func (f *fakeReader) GetHistory(ctx context.Context, itemID string, from, to time.Time) ([]database.HistoryValue, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []database.HistoryValue
	for _, hv := range f.history[itemID] {
		if !hv.Clock.Before(from) && !hv.Clock.After(to) {
			out = append(out, hv)
		}
	}
	return out, nil
}

func (f *fakeReader) GetTrends(ctx context.Context, itemID string, from, to time.Time) ([]database.Trend, error) {
	f.trendCalls++
	if f.err != nil {
		return nil, f.err
	}
	var out []database.Trend
	for _, t := range f.trends[itemID] {
		if !t.Clock.Before(from) && !t.Clock.After(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func samples(itemID string, nums ...float64) []database.HistoryValue {
	var out []database.HistoryValue
	for i, n := range nums {
		out = append(out, database.HistoryValue{ItemID: itemID, Clock: testNow.Add(time.Duration(i-len(nums)) * time.Minute), Num: n})
	}
	return out
}

func TestAggregateHistory_Numeric(t *testing.T) {
	values := samples("i1", 4, 1, 7)

	tests := []struct {
		fn   AggregateFn
		want float64
	}{
		{AggregateNone, 7},
		{AggregateMin, 1},
		{AggregateMax, 7},
		{AggregateAvg, 4},
		{AggregateCount, 3},
		{AggregateSum, 12},
		{AggregateFirst, 4},
		{AggregateLast, 7},
	}

	for _, tt := range tests {
		t.Run(tt.fn.String(), func(t *testing.T) {
			v, ok := AggregateHistory(values, tt.fn, true)
			require.True(t, ok)
			assert.True(t, v.Numeric)
			assert.InDelta(t, tt.want, v.Num, 1e-9)
		})
	}
}

func TestAggregateHistory_Text(t *testing.T) {
	values := []database.HistoryValue{
		{ItemID: "i1", Clock: testNow.Add(-2 * time.Minute), Str: "Linux 5.15"},
		{ItemID: "i1", Clock: testNow.Add(-time.Minute), Str: "Linux 6.1"},
	}

	v, ok := AggregateHistory(values, AggregateLast, false)
	require.True(t, ok)
	assert.Equal(t, TextValue("Linux 6.1"), v)

	v, ok = AggregateHistory(values, AggregateCount, false)
	require.True(t, ok)
	assert.Equal(t, NumericValue(2), v)

	_, ok = AggregateHistory(values, AggregateAvg, false)
	assert.False(t, ok, "avg of text has no value")

	_, ok = AggregateHistory(nil, AggregateLast, false)
	assert.False(t, ok)
}

func TestAggregateTrends(t *testing.T) {
	trends := []database.Trend{
		{ItemID: "i1", Clock: testNow.Add(-2 * time.Hour), Num: 1, Min: 2, Avg: 10, Max: 12},
		{ItemID: "i1", Clock: testNow.Add(-time.Hour), Num: 3, Min: 1, Avg: 20, Max: 30},
	}

	tests := []struct {
		fn   AggregateFn
		want float64
	}{
		{AggregateMin, 1},
		{AggregateMax, 30},
		{AggregateAvg, 17.5},
		{AggregateCount, 4},
		{AggregateSum, 70},
		{AggregateFirst, 10},
		{AggregateLast, 20},
	}

	for _, tt := range tests {
		t.Run(tt.fn.String(), func(t *testing.T) {
			v, ok := AggregateTrends(trends, tt.fn)
			require.True(t, ok)
			assert.InDelta(t, tt.want, v.Num, 1e-9)
		})
	}
}

func TestRollup(t *testing.T) {
	hour := testNow.Add(-time.Hour)
	trend, ok := Rollup("i1", hour, samples("i1", 2, 4, 9))
	require.True(t, ok)
	assert.Equal(t, database.Trend{ItemID: "i1", Clock: hour, Num: 3, Min: 2, Avg: 5, Max: 9}, trend)

	_, ok = Rollup("i1", hour, nil)
	assert.False(t, ok)
}

func TestPickDataSource(t *testing.T) {
	svc := NewService(&fakeReader{}, Retention{History: 24 * time.Hour, Trends: 30 * 24 * time.Hour})

	numeric := &database.Item{ValueType: database.ValueTypeFloat, History: 24 * time.Hour, Trends: 365 * 24 * time.Hour}
	unset := &database.Item{ValueType: database.ValueTypeFloat}

	tests := []struct {
		name string
		item *database.Item
		from time.Time
		want Source
	}{
		{"recent window", numeric, testNow.Add(-time.Hour), SourceHistory},
		{"window at retention edge", numeric, testNow.Add(-24 * time.Hour), SourceHistory},
		{"window beyond retention", numeric, testNow.Add(-48 * time.Hour), SourceTrends},
		{"text item", &database.Item{ValueType: database.ValueTypeStr, History: time.Hour}, testNow.Add(-48 * time.Hour), SourceHistory},
		{"item retention wins over global", &database.Item{ValueType: database.ValueTypeUint64, History: 96 * time.Hour}, testNow.Add(-72 * time.Hour), SourceHistory},
		{"global retention, recent window", unset, testNow.Add(-time.Hour), SourceHistory},
		{"global retention, long window", unset, testNow.Add(-72 * time.Hour), SourceTrends},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.PickDataSource(tt.item, tt.from, testNow))
		})
	}
}

func TestPickDataSource_HistoryKeptForever(t *testing.T) {
	svc := NewService(&fakeReader{}, Retention{})
	item := &database.Item{ValueType: database.ValueTypeFloat}

	assert.Equal(t, SourceHistory, svc.PickDataSource(item, testNow.Add(-365*24*time.Hour), testNow))
}

func TestRetention_For(t *testing.T) {
	global := Retention{History: 24 * time.Hour, Trends: 48 * time.Hour}

	assert.Equal(t, global, global.For(&database.Item{}))
	assert.Equal(t, Retention{History: time.Hour, Trends: 48 * time.Hour}, global.For(&database.Item{History: time.Hour}))
}

func TestService_AggregatedValue(t *testing.T) {
	reader := &fakeReader{
		history: map[string][]database.HistoryValue{"i1": samples("i1", 3, 5)},
		trends: map[string][]database.Trend{"i1": {
			{ItemID: "i1", Clock: testNow.Add(-3 * time.Hour), Num: 2, Min: 1, Avg: 8, Max: 9},
		}},
	}
	svc := NewService(reader, Retention{})
	item := &database.Item{ID: "i1", ValueType: database.ValueTypeFloat}
	tr := TimeRange{From: testNow.Add(-24 * time.Hour), To: testNow}

	v, ok, err := svc.AggregatedValue(context.Background(), item, SourceHistory, AggregateMax, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, NumericValue(5), v)

	v, ok, err = svc.AggregatedValue(context.Background(), item, SourceTrends, AggregateMax, tr)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, NumericValue(9), v)

	_, ok, err = svc.AggregatedValue(context.Background(), &database.Item{ID: "other"}, SourceHistory, AggregateLast, tr)
	require.NoError(t, err)
	assert.False(t, ok, "no data is not an error")

	textItem := &database.Item{ID: "i1", ValueType: database.ValueTypeText}
	reader.trendCalls = 0
	_, _, err = svc.AggregatedValue(context.Background(), textItem, SourceTrends, AggregateLast, tr)
	require.NoError(t, err)
	assert.Zero(t, reader.trendCalls, "text items never read trends")

	reader.err = errors.New("disk on fire")
	_, _, err = svc.AggregatedValue(context.Background(), item, SourceHistory, AggregateMax, tr)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "now", want: testNow},
		{in: "now-1h", want: testNow.Add(-time.Hour)},
		{in: "now-30m", want: testNow.Add(-30 * time.Minute)},
		{in: "now-7d", want: testNow.AddDate(0, 0, -7)},
		{in: "now-2w", want: testNow.AddDate(0, 0, -14)},
		{in: "now-1M", want: testNow.AddDate(0, -1, 0)},
		{in: "now-1y", want: testNow.AddDate(-1, 0, 0)},
		{in: "2024-02-29 08:30:00", want: time.Date(2024, 2, 29, 8, 30, 0, 0, time.UTC)},
		{in: "", wantErr: true},
		{in: "now-", wantErr: true},
		{in: "now-5x", wantErr: true},
		{in: "yesterday", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTime(tt.in, testNow)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestTimePeriod_Resolve(t *testing.T) {
	tr, err := TimePeriod{From: "now-1h", To: "now"}.Resolve(testNow)
	require.NoError(t, err)
	assert.Equal(t, TimeRange{From: testNow.Add(-time.Hour), To: testNow}, tr)

	_, err = TimePeriod{From: "now", To: "now-1h"}.Resolve(testNow)
	assert.Error(t, err)
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal([]Value{NumericValue(1.5), TextValue("up")})
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5, "up"]`, string(data))
	assert.Equal(t, "42", NumericValue(42).String())

	var decoded []Value
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, []Value{NumericValue(1.5), TextValue("up")}, decoded)

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1}`), &v))
}

func TestAggregateFn_Predicates(t *testing.T) {
	assert.True(t, AggregateAvg.RequiresNumeric())
	assert.False(t, AggregateCount.RequiresNumeric())
	assert.True(t, AggregateCount.NumericResult())
	assert.False(t, AggregateLast.NumericResult())
	assert.False(t, AggregateFn(8).Valid())
}
