// internal/history/aggregate.go
package history

import (
	"math"
	"time"

	"tophosts/internal/database"
)

// AggregateHistory reduces raw samples (oldest first) to a single value.
// Numeric-only functions yield nothing for textual items.
func AggregateHistory(values []database.HistoryValue, fn AggregateFn, numeric bool) (Value, bool) {
	if len(values) == 0 {
		return Value{}, false
	}

	sample := func(hv database.HistoryValue) Value {
		if numeric {
			return NumericValue(hv.Num)
		}
		return TextValue(hv.Str)
	}

	switch fn {
	case AggregateCount:
		return NumericValue(float64(len(values))), true
	case AggregateFirst:
		return sample(values[0]), true
	case AggregateLast, AggregateNone:
		return sample(values[len(values)-1]), true
	}

	if !numeric {
		return Value{}, false
	}

	min, max, sum := math.Inf(1), math.Inf(-1), 0.0
	for _, hv := range values {
		min = math.Min(min, hv.Num)
		max = math.Max(max, hv.Num)
		sum += hv.Num
	}

	switch fn {
	case AggregateMin:
		return NumericValue(min), true
	case AggregateMax:
		return NumericValue(max), true
	case AggregateAvg:
		return NumericValue(sum / float64(len(values))), true
	case AggregateSum:
		return NumericValue(sum), true
	}
	return Value{}, false
}

// AggregateTrends reduces hourly rollups (oldest first) to a single value.
// Averages are weighted by the number of samples behind each hour.
func AggregateTrends(trends []database.Trend, fn AggregateFn) (Value, bool) {
	if len(trends) == 0 {
		return Value{}, false
	}

	switch fn {
	case AggregateFirst:
		return NumericValue(trends[0].Avg), true
	case AggregateLast, AggregateNone:
		return NumericValue(trends[len(trends)-1].Avg), true
	}

	min, max := math.Inf(1), math.Inf(-1)
	var weighted float64
	var count int
	for _, t := range trends {
		min = math.Min(min, t.Min)
		max = math.Max(max, t.Max)
		weighted += t.Avg * float64(t.Num)
		count += t.Num
	}

	switch fn {
	case AggregateMin:
		return NumericValue(min), true
	case AggregateMax:
		return NumericValue(max), true
	case AggregateCount:
		return NumericValue(float64(count)), true
	case AggregateSum:
		return NumericValue(weighted), true
	case AggregateAvg:
		if count == 0 {
			return Value{}, false
		}
		return NumericValue(weighted / float64(count)), true
	}
	return Value{}, false
}

// Rollup builds the hourly trend of an item from its samples in that hour.
func Rollup(itemID string, hour time.Time, values []database.HistoryValue) (database.Trend, bool) {
	if len(values) == 0 {
		return database.Trend{}, false
	}

	t := database.Trend{ItemID: itemID, Clock: hour, Num: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	var sum float64
	for _, hv := range values {
		t.Min = math.Min(t.Min, hv.Num)
		t.Max = math.Max(t.Max, hv.Num)
		sum += hv.Num
	}
	t.Avg = sum / float64(len(values))
	return t, true
}
