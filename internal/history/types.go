// internal/history/types.go
package history

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// AggregateFn uses the platform numbering of aggregation functions.
type AggregateFn int

const (
	AggregateNone  AggregateFn = 0
	AggregateMin   AggregateFn = 1
	AggregateMax   AggregateFn = 2
	AggregateAvg   AggregateFn = 3
	AggregateCount AggregateFn = 4
	AggregateSum   AggregateFn = 5
	AggregateFirst AggregateFn = 6
	AggregateLast  AggregateFn = 7
)

func (fn AggregateFn) Valid() bool {
	return fn >= AggregateNone && fn <= AggregateLast
}

// RequiresNumeric reports whether the function only accepts numeric items.
func (fn AggregateFn) RequiresNumeric() bool {
	switch fn {
	case AggregateMin, AggregateMax, AggregateAvg, AggregateSum:
		return true
	}
	return false
}

// NumericResult reports whether the function always yields a number,
// whatever the item's value type.
func (fn AggregateFn) NumericResult() bool {
	switch fn {
	case AggregateMin, AggregateMax, AggregateAvg, AggregateCount, AggregateSum:
		return true
	}
	return false
}

func (fn AggregateFn) String() string {
	switch fn {
	case AggregateNone:
		return "none"
	case AggregateMin:
		return "min"
	case AggregateMax:
		return "max"
	case AggregateAvg:
		return "avg"
	case AggregateCount:
		return "count"
	case AggregateSum:
		return "sum"
	case AggregateFirst:
		return "first"
	case AggregateLast:
		return "last"
	default:
		return "unknown"
	}
}

// Source is the table a value is read from.
type Source int

const (
	SourceHistory Source = 0
	SourceTrends  Source = 1
)

func (s Source) String() string {
	if s == SourceTrends {
		return "trends"
	}
	return "history"
}

// Value is one aggregated result. Numeric values carry Num, the rest Str.
type Value struct {
	Num     float64
	Str     string
	Numeric bool
}

func NumericValue(n float64) Value {
	return Value{Num: n, Numeric: true}
}

func TextValue(s string) Value {
	return Value{Str: s}
}

func (v Value) String() string {
	if v.Numeric {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Str
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Numeric {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Str)
}

// UnmarshalJSON reads a JSON number as a numeric value and a JSON string
// as text.
func (v *Value) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*v = NumericValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value must be a number or a string: %w", err)
	}
	*v = TextValue(s)
	return nil
}
