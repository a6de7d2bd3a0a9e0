// internal/widget/extents.go - gauge ranges
package widget

import (
	"tophosts/internal/units"
)

// Extents is the range a gauge column is drawn over, once as plain numbers
// and once scaled for byte units.
type Extents struct {
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	MinBinary float64 `json:"min_binary"`
	MaxBinary float64 `json:"max_binary"`
}

// ComputeExtents takes each bound from the column when configured and from
// the observed values otherwise, with 0 and 100 for a column without data.
// Configured bounds are validated at save time; one that still fails to
// parse falls back like a blank one.
func ComputeExtents(c ColumnSpec, observed Bounds) Extents {
	e := Extents{Min: 0, Max: 100}
	if observed.OK {
		e.Min, e.Max = observed.Min, observed.Max
	}
	e.MinBinary, e.MaxBinary = e.Min, e.Max

	if c.Min != "" {
		if v, err := units.Parse(c.Min); err == nil {
			e.Min = v
		}
		if v, err := units.ParseBinary(c.Min); err == nil {
			e.MinBinary = v
		}
	}
	if c.Max != "" {
		if v, err := units.Parse(c.Max); err == nil {
			e.Max = v
		}
		if v, err := units.ParseBinary(c.Max); err == nil {
			e.MaxBinary = v
		}
	}

	return e
}

// For selects the pair matching a value's units.
func (e Extents) For(binary bool) (min, max float64) {
	if binary {
		return e.MinBinary, e.MaxBinary
	}
	return e.Min, e.Max
}

func isGauge(c ColumnSpec) bool {
	return c.Data == DataItemValue && (c.Display == DisplayBar || c.Display == DisplayIndicators)
}
