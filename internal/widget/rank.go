// internal/widget/rank.go - ordering hosts by the order column
package widget

import (
	"math"
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// Bounds are the smallest and largest numeric values observed in a column.
type Bounds struct {
	Min float64
	Max float64
	OK  bool
}

// ObservedBounds scans the numeric values. OK is false when there are none.
func ObservedBounds(values []ColumnValue) Bounds {
	b := Bounds{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		if !v.Value.Numeric {
			continue
		}
		b.Min = math.Min(b.Min, v.Value.Num)
		b.Max = math.Max(b.Max, v.Value.Num)
		b.OK = true
	}
	if !b.OK {
		return Bounds{}
	}
	return b
}

// Ranking is the ordered, truncated host selection.
type Ranking struct {
	HostIDs []string
	// Bounds covers every ranked value before truncation. Only set for
	// numeric ranking.
	Bounds Bounds
}

// Rank orders the hosts by value and keeps the first limit of them.
//
// Numeric ranking is a stable sort, descending for TopN and ascending for
// BottomN, so equal values keep their input order. Text ranking is a stable
// natural case-insensitive ascending sort; BottomN reverses that sequence,
// which also reverses the order within groups of equal values.
func Rank(values []ColumnValue, order Order, numeric bool, limit int) Ranking {
	sorted := make([]ColumnValue, len(values))
	copy(sorted, values)

	var r Ranking
	if numeric {
		r.Bounds = ObservedBounds(values)
		sort.SliceStable(sorted, func(i, j int) bool {
			if order == OrderBottomN {
				return sorted[i].Value.Num < sorted[j].Value.Num
			}
			return sorted[i].Value.Num > sorted[j].Value.Num
		})
	} else {
		keys := make(map[string]string, len(sorted))
		for _, v := range sorted {
			keys[v.HostID] = strings.ToLower(v.Value.String())
		}
		sort.SliceStable(sorted, func(i, j int) bool {
			return natural.Less(keys[sorted[i].HostID], keys[sorted[j].HostID])
		})
		if order == OrderBottomN {
			for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	r.HostIDs = make([]string, len(sorted))
	for i, v := range sorted {
		r.HostIDs[i] = v.HostID
	}
	return r
}
