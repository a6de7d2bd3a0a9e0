// internal/widget/aggregate.go - per-host column values
package widget

import (
	"context"
	"fmt"
	"time"

	"tophosts/internal/database"
	"tophosts/internal/history"
	"tophosts/internal/units"
)

// HistoryReader is the history and trend query service.
type HistoryReader interface {
	PickDataSource(item *database.Item, from, now time.Time) history.Source
	AggregatedValue(ctx context.Context, item *database.Item, source history.Source, fn history.AggregateFn, tr history.TimeRange) (history.Value, bool, error)
}

// TextResolver expands text column templates for a set of hosts. The
// result is keyed by column index, then host id.
type TextResolver interface {
	ResolveTextColumns(ctx context.Context, templates map[int]string, hostIDs []string) (map[int]map[string]string, error)
}

// ColumnValue is one host's value in one column. Item is set for item
// value columns.
type ColumnValue struct {
	HostID        string
	Value         history.Value
	Item          *database.Item
	IsBinaryUnits bool
}

// timeRange is the window an item column reads. Columns without an
// aggregate function look up the latest value within the history period.
func (s *Service) timeRange(c ColumnSpec, now time.Time) (history.TimeRange, error) {
	if c.Aggregate == history.AggregateNone {
		return history.TimeRange{From: now.Add(-s.defaults.HistoryPeriod), To: now}, nil
	}
	return c.TimePeriod.Resolve(now)
}

func (s *Service) source(c ColumnSpec, item *database.Item, tr history.TimeRange, now time.Time) history.Source {
	switch c.History {
	case HistoryData:
		return history.SourceHistory
	case HistoryTrends:
		return history.SourceTrends
	}
	if c.Aggregate == history.AggregateNone {
		return history.SourceHistory
	}
	return s.history.PickDataSource(item, tr.From, now)
}

// itemValues aggregates every item over the column's window. Values come
// out in item order; when a host has several matching items the first one
// with data supplies the value. Items without data yield nothing.
func (s *Service) itemValues(ctx context.Context, c ColumnSpec, items []database.Item, now time.Time) ([]ColumnValue, error) {
	if len(items) == 0 {
		return nil, nil
	}

	tr, err := s.timeRange(c, now)
	if err != nil {
		return nil, fmt.Errorf("column %q: %w", c.Header(), err)
	}

	var values []ColumnValue
	seen := make(map[string]bool)
	for i := range items {
		item := &items[i]
		if seen[item.HostID] {
			continue
		}

		v, ok, err := s.history.AggregatedValue(ctx, item, s.source(c, item, tr, now), c.Aggregate, tr)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		seen[item.HostID] = true
		values = append(values, ColumnValue{
			HostID:        item.HostID,
			Value:         v,
			Item:          item,
			IsBinaryUnits: units.IsBinaryUnits(item.Units),
		})
	}

	return values, nil
}

func hostNameValues(hosts []database.Host) []ColumnValue {
	values := make([]ColumnValue, 0, len(hosts))
	for _, h := range hosts {
		values = append(values, ColumnValue{HostID: h.ID, Value: history.TextValue(h.Name)})
	}
	return values
}

// textValues turns resolved text into values in host order, leaving out
// hosts whose text is empty.
func textValues(resolved map[string]string, hostIDs []string) []ColumnValue {
	var values []ColumnValue
	for _, id := range hostIDs {
		text := resolved[id]
		if text == "" {
			continue
		}
		values = append(values, ColumnValue{HostID: id, Value: history.TextValue(text)})
	}
	return values
}

func byHost(values []ColumnValue) map[string]ColumnValue {
	m := make(map[string]ColumnValue, len(values))
	for _, v := range values {
		m[v.HostID] = v
	}
	return m
}
