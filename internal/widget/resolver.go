// internal/widget/resolver.go - host scope and item resolution
package widget

import (
	"context"
	"fmt"

	"tophosts/internal/database"
	"tophosts/internal/history"
)

// Inventory is the host, item and maintenance query service.
type Inventory interface {
	GetHosts(ctx context.Context, filters database.HostFilters) ([]database.Host, error)
	GetItems(ctx context.Context, filters database.ItemFilters) ([]database.Item, error)
	GetMaintenances(ctx context.Context, ids []string) (map[string]database.Maintenance, error)
}

// NumericOnly reports whether an item value column only accepts numeric
// items. Plain values need numbers only for functions that compute on them;
// gauges need numbers unless they count.
func NumericOnly(c ColumnSpec) bool {
	if c.Display == DisplayAsIs {
		return c.Aggregate.RequiresNumeric()
	}
	return c.Aggregate != history.AggregateCount
}

func valueTypes(c ColumnSpec) []database.ValueType {
	if NumericOnly(c) {
		return database.NumericValueTypes
	}
	return database.TextualValueTypes
}

// hostFilters turns the widget scope into an inventory query. The second
// result is false when the scope selects nothing.
func hostFilters(f Fields) (database.HostFilters, bool) {
	filters := database.HostFilters{
		EvalType:           f.EvalType,
		Tags:               f.Tags,
		ExcludeMaintenance: !f.Maintenance,
	}

	if f.OverrideHostID != "" {
		filters.HostIDs = []string{f.OverrideHostID}
		return filters, true
	}

	if len(f.GroupIDs) == 0 && len(f.HostIDs) == 0 {
		return filters, false
	}
	filters.GroupIDs = f.GroupIDs
	filters.HostIDs = f.HostIDs
	return filters, true
}

func (s *Service) resolveHosts(ctx context.Context, f Fields) ([]database.Host, error) {
	filters, ok := hostFilters(f)
	if !ok {
		return nil, nil
	}

	hosts, err := s.inventory.GetHosts(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to get hosts: %w", err)
	}
	return hosts, nil
}

func (s *Service) resolveItems(ctx context.Context, c ColumnSpec, hostIDs []string) ([]database.Item, error) {
	if len(hostIDs) == 0 {
		return nil, nil
	}

	items, err := s.inventory.GetItems(ctx, database.ItemFilters{
		HostIDs:    hostIDs,
		Name:       c.Item,
		ValueTypes: valueTypes(c),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get items %q: %w", c.Item, err)
	}
	return items, nil
}

// narrowToItemHosts keeps, in order, the hosts that own at least one item
// of any item value column.
func narrowToItemHosts(hosts []database.Host, itemsByColumn map[int][]database.Item) []database.Host {
	withItems := make(map[string]bool)
	for _, items := range itemsByColumn {
		for _, item := range items {
			withItems[item.HostID] = true
		}
	}

	narrowed := hosts[:0:0]
	for _, h := range hosts {
		if withItems[h.ID] {
			narrowed = append(narrowed, h)
		}
	}
	return narrowed
}

func filterItemsByHost(items []database.Item, hostIDs []string) []database.Item {
	keep := make(map[string]bool, len(hostIDs))
	for _, id := range hostIDs {
		keep[id] = true
	}

	var out []database.Item
	for _, item := range items {
		if keep[item.HostID] {
			out = append(out, item)
		}
	}
	return out
}

// isNumericColumn decides the comparison used to rank by an item column:
// numeric when counting or when every item is numeric.
func isNumericColumn(c ColumnSpec, items []database.Item) bool {
	if c.Data != DataItemValue {
		return false
	}
	if c.Aggregate == history.AggregateCount {
		return true
	}
	for _, item := range items {
		if !item.ValueType.IsNumeric() {
			return false
		}
	}
	return true
}

func hostIDsOf(hosts []database.Host) []string {
	ids := make([]string, len(hosts))
	for i, h := range hosts {
		ids[i] = h.ID
	}
	return ids
}
