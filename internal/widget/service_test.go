package widget

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tophosts/internal/database"
	"tophosts/internal/history"
)

var renderNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeInventory struct {
	hosts        []database.Host
	items        []database.Item
	maintenances map[string]database.Maintenance
	itemsErr     error

	mu        sync.Mutex
	hostCalls int
	itemCalls int
}

func (f *fakeInventory) GetHosts(ctx context.Context, filters database.HostFilters) ([]database.Host, error) {
	f.mu.Lock()
	f.hostCalls++
	f.mu.Unlock()

	var out []database.Host
	for _, h := range f.hosts {
		if len(filters.HostIDs) > 0 && !slices.Contains(filters.HostIDs, h.ID) {
			continue
		}
		if len(filters.GroupIDs) > 0 && !slices.ContainsFunc(h.Groups, func(g string) bool { return slices.Contains(filters.GroupIDs, g) }) {
			continue
		}
		if filters.ExcludeMaintenance && h.MaintenanceStatus == database.MaintenanceStatusOn {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

func (f *fakeInventory) GetItems(ctx context.Context, filters database.ItemFilters) ([]database.Item, error) {
	f.mu.Lock()
	f.itemCalls++
	f.mu.Unlock()

	if f.itemsErr != nil {
		return nil, f.itemsErr
	}

	pattern := database.CompileNamePattern(filters.Name)
	var out []database.Item
	for _, item := range f.items {
		if !slices.Contains(filters.HostIDs, item.HostID) {
			continue
		}
		if len(filters.ValueTypes) > 0 && !slices.Contains(filters.ValueTypes, item.ValueType) {
			continue
		}
		if !pattern.Match(item.Name) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeInventory) GetMaintenances(ctx context.Context, ids []string) (map[string]database.Maintenance, error) {
	out := make(map[string]database.Maintenance)
	for _, id := range ids {
		if m, ok := f.maintenances[id]; ok {
			out[id] = m
		}
	}
	return out, nil
}

type fakeHistory struct {
	values map[string]history.Value
	errs   map[string]error
}

func (f *fakeHistory) PickDataSource(item *database.Item, from, now time.Time) history.Source {
	return history.SourceHistory
}

func (f *fakeHistory) AggregatedValue(ctx context.Context, item *database.Item, source history.Source, fn history.AggregateFn, tr history.TimeRange) (history.Value, bool, error) {
	if err := f.errs[item.ID]; err != nil {
		return history.Value{}, false, err
	}
	v, ok := f.values[item.ID]
	if ok && fn == history.AggregateCount {
		return history.NumericValue(1), true, nil
	}
	return v, ok, nil
}

// fakeTexts resolves a template to texts[template][hostID].
type fakeTexts struct {
	texts map[string]map[string]string
	err   error
	calls int
}

func (f *fakeTexts) ResolveTextColumns(ctx context.Context, templates map[int]string, hostIDs []string) (map[int]map[string]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int]map[string]string)
	for index, template := range templates {
		out[index] = make(map[string]string)
		for _, id := range hostIDs {
			out[index][id] = f.texts[template][id]
		}
	}
	return out, nil
}

func host(id string, groups ...string) database.Host {
	return database.Host{ID: id, Name: "host-" + id, Groups: groups}
}

func item(id, hostID, name string, vt database.ValueType) database.Item {
	return database.Item{ID: id, HostID: hostID, Name: name, ValueType: vt}
}

// threeHosts has CPU values {A:10, B:30, C:20} and a host D without items.
func threeHosts() (*fakeInventory, *fakeHistory) {
	inv := &fakeInventory{
		hosts: []database.Host{host("A", "web"), host("B", "web"), host("C", "web"), host("D", "web")},
		items: []database.Item{
			item("a-cpu", "A", "CPU utilization", database.ValueTypeFloat),
			item("b-cpu", "B", "CPU utilization", database.ValueTypeFloat),
			item("c-cpu", "C", "CPU utilization", database.ValueTypeFloat),
		},
	}
	hist := &fakeHistory{values: map[string]history.Value{
		"a-cpu": history.NumericValue(10),
		"b-cpu": history.NumericValue(30),
		"c-cpu": history.NumericValue(20),
	}}
	return inv, hist
}

func newTestService(inv Inventory, hist HistoryReader, texts TextResolver, opts Options) *Service {
	opts.Now = func() time.Time { return renderNow }
	return NewService(inv, hist, texts, NewDefaults(), opts)
}

func cpuFields(order Order, lines int) Fields {
	return Fields{
		Name:     "Top CPU",
		GroupIDs: []string{"web"},
		Columns: []ColumnSpec{
			{Name: "Host", Data: DataHostName},
			{Name: "CPU", Data: DataItemValue, Item: "CPU utilization", DecimalPlaces: 2},
		},
		Column:    1,
		Order:     order,
		ShowLines: lines,
	}
}

func rowHosts(view *View) []string {
	var ids []string
	for _, r := range view.Rows {
		ids = append(ids, r.Context.HostID)
	}
	return ids
}

func TestRender_TopAndBottom(t *testing.T) {
	inv, hist := threeHosts()
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	view, err := svc.Render(context.Background(), cpuFields(OrderTopN, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, rowHosts(view))
	assert.Equal(t, "host-B", view.Rows[0].Columns[0].Value.Str)
	assert.Equal(t, "30", view.Rows[0].Columns[1].Display)
	assert.Equal(t, []string{"Host", "CPU"}, []string{view.Configuration[0].Header, view.Configuration[1].Header})

	view, err = svc.Render(context.Background(), cpuFields(OrderBottomN, 2))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C"}, rowHosts(view))
}

func TestRender_NoScopeIsNoData(t *testing.T) {
	inv, hist := threeHosts()
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	f := cpuFields(OrderTopN, 10)
	f.GroupIDs = nil

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.NotNil(t, view.Rows)
	assert.Empty(t, view.Rows)
	assert.Zero(t, inv.hostCalls)
}

func TestRender_NoMatchingItemsIsNoData(t *testing.T) {
	inv, hist := threeHosts()
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	f := cpuFields(OrderTopN, 10)
	f.Columns[1].Item = "Disk*"

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Empty(t, view.Rows)
}

func TestRender_HostsWithoutItemsAreDropped(t *testing.T) {
	inv, hist := threeHosts()
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	f := cpuFields(OrderTopN, 10)
	f.Column = 0

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, rowHosts(view), "D has no CPU item")
}

func TestRender_TextColumnKeepsHostsWithoutItems(t *testing.T) {
	inv, hist := threeHosts()
	texts := &fakeTexts{texts: map[string]map[string]string{
		"{INVENTORY.OS}": {"A": "Linux", "B": "Linux", "C": "", "D": "FreeBSD"},
	}}
	svc := newTestService(inv, hist, texts, Options{})

	f := cpuFields(OrderTopN, 10)
	f.Column = 0
	f.Columns = append(f.Columns, ColumnSpec{Name: "OS", Data: DataText, Text: "{INVENTORY.OS}"})

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, rowHosts(view))

	d := view.Rows[3]
	assert.Nil(t, d.Columns[1], "D has no CPU value")
	assert.Equal(t, "FreeBSD", d.Columns[2].Value.Str)
	assert.Nil(t, view.Rows[2].Columns[2], "empty text is an empty cell")
	assert.Equal(t, 1, texts.calls, "text columns resolve in one call")
}

func TestRender_TextOrderColumnDropsEmptyText(t *testing.T) {
	inv, hist := threeHosts()
	texts := &fakeTexts{texts: map[string]map[string]string{
		"{INVENTORY.OS}": {"A": "Linux", "B": "Debian", "C": "Alpine", "D": ""},
	}}
	svc := newTestService(inv, hist, texts, Options{})

	f := cpuFields(OrderTopN, 10)
	f.Columns = append(f.Columns, ColumnSpec{Name: "OS", Data: DataText, Text: "{INVENTORY.OS}"})
	f.Column = 2

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "B", "A"}, rowHosts(view))

	f.Order = OrderBottomN
	view, err = svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, rowHosts(view))
}

func TestRender_MixedValueTypesRankAsText(t *testing.T) {
	inv := &fakeInventory{
		hosts: []database.Host{host("A", "web"), host("B", "web"), host("C", "web")},
		items: []database.Item{
			item("a", "A", "Status", database.ValueTypeFloat),
			item("b", "B", "Status", database.ValueTypeFloat),
			item("c", "C", "Status", database.ValueTypeStr),
		},
	}
	hist := &fakeHistory{values: map[string]history.Value{
		"a": history.NumericValue(3),
		"b": history.NumericValue(-5),
		"c": history.TextValue("unknown"),
	}}
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	f := cpuFields(OrderTopN, 10)
	f.Columns[1].Item = "Status"

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, rowHosts(view), "text order, -5 before 3")

	// Counting is numeric whatever the item types.
	f.Columns[1].Aggregate = history.AggregateCount
	f.Columns[1].TimePeriod = history.TimePeriod{From: "now-1h", To: "now"}
	view, err = svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, rowHosts(view))
}

func TestRender_FirstItemWithDataWins(t *testing.T) {
	inv := &fakeInventory{
		hosts: []database.Host{host("A", "web")},
		items: []database.Item{
			item("a1", "A", "CPU user", database.ValueTypeFloat),
			item("a2", "A", "CPU system", database.ValueTypeFloat),
			item("a3", "A", "CPU idle", database.ValueTypeFloat),
		},
	}
	hist := &fakeHistory{values: map[string]history.Value{
		"a2": history.NumericValue(7),
		"a3": history.NumericValue(90),
	}}
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	f := cpuFields(OrderTopN, 10)
	f.Columns[1].Item = "CPU*"

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, view.Rows, 1)
	assert.Equal(t, "a2", view.Rows[0].Columns[1].Item.ID)
}

func TestRender_Maintenance(t *testing.T) {
	inv, hist := threeHosts()
	inv.hosts[1].MaintenanceStatus = database.MaintenanceStatusOn
	inv.hosts[1].MaintenanceID = "m1"
	inv.maintenances = map[string]database.Maintenance{"m1": {ID: "m1", Name: "Upgrade", Description: "OS upgrade"}}
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	f := cpuFields(OrderTopN, 10)
	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, rowHosts(view), "hosts in maintenance are hidden by default")

	f.Maintenance = true
	view, err = svc.Render(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "C", "A"}, rowHosts(view))
	assert.Equal(t, &MaintenanceInfo{Name: "Upgrade", Description: "OS upgrade"}, view.Rows[0].Columns[0].Maintenance)
}

func TestRender_OverrideHost(t *testing.T) {
	inv, hist := threeHosts()
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	f := cpuFields(OrderTopN, 10)
	f.GroupIDs = []string{"db"}
	f.OverrideHostID = "C"

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, rowHosts(view))
}

func TestRender_GaugeExtents(t *testing.T) {
	inv, hist := threeHosts()
	inv.items = append(inv.items,
		item("a-mem", "A", "Memory", database.ValueTypeUint64),
		item("b-mem", "B", "Memory", database.ValueTypeUint64),
		item("c-mem", "C", "Memory", database.ValueTypeUint64),
	)
	hist.values["a-mem"] = history.NumericValue(500)
	hist.values["b-mem"] = history.NumericValue(100)
	hist.values["c-mem"] = history.NumericValue(300)
	svc := newTestService(inv, hist, &fakeTexts{}, Options{Workers: 4})

	f := cpuFields(OrderTopN, 1)
	f.Columns[1].Display = DisplayBar
	f.Columns = append(f.Columns,
		ColumnSpec{Name: "Memory", Data: DataItemValue, Item: "Memory", Display: DisplayBar},
		ColumnSpec{Name: "Memory fixed", Data: DataItemValue, Item: "Memory", Display: DisplayIndicators, Min: "0", Max: "1K"},
	)

	view, err := svc.Render(context.Background(), f)
	require.NoError(t, err)
	require.Equal(t, []string{"B"}, rowHosts(view))

	assert.Nil(t, view.Configuration[0].Extents)
	assert.Equal(t, &Extents{Min: 10, Max: 30, MinBinary: 10, MaxBinary: 30}, view.Configuration[1].Extents, "order column bounds cover unranked hosts")
	assert.Equal(t, &Extents{Min: 100, Max: 500, MinBinary: 100, MaxBinary: 500}, view.Configuration[2].Extents, "open gauge reads every host in scope")
	assert.Equal(t, &Extents{Min: 0, Max: 1000, MinBinary: 0, MaxBinary: 1024}, view.Configuration[3].Extents)
	assert.Equal(t, "100", view.Rows[0].Columns[2].Display)
}

func TestRender_CollaboratorFailures(t *testing.T) {
	t.Run("history error fails the render", func(t *testing.T) {
		inv, hist := threeHosts()
		hist.errs = map[string]error{"b-cpu": errors.New("history unavailable")}
		svc := newTestService(inv, hist, &fakeTexts{}, Options{})

		_, err := svc.Render(context.Background(), cpuFields(OrderTopN, 10))
		assert.ErrorContains(t, err, "history unavailable")
	})

	t.Run("inventory error fails the render", func(t *testing.T) {
		inv, hist := threeHosts()
		inv.itemsErr = errors.New("inventory unavailable")
		svc := newTestService(inv, hist, &fakeTexts{}, Options{})

		_, err := svc.Render(context.Background(), cpuFields(OrderTopN, 10))
		assert.ErrorContains(t, err, "inventory unavailable")
	})

	t.Run("degraded column renders empty", func(t *testing.T) {
		inv, hist := threeHosts()
		inv.items = append(inv.items, item("a-disk", "A", "Disk", database.ValueTypeFloat))
		hist.errs = map[string]error{"a-disk": errors.New("history unavailable")}
		svc := newTestService(inv, hist, &fakeTexts{}, Options{DegradeColumnErrors: true, Workers: 2})

		f := cpuFields(OrderTopN, 10)
		f.Columns = append(f.Columns, ColumnSpec{Name: "Disk", Data: DataItemValue, Item: "Disk"})

		view, err := svc.Render(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C", "A"}, rowHosts(view))
		for _, row := range view.Rows {
			assert.Nil(t, row.Columns[2])
		}
	})

	t.Run("degraded text columns render empty", func(t *testing.T) {
		inv, hist := threeHosts()
		svc := newTestService(inv, hist, &fakeTexts{err: errors.New("macros unavailable")}, Options{DegradeColumnErrors: true})

		f := cpuFields(OrderTopN, 10)
		f.Columns = append(f.Columns, ColumnSpec{Name: "OS", Data: DataText, Text: "{INVENTORY.OS}"})

		view, err := svc.Render(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, []string{"B", "C", "A"}, rowHosts(view))
		assert.Nil(t, view.Rows[0].Columns[2])
	})
}

func TestRender_InvalidOrderColumn(t *testing.T) {
	inv, hist := threeHosts()
	svc := newTestService(inv, hist, &fakeTexts{}, Options{})

	f := cpuFields(OrderTopN, 10)
	f.Column = 5

	_, err := svc.Render(context.Background(), f)
	assert.Error(t, err)
}

func TestRender_Deterministic(t *testing.T) {
	inv, hist := threeHosts()
	inv.items = append(inv.items,
		item("a-mem", "A", "Memory", database.ValueTypeUint64),
		item("c-mem", "C", "Memory", database.ValueTypeUint64),
	)
	hist.values["a-mem"] = history.NumericValue(1)
	hist.values["c-mem"] = history.NumericValue(2)

	f := cpuFields(OrderTopN, 10)
	f.Columns = append(f.Columns,
		ColumnSpec{Name: "Memory", Data: DataItemValue, Item: "Memory"},
		ColumnSpec{Name: "Memory bar", Data: DataItemValue, Item: "Memory", Display: DisplayBar},
	)

	sequential, err := newTestService(inv, hist, &fakeTexts{}, Options{Workers: 1}).Render(context.Background(), f)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		parallel, err := newTestService(inv, hist, &fakeTexts{}, Options{Workers: 8}).Render(context.Background(), f)
		require.NoError(t, err)
		assert.Equal(t, sequential, parallel)
	}
}
