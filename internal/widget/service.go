// internal/widget/service.go - Top Hosts render pipeline
package widget

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tophosts/internal/database"
)

// Options tune the render pipeline.
type Options struct {
	// Workers bounds concurrent column fetches. Zero or less means one.
	Workers int
	// DegradeColumnErrors renders a column whose fetch fails as empty
	// cells instead of failing the render.
	DegradeColumnErrors bool
	Now                 func() time.Time
}

type Service struct {
	inventory Inventory
	history   HistoryReader
	texts     TextResolver
	defaults  *Defaults
	opts      Options
}

func NewService(inventory Inventory, history HistoryReader, texts TextResolver, defaults *Defaults, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if defaults == nil {
		defaults = NewDefaults()
	}
	return &Service{
		inventory: inventory,
		history:   history,
		texts:     texts,
		defaults:  defaults,
		opts:      opts,
	}
}

func (s *Service) Defaults() *Defaults {
	return s.defaults
}

// ColumnView describes one column of a rendered table.
type ColumnView struct {
	Column     ColumnSpec       `json:"column"`
	Header     string           `json:"header"`
	Extents    *Extents         `json:"extents,omitempty"`
	Thresholds []ThresholdLevel `json:"thresholds,omitempty"`
}

// View is a rendered widget. Rows is empty when there is no data.
type View struct {
	Name          string       `json:"name"`
	Configuration []ColumnView `json:"configuration"`
	Rows          []Row        `json:"rows"`
	Error         string       `json:"error,omitempty"`
}

func newView(f Fields) *View {
	view := &View{
		Name:          f.Name,
		Configuration: make([]ColumnView, len(f.Columns)),
		Rows:          []Row{},
	}
	for i, c := range f.Columns {
		view.Configuration[i] = ColumnView{
			Column:     c,
			Header:     c.Header(),
			Thresholds: ThresholdLevels(c),
		}
	}
	return view
}

// ErrorView is shown in place of the table when a render fails.
func ErrorView(f Fields, err error) *View {
	view := newView(f)
	view.Error = err.Error()
	return view
}

// Render resolves the host scope, ranks hosts by the order column and
// builds the table rows. An empty scope is not an error. Any failed
// inventory, history or text query fails the whole render.
func (s *Service) Render(ctx context.Context, f Fields) (*View, error) {
	if f.Column < 0 || f.Column >= len(f.Columns) {
		return nil, fmt.Errorf("order column %d is not configured", f.Column)
	}

	now := s.opts.Now()
	view := newView(f)
	log := logrus.WithFields(logrus.Fields{
		"widget":       f.Name,
		"order_column": f.Column,
	})

	hosts, err := s.resolveHosts(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(hosts) == 0 {
		log.Debug("No hosts in scope")
		return view, nil
	}

	// Without text columns only hosts with matching items can show data.
	prefetched := make(map[int][]database.Item)
	if !hasTextColumn(f.Columns) {
		hostIDs := hostIDsOf(hosts)
		for i, c := range f.Columns {
			if c.Data != DataItemValue {
				continue
			}
			items, err := s.resolveItems(ctx, c, hostIDs)
			if err != nil {
				return nil, err
			}
			prefetched[i] = items
		}
		if len(prefetched) > 0 {
			hosts = narrowToItemHosts(hosts, prefetched)
		}
	}

	log = log.WithField("hosts", len(hosts))
	if len(hosts) == 0 {
		log.Debug("No hosts with matching items")
		return view, nil
	}
	hostIDs := hostIDsOf(hosts)

	master := f.Columns[f.Column]
	masterValues, numeric, err := s.masterValues(ctx, f.Column, master, hosts, prefetched, now)
	if err != nil {
		return nil, err
	}

	ranking := Rank(masterValues, f.Order, numeric, f.ShowLines)
	log.WithFields(logrus.Fields{
		"values":  len(masterValues),
		"ranked":  len(ranking.HostIDs),
		"numeric": numeric,
	}).Debug("Ranked hosts")

	if len(ranking.HostIDs) == 0 {
		return view, nil
	}

	values := make([]map[string]ColumnValue, len(f.Columns))
	values[f.Column] = byHost(masterValues)
	if isGauge(master) {
		extents := ComputeExtents(master, ranking.Bounds)
		view.Configuration[f.Column].Extents = &extents
	}

	if err := s.fetchColumns(ctx, f, hosts, hostIDs, ranking.HostIDs, prefetched, values, view, now); err != nil {
		return nil, err
	}

	hostsByID := make(map[string]*database.Host, len(hosts))
	var maintenanceIDs []string
	for i := range hosts {
		hostsByID[hosts[i].ID] = &hosts[i]
	}
	for _, id := range ranking.HostIDs {
		h := hostsByID[id]
		if h != nil && h.MaintenanceStatus == database.MaintenanceStatusOn && h.MaintenanceID != "" {
			maintenanceIDs = append(maintenanceIDs, h.MaintenanceID)
		}
	}

	maintenances := map[string]database.Maintenance{}
	if len(maintenanceIDs) > 0 {
		maintenances, err = s.inventory.GetMaintenances(ctx, maintenanceIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to get maintenances: %w", err)
		}
	}

	view.Rows = Assemble(ranking.HostIDs, f.Columns, values, hostsByID, maintenances)
	log.WithField("rows", len(view.Rows)).Debug("Rendered widget")
	return view, nil
}

// masterValues computes the order column's values over the whole scope and
// whether they rank numerically.
func (s *Service) masterValues(ctx context.Context, index int, c ColumnSpec, hosts []database.Host, prefetched map[int][]database.Item, now time.Time) ([]ColumnValue, bool, error) {
	switch c.Data {
	case DataItemValue:
		items, ok := prefetched[index]
		if !ok {
			var err error
			items, err = s.resolveItems(ctx, c, hostIDsOf(hosts))
			if err != nil {
				return nil, false, err
			}
		}
		values, err := s.itemValues(ctx, c, items, now)
		if err != nil {
			return nil, false, err
		}
		return values, isNumericColumn(c, items), nil

	case DataHostName:
		return hostNameValues(hosts), false, nil

	case DataText:
		hostIDs := hostIDsOf(hosts)
		resolved, err := s.texts.ResolveTextColumns(ctx, map[int]string{index: c.Text}, hostIDs)
		if err != nil {
			return nil, false, fmt.Errorf("failed to resolve text column: %w", err)
		}
		return textValues(resolved[index], hostIDs), false, nil
	}

	return nil, false, fmt.Errorf("unknown column data %d", c.Data)
}

// fetchColumns fills values for every column but the order column. Each
// item column writes its own slot; text columns are resolved in one call.
func (s *Service) fetchColumns(ctx context.Context, f Fields, hosts []database.Host, hostIDs, ranked []string, prefetched map[int][]database.Item, values []map[string]ColumnValue, view *View, now time.Time) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	templates := make(map[int]string)
	extents := make([]*Extents, len(f.Columns))

	for i, c := range f.Columns {
		if i == f.Column {
			continue
		}

		switch c.Data {
		case DataHostName:
			values[i] = byHost(hostNameValues(hosts))

		case DataText:
			templates[i] = c.Text

		case DataItemValue:
			i, c := i, c
			g.Go(func() error {
				// Gauges with an open bound need every host's value.
				scope := ranked
				if isGauge(c) && !c.HasBounds() {
					scope = hostIDs
				}

				var items []database.Item
				if pre, ok := prefetched[i]; ok {
					items = filterItemsByHost(pre, scope)
				} else {
					var err error
					if items, err = s.resolveItems(gctx, c, scope); err != nil {
						return s.columnFailed(i, c, values, err)
					}
				}

				columnValues, err := s.itemValues(gctx, c, items, now)
				if err != nil {
					return s.columnFailed(i, c, values, err)
				}

				values[i] = byHost(columnValues)
				if isGauge(c) {
					e := ComputeExtents(c, ObservedBounds(columnValues))
					extents[i] = &e
				}
				return nil
			})
		}
	}

	if len(templates) > 0 {
		g.Go(func() error {
			resolved, err := s.texts.ResolveTextColumns(gctx, templates, ranked)
			if err != nil {
				err = fmt.Errorf("failed to resolve text columns: %w", err)
				if !s.opts.DegradeColumnErrors {
					return err
				}
				logrus.WithError(err).Warn("Rendering text columns empty")
			}
			for i := range templates {
				values[i] = byHost(textValues(resolved[i], ranked))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for i, c := range f.Columns {
		if i == f.Column || !isGauge(c) {
			continue
		}
		if extents[i] == nil {
			e := ComputeExtents(c, Bounds{})
			extents[i] = &e
		}
		view.Configuration[i].Extents = extents[i]
	}
	return nil
}

func (s *Service) columnFailed(index int, c ColumnSpec, values []map[string]ColumnValue, err error) error {
	if !s.opts.DegradeColumnErrors {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"column": index,
		"item":   c.Item,
		"error":  err,
	}).Warn("Rendering column empty after fetch failure")
	values[index] = map[string]ColumnValue{}
	return nil
}

func hasTextColumn(columns []ColumnSpec) bool {
	for _, c := range columns {
		if c.Data == DataText {
			return true
		}
	}
	return false
}
