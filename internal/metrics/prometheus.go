// internal/metrics/prometheus.go
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tophosts/internal/database"
)

// Prometheus metrics
var (
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tophosts_render_duration_seconds",
			Help:    "Time spent rendering the Top Hosts widget",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "status"},
	)

	RenderTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tophosts_renders_total",
			Help: "Total number of widget renders",
		},
		[]string{"source", "status"},
	)

	RenderedRows = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tophosts_rendered_rows",
			Help:    "Rows per rendered widget",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	ActiveHosts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tophosts_hosts_total",
			Help: "Number of hosts in the inventory",
		},
	)

	ActiveItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tophosts_items_total",
			Help: "Number of items in the inventory",
		},
	)

	HostsInMaintenance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tophosts_hosts_in_maintenance",
			Help: "Number of hosts currently in maintenance",
		},
	)

	DatabaseOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tophosts_database_operations_total",
			Help: "Total database operations performed",
		},
		[]string{"operation", "status"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tophosts_websocket_connections_active",
			Help: "Number of active WebSocket subscribers",
		},
	)
)

type Collector struct {
	store database.Store
}

func NewCollector(store database.Store) *Collector {
	return &Collector{store: store}
}

// RecordRender records one render. source is "api" or "websocket".
func (c *Collector) RecordRender(source string, rows int, err error, duration time.Duration) {
	status := statusLabel(err)
	RenderDuration.WithLabelValues(source, status).Observe(duration.Seconds())
	RenderTotal.WithLabelValues(source, status).Inc()
	if err == nil {
		RenderedRows.Observe(float64(rows))
	}
}

func (c *Collector) RecordOperation(operation string, err error) {
	DatabaseOperations.WithLabelValues(operation, statusLabel(err)).Inc()
}

func (c *Collector) UpdateSystemMetrics(ctx context.Context) error {
	hosts, err := c.store.GetHosts(ctx, database.HostFilters{})
	c.RecordOperation("get_hosts", err)
	if err != nil {
		return err
	}

	inMaintenance := 0
	for _, host := range hosts {
		if host.MaintenanceStatus == database.MaintenanceStatusOn {
			inMaintenance++
		}
	}
	ActiveHosts.Set(float64(len(hosts)))
	HostsInMaintenance.Set(float64(inMaintenance))

	items, err := c.store.GetItems(ctx, database.ItemFilters{})
	c.RecordOperation("get_items", err)
	if err != nil {
		return err
	}
	ActiveItems.Set(float64(len(items)))

	return nil
}

func (c *Collector) RecordWebSocketConnection(delta int) {
	WebSocketConnections.Add(float64(delta))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
