// cmd/tophosts-seed/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tophosts/internal/config"
	"tophosts/internal/database"
	"tophosts/internal/housekeeping"
	"tophosts/internal/inventory"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file whose inventory is seeded")
		example    = flag.String("example", "", "Write an example inventory configuration to this file and exit")
		hostCount  = flag.Int("hosts", 5, "Number of hosts in the example configuration")
		group      = flag.String("group", "linux", "Group of the example hosts")
		window     = flag.Duration("window", 6*time.Hour, "How far back synthetic history reaches")
		interval   = flag.Duration("interval", time.Minute, "Spacing of synthetic samples")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
		rollup     = flag.Bool("rollup", true, "Roll the generated history up into trends")
	)
	flag.Parse()

	if *example != "" {
		if *group == "" {
			log.Fatal("-group cannot be empty")
		}
		cfg := exampleConfig(*hostCount, *group)
		if err := writeConfig(cfg, *example); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		fmt.Printf("Example configuration with %d hosts written to: %s\n", len(cfg.Hosts), *example)
		return
	}

	if *interval <= 0 || *window <= 0 {
		log.Fatal("-window and -interval must be positive")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := database.NewBoltStore(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	ctx := context.Background()

	result, err := inventory.NewSyncer(store, cfg).Sync(ctx)
	if err != nil {
		log.Fatalf("Failed to sync inventory: %v", err)
	}
	fmt.Printf("Synced inventory: %d hosts created, %d updated, %d items created, %d updated\n",
		result.HostsCreated, result.HostsUpdated, result.ItemsCreated, result.ItemsUpdated)

	items, err := store.GetItems(ctx, database.ItemFilters{})
	if err != nil {
		log.Fatalf("Failed to list items: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	end := time.Now()
	start := end.Add(-*window)
	samples := 0

	for _, item := range items {
		values := synthesize(rng, item, start, end, *interval)
		if len(values) == 0 {
			continue
		}
		if err := store.AddHistory(ctx, values); err != nil {
			log.Fatalf("Failed to write history of %s: %v", item.ID, err)
		}
		samples += len(values)
	}
	fmt.Printf("Generated %d samples for %d items over %s\n", samples, len(items), *window)

	if *rollup {
		hk := housekeeping.NewHousekeeper(store, cfg.Database, nil)
		trends, err := hk.RollupTrends(ctx)
		if err != nil {
			log.Fatalf("Failed to roll up trends: %v", err)
		}
		fmt.Printf("Rolled up %d hourly trends\n", trends)
	}
}

// synthesize produces a random walk for numeric items and a slowly
// changing label for text items. Binary items get no history.
func synthesize(rng *rand.Rand, item database.Item, start, end time.Time, interval time.Duration) []database.HistoryValue {
	var values []database.HistoryValue

	switch {
	case item.ValueType.IsNumeric():
		lo, hi := rangeFor(item)
		current := lo + rng.Float64()*(hi-lo)
		for clock := start; !clock.After(end); clock = clock.Add(interval) {
			current += (rng.Float64() - 0.5) * (hi - lo) / 20
			current = math.Max(lo, math.Min(hi, current))
			num := current
			if item.ValueType == database.ValueTypeUint64 {
				num = math.Round(num)
			}
			values = append(values, database.HistoryValue{ItemID: item.ID, Clock: clock, Num: num})
		}

	case item.ValueType == database.ValueTypeBinary:
		return nil

	default:
		labels := []string{"ok", "degraded", "ok", "ok"}
		if strings.Contains(strings.ToLower(item.Key), "os") {
			labels = []string{"Linux 6.1", "Linux 6.6", "FreeBSD 14.0"}
		}
		label := labels[rng.Intn(len(labels))]
		for clock := start; !clock.After(end); clock = clock.Add(interval * 10) {
			if rng.Intn(10) == 0 {
				label = labels[rng.Intn(len(labels))]
			}
			values = append(values, database.HistoryValue{ItemID: item.ID, Clock: clock, Str: label})
		}
	}

	return values
}

func rangeFor(item database.Item) (float64, float64) {
	switch item.Units {
	case "%":
		return 0, 100
	case "B":
		return 256 << 20, 64 << 30
	case "bps":
		return 1e3, 1e9
	default:
		return 0, 1000
	}
}

func exampleConfig(count int, group string) *config.PartialConfig {
	cfg := &config.PartialConfig{
		Server: &config.ServerConfig{
			Port:         ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: &config.DatabaseConfig{
			Type:             "boltdb",
			Path:             "./data/tophosts.db",
			CleanupInterval:  time.Hour,
			RollupInterval:   10 * time.Minute,
			HistoryRetention: 7 * 24 * time.Hour,
			TrendsRetention:  365 * 24 * time.Hour,
		},
		Prometheus: &config.PrometheusConfig{
			Enabled:     true,
			MetricsPath: "/metrics",
		},
		Logging: &config.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Widget: &config.WidgetConfig{
			DefaultLines:    10,
			MinLines:        1,
			MaxLines:        100,
			DecimalPlaces:   2,
			RefreshInterval: time.Minute,
			ParallelColumns: 4,
		},
	}
	cfg.Widget.TimePeriod.From = "now-1h"
	cfg.Widget.TimePeriod.To = "now"

	for i := 1; i <= count; i++ {
		id := fmt.Sprintf("%s-%02d", group, i)
		cfg.Hosts = append(cfg.Hosts, config.HostConfig{
			ID:     id,
			Name:   strings.ToUpper(group[:1]) + group[1:] + fmt.Sprintf(" server %02d", i),
			Host:   id,
			IPv4:   fmt.Sprintf("10.0.0.%d", 10+i),
			Groups: []string{group},
			Tags: []database.Tag{
				{Tag: "env", Value: []string{"prod", "staging"}[i%2]},
			},
			Inventory: map[string]string{"os": "Linux", "location": fmt.Sprintf("rack-%d", 1+i/4)},
			Macros:    map[string]string{"{$ROLE}": "app"},
			Items: []config.ItemConfig{
				{ID: id + "-cpu", Name: "CPU utilization", Key: "system.cpu.util", ValueType: "float", Units: "%"},
				{ID: id + "-mem", Name: "Used memory", Key: "vm.memory.size[used]", ValueType: "uint64", Units: "B"},
				{ID: id + "-net", Name: "Incoming traffic", Key: "net.if.in[eth0]", ValueType: "uint64", Units: "bps"},
				{ID: id + "-os", Name: "Operating system", Key: "system.sw.os", ValueType: "str"},
			},
		})
	}

	if count > 0 {
		cfg.Maintenances = []config.MaintenanceConfig{{
			ID:          "patching",
			Name:        "Kernel patching",
			Description: "Rolling kernel upgrade",
			Type:        "normal",
			Hosts:       []string{cfg.Hosts[0].ID},
		}}
	}

	return cfg
}

func writeConfig(cfg *config.PartialConfig, filename string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal YAML: %w", err)
	}

	header := fmt.Sprintf("# Top Hosts configuration\n# Generated by tophosts-seed on %s\n# Contains %d hosts\n\n",
		time.Now().Format("2006-01-02 15:04:05"),
		len(cfg.Hosts))

	if err := os.WriteFile(filename, append([]byte(header), data...), 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
