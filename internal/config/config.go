// internal/config/config.go - YAML configuration with include directory support
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"tophosts/internal/database"
	"tophosts/internal/history"
	"tophosts/internal/widget"
)

type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Database     DatabaseConfig      `yaml:"database"`
	Prometheus   PrometheusConfig    `yaml:"prometheus"`
	Logging      LoggingConfig       `yaml:"logging"`
	Widget       WidgetConfig        `yaml:"widget"`
	Include      IncludeConfig       `yaml:"include"`
	Hosts        []HostConfig        `yaml:"hosts"`
	Maintenances []MaintenanceConfig `yaml:"maintenances"`
}

type IncludeConfig struct {
	Directory string `yaml:"directory"`
	Pattern   string `yaml:"pattern"`
	Enabled   bool   `yaml:"enabled"`
}

type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Type             string        `yaml:"type"`
	Path             string        `yaml:"path"`
	CleanupInterval  time.Duration `yaml:"cleanup_interval"`
	RollupInterval   time.Duration `yaml:"rollup_interval"`
	CompactInterval  time.Duration `yaml:"compact_interval"`
	HistoryRetention time.Duration `yaml:"history_retention"`
	TrendsRetention  time.Duration `yaml:"trends_retention"`
}

type PrometheusConfig struct {
	Enabled     bool   `yaml:"enabled"`
	MetricsPath string `yaml:"metrics_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// WidgetConfig holds the Top Hosts defaults and render tuning.
type WidgetConfig struct {
	DefaultLines        int                `yaml:"default_lines"`
	MinLines            int                `yaml:"min_lines"`
	MaxLines            int                `yaml:"max_lines"`
	DecimalPlaces       int                `yaml:"decimal_places"`
	TimePeriod          history.TimePeriod `yaml:"time_period"`
	HistoryPeriod       time.Duration      `yaml:"history_period"`
	RefreshInterval     time.Duration      `yaml:"refresh_interval"`
	ParallelColumns     int                `yaml:"parallel_columns"`
	DegradeColumnErrors bool               `yaml:"degrade_column_errors"`
}

type HostConfig struct {
	ID        string            `yaml:"id"`
	Name      string            `yaml:"name"`
	Host      string            `yaml:"host"`
	IPv4      string            `yaml:"ipv4"`
	Groups    []string          `yaml:"groups"`
	Tags      []database.Tag    `yaml:"tags"`
	Inventory map[string]string `yaml:"inventory"`
	Macros    map[string]string `yaml:"macros"`
	Items     []ItemConfig      `yaml:"items"`
}

type ItemConfig struct {
	ID        string        `yaml:"id"`
	Name      string        `yaml:"name"`
	Key       string        `yaml:"key"`
	ValueType string        `yaml:"value_type"`
	Units     string        `yaml:"units"`
	History   time.Duration `yaml:"history"`
	Trends    time.Duration `yaml:"trends"`
}

type MaintenanceConfig struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Type        string   `yaml:"type"`
	Hosts       []string `yaml:"hosts"`
}

// PartialConfig represents a partial configuration that can be merged
type PartialConfig struct {
	Server       *ServerConfig       `yaml:"server,omitempty"`
	Database     *DatabaseConfig     `yaml:"database,omitempty"`
	Prometheus   *PrometheusConfig   `yaml:"prometheus,omitempty"`
	Logging      *LoggingConfig      `yaml:"logging,omitempty"`
	Widget       *WidgetConfig       `yaml:"widget,omitempty"`
	Hosts        []HostConfig        `yaml:"hosts,omitempty"`
	Maintenances []MaintenanceConfig `yaml:"maintenances,omitempty"`
}

func Load(filename string) (*Config, error) {
	// Load the main config file
	config, err := loadConfigFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config file: %w", err)
	}

	// Process includes if enabled
	if config.Include.Enabled && config.Include.Directory != "" {
		if err := loadIncludes(config, filepath.Dir(filename)); err != nil {
			return nil, fmt.Errorf("failed to load includes: %w", err)
		}
	}

	setDefaults(config)

	if err := validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadConfigFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

func loadIncludes(config *Config, baseDir string) error {
	includeDir := config.Include.Directory

	// Make include directory relative to main config file if not absolute
	if !filepath.IsAbs(includeDir) {
		includeDir = filepath.Join(baseDir, includeDir)
	}

	if _, err := os.Stat(includeDir); os.IsNotExist(err) {
		return fmt.Errorf("include directory does not exist: %s", includeDir)
	}

	pattern := config.Include.Pattern
	if pattern == "" {
		pattern = "*.yaml"
	}

	matches, err := filepath.Glob(filepath.Join(includeDir, pattern))
	if err != nil {
		return fmt.Errorf("failed to glob include pattern: %w", err)
	}

	// Also check for .yml files if pattern is default
	if pattern == "*.yaml" {
		ymlMatches, err := filepath.Glob(filepath.Join(includeDir, "*.yml"))
		if err != nil {
			return fmt.Errorf("failed to glob .yml files: %w", err)
		}
		matches = append(matches, ymlMatches...)
	}

	// Sort files for consistent ordering
	sort.Slice(matches, func(i, j int) bool {
		return filepath.Base(matches[i]) < filepath.Base(matches[j])
	})

	for _, match := range matches {
		if err := loadAndMergeInclude(config, match); err != nil {
			return fmt.Errorf("failed to load include file %s: %w", match, err)
		}
	}

	return nil
}

func loadAndMergeInclude(config *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read include file: %w", err)
	}

	var partial PartialConfig
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("failed to parse include file YAML: %w", err)
	}

	mergePartialConfig(config, &partial)
	return nil
}

func mergePartialConfig(config *Config, partial *PartialConfig) {
	if len(partial.Hosts) > 0 {
		mergeHosts(config, partial.Hosts)
	}
	if len(partial.Maintenances) > 0 {
		mergeMaintenances(config, partial.Maintenances)
	}

	// For other sections, only override if they exist in the partial config
	if partial.Server != nil {
		mergeServerConfig(&config.Server, partial.Server)
	}
	if partial.Database != nil {
		mergeDatabaseConfig(&config.Database, partial.Database)
	}
	if partial.Prometheus != nil {
		mergePrometheusConfig(&config.Prometheus, partial.Prometheus)
	}
	if partial.Logging != nil {
		mergeLoggingConfig(&config.Logging, partial.Logging)
	}
	if partial.Widget != nil {
		mergeWidgetConfig(&config.Widget, partial.Widget)
	}
}

// mergeHosts adds new hosts, replaces fully redefined ones and appends the
// items of partial definitions (only id and items) to the existing host.
func mergeHosts(config *Config, newHosts []HostConfig) {
	existing := make(map[string]int)
	for i := range config.Hosts {
		existing[config.Hosts[i].ID] = i
	}

	for _, newHost := range newHosts {
		i, exists := existing[newHost.ID]
		switch {
		case !exists:
			config.Hosts = append(config.Hosts, newHost)
			existing[newHost.ID] = len(config.Hosts) - 1
		case isPartialHostDefinition(newHost):
			config.Hosts[i].Items = appendItems(config.Hosts[i].Items, newHost.Items)
		default:
			config.Hosts[i] = newHost
		}
	}
}

func isPartialHostDefinition(host HostConfig) bool {
	return host.ID != "" &&
		len(host.Items) > 0 &&
		host.Name == "" &&
		host.Host == "" &&
		host.IPv4 == "" &&
		len(host.Groups) == 0 &&
		len(host.Tags) == 0 &&
		len(host.Inventory) == 0 &&
		len(host.Macros) == 0
}

func appendItems(items, newItems []ItemConfig) []ItemConfig {
	existing := make(map[string]int)
	for i := range items {
		existing[items[i].ID] = i
	}
	for _, item := range newItems {
		if i, ok := existing[item.ID]; ok && item.ID != "" {
			items[i] = item
			continue
		}
		items = append(items, item)
	}
	return items
}

// mergeMaintenances works like mergeHosts; a partial definition carries
// only id and hosts and extends the host list.
func mergeMaintenances(config *Config, newMaintenances []MaintenanceConfig) {
	existing := make(map[string]int)
	for i := range config.Maintenances {
		existing[config.Maintenances[i].ID] = i
	}

	for _, m := range newMaintenances {
		i, exists := existing[m.ID]
		switch {
		case !exists:
			config.Maintenances = append(config.Maintenances, m)
			existing[m.ID] = len(config.Maintenances) - 1
		case m.Name == "" && m.Description == "" && m.Type == "":
			for _, hostID := range m.Hosts {
				if !contains(config.Maintenances[i].Hosts, hostID) {
					config.Maintenances[i].Hosts = append(config.Maintenances[i].Hosts, hostID)
				}
			}
		default:
			config.Maintenances[i] = m
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func mergeServerConfig(main *ServerConfig, partial *ServerConfig) {
	if partial.Port != "" {
		main.Port = partial.Port
	}
	if partial.ReadTimeout != 0 {
		main.ReadTimeout = partial.ReadTimeout
	}
	if partial.WriteTimeout != 0 {
		main.WriteTimeout = partial.WriteTimeout
	}
}

func mergeDatabaseConfig(main *DatabaseConfig, partial *DatabaseConfig) {
	if partial.Type != "" {
		main.Type = partial.Type
	}
	if partial.Path != "" {
		main.Path = partial.Path
	}
	if partial.CleanupInterval != 0 {
		main.CleanupInterval = partial.CleanupInterval
	}
	if partial.RollupInterval != 0 {
		main.RollupInterval = partial.RollupInterval
	}
	if partial.CompactInterval != 0 {
		main.CompactInterval = partial.CompactInterval
	}
	if partial.HistoryRetention != 0 {
		main.HistoryRetention = partial.HistoryRetention
	}
	if partial.TrendsRetention != 0 {
		main.TrendsRetention = partial.TrendsRetention
	}
}

func mergePrometheusConfig(main *PrometheusConfig, partial *PrometheusConfig) {
	main.Enabled = partial.Enabled
	if partial.MetricsPath != "" {
		main.MetricsPath = partial.MetricsPath
	}
}

func mergeLoggingConfig(main *LoggingConfig, partial *LoggingConfig) {
	if partial.Level != "" {
		main.Level = partial.Level
	}
	if partial.Format != "" {
		main.Format = partial.Format
	}
}

func mergeWidgetConfig(main *WidgetConfig, partial *WidgetConfig) {
	if partial.DefaultLines != 0 {
		main.DefaultLines = partial.DefaultLines
	}
	if partial.MinLines != 0 {
		main.MinLines = partial.MinLines
	}
	if partial.MaxLines != 0 {
		main.MaxLines = partial.MaxLines
	}
	if partial.DecimalPlaces != 0 {
		main.DecimalPlaces = partial.DecimalPlaces
	}
	if partial.TimePeriod.From != "" {
		main.TimePeriod.From = partial.TimePeriod.From
	}
	if partial.TimePeriod.To != "" {
		main.TimePeriod.To = partial.TimePeriod.To
	}
	if partial.HistoryPeriod != 0 {
		main.HistoryPeriod = partial.HistoryPeriod
	}
	if partial.RefreshInterval != 0 {
		main.RefreshInterval = partial.RefreshInterval
	}
	if partial.ParallelColumns != 0 {
		main.ParallelColumns = partial.ParallelColumns
	}
	main.DegradeColumnErrors = partial.DegradeColumnErrors
}

func setDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8000"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15 * time.Second
	}

	// Database defaults
	if cfg.Database.Type == "" {
		cfg.Database.Type = "boltdb"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./data/tophosts.db"
	}
	if cfg.Database.CleanupInterval == 0 {
		cfg.Database.CleanupInterval = time.Hour
	}
	if cfg.Database.RollupInterval == 0 {
		cfg.Database.RollupInterval = 10 * time.Minute
	}
	if cfg.Database.HistoryRetention == 0 {
		cfg.Database.HistoryRetention = 7 * 24 * time.Hour
	}
	if cfg.Database.TrendsRetention == 0 {
		cfg.Database.TrendsRetention = 365 * 24 * time.Hour
	}

	// Include defaults
	if cfg.Include.Pattern == "" {
		cfg.Include.Pattern = "*.yaml"
	}

	// Prometheus defaults
	if cfg.Prometheus.MetricsPath == "" {
		cfg.Prometheus.MetricsPath = "/metrics"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	// Widget defaults
	if cfg.Widget.DefaultLines == 0 {
		cfg.Widget.DefaultLines = widget.DefaultShowLines
	}
	if cfg.Widget.MinLines == 0 {
		cfg.Widget.MinLines = widget.MinShowLines
	}
	if cfg.Widget.MaxLines == 0 {
		cfg.Widget.MaxLines = widget.MaxShowLines
	}
	if cfg.Widget.DecimalPlaces == 0 {
		cfg.Widget.DecimalPlaces = widget.DefaultDecimalPlaces
	}
	if cfg.Widget.TimePeriod.From == "" {
		cfg.Widget.TimePeriod.From = "now-1h"
	}
	if cfg.Widget.TimePeriod.To == "" {
		cfg.Widget.TimePeriod.To = "now"
	}
	if cfg.Widget.HistoryPeriod == 0 {
		cfg.Widget.HistoryPeriod = 24 * time.Hour
	}
	if cfg.Widget.RefreshInterval == 0 {
		cfg.Widget.RefreshInterval = time.Minute
	}
	if cfg.Widget.ParallelColumns == 0 {
		cfg.Widget.ParallelColumns = 4
	}

	for i := range cfg.Hosts {
		host := &cfg.Hosts[i]
		if host.Host == "" {
			host.Host = host.ID
		}
		if host.Name == "" {
			host.Name = host.Host
		}
		for j := range host.Items {
			item := &host.Items[j]
			if item.ID == "" {
				item.ID = host.ID + ":" + item.Key
			}
			if item.ValueType == "" {
				item.ValueType = "float"
			}
		}
	}

	for i := range cfg.Maintenances {
		if cfg.Maintenances[i].Type == "" {
			cfg.Maintenances[i].Type = "normal"
		}
	}
}

func validate(cfg *Config) error {
	if cfg.Database.Type != "boltdb" {
		return fmt.Errorf("only boltdb is supported currently")
	}

	if err := validateWidget(&cfg.Widget); err != nil {
		return err
	}

	// Validate include configuration
	if cfg.Include.Enabled {
		if cfg.Include.Directory == "" {
			return fmt.Errorf("include.directory must be specified when include.enabled is true")
		}
		if cfg.Include.Pattern != "" && !isValidGlobPattern(cfg.Include.Pattern) {
			return fmt.Errorf("include.pattern contains invalid glob pattern: %s", cfg.Include.Pattern)
		}
	}

	// Validate for duplicate host and item IDs
	hostIDs := make(map[string]bool)
	itemIDs := make(map[string]bool)
	for _, host := range cfg.Hosts {
		if host.ID == "" {
			return fmt.Errorf("host '%s' has no id", host.Name)
		}
		if hostIDs[host.ID] {
			return fmt.Errorf("duplicate host ID: %s", host.ID)
		}
		hostIDs[host.ID] = true

		for _, item := range host.Items {
			if item.Name == "" {
				return fmt.Errorf("host '%s' has an item without a name", host.ID)
			}
			if itemIDs[item.ID] {
				return fmt.Errorf("duplicate item ID: %s", item.ID)
			}
			itemIDs[item.ID] = true

			if _, ok := database.ParseValueType(item.ValueType); !ok {
				return fmt.Errorf("item '%s' has invalid value_type: %s", item.ID, item.ValueType)
			}
			if item.History < 0 || item.Trends < 0 {
				return fmt.Errorf("item '%s' has negative retention", item.ID)
			}
		}
	}

	for _, m := range cfg.Maintenances {
		if m.ID == "" {
			return fmt.Errorf("maintenance '%s' has no id", m.Name)
		}
		if _, ok := MaintenanceType(m.Type); !ok {
			return fmt.Errorf("maintenance '%s' has invalid type: %s", m.ID, m.Type)
		}
		for _, hostID := range m.Hosts {
			if !hostIDs[hostID] {
				return fmt.Errorf("maintenance '%s' references non-existent host: %s", m.ID, hostID)
			}
		}
	}

	return nil
}

func validateWidget(w *WidgetConfig) error {
	if w.MinLines < 1 {
		return fmt.Errorf("widget.min_lines must be at least 1")
	}
	if w.MaxLines < w.MinLines {
		return fmt.Errorf("widget.max_lines must not be below widget.min_lines")
	}
	if w.DefaultLines < w.MinLines || w.DefaultLines > w.MaxLines {
		return fmt.Errorf("widget.default_lines must be between %d and %d", w.MinLines, w.MaxLines)
	}
	if w.DecimalPlaces < 0 || w.DecimalPlaces > widget.MaxDecimalPlaces {
		return fmt.Errorf("widget.decimal_places must be between 0 and %d", widget.MaxDecimalPlaces)
	}
	if _, err := w.TimePeriod.Resolve(time.Now()); err != nil {
		return fmt.Errorf("widget.time_period: %w", err)
	}
	if w.ParallelColumns < 1 {
		return fmt.Errorf("widget.parallel_columns must be at least 1")
	}
	return nil
}

// Retention is the keep period of items without their own.
func (d DatabaseConfig) Retention() history.Retention {
	return history.Retention{History: d.HistoryRetention, Trends: d.TrendsRetention}
}

// Defaults builds the widget default table from the configuration.
func (w WidgetConfig) Defaults() *widget.Defaults {
	return &widget.Defaults{
		ShowLines:     w.DefaultLines,
		MinLines:      w.MinLines,
		MaxLines:      w.MaxLines,
		DecimalPlaces: w.DecimalPlaces,
		TimePeriod:    w.TimePeriod,
		HistoryPeriod: w.HistoryPeriod,
	}
}

// MaintenanceType maps "normal" / "nodata" to the stored maintenance type.
func MaintenanceType(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "normal", "":
		return database.MaintenanceTypeNormal, true
	case "nodata", "no_data":
		return database.MaintenanceTypeNoData, true
	}
	return 0, false
}

// isValidGlobPattern checks if a string is a valid glob pattern
func isValidGlobPattern(pattern string) bool {
	if strings.Contains(pattern, "/") || strings.Contains(pattern, "\\") {
		return false
	}
	_, err := filepath.Match(pattern, "test.yaml")
	return err == nil
}
