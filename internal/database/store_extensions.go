// internal/database/store_extensions.go - Extended store interface for housekeeping
package database

import (
	"context"
	"time"
)

// ExtendedStore extends the basic Store interface with housekeeping operations
type ExtendedStore interface {
	Store

	// Retention purging, per item
	DeleteHistoryBefore(ctx context.Context, itemID string, cutoff time.Time) (int, error)
	DeleteTrendsBefore(ctx context.Context, itemID string, cutoff time.Time) (int, error)

	// Rollup bookkeeping
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error

	// Data cleanup operations
	CompactDatabase(ctx context.Context) error
	GetDatabaseStats(ctx context.Context) (*DatabaseStats, error)
}

// DatabaseStats provides information about database size and health
type DatabaseStats struct {
	TotalHosts        int       `json:"total_hosts"`
	TotalItems        int       `json:"total_items"`
	TotalMaintenances int       `json:"total_maintenances"`
	TotalHistorySize  int       `json:"total_history_size"`
	TotalTrendsSize   int       `json:"total_trends_size"`
	DatabaseSize      int64     `json:"database_size_bytes"`
	OldestEntry       time.Time `json:"oldest_entry"`
	NewestEntry       time.Time `json:"newest_entry"`
}
