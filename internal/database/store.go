// internal/database/store.go
package database

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// Store defines the interface for inventory and history operations
type Store interface {
	// Host operations
	GetHosts(ctx context.Context, filters HostFilters) ([]Host, error)
	GetHost(ctx context.Context, id string) (*Host, error)
	CreateHost(ctx context.Context, host *Host) error
	UpdateHost(ctx context.Context, host *Host) error
	DeleteHost(ctx context.Context, id string) error

	// Item operations
	GetItems(ctx context.Context, filters ItemFilters) ([]Item, error)
	GetItem(ctx context.Context, id string) (*Item, error)
	CreateItem(ctx context.Context, item *Item) error
	UpdateItem(ctx context.Context, item *Item) error
	DeleteItem(ctx context.Context, id string) error

	// Maintenance operations
	GetMaintenances(ctx context.Context, ids []string) (map[string]Maintenance, error)
	ListMaintenances(ctx context.Context) ([]Maintenance, error)
	SaveMaintenance(ctx context.Context, maintenance *Maintenance) error

	// History and trend operations
	AddHistory(ctx context.Context, values []HistoryValue) error
	GetHistory(ctx context.Context, itemID string, from, to time.Time) ([]HistoryValue, error)
	SaveTrends(ctx context.Context, trends []Trend) error
	GetTrends(ctx context.Context, itemID string, from, to time.Time) ([]Trend, error)

	// Close the database connection
	Close() error
}
