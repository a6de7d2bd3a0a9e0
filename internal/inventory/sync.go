// internal/inventory/sync.go - Sync configured hosts, items and maintenances into the store
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"tophosts/internal/config"
	"tophosts/internal/database"
)

type Syncer struct {
	store  database.Store
	config *config.Config
}

// Result counts what a sync run changed.
type Result struct {
	HostsCreated  int `json:"hosts_created"`
	HostsUpdated  int `json:"hosts_updated"`
	ItemsCreated  int `json:"items_created"`
	ItemsUpdated  int `json:"items_updated"`
	Maintenances  int `json:"maintenances"`
	InMaintenance int `json:"hosts_in_maintenance"`
	HostsPurged   int `json:"hosts_purged"`
	ItemsPurged   int `json:"items_purged"`
}

func NewSyncer(store database.Store, cfg *config.Config) *Syncer {
	return &Syncer{store: store, config: cfg}
}

// Sync creates or updates everything declared in the configuration. Hosts
// and items that only exist in the store are left alone; see PurgeOrphans.
func (s *Syncer) Sync(ctx context.Context) (*Result, error) {
	result := &Result{}
	var errs []string

	maintenanceOf, err := s.syncMaintenances(ctx, result)
	if err != nil {
		return result, err
	}

	for _, hostCfg := range s.config.Hosts {
		if err := s.syncHost(ctx, hostCfg, maintenanceOf[hostCfg.ID], result); err != nil {
			logrus.WithError(err).WithField("host", hostCfg.ID).Error("Failed to sync host")
			errs = append(errs, err.Error())
			continue
		}

		for _, itemCfg := range hostCfg.Items {
			if err := s.syncItem(ctx, hostCfg.ID, itemCfg, result); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"host": hostCfg.ID,
					"item": itemCfg.ID,
				}).Error("Failed to sync item")
				errs = append(errs, err.Error())
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"hosts_created":  result.HostsCreated,
		"hosts_updated":  result.HostsUpdated,
		"items_created":  result.ItemsCreated,
		"items_updated":  result.ItemsUpdated,
		"in_maintenance": result.InMaintenance,
	}).Info("Inventory sync completed")

	if len(errs) > 0 {
		return result, fmt.Errorf("sync completed with errors: %s", strings.Join(errs, "; "))
	}
	return result, nil
}

func (s *Syncer) syncMaintenances(ctx context.Context, result *Result) (map[string]database.Maintenance, error) {
	maintenanceOf := make(map[string]database.Maintenance)

	for _, mCfg := range s.config.Maintenances {
		typ, ok := config.MaintenanceType(mCfg.Type)
		if !ok {
			return nil, fmt.Errorf("maintenance %s: invalid type %q", mCfg.ID, mCfg.Type)
		}
		m := database.Maintenance{
			ID:          mCfg.ID,
			Name:        mCfg.Name,
			Description: mCfg.Description,
			Type:        typ,
		}
		if err := s.store.SaveMaintenance(ctx, &m); err != nil {
			return nil, fmt.Errorf("failed to save maintenance %s: %w", m.ID, err)
		}
		result.Maintenances++

		// A host listed by several maintenances reports the first one.
		for _, hostID := range mCfg.Hosts {
			if _, exists := maintenanceOf[hostID]; !exists {
				maintenanceOf[hostID] = m
			}
		}
	}

	return maintenanceOf, nil
}

func (s *Syncer) syncHost(ctx context.Context, hostCfg config.HostConfig, m database.Maintenance, result *Result) error {
	host := &database.Host{
		ID:        hostCfg.ID,
		Name:      hostCfg.Name,
		Host:      hostCfg.Host,
		IPv4:      hostCfg.IPv4,
		Groups:    hostCfg.Groups,
		Tags:      hostCfg.Tags,
		Inventory: hostCfg.Inventory,
		Macros:    hostCfg.Macros,
	}
	if m.ID != "" {
		host.MaintenanceStatus = database.MaintenanceStatusOn
		host.MaintenanceID = m.ID
		host.MaintenanceType = m.Type
		result.InMaintenance++
	}

	existing, err := s.store.GetHost(ctx, host.ID)
	if errors.Is(err, database.ErrNotFound) {
		if err := s.store.CreateHost(ctx, host); err != nil {
			return fmt.Errorf("failed to create host %s: %w", host.ID, err)
		}
		logrus.WithField("host", host.Name).Info("Created host")
		result.HostsCreated++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get host %s: %w", host.ID, err)
	}

	host.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateHost(ctx, host); err != nil {
		return fmt.Errorf("failed to update host %s: %w", host.ID, err)
	}
	result.HostsUpdated++
	return nil
}

func (s *Syncer) syncItem(ctx context.Context, hostID string, itemCfg config.ItemConfig, result *Result) error {
	valueType, ok := database.ParseValueType(itemCfg.ValueType)
	if !ok {
		return fmt.Errorf("item %s: invalid value type %q", itemCfg.ID, itemCfg.ValueType)
	}

	item := &database.Item{
		ID:        itemCfg.ID,
		HostID:    hostID,
		Name:      itemCfg.Name,
		Key:       itemCfg.Key,
		ValueType: valueType,
		Units:     itemCfg.Units,
		History:   itemCfg.History,
		Trends:    itemCfg.Trends,
	}

	existing, err := s.store.GetItem(ctx, item.ID)
	if errors.Is(err, database.ErrNotFound) {
		if err := s.store.CreateItem(ctx, item); err != nil {
			return fmt.Errorf("failed to create item %s: %w", item.ID, err)
		}
		result.ItemsCreated++
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get item %s: %w", item.ID, err)
	}

	item.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return fmt.Errorf("failed to update item %s: %w", item.ID, err)
	}
	result.ItemsUpdated++
	return nil
}

// PurgeOrphans removes hosts missing from the configuration, and items of
// configured hosts that the configuration no longer declares.
func (s *Syncer) PurgeOrphans(ctx context.Context, result *Result) error {
	logrus.Debug("Checking for orphaned hosts and items in database")

	configHosts := make(map[string]bool)
	configItems := make(map[string]bool)
	for _, host := range s.config.Hosts {
		configHosts[host.ID] = true
		for _, item := range host.Items {
			configItems[item.ID] = true
		}
	}

	dbHosts, err := s.store.GetHosts(ctx, database.HostFilters{})
	if err != nil {
		return fmt.Errorf("failed to get database hosts: %w", err)
	}
	for _, dbHost := range dbHosts {
		if configHosts[dbHost.ID] {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"host_id":   dbHost.ID,
			"host_name": dbHost.Name,
		}).Info("Purging orphaned host from database")
		if err := s.store.DeleteHost(ctx, dbHost.ID); err != nil {
			logrus.WithError(err).WithField("host_id", dbHost.ID).Error("Failed to delete orphaned host")
			continue
		}
		result.HostsPurged++
	}

	if len(configHosts) == 0 {
		return nil
	}
	hostIDs := make([]string, 0, len(configHosts))
	for id := range configHosts {
		hostIDs = append(hostIDs, id)
	}
	dbItems, err := s.store.GetItems(ctx, database.ItemFilters{HostIDs: hostIDs})
	if err != nil {
		return fmt.Errorf("failed to get database items: %w", err)
	}
	for _, dbItem := range dbItems {
		if configItems[dbItem.ID] {
			continue
		}
		if err := s.store.DeleteItem(ctx, dbItem.ID); err != nil {
			logrus.WithError(err).WithField("item_id", dbItem.ID).Error("Failed to delete orphaned item")
			continue
		}
		result.ItemsPurged++
	}

	if result.HostsPurged > 0 || result.ItemsPurged > 0 {
		logrus.WithFields(logrus.Fields{
			"purged_hosts": result.HostsPurged,
			"purged_items": result.ItemsPurged,
		}).Info("Orphan purge completed")
	}
	return nil
}
