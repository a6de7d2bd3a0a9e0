// internal/database/boltstore.go - BoltDB implementation of the inventory and history store
package database

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

var (
	HostsBucket        = []byte("hosts")
	ItemsBucket        = []byte("items")
	MaintenancesBucket = []byte("maintenances")
	HistoryBucket      = []byte("history")
	TrendsBucket       = []byte("trends")
	MetaBucket         = []byte("meta")
)

var allBuckets = [][]byte{HostsBucket, ItemsBucket, MaintenancesBucket, HistoryBucket, TrendsBucket, MetaBucket}

type BoltStore struct {
	db   *bbolt.DB
	path string
}

func NewBoltStore(path string) (*BoltStore, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open BoltDB: %w", err)
	}

	store := &BoltStore{db: db, path: path}

	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return store, nil
}

func (s *BoltStore) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

var (
	minClock = time.Unix(0, math.MinInt64)
	maxClock = time.Unix(0, math.MaxInt64)
)

// seriesKey orders samples of one item by time under a cursor scan. Item
// ids may contain ':' so the id is terminated by a NUL byte. The clock is
// big-endian with the sign bit flipped, so clocks before 1970 sort first.
func seriesKey(itemID string, clock time.Time) []byte {
	if clock.Before(minClock) {
		clock = minClock
	} else if clock.After(maxClock) {
		clock = maxClock
	}
	key := make([]byte, len(itemID)+1, len(itemID)+9)
	copy(key, itemID)
	return binary.BigEndian.AppendUint64(key, uint64(clock.UnixNano())^(1<<63))
}

func seriesPrefix(itemID string) []byte {
	return []byte(itemID + "\x00")
}

func (s *BoltStore) GetHosts(ctx context.Context, filters HostFilters) ([]Host, error) {
	var hosts []Host

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(HostsBucket)
		return b.ForEach(func(k, v []byte) error {
			var host Host
			if err := json.Unmarshal(v, &host); err != nil {
				return fmt.Errorf("failed to unmarshal host %s: %w", k, err)
			}

			if !filters.matches(&host) {
				return nil
			}

			hosts = append(hosts, host)
			return nil
		})
	})

	return hosts, err
}

func (s *BoltStore) GetHost(ctx context.Context, id string) (*Host, error) {
	var host Host

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(HostsBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("host %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(v, &host)
	})

	if err != nil {
		return nil, err
	}
	return &host, nil
}

func (s *BoltStore) CreateHost(ctx context.Context, host *Host) error {
	if host.ID == "" {
		host.ID = uuid.New().String()
	}
	host.CreatedAt = time.Now()
	host.UpdatedAt = time.Now()

	return s.put(HostsBucket, host.ID, host)
}

func (s *BoltStore) UpdateHost(ctx context.Context, host *Host) error {
	host.UpdatedAt = time.Now()
	return s.put(HostsBucket, host.ID, host)
}

// DeleteHost removes the host together with its items and their samples.
func (s *BoltStore) DeleteHost(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		items := tx.Bucket(ItemsBucket)

		var itemIDs [][]byte
		err := items.ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return nil
			}
			if item.HostID == id {
				itemIDs = append(itemIDs, copyBytes(k))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, itemID := range itemIDs {
			if err := deleteItemTx(tx, string(itemID)); err != nil {
				return err
			}
		}

		return tx.Bucket(HostsBucket).Delete([]byte(id))
	})
}

func (s *BoltStore) GetItems(ctx context.Context, filters ItemFilters) ([]Item, error) {
	var items []Item

	var pattern *NamePattern
	if filters.Name != "" {
		pattern = CompileNamePattern(filters.Name)
	}

	err := s.db.View(func(tx *bbolt.Tx) error {
		hostGroups := make(map[string][]string)
		if len(filters.GroupIDs) > 0 {
			err := tx.Bucket(HostsBucket).ForEach(func(k, v []byte) error {
				var host Host
				if err := json.Unmarshal(v, &host); err != nil {
					return fmt.Errorf("failed to unmarshal host %s: %w", k, err)
				}
				hostGroups[host.ID] = host.Groups
				return nil
			})
			if err != nil {
				return err
			}
		}

		return tx.Bucket(ItemsBucket).ForEach(func(k, v []byte) error {
			var item Item
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("failed to unmarshal item %s: %w", k, err)
			}

			if !filters.matches(&item, pattern, hostGroups) {
				return nil
			}

			items = append(items, item)
			return nil
		})
	})

	return items, err
}

func (s *BoltStore) GetItem(ctx context.Context, id string) (*Item, error) {
	var item Item

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(ItemsBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(v, &item)
	})

	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *BoltStore) CreateItem(ctx context.Context, item *Item) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	item.CreatedAt = time.Now()
	item.UpdatedAt = time.Now()

	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(HostsBucket).Get([]byte(item.HostID)) == nil {
			return fmt.Errorf("host %s: %w", item.HostID, ErrNotFound)
		}
		return putJSON(tx.Bucket(ItemsBucket), item.ID, item)
	})
}

func (s *BoltStore) UpdateItem(ctx context.Context, item *Item) error {
	item.UpdatedAt = time.Now()
	return s.put(ItemsBucket, item.ID, item)
}

func (s *BoltStore) DeleteItem(ctx context.Context, id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return deleteItemTx(tx, id)
	})
}

func deleteItemTx(tx *bbolt.Tx, id string) error {
	for _, bucket := range [][]byte{HistoryBucket, TrendsBucket} {
		if _, err := deletePrefix(tx.Bucket(bucket), seriesPrefix(id), nil); err != nil {
			return err
		}
	}
	return tx.Bucket(ItemsBucket).Delete([]byte(id))
}

func (s *BoltStore) GetMaintenances(ctx context.Context, ids []string) (map[string]Maintenance, error) {
	maintenances := make(map[string]Maintenance, len(ids))

	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(MaintenancesBucket)
		for _, id := range ids {
			v := b.Get([]byte(id))
			if v == nil {
				continue
			}
			var m Maintenance
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("failed to unmarshal maintenance %s: %w", id, err)
			}
			maintenances[id] = m
		}
		return nil
	})

	return maintenances, err
}

func (s *BoltStore) ListMaintenances(ctx context.Context) ([]Maintenance, error) {
	var maintenances []Maintenance

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(MaintenancesBucket).ForEach(func(k, v []byte) error {
			var m Maintenance
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("failed to unmarshal maintenance %s: %w", k, err)
			}
			maintenances = append(maintenances, m)
			return nil
		})
	})

	return maintenances, err
}

func (s *BoltStore) SaveMaintenance(ctx context.Context, maintenance *Maintenance) error {
	if maintenance.ID == "" {
		maintenance.ID = uuid.New().String()
	}
	return s.put(MaintenancesBucket, maintenance.ID, maintenance)
}

func (s *BoltStore) AddHistory(ctx context.Context, values []HistoryValue) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(HistoryBucket)
		for i := range values {
			data, err := json.Marshal(&values[i])
			if err != nil {
				return fmt.Errorf("failed to marshal history value: %w", err)
			}
			if err := b.Put(seriesKey(values[i].ItemID, values[i].Clock), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetHistory returns samples with from <= clock <= to, oldest first.
func (s *BoltStore) GetHistory(ctx context.Context, itemID string, from, to time.Time) ([]HistoryValue, error) {
	var values []HistoryValue

	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanRange(tx.Bucket(HistoryBucket), itemID, from, to, func(v []byte) error {
			var hv HistoryValue
			if err := json.Unmarshal(v, &hv); err != nil {
				return nil // Skip malformed entries
			}
			values = append(values, hv)
			return nil
		})
	})

	return values, err
}

func (s *BoltStore) SaveTrends(ctx context.Context, trends []Trend) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(TrendsBucket)
		for i := range trends {
			data, err := json.Marshal(&trends[i])
			if err != nil {
				return fmt.Errorf("failed to marshal trend: %w", err)
			}
			if err := b.Put(seriesKey(trends[i].ItemID, trends[i].Clock), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetTrends returns hourly rollups whose hour starts within [from, to].
func (s *BoltStore) GetTrends(ctx context.Context, itemID string, from, to time.Time) ([]Trend, error) {
	var trends []Trend

	err := s.db.View(func(tx *bbolt.Tx) error {
		return scanRange(tx.Bucket(TrendsBucket), itemID, from, to, func(v []byte) error {
			var t Trend
			if err := json.Unmarshal(v, &t); err != nil {
				return nil // Skip malformed entries
			}
			trends = append(trends, t)
			return nil
		})
	})

	return trends, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) put(bucket []byte, id string, value interface{}) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx.Bucket(bucket), id, value)
	})
}

func putJSON(b *bbolt.Bucket, id string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}
	return b.Put([]byte(id), data)
}

func scanRange(b *bbolt.Bucket, itemID string, from, to time.Time, fn func(v []byte) error) error {
	start := seriesKey(itemID, from)
	end := seriesKey(itemID, to)

	c := b.Cursor()
	for k, v := c.Seek(start); k != nil && bytes.Compare(k, end) <= 0; k, v = c.Next() {
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// deletePrefix removes keys under prefix that sort before stop (all keys when stop is nil).
func deletePrefix(b *bbolt.Bucket, prefix, stop []byte) (int, error) {
	var keysToDelete [][]byte

	c := b.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		if stop != nil && bytes.Compare(k, stop) >= 0 {
			break
		}
		keysToDelete = append(keysToDelete, copyBytes(k))
	}

	for _, key := range keysToDelete {
		if err := b.Delete(key); err != nil {
			return 0, err
		}
	}
	return len(keysToDelete), nil
}
