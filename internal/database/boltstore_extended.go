// Housekeeping capabilities of the BoltDB store
// internal/database/boltstore_extended.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

var _ ExtendedStore = (*BoltStore)(nil)

// DeleteHistoryBefore removes an item's history samples older than cutoff
func (s *BoltStore) DeleteHistoryBefore(ctx context.Context, itemID string, cutoff time.Time) (int, error) {
	return s.deleteSeriesBefore(HistoryBucket, itemID, cutoff)
}

// DeleteTrendsBefore removes an item's hourly rollups older than cutoff
func (s *BoltStore) DeleteTrendsBefore(ctx context.Context, itemID string, cutoff time.Time) (int, error) {
	return s.deleteSeriesBefore(TrendsBucket, itemID, cutoff)
}

func (s *BoltStore) deleteSeriesBefore(bucket []byte, itemID string, cutoff time.Time) (int, error) {
	deletedCount := 0

	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		deletedCount, err = deletePrefix(tx.Bucket(bucket), seriesPrefix(itemID), seriesKey(itemID, cutoff))
		return err
	})

	if err != nil {
		return 0, fmt.Errorf("failed to delete old %s: %w", bucket, err)
	}

	if deletedCount > 0 {
		logrus.WithFields(logrus.Fields{
			"bucket":        string(bucket),
			"item_id":       itemID,
			"deleted_count": deletedCount,
			"cutoff_time":   cutoff,
		}).Debug("Deleted expired samples")
	}

	return deletedCount, nil
}

func (s *BoltStore) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.View(func(tx *bbolt.Tx) error {
		value = string(tx.Bucket(MetaBucket).Get([]byte(key)))
		return nil
	})
	return value, err
}

func (s *BoltStore) SetMeta(ctx context.Context, key, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(MetaBucket).Put([]byte(key), []byte(value))
	})
}

// GetDatabaseStats returns information about database size and health
func (s *BoltStore) GetDatabaseStats(ctx context.Context) (*DatabaseStats, error) {
	stats := &DatabaseStats{}

	err := s.db.View(func(tx *bbolt.Tx) error {
		stats.TotalHosts = tx.Bucket(HostsBucket).Stats().KeyN
		stats.TotalItems = tx.Bucket(ItemsBucket).Stats().KeyN
		stats.TotalMaintenances = tx.Bucket(MaintenancesBucket).Stats().KeyN
		stats.TotalTrendsSize = tx.Bucket(TrendsBucket).Stats().KeyN

		historyBucket := tx.Bucket(HistoryBucket)
		stats.TotalHistorySize = historyBucket.Stats().KeyN

		// Keys are grouped by item, so the oldest and newest sample need a full scan
		return historyBucket.ForEach(func(k, v []byte) error {
			var hv HistoryValue
			if err := json.Unmarshal(v, &hv); err != nil {
				return nil
			}
			if stats.OldestEntry.IsZero() || hv.Clock.Before(stats.OldestEntry) {
				stats.OldestEntry = hv.Clock
			}
			if hv.Clock.After(stats.NewestEntry) {
				stats.NewestEntry = hv.Clock
			}
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get database stats: %w", err)
	}

	// Get file size
	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.DatabaseSize = fileInfo.Size()
	}

	return stats, nil
}

// CompactDatabase rewrites the database into a fresh file and swaps it in
func (s *BoltStore) CompactDatabase(ctx context.Context) error {
	logrus.Info("Starting database compaction")

	compactPath := s.path + ".compact.tmp"

	newDB, err := bbolt.Open(compactPath, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create compact database: %w", err)
	}

	defer func() {
		newDB.Close()
		os.Remove(compactPath) // Clean up on error
	}()

	// Copy data from old to new database
	err = s.db.View(func(oldTx *bbolt.Tx) error {
		return newDB.Update(func(newTx *bbolt.Tx) error {
			for _, bucketName := range allBuckets {
				newBucket, err := newTx.CreateBucket(bucketName)
				if err != nil {
					return fmt.Errorf("failed to create bucket %s: %w", bucketName, err)
				}

				oldBucket := oldTx.Bucket(bucketName)
				if oldBucket == nil {
					continue
				}

				cursor := oldBucket.Cursor()
				for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
					if err := newBucket.Put(copyBytes(k), copyBytes(v)); err != nil {
						return fmt.Errorf("failed to copy data: %w", err)
					}
				}
			}

			return nil
		})
	})

	if err != nil {
		return fmt.Errorf("failed to copy data to compact database: %w", err)
	}

	newDB.Close()
	s.db.Close()

	if err := os.Rename(compactPath, s.path); err != nil {
		return fmt.Errorf("failed to replace database: %w", err)
	}

	s.db, err = bbolt.Open(s.path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to reopen compacted database: %w", err)
	}

	logrus.Info("Database compaction completed successfully")
	return nil
}

// copyBytes creates a copy of a byte slice
func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	copied := make([]byte, len(b))
	copy(copied, b)
	return copied
}
