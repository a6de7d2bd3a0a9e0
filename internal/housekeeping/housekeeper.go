// internal/housekeeping/housekeeper.go - Trend rollup, retention purge and compaction
package housekeeping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tophosts/internal/config"
	"tophosts/internal/database"
	"tophosts/internal/history"
	"tophosts/internal/metrics"
)

// RollupClockKey stores the end of the last hour rolled up into trends.
const RollupClockKey = "trends_rollup_clock"

type Housekeeper struct {
	store   database.ExtendedStore
	config  config.DatabaseConfig
	metrics *metrics.Collector
	now     func() time.Time
}

type PurgeResult struct {
	Items          int `json:"items"`
	HistoryDeleted int `json:"history_deleted"`
	TrendsDeleted  int `json:"trends_deleted"`
}

func NewHousekeeper(store database.ExtendedStore, cfg config.DatabaseConfig, collector *metrics.Collector) *Housekeeper {
	return &Housekeeper{
		store:   store,
		config:  cfg,
		metrics: collector,
		now:     time.Now,
	}
}

// RollupTrends turns the history of every numeric item into hourly trends
// for each hour completed since the previous run.
func (h *Housekeeper) RollupTrends(ctx context.Context) (int, error) {
	end := h.now().Truncate(time.Hour)

	start, err := h.rollupStart(ctx, end)
	if err != nil {
		return 0, err
	}
	if !start.Before(end) {
		return 0, nil
	}

	items, err := h.store.GetItems(ctx, database.ItemFilters{ValueTypes: database.NumericValueTypes})
	h.record("get_items", err)
	if err != nil {
		return 0, fmt.Errorf("failed to get items: %w", err)
	}

	saved := 0
	for _, item := range items {
		values, err := h.store.GetHistory(ctx, item.ID, start, end.Add(-time.Nanosecond))
		if err != nil {
			return saved, fmt.Errorf("failed to read history of %s: %w", item.ID, err)
		}

		trends := rollupHours(item.ID, values)
		if len(trends) == 0 {
			continue
		}
		err = h.store.SaveTrends(ctx, trends)
		h.record("save_trends", err)
		if err != nil {
			return saved, fmt.Errorf("failed to save trends of %s: %w", item.ID, err)
		}
		saved += len(trends)
	}

	if err := h.store.SetMeta(ctx, RollupClockKey, end.UTC().Format(time.RFC3339)); err != nil {
		return saved, fmt.Errorf("failed to store rollup clock: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"from":   start,
		"to":     end,
		"items":  len(items),
		"trends": saved,
	}).Debug("Trend rollup completed")
	return saved, nil
}

// rollupStart resumes from the stored clock; the first run starts at the
// oldest hour still inside history retention.
func (h *Housekeeper) rollupStart(ctx context.Context, end time.Time) (time.Time, error) {
	stored, err := h.store.GetMeta(ctx, RollupClockKey)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read rollup clock: %w", err)
	}
	if stored == "" {
		return end.Add(-h.config.HistoryRetention).Truncate(time.Hour), nil
	}

	start, err := time.Parse(time.RFC3339, stored)
	if err != nil {
		logrus.WithField("value", stored).Warn("Ignoring malformed rollup clock")
		return end.Add(-h.config.HistoryRetention).Truncate(time.Hour), nil
	}
	return start, nil
}

// rollupHours groups oldest-first samples by hour.
func rollupHours(itemID string, values []database.HistoryValue) []database.Trend {
	var trends []database.Trend

	for i := 0; i < len(values); {
		hour := values[i].Clock.Truncate(time.Hour)
		j := i
		for j < len(values) && values[j].Clock.Truncate(time.Hour).Equal(hour) {
			j++
		}
		if trend, ok := history.Rollup(itemID, hour, values[i:j]); ok {
			trends = append(trends, trend)
		}
		i = j
	}

	return trends
}

// PurgeExpired drops history and trends older than each item's retention,
// falling back to the configured global retention.
func (h *Housekeeper) PurgeExpired(ctx context.Context) (*PurgeResult, error) {
	items, err := h.store.GetItems(ctx, database.ItemFilters{})
	h.record("get_items", err)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}

	now := h.now()
	result := &PurgeResult{Items: len(items)}
	var errs []string

	for _, item := range items {
		keep := h.config.Retention().For(&item)

		if keep.History > 0 {
			n, err := h.store.DeleteHistoryBefore(ctx, item.ID, now.Add(-keep.History))
			h.record("delete_history", err)
			if err != nil {
				errs = append(errs, fmt.Sprintf("history of %s: %v", item.ID, err))
			}
			result.HistoryDeleted += n
		}
		if keep.Trends > 0 {
			n, err := h.store.DeleteTrendsBefore(ctx, item.ID, now.Add(-keep.Trends))
			h.record("delete_trends", err)
			if err != nil {
				errs = append(errs, fmt.Sprintf("trends of %s: %v", item.ID, err))
			}
			result.TrendsDeleted += n
		}
	}

	if result.HistoryDeleted > 0 || result.TrendsDeleted > 0 {
		logrus.WithFields(logrus.Fields{
			"history_deleted": result.HistoryDeleted,
			"trends_deleted":  result.TrendsDeleted,
		}).Info("Retention purge completed")
	}

	if len(errs) > 0 {
		return result, fmt.Errorf("purge completed with errors: %s", strings.Join(errs, "; "))
	}
	return result, nil
}

func (h *Housekeeper) Compact(ctx context.Context) error {
	err := h.store.CompactDatabase(ctx)
	h.record("compact", err)
	return err
}

// Start runs each task once immediately and then on its interval until ctx
// is cancelled. A zero compact interval disables compaction.
func (h *Housekeeper) Start(ctx context.Context) {
	h.schedule(ctx, "rollup", h.config.RollupInterval, func(ctx context.Context) error {
		_, err := h.RollupTrends(ctx)
		return err
	})
	h.schedule(ctx, "purge", h.config.CleanupInterval, func(ctx context.Context) error {
		_, err := h.PurgeExpired(ctx)
		return err
	})
	if h.config.CompactInterval > 0 {
		h.schedule(ctx, "compact", h.config.CompactInterval, h.Compact)
	}
}

func (h *Housekeeper) schedule(ctx context.Context, name string, interval time.Duration, task func(context.Context) error) {
	if interval <= 0 {
		logrus.WithField("task", name).Warn("Housekeeping task disabled, no interval")
		return
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()

		if err := task(ctx); err != nil {
			logrus.WithError(err).WithField("task", name).Error("Initial housekeeping run failed")
		}

		for {
			select {
			case <-ctx.Done():
				logrus.WithField("task", name).Debug("Stopping housekeeping task")
				return
			case <-ticker.C:
				if err := task(ctx); err != nil {
					logrus.WithError(err).WithField("task", name).Error("Scheduled housekeeping run failed")
				}
			}
		}
	}()

	logrus.WithFields(logrus.Fields{
		"task":     name,
		"interval": interval,
	}).Info("Scheduled housekeeping task")
}

func (h *Housekeeper) record(operation string, err error) {
	if h.metrics != nil {
		h.metrics.RecordOperation(operation, err)
	}
}
