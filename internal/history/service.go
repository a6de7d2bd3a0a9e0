// internal/history/service.go - aggregated reads over the history and trend store
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"tophosts/internal/database"
)

// Reader is the part of the store the history service reads from.
type Reader interface {
	GetHistory(ctx context.Context, itemID string, from, to time.Time) ([]database.HistoryValue, error)
	GetTrends(ctx context.Context, itemID string, from, to time.Time) ([]database.Trend, error)
}

// Retention is the keep period applied to items that set none of their own.
// Zero keeps data forever.
type Retention struct {
	History time.Duration
	Trends  time.Duration
}

// For resolves an item's retention against the global one.
func (r Retention) For(item *database.Item) Retention {
	effective := Retention{History: item.History, Trends: item.Trends}
	if effective.History <= 0 {
		effective.History = r.History
	}
	if effective.Trends <= 0 {
		effective.Trends = r.Trends
	}
	return effective
}

type Service struct {
	store     Reader
	retention Retention
}

func NewService(store Reader, retention Retention) *Service {
	return &Service{store: store, retention: retention}
}

// PickDataSource chooses history while the window start is still within the
// item's history retention, trends otherwise. Textual items have no trends
// and history kept forever is always read directly.
func (s *Service) PickDataSource(item *database.Item, from, now time.Time) Source {
	if !item.ValueType.IsNumeric() {
		return SourceHistory
	}
	keep := s.retention.For(item).History
	if keep <= 0 || !from.Before(now.Add(-keep)) {
		return SourceHistory
	}
	return SourceTrends
}

// AggregatedValue returns fn over the item's data in tr. The second result is
// false when the window holds no data for the item.
func (s *Service) AggregatedValue(ctx context.Context, item *database.Item, source Source, fn AggregateFn, tr TimeRange) (Value, bool, error) {
	numeric := item.ValueType.IsNumeric()

	if source == SourceTrends && numeric {
		trends, err := s.store.GetTrends(ctx, item.ID, tr.From.Truncate(time.Hour), tr.To)
		if err != nil {
			return Value{}, false, fmt.Errorf("failed to read trends of item %s: %w", item.ID, err)
		}
		v, ok := AggregateTrends(trends, fn)
		return v, ok, nil
	}

	values, err := s.store.GetHistory(ctx, item.ID, tr.From, tr.To)
	if err != nil {
		return Value{}, false, fmt.Errorf("failed to read history of item %s: %w", item.ID, err)
	}

	v, ok := AggregateHistory(values, fn, numeric)
	if !ok && len(values) > 0 {
		logrus.WithFields(logrus.Fields{
			"item_id":    item.ID,
			"function":   fn.String(),
			"value_type": item.ValueType.String(),
		}).Debug("Aggregate function does not apply to item value type")
	}
	return v, ok, nil
}
