package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// WatermarkStore owns the append-only crawl watermark history.
type WatermarkStore struct {
	db *gorm.DB
}

// NewWatermarkStore constructs a store over the provided database handle.
func NewWatermarkStore(db *gorm.DB) (*WatermarkStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &WatermarkStore{db: db}, nil
}

// Latest returns the most recent watermark, or ok=false when no crawl cycle
// has ever completed.
func (s *WatermarkStore) Latest(ctx context.Context) (time.Time, bool, error) {
	var record WatermarkRecord
	err := s.db.WithContext(ctx).
		Order("last_crawled_at DESC").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("ledger: reading latest watermark: %w", err)
	}
	return record.LastCrawledAt, true, nil
}

// Append records the completion of a crawl cycle. Rows are never updated or
// deleted; the history is the audit trail of successful cycles.
func (s *WatermarkStore) Append(ctx context.Context, crawledAt time.Time) error {
	record := WatermarkRecord{LastCrawledAt: crawledAt}
	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return fmt.Errorf("ledger: appending watermark: %w", err)
	}
	return nil
}
