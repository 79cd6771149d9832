package ledger

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReviewStore owns reads and writes of the review ledger.
type ReviewStore struct {
	db *gorm.DB
}

// NewReviewStore constructs a store over the provided database handle.
func NewReviewStore(db *gorm.DB) (*ReviewStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &ReviewStore{db: db}, nil
}

// Exists reports whether the review id has already been recorded.
func (s *ReviewStore) Exists(ctx context.Context, reviewID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&ReviewEvent{}).
		Where("review_id = ?", reviewID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ledger: counting review %d: %w", reviewID, err)
	}
	return count > 0, nil
}

// Insert appends a review row. A concurrent insert of the same review id
// hits the unique index and is treated as a no-op.
func (s *ReviewStore) Insert(ctx context.Context, review *ReviewEvent) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "review_id"}},
			DoNothing: true,
		}).
		Create(review).Error
	if err != nil {
		return fmt.Errorf("ledger: inserting review %d: %w", review.ReviewID, err)
	}
	return nil
}

// Pending lists unannounced reviews in insertion order.
func (s *ReviewStore) Pending(ctx context.Context) ([]ReviewEvent, error) {
	var reviews []ReviewEvent
	err := s.db.WithContext(ctx).
		Where("notified = ?", false).
		Order("id ASC").
		Find(&reviews).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: listing pending reviews: %w", err)
	}
	return reviews, nil
}

// MarkNotified flips the notified flag on a single row.
func (s *ReviewStore) MarkNotified(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).
		Model(&ReviewEvent{}).
		Where("id = ?", id).
		Update("notified", true).Error
	if err != nil {
		return fmt.Errorf("ledger: marking review %d notified: %w", id, err)
	}
	return nil
}
