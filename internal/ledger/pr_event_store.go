package ledger

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var errMissingDatabase = errors.New("ledger: database handle is required")

// PREventStore owns reads and writes of the pull request event ledger.
type PREventStore struct {
	db *gorm.DB
}

// NewPREventStore constructs a store over the provided database handle.
func NewPREventStore(db *gorm.DB) (*PREventStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &PREventStore{db: db}, nil
}

// HasEvent reports whether a row of the given type exists for the pull request.
// Used for the created and merged at-most-once checks.
func (s *PREventStore) HasEvent(ctx context.Context, prID int64, eventType EventType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&PREvent{}).
		Where("pr_id = ? AND type = ?", prID, eventType).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ledger: counting %s events for pr %d: %w", eventType, prID, err)
	}
	return count > 0, nil
}

// LatestCodeHash returns the most recently recorded head commit hash for the
// pull request, or ok=false when no code update has been recorded yet.
func (s *PREventStore) LatestCodeHash(ctx context.Context, prID int64) (string, bool, error) {
	var event PREvent
	err := s.db.WithContext(ctx).
		Where("pr_id = ? AND type = ? AND update_type = ?", prID, EventTypeUpdated, UpdateTypeCode).
		Order("updated_at DESC").
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ledger: reading latest code hash for pr %d: %w", prID, err)
	}
	return event.CommitHash, true, nil
}

// Insert appends a created, merged, or code update row. Callers perform the
// dedup check first; an unexpected constraint violation surfaces as an error.
func (s *PREventStore) Insert(ctx context.Context, event *PREvent) error {
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("ledger: inserting %s event for pr %d: %w", event.Type, event.PRID, err)
	}
	return nil
}

// InsertAuthorComment appends an author comment row, treating a duplicate
// (pr_id, type, comment_id) as a no-op. The unique index is the dedup
// mechanism here, tolerant of re-crawls over the same comment.
func (s *PREventStore) InsertAuthorComment(ctx context.Context, event *PREvent) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(event).Error
	if err != nil {
		return fmt.Errorf("ledger: inserting author comment for pr %d: %w", event.PRID, err)
	}
	return nil
}

// PendingCreated lists unannounced created rows in insertion order.
func (s *PREventStore) PendingCreated(ctx context.Context) ([]PREvent, error) {
	return s.pending(ctx, s.db.Where("type = ?", EventTypeCreated))
}

// PendingUpdates lists unannounced code update and author comment rows.
func (s *PREventStore) PendingUpdates(ctx context.Context) ([]PREvent, error) {
	return s.pending(ctx, s.db.Where("type IN ?", []EventType{EventTypeUpdated, EventTypeAuthorComment}))
}

// PendingMerged lists unannounced merged rows.
func (s *PREventStore) PendingMerged(ctx context.Context) ([]PREvent, error) {
	return s.pending(ctx, s.db.Where("type = ?", EventTypeMerged))
}

func (s *PREventStore) pending(ctx context.Context, scope *gorm.DB) ([]PREvent, error) {
	var events []PREvent
	err := scope.WithContext(ctx).
		Where("notified = ?", false).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: listing pending pr events: %w", err)
	}
	return events, nil
}

// MarkNotified flips the notified flag on a single row.
func (s *PREventStore) MarkNotified(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).
		Model(&PREvent{}).
		Where("id = ?", id).
		Update("notified", true).Error
	if err != nil {
		return fmt.Errorf("ledger: marking pr event %d notified: %w", id, err)
	}
	return nil
}
