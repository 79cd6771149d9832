package ledger

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkflowStore owns reads and writes of the workflow failure ledger.
type WorkflowStore struct {
	db *gorm.DB
}

// NewWorkflowStore constructs a store over the provided database handle.
func NewWorkflowStore(db *gorm.DB) (*WorkflowStore, error) {
	if db == nil {
		return nil, errMissingDatabase
	}
	return &WorkflowStore{db: db}, nil
}

// Exists reports whether the run id has already been recorded.
func (s *WorkflowStore) Exists(ctx context.Context, runID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&WorkflowFailureEvent{}).
		Where("run_id = ?", runID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("ledger: counting workflow run %d: %w", runID, err)
	}
	return count > 0, nil
}

// Insert appends a failure row. A concurrent insert of the same run id hits
// the unique index and is treated as a no-op.
func (s *WorkflowStore) Insert(ctx context.Context, event *WorkflowFailureEvent) error {
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}},
			DoNothing: true,
		}).
		Create(event).Error
	if err != nil {
		return fmt.Errorf("ledger: inserting workflow run %d: %w", event.RunID, err)
	}
	return nil
}

// Pending lists unannounced failures in insertion order.
func (s *WorkflowStore) Pending(ctx context.Context) ([]WorkflowFailureEvent, error) {
	var events []WorkflowFailureEvent
	err := s.db.WithContext(ctx).
		Where("status = ? AND notified = ?", WorkflowStatusFailed, false).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("ledger: listing pending workflow failures: %w", err)
	}
	return events, nil
}

// MarkNotified flips the notified flag on a single row.
func (s *WorkflowStore) MarkNotified(ctx context.Context, id uint64) error {
	err := s.db.WithContext(ctx).
		Model(&WorkflowFailureEvent{}).
		Where("id = ?", id).
		Update("notified", true).Error
	if err != nil {
		return fmt.Errorf("ledger: marking workflow failure %d notified: %w", id, err)
	}
	return nil
}
