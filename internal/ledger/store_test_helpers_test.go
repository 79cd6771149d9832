package ledger

import (
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:ledger_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	err = db.AutoMigrate(&PREvent{}, &ReviewEvent{}, &WorkflowFailureEvent{}, &WatermarkRecord{})
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func mustPREventStore(t *testing.T, db *gorm.DB) *PREventStore {
	t.Helper()
	store, err := NewPREventStore(db)
	if err != nil {
		t.Fatalf("failed to construct pr event store: %v", err)
	}
	return store
}

func mustReviewStore(t *testing.T, db *gorm.DB) *ReviewStore {
	t.Helper()
	store, err := NewReviewStore(db)
	if err != nil {
		t.Fatalf("failed to construct review store: %v", err)
	}
	return store
}

func mustWorkflowStore(t *testing.T, db *gorm.DB) *WorkflowStore {
	t.Helper()
	store, err := NewWorkflowStore(db)
	if err != nil {
		t.Fatalf("failed to construct workflow store: %v", err)
	}
	return store
}

func mustWatermarkStore(t *testing.T, db *gorm.DB) *WatermarkStore {
	t.Helper()
	store, err := NewWatermarkStore(db)
	if err != nil {
		t.Fatalf("failed to construct watermark store: %v", err)
	}
	return store
}

func timePtr(value time.Time) *time.Time {
	return &value
}

func int64Ptr(value int64) *int64 {
	return &value
}
