package ledger

import (
	"context"
	"testing"
	"time"
)

func TestWatermarkLatestOnEmptyHistory(t *testing.T) {
	db := newTestDB(t)
	store := mustWatermarkStore(t, db)

	_, found, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected no watermark before first cycle")
	}
}

func TestWatermarkAppendGrowsHistory(t *testing.T) {
	db := newTestDB(t)
	store := mustWatermarkStore(t, db)
	ctx := context.Background()

	first := time.Unix(1700000000, 0).UTC()
	second := time.Unix(1700003600, 0).UTC()

	if err := store.Append(ctx, first); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	if err := store.Append(ctx, second); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}

	latest, found, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !found {
		t.Fatalf("expected a watermark after appends")
	}
	if !latest.Equal(second) {
		t.Fatalf("expected latest watermark %v, got %v", second, latest)
	}

	var count int64
	if err := db.Model(&WatermarkRecord{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 2 {
		t.Fatalf("watermark history should be append-only, got %d rows", count)
	}
}
