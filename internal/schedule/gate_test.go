package schedule

import (
	"testing"
	"time"
)

func mustLocation(t *testing.T, name string) *time.Location {
	t.Helper()
	location, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("failed to load location %s: %v", name, err)
	}
	return location
}

func TestGateAllowsWeekdayInsideBusinessHours(t *testing.T) {
	seoul := mustLocation(t, "Asia/Seoul")
	gate, err := NewGate(seoul, nil, 9, 19)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Monday 10:00 KST.
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, seoul)
	allowed, reason := gate.Allows(now)
	if !allowed {
		t.Fatalf("expected tick to be allowed, got reason %q", reason)
	}
}

func TestGateBlocksWeekend(t *testing.T) {
	seoul := mustLocation(t, "Asia/Seoul")
	gate, err := NewGate(seoul, nil, 9, 19)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Saturday 10:00 KST.
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, seoul)
	allowed, reason := gate.Allows(now)
	if allowed {
		t.Fatalf("expected weekend block")
	}
	if reason != "weekend" {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestGateBlocksHoliday(t *testing.T) {
	seoul := mustLocation(t, "Asia/Seoul")
	gate, err := NewGate(seoul, []string{"2026-03-02"}, 9, 19)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, seoul)
	allowed, reason := gate.Allows(now)
	if allowed {
		t.Fatalf("expected holiday block")
	}
	if reason != "holiday" {
		t.Fatalf("unexpected reason: %q", reason)
	}
}

func TestGateBusinessHourBounds(t *testing.T) {
	seoul := mustLocation(t, "Asia/Seoul")
	gate, err := NewGate(seoul, nil, 9, 19)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		hour    int
		allowed bool
	}{
		{hour: 8, allowed: false},
		{hour: 9, allowed: true},
		{hour: 18, allowed: true},
		{hour: 19, allowed: false},
	}
	for _, test := range tests {
		// Monday of the same week.
		now := time.Date(2026, 3, 2, test.hour, 0, 0, 0, seoul)
		allowed, _ := gate.Allows(now)
		if allowed != test.allowed {
			t.Fatalf("hour %d: expected allowed=%v", test.hour, test.allowed)
		}
	}
}

func TestGateEvaluatesInConfiguredLocation(t *testing.T) {
	seoul := mustLocation(t, "Asia/Seoul")
	gate, err := NewGate(seoul, nil, 9, 19)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Monday 01:00 UTC is 10:00 KST.
	now := time.Date(2026, 3, 2, 1, 0, 0, 0, time.UTC)
	allowed, reason := gate.Allows(now)
	if !allowed {
		t.Fatalf("expected the KST window to apply, got reason %q", reason)
	}

	// Monday 12:00 UTC is 21:00 KST.
	now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	allowed, _ = gate.Allows(now)
	if allowed {
		t.Fatalf("expected evening block in KST")
	}
}

func TestNewGateRejectsMalformedHoliday(t *testing.T) {
	if _, err := NewGate(time.UTC, []string{"03/02/2026"}, 9, 19); err == nil {
		t.Fatalf("expected malformed holiday to be rejected")
	}
}
