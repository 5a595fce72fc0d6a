package domain

import (
	"testing"
	"time"
)

func TestClientUsageRecord_Expired(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := ClientUsageRecord{Count: 3, WindowStart: start}

	if rec.Expired(start.Add(time.Hour), time.Hour) {
		t.Fatalf("expected window still open at exactly +1h")
	}
	if !rec.Expired(start.Add(time.Hour+time.Nanosecond), time.Hour) {
		t.Fatalf("expected window expired after +1h")
	}
}

func TestClientUsageRecord_RetryAfter(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rec := ClientUsageRecord{Count: 3, WindowStart: start}

	if got := rec.RetryAfter(start.Add(10*time.Minute), time.Hour); got != 50*time.Minute {
		t.Fatalf("expected 50m, got %s", got)
	}
	if got := rec.RetryAfter(start.Add(time.Hour), time.Hour); got != time.Nanosecond {
		t.Fatalf("expected 1ns at window end, got %s", got)
	}
}
