package dds

import (
	"testing"
	"time"
)

func TestGrantValidityEmpty(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	start, end := GrantValidity(now, nil, nil)
	if !start.Equal(now.Add(-ClockSkewBuffer)) {
		t.Fatalf("start = %v, want %v", start, now.Add(-ClockSkewBuffer))
	}
	if !end.Equal(start) {
		t.Fatalf("empty grant list must yield a zero-width window, got end %v", end)
	}
}

func TestGrantValidityShortestDurationWins(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	grants := []*ApplicationGrant{
		{ID: 1, DurationID: 10},
		{ID: 2, DurationID: 20},
	}
	durations := map[int64]GrantDuration{
		10: {ID: 10, DurationMillis: 3_600_000},
		20: {ID: 20, DurationMillis: 60_000},
	}
	start, end := GrantValidity(now, grants, durations)
	if got := end.Sub(start); got != time.Minute {
		t.Fatalf("window length = %v, want 1m (shortest duration)", got)
	}
}

func TestGrantValidityStartBackdated(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	grants := []*ApplicationGrant{{ID: 1, DurationID: 1}}
	durations := map[int64]GrantDuration{1: {ID: 1, DurationMillis: 1000}}
	start, _ := GrantValidity(now, grants, durations)
	if got := now.Sub(start); got != ClockSkewBuffer {
		t.Fatalf("start backdated by %v, want %v", got, ClockSkewBuffer)
	}
}

func TestGrantValidityUnknownDurations(t *testing.T) {
	now := time.Now()
	grants := []*ApplicationGrant{{ID: 1, DurationID: 99}}
	start, end := GrantValidity(now, grants, map[int64]GrantDuration{})
	if !end.Equal(start) {
		t.Fatalf("grants without resolvable durations must yield a zero-width window")
	}
}
