package services

import (
    "testing"
    "time"
)

func TestRelativeWindowRoundsToNearestMinute(t *testing.T) {
    now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
    for _, tc := range []struct {
        elapsed time.Duration
        want    string
    }{
        {15 * time.Minute, "-15m"},
        {90 * time.Second, "-2m"},
        {29 * time.Second, "-0m"},
        {10*time.Minute + 31*time.Second, "-11m"},
        {time.Hour, "-60m"},
    } {
        got := relativeWindow(now.Add(-tc.elapsed), now)
        if got != tc.want { t.Errorf("elapsed %v: got %q want %q", tc.elapsed, got, tc.want) }
    }
}

func TestRelativeWindowClampsFutureCheckpoint(t *testing.T) {
    now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
    got := relativeWindow(now.Add(5*time.Minute), now)
    if got != "-0m" { t.Fatalf("future checkpoint must clamp to zero, got %q", got) }
}
