package timectrl

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	wall := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := &TimeController{wall: func() time.Time { return wall }}

	target := time.Date(2025, time.March, 3, 12, 0, 0, 0, time.UTC)
	tc.SetTime(target)

	if got := tc.Now(); !got.Equal(target) {
		t.Fatalf("Now() = %v, want %v", got, target)
	}
	if got, want := tc.Offset(), target.Sub(wall); got != want {
		t.Fatalf("Offset() = %v, want %v", got, want)
	}
}

func TestTimeControllerAdvancesWithWallClock(t *testing.T) {
	wall := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := &TimeController{wall: func() time.Time { return wall }}
	start := time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC)
	tc.SetTime(start)

	wall = wall.Add(90 * time.Second)

	if got, want := tc.Now(), start.Add(90*time.Second); !got.Equal(want) {
		t.Fatalf("Now() = %v, want %v", got, want)
	}
}

func TestTimeControllerAfterFires(t *testing.T) {
	tc := NewTimeController(time.Date(2024, time.June, 1, 6, 0, 0, 0, time.UTC))

	select {
	case got := <-tc.After(5 * time.Millisecond):
		if got.Year() != 2024 {
			t.Fatalf("After delivered %v, want controlled time", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("After did not fire")
	}
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := Sleep(ctx, RealClock{}, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep error = %v, want context.Canceled", err)
	}
}

func TestSleepReturnsAfterDuration(t *testing.T) {
	start := time.Now()
	if err := Sleep(context.Background(), RealClock{}, 10*time.Millisecond); err != nil {
		t.Fatalf("Sleep: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 10*time.Millisecond {
		t.Fatalf("Sleep returned after %v, want >= 10ms", elapsed)
	}
}
