package pace

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRealSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Real.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep() did not return promptly on cancelled context")
	}
}

func TestRealSleepZero(t *testing.T) {
	if err := Real.Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) error = %v", err)
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	_ = r.Sleep(ctx, time.Second)
	_ = r.Sleep(ctx, 2*time.Second)

	if got := r.Sleeps(); len(got) != 2 || got[0] != time.Second || got[1] != 2*time.Second {
		t.Errorf("Sleeps() = %v", got)
	}
	if r.Total() != 3*time.Second {
		t.Errorf("Total() = %v, want 3s", r.Total())
	}
}

func TestNewGateZeroIntervalNeverBlocks(t *testing.T) {
	g := NewGate(0)
	for i := 0; i < 100; i++ {
		if !g.Allow() {
			t.Fatalf("Allow() = false at %d", i)
		}
	}
}
