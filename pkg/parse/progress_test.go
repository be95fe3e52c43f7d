package parse

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestThrottle(t *testing.T) {
	var got []float64
	p := Throttle(func(percent float64, _ string) {
		got = append(got, percent)
	}, time.Hour)

	p(0, "start")
	p(10, "ignored")
	p(50, "ignored")
	p(100, "done")

	if len(got) != 2 || got[0] != 0 || got[1] != 100 {
		t.Errorf("expected [0 100], got %v", got)
	}
}

func TestThrottleNil(t *testing.T) {
	if Throttle(nil, time.Second) != nil {
		t.Error("expected nil sink to stay nil")
	}
	var p Progress
	p.Report(50, "no sink") // must not panic
}

func TestCheck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := Check(ctx, "x"); err != nil {
		t.Fatalf("expected nil before cancel, got %v", err)
	}
	cancel()
	if err := Check(ctx, "x"); !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestPercent(t *testing.T) {
	if Percent(5, 10) != 50 {
		t.Errorf("expected 50, got %v", Percent(5, 10))
	}
	if Percent(1, 0) != 100 {
		t.Errorf("expected 100 for empty total, got %v", Percent(1, 0))
	}
	if Percent(20, 10) != 100 {
		t.Errorf("expected clamp to 100, got %v", Percent(20, 10))
	}
}
