package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestTasksRunIndependently(t *testing.T) {
	var fast, failing, panicking atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s := New(zaptest.NewLogger(t),
		Task{Name: "fast", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		Task{Name: "failing", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			failing.Add(1)
			return errors.New("store unavailable")
		}},
		Task{Name: "panicking", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			panicking.Add(1)
			panic("boom")
		}},
		Task{Name: "disabled", Run: func(context.Context) error {
			t.Error("task without interval ran")
			return nil
		}},
	)

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for fast.Load() < 3 || failing.Load() < 3 || panicking.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("runs: fast=%d failing=%d panicking=%d", fast.Load(), failing.Load(), panicking.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
