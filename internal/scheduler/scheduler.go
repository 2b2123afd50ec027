// Package scheduler runs periodic batch tasks on independent timers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is one periodic job. A failing run is logged and retried on the next tick.
type Task struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Scheduler struct {
	tasks  []Task
	logger *zap.Logger
}

func New(logger *zap.Logger, tasks ...Task) *Scheduler {
	return &Scheduler{tasks: tasks, logger: logger}
}

// Run starts every task and blocks until ctx is cancelled and all tasks have returned.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, task := range s.tasks {
		if task.Interval <= 0 {
			s.logger.Warn("Task has no interval, not scheduling it", zap.String("task", task.Name))
			continue
		}
		wg.Add(1)
		go func(task Task) {
			defer wg.Done()
			s.loop(ctx, task)
		}(task)
	}
	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	s.logger.Info("Scheduled task started", zap.String("task", task.Name), zap.Duration("interval", task.Interval))

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduled task stopped", zap.String("task", task.Name))
			return
		case <-ticker.C:
			s.runOnce(ctx, task)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Scheduled task panicked", zap.String("task", task.Name), zap.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := task.Run(ctx); err != nil {
		s.logger.Error("Scheduled task failed", zap.String("task", task.Name), zap.Error(err))
		return
	}
	s.logger.Debug("Scheduled task finished", zap.String("task", task.Name), zap.Duration("took", time.Since(start)))
}
