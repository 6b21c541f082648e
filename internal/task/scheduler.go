package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Scheduler places tasks onto a pool and tracks them to completion. One
// task's failure never prevents the others from finishing.
type Scheduler struct {
	pool   Pool
	logger *slog.Logger

	mu    sync.Mutex
	tasks []Runner
}

// NewScheduler wraps a pool.
func NewScheduler(pool Pool, logger *slog.Logger) (*Scheduler, error) {
	if pool == nil {
		return nil, fmt.Errorf("scheduler pool cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("scheduler logger cannot be nil")
	}
	return &Scheduler{pool: pool, logger: logger}, nil
}

// Submit hands the task to the pool. Submission order carries no meaning;
// dependency edges alone decide when a task makes progress.
func (s *Scheduler) Submit(ctx context.Context, r Runner) error {
	if r == nil {
		return fmt.Errorf("cannot submit nil task")
	}

	s.mu.Lock()
	s.tasks = append(s.tasks, r)
	s.mu.Unlock()

	s.logger.Debug("submitting task", "task", r.Name(), "kind", r.Kind())
	return s.pool.Submit(func() {
		r.Run(ctx)
		if err := r.Close(); err != nil {
			s.logger.Warn("task close failed", "task", r.Name(), "error", err)
		}
	})
}

// Tasks returns a snapshot of everything submitted so far.
func (s *Scheduler) Tasks() []Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Runner, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Wait blocks until every submitted task has reached a terminal state,
// shuts the pool down, and returns the joined failures. A nil return
// means every task completed.
func (s *Scheduler) Wait(ctx context.Context) error {
	var errs []error
	for _, r := range s.Tasks() {
		select {
		case <-r.Done():
			if err := r.Err(); err != nil {
				errs = append(errs, fmt.Errorf("task %s: %w", r.Name(), err))
			}
		case <-ctx.Done():
			s.pool.Shutdown()
			return fmt.Errorf("cancelled while waiting for %s: %w", r.Name(), ctx.Err())
		}
	}
	s.pool.Shutdown()
	return errors.Join(errs...)
}
