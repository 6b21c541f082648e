package task

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Executor kinds accepted by NewPool.
const (
	ExecutorFixed        = "fixed"
	ExecutorWorkStealing = "work-stealing"
	ExecutorScheduled    = "scheduled"
	ExecutorVirtual      = "virtual"
)

// ErrPoolClosed is returned by Submit after Shutdown has begun.
var ErrPoolClosed = fmt.Errorf("pool is shut down")

// Pool runs submitted functions with a bounded (or unbounded) degree of
// concurrency. Shutdown waits for everything already submitted to finish.
type Pool interface {
	Submit(fn func()) error
	Shutdown()
}

// NewPool builds the pool matching the executor kind. maxWorkers applies
// to the fixed and scheduled kinds; work-stealing sizes itself to the
// machine and virtual runs every submission on its own goroutine. The
// scheduled pool adds SubmitAfter for delayed submissions; plain Submit
// through it behaves exactly like the fixed pool.
func NewPool(executor string, maxWorkers int, logger *slog.Logger) (Pool, error) {
	if logger == nil {
		return nil, fmt.Errorf("pool logger cannot be nil")
	}
	switch executor {
	case ExecutorFixed:
		return newWorkerPool(maxWorkers, logger), nil
	case ExecutorWorkStealing:
		return newWorkerPool(runtime.GOMAXPROCS(0), logger), nil
	case ExecutorScheduled:
		return &scheduledPool{workerPool: newWorkerPool(maxWorkers, logger)}, nil
	case ExecutorVirtual:
		return &virtualPool{logger: logger}, nil
	default:
		return nil, fmt.Errorf("unknown executor type: %q", executor)
	}
}

// workerPool is a fixed set of workers draining a buffered queue. The
// queue send happens outside the mutex, so a Submit blocked on a full
// queue never holds the lock against Shutdown; pending tracks in-flight
// senders so the queue is only closed once they have all finished.
type workerPool struct {
	queue  chan func()
	wg     sync.WaitGroup
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

func newWorkerPool(workers int, logger *slog.Logger) *workerPool {
	if workers < 1 {
		workers = 1
	}
	p := &workerPool{
		queue:  make(chan func(), workers*4),
		logger: logger,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	p.logger.Debug("worker pool started", "workers", workers)
	return p
}

func (p *workerPool) worker(id int) {
	defer p.wg.Done()
	for fn := range p.queue {
		fn()
	}
	p.logger.Debug("worker exiting", "worker", id)
}

func (p *workerPool) Submit(fn func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.pending.Add(1)
	p.mu.Unlock()

	p.queue <- fn
	p.pending.Done()
	return nil
}

func (p *workerPool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.pending.Wait()
	close(p.queue)
	p.wg.Wait()
}

// scheduledPool extends the fixed pool with delayed submission.
type scheduledPool struct {
	*workerPool
	timers sync.WaitGroup
}

// SubmitAfter runs fn on the pool once the delay elapses. A submission
// whose delay fires after shutdown is dropped.
func (p *scheduledPool) SubmitAfter(fn func(), delay time.Duration) {
	p.timers.Add(1)
	time.AfterFunc(delay, func() {
		defer p.timers.Done()
		if err := p.Submit(fn); err != nil {
			p.logger.Debug("dropping scheduled submission", "error", err)
		}
	})
}

func (p *scheduledPool) Shutdown() {
	p.timers.Wait()
	p.workerPool.Shutdown()
}

// virtualPool runs each submission on its own goroutine, with no cap.
type virtualPool struct {
	logger *slog.Logger
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func (p *virtualPool) Submit(fn func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		fn()
	}()
	return nil
}

func (p *virtualPool) Shutdown() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
