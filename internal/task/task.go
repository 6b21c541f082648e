package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jelatinone/scholarfind/internal/events"
)

// DefaultMaxRetries bounds how many times a failing item is retried before
// the task gives up on it and moves on.
const DefaultMaxRetries = 3

// Hooks is the contract a concrete work kind implements. The engine calls
// the hooks from the task's own goroutine only, so implementations need no
// internal locking against the engine.
type Hooks[C, P any] interface {
	// Collect enumerates the input items, in processing order. A Collect
	// error is fatal to the task.
	Collect(ctx context.Context) ([]C, error)

	// Operate transforms one item into a candidate result. It may be slow
	// (network I/O) and must be safe to call again for the same item.
	Operate(ctx context.Context, operand C) (P, error)

	// Validate reports whether the result is semantically acceptable. It
	// must not persist anything; that is Persist's job.
	Validate(result P) bool

	// Persist durably records an accepted result. A Persist error counts
	// as a retryable failure of the item, distinct from semantic
	// rejection.
	Persist(ctx context.Context, result P) error

	// Restart releases and reacquires any external resources the hooks
	// hold. Invoked only on an explicit restart request, never
	// automatically on failure.
	Restart(ctx context.Context) error
}

// Flusher is optionally implemented by hooks that buffer output. Flush is
// called after the last item is processed and before the task completes,
// so dependents observing the completion signal see finished output.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Runner is the kind-independent handle the scheduler works with. Every
// Task[C, P] is a Runner.
type Runner interface {
	// ID returns the task's unique identifier.
	ID() uuid.UUID

	// Name returns the task's identifying name.
	Name() string

	// Kind returns the work-kind label.
	Kind() string

	// State returns a snapshot of the current lifecycle state.
	State() State

	// Report returns a formatted one-line status: name, state, message.
	Report() string

	// Run drives the state machine to a terminal state. It must be called
	// exactly once, from a single goroutine.
	Run(ctx context.Context)

	// DependsOn declares that this task must not begin collecting until
	// other reaches a terminal state.
	DependsOn(other Runner) error

	// Done is the completion signal: closed exactly once, when the task
	// reaches COMPLETED or FAILED. Safe for any number of waiters.
	Done() <-chan struct{}

	// Err returns the captured failure cause, or nil. Meaningful only
	// after Done is closed.
	Err() error

	// Dependencies returns the tasks this task waits for.
	Dependencies() []Runner

	// Dependents returns the tasks waiting for this task.
	Dependents() []Runner

	// Close releases the resources the task's hooks hold.
	Close() error

	addDependency(Runner) error
	addDependent(Runner)
}

// Config carries the engine knobs for one task.
type Config struct {
	// MaxRetries bounds retry attempts per item. Zero means
	// DefaultMaxRetries; negative means no retries.
	MaxRetries int

	// Logger is required.
	Logger *slog.Logger

	// Stream receives status events. Optional.
	Stream *events.Stream
}

// Task drives one unit of work through the lifecycle state machine. All
// mutable fields are guarded by mu; the run loop is the only writer of
// state, attempt, operand, and result, and observers get snapshots.
type Task[C, P any] struct {
	id         uuid.UUID
	name       string
	kind       string
	hooks      Hooks[C, P]
	maxRetries int
	logger     *slog.Logger
	stream     *events.Stream

	mu      sync.Mutex
	state   State
	message string
	attempt int
	operand C
	result  P
	deps    []Runner
	waiters []Runner
	skipped int

	started        atomic.Bool
	restartPending atomic.Bool

	once    sync.Once
	done    chan struct{}
	failure error
}

// New creates a task in the CREATED state.
func New[C, P any](name, kind string, hooks Hooks[C, P], cfg Config) (*Task[C, P], error) {
	if name == "" {
		return nil, fmt.Errorf("task name cannot be empty")
	}
	if hooks == nil {
		return nil, fmt.Errorf("task %s: hooks cannot be nil", name)
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("task %s: logger cannot be nil", name)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = DefaultMaxRetries
	}
	if maxRetries < 0 {
		maxRetries = 0
	}

	t := &Task[C, P]{
		id:         uuid.New(),
		name:       name,
		kind:       kind,
		hooks:      hooks,
		maxRetries: maxRetries,
		logger:     cfg.Logger.With("task", name, "kind", kind),
		stream:     cfg.Stream,
		state:      StateCreated,
		message:    "Created",
		done:       make(chan struct{}),
	}
	t.logger.Debug("task created", "task_id", t.id)
	return t, nil
}

// ID returns the task's unique identifier.
func (t *Task[C, P]) ID() uuid.UUID { return t.id }

// Name returns the task's identifying name.
func (t *Task[C, P]) Name() string { return t.name }

// Kind returns the work-kind label.
func (t *Task[C, P]) Kind() string { return t.kind }

// State returns a snapshot of the current lifecycle state.
func (t *Task[C, P]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Attempt returns the retry counter for the item currently in flight.
func (t *Task[C, P]) Attempt() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempt
}

// Operand returns the most recently pulled input item.
func (t *Task[C, P]) Operand() C {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.operand
}

// Result returns the most recently produced output.
func (t *Task[C, P]) Result() P {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// Skipped reports how many items exhausted their retries and were passed
// over.
func (t *Task[C, P]) Skipped() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.skipped
}

// Report returns a formatted one-line status.
func (t *Task[C, P]) Report() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%s [%s] :: %s", t.name, t.state, t.message)
}

// Done is the task's completion signal.
func (t *Task[C, P]) Done() <-chan struct{} { return t.done }

// Err returns the captured failure cause, or nil.
func (t *Task[C, P]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// Dependencies returns the tasks this task waits for.
func (t *Task[C, P]) Dependencies() []Runner {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Runner, len(t.deps))
	copy(out, t.deps)
	return out
}

// Dependents returns the tasks waiting for this task.
func (t *Task[C, P]) Dependents() []Runner {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Runner, len(t.waiters))
	copy(out, t.waiters)
	return out
}

// DependsOn declares that this task must not begin collecting until other
// reaches a terminal state. Edges may only be declared before either task
// starts; self-references and cycles are rejected.
func (t *Task[C, P]) DependsOn(other Runner) error {
	if other == nil {
		return fmt.Errorf("task %s: dependency cannot be nil", t.name)
	}
	if other.ID() == t.id {
		return fmt.Errorf("%w: %s", ErrSelfDependency, t.name)
	}
	if t.started.Load() {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, t.name)
	}
	if reaches(other, t.id) {
		return fmt.Errorf("%w: %s -> %s", ErrDependencyCycle, t.name, other.Name())
	}

	if err := t.addDependency(other); err != nil {
		return err
	}
	other.addDependent(t)
	return nil
}

// reaches reports whether from can reach the task with the given id by
// following dependency edges.
func reaches(from Runner, id uuid.UUID) bool {
	if from.ID() == id {
		return true
	}
	for _, dep := range from.Dependencies() {
		if reaches(dep, id) {
			return true
		}
	}
	return false
}

func (t *Task[C, P]) addDependency(other Runner) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.deps = append(t.deps, other)
	return nil
}

func (t *Task[C, P]) addDependent(other Runner) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.waiters = append(t.waiters, other)
}

// Restart asks the task to release and reacquire its external resources.
// The request is honored at the next item boundary; on a task that has
// already reached a terminal state it is an invalid operation.
func (t *Task[C, P]) Restart() error {
	if t.State().Terminal() {
		return fmt.Errorf("%w: cannot restart %s", ErrTerminalState, t.name)
	}
	t.restartPending.Store(true)
	return nil
}

// Close releases whatever resources the hooks hold, if they hold any.
func (t *Task[C, P]) Close() error {
	if closer, ok := t.hooks.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// transition moves the task to next, enforcing the transition table and
// terminal immutability. It is the only way state changes.
func (t *Task[C, P]) transition(next State) error {
	t.mu.Lock()
	current := t.state
	if current.Terminal() {
		t.mu.Unlock()
		return fmt.Errorf("%w: cannot leave %s", ErrTerminalState, current)
	}
	if !allowed(current, next) {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}
	t.state = next
	message := t.message
	t.mu.Unlock()

	t.logger.Debug("state update", "from", current, "to", next)
	t.publish(next, message)
	return nil
}

// setMessage updates the descriptive progress message and notifies
// observers.
func (t *Task[C, P]) setMessage(message string) {
	t.mu.Lock()
	t.message = message
	state := t.state
	t.mu.Unlock()
	t.publish(state, message)
}

func (t *Task[C, P]) publish(state State, message string) {
	if t.stream != nil {
		t.stream.Publish(events.NewStatusEvent(t.id, t.name, string(state), message))
	}
}

// fail records the failure cause and forces the FAILED state.
func (t *Task[C, P]) fail(cause error) {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return
	}
	t.state = StateFailed
	if t.failure == nil {
		t.failure = cause
	}
	t.message = fmt.Sprintf("Failed: %v", cause)
	t.mu.Unlock()

	t.logger.Error("task failed", "error", cause)
	t.publish(StateFailed, fmt.Sprintf("Failed: %v", cause))
}

// finish fires the completion signal exactly once.
func (t *Task[C, P]) finish() {
	t.once.Do(func() {
		close(t.done)
	})
}

// Run drives the state machine until COMPLETED or FAILED, then fires the
// completion signal. Transitions follow the lifecycle table; an unhandled
// panic in any hook is captured as the failure cause.
func (t *Task[C, P]) Run(ctx context.Context) {
	if !t.started.CompareAndSwap(false, true) {
		t.logger.Warn("run called twice, ignoring")
		return
	}
	defer t.finish()
	defer func() {
		if r := recover(); r != nil {
			t.fail(fmt.Errorf("unhandled panic: %v", r))
		}
	}()

	var (
		items      []C
		cursor     int
		operateErr error
		lastOK     = true
	)

	step := func(next State) bool {
		if err := t.transition(next); err != nil {
			t.fail(err)
			return false
		}
		return true
	}

	for {
		switch t.State() {
		case StateCreated:
			step(StateAwaitingDependencies)

		case StateAwaitingDependencies:
			if err := t.awaitDependencies(ctx); err != nil {
				t.fail(err)
				continue
			}
			step(StateCollecting)

		case StateCollecting:
			t.setMessage("Collecting input items")
			collected, err := t.hooks.Collect(ctx)
			if err != nil {
				t.fail(fmt.Errorf("collect failed: %w", err))
				continue
			}
			items = collected
			cursor = 0
			t.setMessage(fmt.Sprintf("Collected %d items", len(items)))
			step(StateOperating)

		case StateOperating:
			if t.restartPending.CompareAndSwap(true, false) {
				step(StateRestarting)
				continue
			}
			if cursor >= len(items) {
				if f, ok := t.hooks.(Flusher); ok {
					if err := f.Flush(ctx); err != nil {
						t.fail(fmt.Errorf("flush failed: %w", err))
						continue
					}
				}
				t.setMessage(fmt.Sprintf("Processed %d items (%d skipped)", len(items), t.Skipped()))
				step(StateCompleted)
				continue
			}
			operand := items[cursor]
			t.mu.Lock()
			t.operand = operand
			t.mu.Unlock()
			t.setMessage(fmt.Sprintf("Operating on item %d/%d", cursor+1, len(items)))

			result, err := t.hooks.Operate(ctx, operand)
			operateErr = err
			t.mu.Lock()
			t.result = result
			t.mu.Unlock()
			step(StateProducingResult)

		case StateProducingResult:
			ok := operateErr == nil && t.hooks.Validate(t.Result())
			if ok {
				if err := t.hooks.Persist(ctx, t.Result()); err != nil {
					t.logger.Warn("persist failed", "error", err)
					ok = false
				}
			}
			if !ok {
				lastOK = false
				step(StateRetrying)
				continue
			}
			if !lastOK {
				t.setAttempt(0)
			}
			lastOK = true
			cursor++
			step(StateOperating)

		case StateRetrying:
			if t.Attempt() < t.maxRetries {
				t.setAttempt(t.Attempt() + 1)
				t.setMessage(fmt.Sprintf("Retrying item %d/%d (attempt %d/%d)",
					cursor+1, len(items), t.Attempt(), t.maxRetries))

				result, err := t.hooks.Operate(ctx, items[cursor])
				operateErr = err
				t.mu.Lock()
				t.result = result
				t.mu.Unlock()
				step(StateProducingResult)
				continue
			}

			// Retries exhausted: skip the poison item rather than failing
			// the whole task, so every recoverable item still produces
			// output.
			t.logger.Warn("retries exhausted, skipping item",
				"item", cursor+1,
				"attempts", t.maxRetries+1)
			t.mu.Lock()
			t.skipped++
			t.mu.Unlock()
			t.setMessage(fmt.Sprintf("Skipped item %d/%d after %d attempts",
				cursor+1, len(items), t.maxRetries+1))
			cursor++
			t.setAttempt(0)
			lastOK = true
			step(StateOperating)

		case StateRestarting:
			t.setMessage("Restarting resources")
			if err := t.hooks.Restart(ctx); err != nil {
				t.fail(fmt.Errorf("restart failed: %w", err))
				continue
			}
			items = nil
			cursor = 0
			lastOK = true
			t.setAttempt(0)
			step(StateAwaitingDependencies)

		case StateCompleted:
			t.logger.Info("task completed", "skipped", t.Skipped())
			return

		case StateFailed:
			return
		}
	}
}

func (t *Task[C, P]) setAttempt(n int) {
	t.mu.Lock()
	t.attempt = n
	t.mu.Unlock()
}

// awaitDependencies blocks until every dependency's completion signal has
// fired, success or failure alike, or the context is cancelled. This is
// the only point where one task blocks on another.
func (t *Task[C, P]) awaitDependencies(ctx context.Context) error {
	for _, dep := range t.Dependencies() {
		select {
		case <-dep.Done():
			if err := dep.Err(); err != nil {
				t.logger.Debug("dependency finished with failure, proceeding",
					"dependency", dep.Name(),
					"error", err)
			}
		case <-ctx.Done():
			return fmt.Errorf("cancelled while awaiting dependency %s: %w", dep.Name(), ctx.Err())
		}
	}
	return nil
}
