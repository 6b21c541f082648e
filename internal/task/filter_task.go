package task

import (
	"context"
	"fmt"

	"github.com/jelatinone/scholarfind/internal/agent"
	"github.com/jelatinone/scholarfind/internal/scholar"
	"github.com/jelatinone/scholarfind/internal/sink"
)

// KindFilter labels tasks that keep only the scholarships a student
// profile qualifies for.
const KindFilter = "filter"

var (
	_ Hooks[scholar.Annotation, verdict] = (*filterHooks)(nil)
	_ Flusher                            = (*filterHooks)(nil)
)

// verdict pairs an annotation with the evaluator's eligibility decision.
// A negative decision is a successful outcome, not a failure; only the
// qualifying records are persisted.
type verdict struct {
	annotation *scholar.Annotation
	qualified  bool
}

// filterHooks reads an annotation results file and persists the subset
// matching the student profile.
type filterHooks struct {
	source    string
	profile   scholar.Profile
	evaluator agent.Evaluator
	registry  *sink.Registry

	handle   *sink.Handle
	released bool
	status   func(string)

	kept int
}

func (h *filterHooks) Collect(ctx context.Context) ([]scholar.Annotation, error) {
	return sink.Load[scholar.Annotation](h.source)
}

func (h *filterHooks) Operate(ctx context.Context, annotation scholar.Annotation) (verdict, error) {
	qualified, err := h.evaluator.Qualifies(ctx, &annotation, h.profile)
	if err != nil {
		return verdict{}, fmt.Errorf("failed to evaluate %q: %w", annotation.Name, err)
	}
	return verdict{annotation: &annotation, qualified: qualified}, nil
}

func (h *filterHooks) Validate(v verdict) bool {
	return v.annotation != nil
}

func (h *filterHooks) Persist(ctx context.Context, v verdict) error {
	if !v.qualified {
		return nil
	}
	if err := h.handle.Write(v.annotation); err != nil {
		return err
	}
	h.kept++
	h.status(fmt.Sprintf("Matched %d scholarships", h.kept))
	return nil
}

func (h *filterHooks) Restart(ctx context.Context) error {
	if r, ok := h.evaluator.(agent.Resettable); ok {
		if err := r.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset evaluator: %w", err)
		}
	}
	if err := h.handle.Release(); err != nil {
		return fmt.Errorf("failed to release sink: %w", err)
	}
	handle, err := h.registry.Acquire(h.handle.Destination())
	if err != nil {
		return fmt.Errorf("failed to reacquire sink: %w", err)
	}
	h.handle = handle
	h.released = false
	return nil
}

// Flush releases the sink before the completion signal fires.
func (h *filterHooks) Flush(ctx context.Context) error {
	h.released = true
	return h.handle.Release()
}

func (h *filterHooks) Close() error {
	if h.released {
		return nil
	}
	h.released = true
	return h.handle.Release()
}
