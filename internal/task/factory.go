package task

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jelatinone/scholarfind/internal/agent"
	"github.com/jelatinone/scholarfind/internal/events"
	"github.com/jelatinone/scholarfind/internal/scholar"
	"github.com/jelatinone/scholarfind/internal/scrape"
	"github.com/jelatinone/scholarfind/internal/sink"
)

// Spec describes one task to build: its kind plus the per-task options the
// command line accepts.
type Spec struct {
	// Kind selects the work kind: search, annotate, or filter.
	Kind string

	// Name identifies the task in status output. Defaults to the kind.
	Name string

	// Source is the input: a page URL for search, a results file path for
	// annotate and filter.
	Source string

	// Destination is the output file. Empty selects the default path for
	// the kind.
	Destination string

	// ProfilePath locates the student profile JSON. Filter tasks only.
	ProfilePath string

	// Timeout overrides the shared network timeout for this task's page
	// fetches when positive.
	Timeout time.Duration

	// MaxRetries overrides the per-item retry bound when positive.
	MaxRetries int
}

// Environment carries the shared collaborators every task draws from.
type Environment struct {
	Registry  *sink.Registry
	Scraper   *scrape.Client
	Annotator agent.Annotator
	Evaluator agent.Evaluator
	Logger    *slog.Logger
	Stream    *events.Stream
}

// DefaultDestination is the output path used when a spec leaves the
// destination blank: one file per kind per day.
func DefaultDestination(kind string) string {
	return fmt.Sprintf("output/%s-results_%s.json", kind, time.Now().Format("2006-01-02"))
}

// NewFromSpec builds a runnable task of the requested kind, acquiring its
// sink handle up front so shared destinations are merged before any task
// starts writing.
func NewFromSpec(spec Spec, env Environment) (Runner, error) {
	if spec.Source == "" {
		return nil, fmt.Errorf("task kind %s requires a source", spec.Kind)
	}
	if env.Registry == nil || env.Logger == nil {
		return nil, fmt.Errorf("environment is missing registry or logger")
	}

	name := spec.Name
	if name == "" {
		name = spec.Kind
	}
	destination := spec.Destination
	if destination == "" {
		destination = DefaultDestination(spec.Kind)
	}
	cfg := Config{
		MaxRetries: spec.MaxRetries,
		Logger:     env.Logger,
		Stream:     env.Stream,
	}
	scraper := env.Scraper
	if spec.Timeout > 0 {
		scraper = scrape.NewClient(spec.Timeout, env.Logger)
	}

	switch spec.Kind {
	case KindSearch:
		if env.Scraper == nil {
			return nil, fmt.Errorf("search task requires a scrape client")
		}
		handle, err := env.Registry.Acquire(destination)
		if err != nil {
			return nil, err
		}
		hooks := &searchHooks{
			source:   spec.Source,
			scraper:  scraper,
			registry: env.Registry,
			handle:   handle,
		}
		t, err := New[string, string](name, KindSearch, hooks, cfg)
		if err != nil {
			_ = handle.Release()
			return nil, err
		}
		hooks.status = t.setMessage
		return t, nil

	case KindAnnotate:
		if env.Scraper == nil || env.Annotator == nil {
			return nil, fmt.Errorf("annotate task requires a scrape client and an annotator")
		}
		handle, err := env.Registry.Acquire(destination)
		if err != nil {
			return nil, err
		}
		hooks := &annotateHooks{
			source:    spec.Source,
			scraper:   scraper,
			annotator: env.Annotator,
			registry:  env.Registry,
			handle:    handle,
		}
		t, err := New[string, *scholar.Annotation](name, KindAnnotate, hooks, cfg)
		if err != nil {
			_ = handle.Release()
			return nil, err
		}
		hooks.status = t.setMessage
		return t, nil

	case KindFilter:
		if env.Evaluator == nil {
			return nil, fmt.Errorf("filter task requires an evaluator")
		}
		if spec.ProfilePath == "" {
			return nil, fmt.Errorf("filter task requires a profile")
		}
		profile, err := scholar.LoadProfile(spec.ProfilePath)
		if err != nil {
			return nil, err
		}
		handle, err := env.Registry.Acquire(destination)
		if err != nil {
			return nil, err
		}
		hooks := &filterHooks{
			source:    spec.Source,
			profile:   profile,
			evaluator: env.Evaluator,
			registry:  env.Registry,
			handle:    handle,
		}
		t, err := New[scholar.Annotation, verdict](name, KindFilter, hooks, cfg)
		if err != nil {
			_ = handle.Release()
			return nil, err
		}
		hooks.status = t.setMessage
		return t, nil

	default:
		return nil, fmt.Errorf("unknown task kind: %q", spec.Kind)
	}
}
