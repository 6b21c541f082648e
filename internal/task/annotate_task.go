package task

import (
	"context"
	"fmt"

	"github.com/jelatinone/scholarfind/internal/agent"
	"github.com/jelatinone/scholarfind/internal/scholar"
	"github.com/jelatinone/scholarfind/internal/scrape"
	"github.com/jelatinone/scholarfind/internal/sink"
)

// KindAnnotate labels tasks that extract structured scholarship records
// from previously retrieved URLs.
const KindAnnotate = "annotate"

var (
	_ Hooks[string, *scholar.Annotation] = (*annotateHooks)(nil)
	_ Flusher                            = (*annotateHooks)(nil)
)

// annotateHooks turns a search results file into scholarship annotations:
// each retrieved URL is fetched, its visible text handed to the annotator,
// and the extracted record written to the shared destination.
type annotateHooks struct {
	source    string
	scraper   *scrape.Client
	annotator agent.Annotator
	registry  *sink.Registry

	handle   *sink.Handle
	released bool
	status   func(string)

	annotated int
}

func (h *annotateHooks) Collect(ctx context.Context) ([]string, error) {
	documents, err := sink.Load[scholar.SearchDocument](h.source)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var urls []string
	for _, doc := range documents {
		for _, u := range doc.Retrieved {
			if _, dup := seen[u]; dup {
				continue
			}
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
	}
	return urls, nil
}

func (h *annotateHooks) Operate(ctx context.Context, pageURL string) (*scholar.Annotation, error) {
	text, err := h.scraper.Text(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	annotation, err := h.annotator.Annotate(ctx, text, pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to annotate %s: %w", pageURL, err)
	}
	return annotation, nil
}

func (h *annotateHooks) Validate(annotation *scholar.Annotation) bool {
	return annotation != nil && annotation.Name != "" && annotation.URL != ""
}

func (h *annotateHooks) Persist(ctx context.Context, annotation *scholar.Annotation) error {
	if err := h.handle.Write(annotation); err != nil {
		return err
	}
	h.annotated++
	h.status(fmt.Sprintf("Annotated %d scholarships", h.annotated))
	return nil
}

// Restart rebuilds the annotator's connection when it supports that, and
// reopens the sink handle.
func (h *annotateHooks) Restart(ctx context.Context) error {
	if r, ok := h.annotator.(agent.Resettable); ok {
		if err := r.Reset(ctx); err != nil {
			return fmt.Errorf("failed to reset annotator: %w", err)
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

// Flush releases the sink before the completion signal fires, so the
// destination is a finished file by the time dependents read it.
func (h *annotateHooks) Flush(ctx context.Context) error {
	h.released = true
	return h.handle.Release()
}

func (h *annotateHooks) Close() error {
	if h.released {
		return nil
	}
	h.released = true
	return h.handle.Release()
}
