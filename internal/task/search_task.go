package task

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jelatinone/scholarfind/internal/scholar"
	"github.com/jelatinone/scholarfind/internal/scrape"
	"github.com/jelatinone/scholarfind/internal/sink"
)

// KindSearch labels tasks that scrape anchor URLs from a source page.
const KindSearch = "search"

var (
	_ Hooks[string, string] = (*searchHooks)(nil)
	_ Flusher               = (*searchHooks)(nil)
)

// searchHooks scrapes one source page for outbound links and persists a
// single SearchDocument listing everything retrieved. The document is
// accumulated in memory and written once, when the task's resources are
// released, so the entry lands contiguously in the shared destination.
type searchHooks struct {
	source   string
	scraper  *scrape.Client
	registry *sink.Registry

	handle   *sink.Handle
	document *scholar.SearchDocument
	released bool
	status   func(string)
}

func (h *searchHooks) Collect(ctx context.Context) ([]string, error) {
	if _, err := url.ParseRequestURI(h.source); err != nil {
		return nil, fmt.Errorf("invalid source url %q: %w", h.source, err)
	}
	h.document = scholar.NewSearchDocument(h.source)
	anchors, err := h.scraper.Anchors(ctx, h.source)
	if err != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", h.source, err)
	}
	return anchors, nil
}

func (h *searchHooks) Operate(ctx context.Context, anchor string) (string, error) {
	return anchor, nil
}

func (h *searchHooks) Validate(anchor string) bool {
	return anchor != ""
}

func (h *searchHooks) Persist(ctx context.Context, anchor string) error {
	h.document.Retrieved = append(h.document.Retrieved, anchor)
	h.status(fmt.Sprintf("Retrieved %d links from %s", len(h.document.Retrieved), h.source))
	return nil
}

func (h *searchHooks) Restart(ctx context.Context) error {
	if err := h.handle.Release(); err != nil {
		return fmt.Errorf("failed to release sink: %w", err)
	}
	handle, err := h.registry.Acquire(h.handle.Destination())
	if err != nil {
		return fmt.Errorf("failed to reacquire sink: %w", err)
	}
	h.handle = handle
	h.document = nil
	h.released = false
	return nil
}

// Flush writes the accumulated search document and releases the sink, so
// tasks consuming this destination see a finished file the moment the
// completion signal fires.
func (h *searchHooks) Flush(ctx context.Context) error {
	if h.document != nil && len(h.document.Retrieved) > 0 {
		if err := h.handle.Write(h.document); err != nil {
			return fmt.Errorf("failed to persist search document: %w", err)
		}
	}
	h.released = true
	return h.handle.Release()
}

// Close releases the sink if a failure ended the run before Flush.
func (h *searchHooks) Close() error {
	if h.released {
		return nil
	}
	h.released = true
	return h.handle.Release()
}
