// Package agent defines the boundary between the task engine and the LLM
// services that annotate and filter scholarship pages. Concrete providers
// live under internal/platform; tasks depend only on these interfaces.
package agent

import (
	"context"

	"github.com/jelatinone/scholarfind/internal/scholar"
)

// Annotator extracts a structured scholarship record from page text.
type Annotator interface {
	// Annotate maps the visible text of one page to an Annotation. The
	// returned record's URL field is set to pageURL. Implementations must
	// be safe to call concurrently and safe to retry.
	Annotate(ctx context.Context, pageText string, pageURL string) (*scholar.Annotation, error)
}

// Evaluator decides whether a student qualifies for a scholarship.
type Evaluator interface {
	// Qualifies reports whether the annotation satisfies every eligibility
	// requirement and every preference the profile states. Attributes the
	// profile does not mention are ignored unless the scholarship requires
	// them.
	Qualifies(ctx context.Context, annotation *scholar.Annotation, profile scholar.Profile) (bool, error)
}

// Resettable is implemented by providers whose connection can be torn down
// and rebuilt; a task's restart hook uses it to reacquire the client.
type Resettable interface {
	Reset(ctx context.Context) error
}
