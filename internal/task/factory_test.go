package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jelatinone/scholarfind/internal/scholar"
	"github.com/jelatinone/scholarfind/internal/scrape"
	"github.com/jelatinone/scholarfind/internal/sink"
)

// fakeAnnotator returns a canned annotation keyed on the page URL.
type fakeAnnotator struct {
	err error
}

func (f *fakeAnnotator) Annotate(_ context.Context, _ string, pageURL string) (*scholar.Annotation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &scholar.Annotation{
		Name:         "Scholarship at " + pageURL,
		Organization: "Test Org",
		URL:          pageURL,
	}, nil
}

// fakeEvaluator qualifies every annotation whose name contains the
// configured marker.
type fakeEvaluator struct {
	marker string
	err    error
}

func (f *fakeEvaluator) Qualifies(_ context.Context, annotation *scholar.Annotation, _ scholar.Profile) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return strings.Contains(annotation.Name, f.marker), nil
}

func testEnv(t *testing.T) Environment {
	t.Helper()
	logger := testLogger()
	return Environment{
		Registry:  sink.NewRegistry(logger),
		Scraper:   scrape.NewClient(2*time.Second, logger),
		Annotator: &fakeAnnotator{},
		Evaluator: &fakeEvaluator{marker: "Scholarship"},
		Logger:    logger,
	}
}

func readResultsFile(t *testing.T, path string) []json.RawMessage {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var wrapper struct {
		Results []json.RawMessage `json:"results"`
	}
	require.NoError(t, json.Unmarshal(data, &wrapper), "file %s should parse: %s", path, data)
	return wrapper.Results
}

func writeSearchResults(t *testing.T, path string, docs ...scholar.SearchDocument) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"results": docs})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, payload, 0o644))
}

func runToCompletion(t *testing.T, r Runner) {
	t.Helper()
	r.Run(context.Background())
	require.NoError(t, r.Close())
	waitDone(t, r)
}

func TestNewFromSpecValidation(t *testing.T) {
	t.Parallel()
	env := testEnv(t)

	_, err := NewFromSpec(Spec{Kind: KindSearch}, env)
	assert.ErrorContains(t, err, "requires a source")

	_, err = NewFromSpec(Spec{Kind: "transmute", Source: "x"}, env)
	assert.ErrorContains(t, err, "unknown task kind")

	_, err = NewFromSpec(Spec{Kind: KindFilter, Source: "x", Destination: filepath.Join(t.TempDir(), "out.json")}, env)
	assert.ErrorContains(t, err, "requires a profile")

	noScraper := env
	noScraper.Scraper = nil
	_, err = NewFromSpec(Spec{Kind: KindSearch, Source: "http://example.com"}, noScraper)
	assert.ErrorContains(t, err, "requires a scrape client")
}

func TestSearchTaskEndToEnd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a href="/scholarships/stem">STEM Award</a>
			<a href="https://example.org/grant">Grant</a>
			<a href="#section">Skip me</a>
		</body></html>`)
	}))
	defer server.Close()

	destination := filepath.Join(t.TempDir(), "search.json")
	env := testEnv(t)
	task, err := NewFromSpec(Spec{
		Kind:        KindSearch,
		Source:      server.URL,
		Destination: destination,
	}, env)
	require.NoError(t, err)
	assert.Equal(t, KindSearch, task.Kind())

	runToCompletion(t, task)
	require.Equal(t, StateCompleted, task.State())
	assert.NoError(t, task.Err())

	entries := readResultsFile(t, destination)
	require.Len(t, entries, 1)

	var doc scholar.SearchDocument
	require.NoError(t, json.Unmarshal(entries[0], &doc))
	assert.Equal(t, server.URL, doc.Source)
	assert.NotEmpty(t, doc.Date)
	assert.Contains(t, doc.Retrieved, server.URL+"/scholarships/stem")
	assert.Contains(t, doc.Retrieved, "https://example.org/grant")
	assert.Len(t, doc.Retrieved, 2)
	assert.Equal(t, 0, env.Registry.Open())
}

func TestSearchTasksShareDestination(t *testing.T) {
	t.Parallel()

	page := func(links ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			for _, link := range links {
				fmt.Fprintf(w, `<a href=%q>link</a>`, link)
			}
		}
	}
	first := httptest.NewServer(page("https://a.example.org/1"))
	defer first.Close()
	second := httptest.NewServer(page("https://b.example.org/1", "https://b.example.org/2"))
	defer second.Close()

	destination := filepath.Join(t.TempDir(), "shared.json")
	env := testEnv(t)

	one, err := NewFromSpec(Spec{Kind: KindSearch, Name: "one", Source: first.URL, Destination: destination}, env)
	require.NoError(t, err)
	two, err := NewFromSpec(Spec{Kind: KindSearch, Name: "two", Source: second.URL, Destination: destination}, env)
	require.NoError(t, err)

	// Both tasks hold the same underlying handle.
	assert.Equal(t, 1, env.Registry.Open())

	runToCompletion(t, one)
	runToCompletion(t, two)

	entries := readResultsFile(t, destination)
	assert.Len(t, entries, 2)
	assert.Equal(t, 0, env.Registry.Open())
}

func TestAnnotateTaskEndToEnd(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Apply for the award today.</p></body></html>`)
	}))
	defer server.Close()

	dir := t.TempDir()
	source := filepath.Join(dir, "search.json")
	pageA := server.URL + "/a"
	pageB := server.URL + "/b"
	writeSearchResults(t, source,
		scholar.SearchDocument{Source: "s1", Retrieved: []string{pageA, pageB}},
		scholar.SearchDocument{Source: "s2", Retrieved: []string{pageA}}, // duplicate of pageA
	)

	destination := filepath.Join(dir, "annotations.json")
	env := testEnv(t)
	task, err := NewFromSpec(Spec{Kind: KindAnnotate, Source: source, Destination: destination}, env)
	require.NoError(t, err)

	runToCompletion(t, task)
	require.Equal(t, StateCompleted, task.State())

	entries := readResultsFile(t, destination)
	require.Len(t, entries, 2, "duplicate URLs collapse to one annotation")

	var got []string
	for _, raw := range entries {
		var annotation scholar.Annotation
		require.NoError(t, json.Unmarshal(raw, &annotation))
		got = append(got, annotation.URL)
	}
	assert.Equal(t, []string{pageA, pageB}, got)
}

func TestAnnotateTaskMissingSourceFails(t *testing.T) {
	t.Parallel()

	env := testEnv(t)
	task, err := NewFromSpec(Spec{
		Kind:        KindAnnotate,
		Source:      filepath.Join(t.TempDir(), "absent.json"),
		Destination: filepath.Join(t.TempDir(), "out.json"),
	}, env)
	require.NoError(t, err)

	runToCompletion(t, task)
	assert.Equal(t, StateFailed, task.State())
	assert.ErrorContains(t, task.Err(), "collect failed")
}

func TestFilterTaskEndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "annotations.json")
	annotations := []scholar.Annotation{
		{Name: "STEM Scholarship", URL: "https://a.example.org"},
		{Name: "Art Grant", URL: "https://b.example.org"},
		{Name: "Merit Scholarship", URL: "https://c.example.org"},
	}
	payload, err := json.Marshal(map[string]any{"results": annotations})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(source, payload, 0o644))

	profilePath := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(profilePath, []byte(`{"gpa": 3.8, "major": "physics"}`), 0o644))

	destination := filepath.Join(dir, "matches.json")
	env := testEnv(t)
	env.Evaluator = &fakeEvaluator{marker: "Scholarship"}

	task, err := NewFromSpec(Spec{
		Kind:        KindFilter,
		Source:      source,
		Destination: destination,
		ProfilePath: profilePath,
	}, env)
	require.NoError(t, err)

	runToCompletion(t, task)
	require.Equal(t, StateCompleted, task.State())

	entries := readResultsFile(t, destination)
	require.Len(t, entries, 2, "only qualifying scholarships are kept")
	for _, raw := range entries {
		var annotation scholar.Annotation
		require.NoError(t, json.Unmarshal(raw, &annotation))
		assert.Contains(t, annotation.Name, "Scholarship")
	}
}

func TestFilterTaskEvaluatorErrorSkipsItem(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	source := filepath.Join(dir, "annotations.json")
	payload, err := json.Marshal(map[string]any{"results": []scholar.Annotation{
		{Name: "Broken", URL: "https://x.example.org"},
	}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(source, payload, 0o644))

	profilePath := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(profilePath, []byte(`{}`), 0o644))

	env := testEnv(t)
	env.Evaluator = &fakeEvaluator{err: errors.New("model unavailable")}

	destination := filepath.Join(dir, "matches.json")
	task, err := NewFromSpec(Spec{
		Kind:        KindFilter,
		Source:      source,
		Destination: destination,
		ProfilePath: profilePath,
		MaxRetries:  1,
	}, env)
	require.NoError(t, err)

	runToCompletion(t, task)
	assert.Equal(t, StateCompleted, task.State())
	assert.Empty(t, readResultsFile(t, destination))
}

// Full pipeline: search feeds annotate feeds filter, wired by dependency
// edges and run through the scheduler.
func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/award/stem">STEM</a><a href="/award/arts">Arts</a>`)
	})
	mux.HandleFunc("/award/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<p>Scholarship details here.</p>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	dir := t.TempDir()
	searchOut := filepath.Join(dir, "search.json")
	annotateOut := filepath.Join(dir, "annotations.json")
	filterOut := filepath.Join(dir, "matches.json")
	profilePath := filepath.Join(dir, "profile.json")
	require.NoError(t, os.WriteFile(profilePath, []byte(`{"gpa": 4.0}`), 0o644))

	env := testEnv(t)

	search, err := NewFromSpec(Spec{Kind: KindSearch, Source: server.URL, Destination: searchOut}, env)
	require.NoError(t, err)
	annotate, err := NewFromSpec(Spec{Kind: KindAnnotate, Source: searchOut, Destination: annotateOut}, env)
	require.NoError(t, err)
	filter, err := NewFromSpec(Spec{
		Kind:        KindFilter,
		Source:      annotateOut,
		Destination: filterOut,
		ProfilePath: profilePath,
	}, env)
	require.NoError(t, err)

	require.NoError(t, annotate.DependsOn(search))
	require.NoError(t, filter.DependsOn(annotate))

	pool, err := NewPool(ExecutorVirtual, 0, testLogger())
	require.NoError(t, err)
	scheduler, err := NewScheduler(pool, testLogger())
	require.NoError(t, err)

	ctx := context.Background()
	// Deliberately submitted in reverse.
	require.NoError(t, scheduler.Submit(ctx, filter))
	require.NoError(t, scheduler.Submit(ctx, annotate))
	require.NoError(t, scheduler.Submit(ctx, search))
	require.NoError(t, scheduler.Wait(ctx))

	assert.Len(t, readResultsFile(t, searchOut), 1)
	assert.Len(t, readResultsFile(t, annotateOut), 2)
	assert.Len(t, readResultsFile(t, filterOut), 2)
	assert.Equal(t, 0, env.Registry.Open())
}
