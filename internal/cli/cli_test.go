package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSingleTask(t *testing.T) {
	t.Parallel()

	invocation, err := Parse([]string{
		"--maxThreads", "8",
		"--executorType", "virtual",
		"--task", "search",
		"--from", "https://example.org",
		"--to", "output/search.json",
		"--timeout", "5",
	})
	require.NoError(t, err)

	threads, err := invocation.Globals.GetInt("maxThreads")
	require.NoError(t, err)
	assert.Equal(t, 8, threads)
	executor, err := invocation.Globals.GetString("executorType")
	require.NoError(t, err)
	assert.Equal(t, "virtual", executor)

	require.Len(t, invocation.Tasks, 1)
	task := invocation.Tasks[0]
	assert.Equal(t, "search", task.Kind)
	assert.Equal(t, "https://example.org", task.From)
	assert.Equal(t, "output/search.json", task.To)
	assert.Equal(t, 5*time.Second, task.Timeout)
}

func TestParseMultipleTaskGroups(t *testing.T) {
	t.Parallel()

	invocation, err := Parse([]string{
		"--task", "search", "--from", "https://example.org", "--to", "s.json",
		"--task", "annotate", "--from", "s.json", "--to", "a.json", "--agent", "gemini",
		"--task", "filter", "--from", "a.json", "--to", "f.json", "--profile", "profile.json",
	})
	require.NoError(t, err)
	require.Len(t, invocation.Tasks, 3)

	assert.Equal(t, "search", invocation.Tasks[0].Kind)
	assert.Equal(t, "annotate", invocation.Tasks[1].Kind)
	assert.Equal(t, "gemini", invocation.Tasks[1].Agent)
	assert.Equal(t, "filter", invocation.Tasks[2].Kind)
	assert.Equal(t, "profile.json", invocation.Tasks[2].Profile)
}

func TestParseEqualsSyntax(t *testing.T) {
	t.Parallel()

	invocation, err := Parse([]string{
		"--task", "search", "--from=https://example.org", "--timeout=2.5",
	})
	require.NoError(t, err)
	require.Len(t, invocation.Tasks, 1)
	assert.Equal(t, "https://example.org", invocation.Tasks[0].From)
	assert.Equal(t, 2500*time.Millisecond, invocation.Tasks[0].Timeout)
}

func TestGlobalTimeout(t *testing.T) {
	t.Parallel()

	invocation, err := Parse([]string{
		"--timeout", "7.5",
		"--task", "search", "--from", "https://example.org",
	})
	require.NoError(t, err)

	timeout, err := GlobalTimeout(invocation.Globals)
	require.NoError(t, err)
	assert.Equal(t, 7500*time.Millisecond, timeout)

	invocation, err = Parse([]string{"--task", "search", "--from", "https://example.org"})
	require.NoError(t, err)
	timeout, err = GlobalTimeout(invocation.Globals)
	require.NoError(t, err)
	assert.Zero(t, timeout)
}

func TestParseHelpWithoutTasks(t *testing.T) {
	t.Parallel()

	invocation, err := Parse([]string{"--help"})
	require.NoError(t, err)
	assert.True(t, invocation.Help)
	assert.Empty(t, invocation.Tasks)
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no tasks", []string{"--maxThreads", "2"}, "no runnable tasks"},
		{"trailing task flag", []string{"--task"}, "--task requires a kind"},
		{"unknown kind", []string{"--task", "transmute", "--from", "x"}, "unknown task kind"},
		{"missing from", []string{"--task", "search", "--to", "out.json"}, "search requires --from"},
		{"filter without profile", []string{"--task", "filter", "--from", "a.json"}, "filter requires --profile"},
		{"search with profile", []string{"--task", "search", "--from", "x", "--profile", "p.json"}, "search does not accept --profile"},
		{"search with agent", []string{"--task", "search", "--from", "x", "--agent", "gemini"}, "search does not accept --agent"},
		{"annotate with profile", []string{"--task", "annotate", "--from", "x", "--profile", "p.json"}, "annotate does not accept --profile"},
		{"negative timeout", []string{"--task", "search", "--from", "x", "--timeout", "-1"}, "timeout cannot be negative"},
		{"stray positional", []string{"--task", "search", "--from", "x", "stray"}, "unexpected search argument"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tc.args)
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
