// Package cli parses the scholarfind command line. The surface mirrors a
// two-level layout: global options up front, then any number of --task
// groups, each naming a kind followed by that kind's own options.
//
//	scholarfind --maxThreads 4 --executorType fixed \
//	  --task search --from https://example.org --to output/search.json \
//	  --task annotate --from output/search.json --timeout 5
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Task kinds the command line accepts.
var kinds = map[string]struct{}{
	"search":   {},
	"annotate": {},
	"filter":   {},
}

// TaskArgs is one parsed --task group.
type TaskArgs struct {
	Kind    string
	From    string
	To      string
	Agent   string
	Profile string
	Timeout time.Duration
}

// Invocation is the fully parsed command line. Globals holds the parsed
// global flag set so the configuration layer can bind against it.
type Invocation struct {
	Globals *pflag.FlagSet
	Tasks   []TaskArgs
	Help    bool
}

// NewGlobalFlags declares the global option set.
func NewGlobalFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("scholarfind", pflag.ContinueOnError)
	flags.Bool("help", false, "output a descriptive help message")
	flags.Int("maxThreads", 0, "number of worker threads to run tasks with")
	flags.String("executorType", "", "executor kind: fixed, work-stealing, scheduled, or virtual")
	flags.Float64("timeout", 0, "default network timeout in seconds for every task")
	flags.String("log-level", "", "log verbosity: debug, info, warn, or error")
	return flags
}

// GlobalTimeout returns the --timeout value as a duration, or zero when
// the flag was not supplied.
func GlobalTimeout(flags *pflag.FlagSet) (time.Duration, error) {
	if !flags.Changed("timeout") {
		return 0, nil
	}
	seconds, err := flags.GetFloat64("timeout")
	if err != nil {
		return 0, err
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("timeout must be positive")
	}
	return time.Duration(seconds * float64(time.Second)), nil
}

// newTaskFlags declares the per-task option set shared by every kind; the
// parser rejects options a kind does not use after the fact, which keeps
// the group grammar uniform.
func newTaskFlags(kind string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(kind, pflag.ContinueOnError)
	flags.String("from", "", "input: a page URL or a results file path")
	flags.String("to", "", "output results file path")
	flags.Float64("timeout", 0, "maximum time (seconds) to wait for a network request")
	flags.String("agent", "", "agent provider to annotate or filter with")
	flags.String("profile", "", "student profile JSON path")
	return flags
}

// Parse splits the argument list into the global options and --task
// groups and parses each. A --task must be immediately followed by a
// kind; every token after that, up to the next --task, belongs to the
// group.
func Parse(arguments []string) (*Invocation, error) {
	var global []string
	var groups [][]string

	current := &global
	for i := 0; i < len(arguments); i++ {
		arg := arguments[i]
		switch {
		case arg == "--task" || arg == "-task":
			if i+1 >= len(arguments) {
				return nil, fmt.Errorf("--task requires a kind")
			}
			groups = append(groups, nil)
			current = &groups[len(groups)-1]
		case strings.HasPrefix(arg, "--task="):
			groups = append(groups, []string{strings.TrimPrefix(arg, "--task=")})
			current = &groups[len(groups)-1]
		default:
			*current = append(*current, arg)
		}
	}

	flags := NewGlobalFlags()
	if err := flags.Parse(global); err != nil {
		return nil, fmt.Errorf("failed to parse global options: %w", err)
	}
	help, _ := flags.GetBool("help")

	invocation := &Invocation{Globals: flags, Help: help}
	for _, group := range groups {
		args, err := parseGroup(group)
		if err != nil {
			return nil, err
		}
		invocation.Tasks = append(invocation.Tasks, args)
	}

	if !invocation.Help && len(invocation.Tasks) == 0 {
		return nil, fmt.Errorf("no runnable tasks found")
	}
	return invocation, nil
}

func parseGroup(group []string) (TaskArgs, error) {
	if len(group) == 0 {
		return TaskArgs{}, fmt.Errorf("--task requires a kind")
	}
	kind := group[0]
	if _, ok := kinds[kind]; !ok {
		return TaskArgs{}, fmt.Errorf("unknown task kind: %q", kind)
	}

	flags := newTaskFlags(kind)
	if err := flags.Parse(group[1:]); err != nil {
		return TaskArgs{}, fmt.Errorf("failed to parse %s options: %w", kind, err)
	}
	if rest := flags.Args(); len(rest) > 0 {
		return TaskArgs{}, fmt.Errorf("unexpected %s argument: %q", kind, rest[0])
	}

	args := TaskArgs{Kind: kind}
	args.From, _ = flags.GetString("from")
	args.To, _ = flags.GetString("to")
	args.Agent, _ = flags.GetString("agent")
	args.Profile, _ = flags.GetString("profile")

	seconds, _ := flags.GetFloat64("timeout")
	if seconds < 0 {
		return TaskArgs{}, fmt.Errorf("%s timeout cannot be negative", kind)
	}
	args.Timeout = time.Duration(seconds * float64(time.Second))

	switch kind {
	case "search":
		if args.Profile != "" {
			return TaskArgs{}, fmt.Errorf("search does not accept --profile")
		}
		if args.Agent != "" {
			return TaskArgs{}, fmt.Errorf("search does not accept --agent")
		}
	case "annotate":
		if args.Profile != "" {
			return TaskArgs{}, fmt.Errorf("annotate does not accept --profile")
		}
	case "filter":
		if args.Profile == "" {
			return TaskArgs{}, fmt.Errorf("filter requires --profile")
		}
	}
	if args.From == "" {
		return TaskArgs{}, fmt.Errorf("%s requires --from", kind)
	}
	return args, nil
}

// Usage is the help text printed for --help or a parse failure.
const Usage = `scholarfind - scrape, annotate, and filter scholarship listings

Usage:
  scholarfind [global options] --task <kind> [task options] [--task <kind> ...]

Global options:
      --maxThreads <n>      number of worker threads (default 4)
      --executorType <t>    fixed, work-stealing, scheduled, or virtual (default fixed);
                            scheduled runs tasks like fixed, differing only in its
                            support for delayed submission
      --timeout <seconds>   default network timeout for every task (default 3.5)
      --log-level <level>   debug, info, warn, or error (default info)
      --help                show this message

Task kinds and their options:
  search    --from <url>   --to <file>  [--timeout <seconds>]
  annotate  --from <file>  --to <file>  [--timeout <seconds>] [--agent <name>]
  filter    --from <file>  --to <file>  --profile <file> [--agent <name>]

The GEMINI_API_KEY environment variable must hold the LLM credential for
annotate and filter tasks.
`
