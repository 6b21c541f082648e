// Package main implements the scholarfind command: a batch runner that
// scrapes scholarship listing pages, annotates each discovered page with
// an LLM extraction agent, and filters the results against a student
// profile, all under a configurable worker pool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jelatinone/scholarfind/internal/cli"
	"github.com/jelatinone/scholarfind/internal/config"
	"github.com/jelatinone/scholarfind/internal/events"
	"github.com/jelatinone/scholarfind/internal/platform/gemini"
	"github.com/jelatinone/scholarfind/internal/platform/logger"
	"github.com/jelatinone/scholarfind/internal/scrape"
	"github.com/jelatinone/scholarfind/internal/sink"
	"github.com/jelatinone/scholarfind/internal/task"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(arguments []string) int {
	invocation, err := cli.Parse(arguments)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scholarfind: %v\n\n%s", err, cli.Usage)
		return 2
	}
	if invocation.Help {
		fmt.Print(cli.Usage)
		return 0
	}

	cfg, err := config.Load(invocation.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scholarfind: %v\n", err)
		return 2
	}
	if timeout, err := cli.GlobalTimeout(invocation.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "scholarfind: %v\n", err)
		return 2
	} else if timeout > 0 {
		cfg.NetworkTimeout = timeout
	}
	log := logger.Setup(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := buildEnvironment(ctx, cfg, log, invocation.Tasks)
	if err != nil {
		log.Error("failed to initialize", "error", err)
		return 2
	}

	tasks, err := buildTasks(invocation.Tasks, env)
	if err != nil {
		log.Error("failed to construct tasks", "error", err)
		return 2
	}

	pool, err := task.NewPool(cfg.Pool.Executor, cfg.Pool.MaxWorkers, log)
	if err != nil {
		log.Error("failed to build worker pool", "error", err)
		return 2
	}
	scheduler, err := task.NewScheduler(pool, log)
	if err != nil {
		log.Error("failed to build scheduler", "error", err)
		return 2
	}

	renderer := cli.NewRenderer(os.Stdout, func() []string {
		lines := make([]string, 0, len(tasks))
		for _, r := range tasks {
			lines = append(lines, r.Report())
		}
		return lines
	})
	go renderer.Run(env.Stream)

	log.Info("executing tasks", "count", len(tasks), "executor", cfg.Pool.Executor)
	for _, r := range tasks {
		if err := scheduler.Submit(ctx, r); err != nil {
			log.Error("failed to submit task", "task", r.Name(), "error", err)
			return 1
		}
	}

	runErr := scheduler.Wait(ctx)
	env.Stream.Close()
	renderer.Wait()

	if runErr != nil {
		log.Error("run finished with failures", "error", runErr)
		return 1
	}
	log.Info("run finished")
	return 0
}

// buildEnvironment assembles the shared collaborators. The LLM agent is
// only constructed when a task actually needs one, so pure search runs do
// not require a credential.
func buildEnvironment(ctx context.Context, cfg *config.Config, log *slog.Logger, specs []cli.TaskArgs) (task.Environment, error) {
	env := task.Environment{
		Registry: sink.NewRegistry(log),
		Scraper:  scrape.NewClient(cfg.NetworkTimeout, log),
		Logger:   log,
		Stream:   events.NewStream(256, log),
	}

	for _, spec := range specs {
		if spec.Kind == task.KindSearch {
			continue
		}
		if spec.Agent != "" && spec.Agent != "gemini" {
			return task.Environment{}, fmt.Errorf("unknown agent provider: %q", spec.Agent)
		}
		provider, err := gemini.NewAgent(ctx, log, cfg.LLM)
		if err != nil {
			return task.Environment{}, err
		}
		env.Annotator = provider
		env.Evaluator = provider
		break
	}
	return env, nil
}

// buildTasks constructs every requested task and wires dependency edges
// between them: a task reading a file other tasks write waits for every
// writer's completion signal. All producers matter, not just one — a
// shared destination is finalized only when its last writer releases it,
// so a consumer depending on a subset could read a truncated file.
func buildTasks(specs []cli.TaskArgs, env task.Environment) ([]task.Runner, error) {
	producers := make(map[string][]task.Runner)
	tasks := make([]task.Runner, 0, len(specs))

	for i, args := range specs {
		spec := task.Spec{
			Kind:        args.Kind,
			Name:        fmt.Sprintf("%s-%d", args.Kind, i+1),
			Source:      args.From,
			Destination: args.To,
			ProfilePath: args.Profile,
			Timeout:     args.Timeout,
		}
		if spec.Destination == "" {
			spec.Destination = task.DefaultDestination(spec.Kind)
		}

		r, err := task.NewFromSpec(spec, env)
		if err != nil {
			return nil, err
		}

		for _, producer := range producers[spec.Source] {
			if err := r.DependsOn(producer); err != nil {
				return nil, err
			}
		}
		producers[spec.Destination] = append(producers[spec.Destination], r)
		tasks = append(tasks, r)
	}
	return tasks, nil
}
