package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/tailored-agentic-units/jobflow/batch"
	"github.com/tailored-agentic-units/jobflow/config"
	"github.com/tailored-agentic-units/jobflow/flowmanager"
	"github.com/tailored-agentic-units/jobflow/job"
	"github.com/tailored-agentic-units/jobflow/observability"
)

func main() {
	var (
		graphName = flag.String("graph", "diamond", "Name to register the demo graph under")
		workers   = flag.Int("workers", 0, "Batch submission worker count; 0 for auto-detect")
		timeout   = flag.Duration("timeout", 30*time.Second, "How long to wait for all submitted tasks to complete")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	var logger *slog.Logger
	if *verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	cfg := config.DefaultFlowManagerConfig()
	if *verbose {
		cfg.Observer = "slog"
	}
	manager := flowmanager.New(cfg)
	defer manager.Shutdown(5 * time.Second)

	fqn, err := manager.AddDSL(buildDiamond(), *graphName, "")
	if err != nil {
		log.Fatalf("add dsl: %v", err)
	}

	tasks, err := readTasks(os.Stdin)
	if err != nil {
		log.Fatalf("read tasks: %v", err)
	}
	if len(tasks) == 0 {
		tasks = []job.Task{{}}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	dispatchCfg := config.DefaultParallelDispatchConfig()
	dispatchCfg.MaxWorkers = *workers

	_, err = batch.Dispatch(ctx, dispatchCfg, tasks, func(ctx context.Context, task job.Task) (struct{}, error) {
		return struct{}{}, manager.Submit(task, fqn)
	}, nil)
	if err != nil {
		log.Fatalf("submit batch: %v", err)
	}

	if _, err := manager.WaitForCompletion(ctx, *timeout, 20*time.Millisecond); err != nil {
		log.Fatalf("wait for completion: %v", err)
	}

	results := manager.PopResults()
	out, err := json.MarshalIndent(printableResults(results), "", "  ")
	if err != nil {
		log.Fatalf("marshal results: %v", err)
	}
	fmt.Println(string(out))
}

// printableResults renders a flowmanager.Results as plain JSON-friendly
// data, since the error interface values in Results.Errors don't marshal
// to anything useful on their own.
func printableResults(r flowmanager.Results) map[string]any {
	completed := make(map[string]any, len(r.Completed))
	for fqn, outs := range r.Completed {
		completed[fqn] = outs
	}
	errs := make(map[string]any, len(r.Errors))
	for fqn, list := range r.Errors {
		msgs := make([]string, len(list))
		for i, e := range list {
			msgs[i] = e.Error()
		}
		errs[fqn] = msgs
	}
	return map[string]any{"completed": completed, "errors": errs}
}

func readTasks(f *os.File) ([]job.Task, error) {
	stat, err := f.Stat()
	if err != nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return nil, nil
	}

	var tasks []job.Task
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var t job.Task
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, fmt.Errorf("parse task line: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, scanner.Err()
}
