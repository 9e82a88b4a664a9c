// Package worker runs load and import jobs on a bounded set of goroutines.
package worker

import (
	"context"
	"sync"
	"time"
)

// Handler processes one task and reports how many items it produced, e.g.
// the facilities read from one file or the features of one dataset.
type Handler interface {
	Handle(ctx context.Context, task Task) (int, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task Task) (int, error)

// Handle calls f(ctx, task).
func (f HandlerFunc) Handle(ctx context.Context, task Task) (int, error) {
	return f(ctx, task)
}

// Task is one source to process.
type Task struct {
	Name   string
	Source string
}

// Result is the outcome of one task. Count is zero when Err is set.
type Result struct {
	Task    Task
	Count   int
	Err     error
	Elapsed time.Duration
}

// Stats is a running tally of a Run.
type Stats struct {
	Tasks  int // tasks submitted
	Done   int // tasks finished, successful or not
	Failed int
	// Items is the sum of Count over successful tasks.
	Items int
}

// Remaining returns the number of unfinished tasks.
func (s Stats) Remaining() int { return s.Tasks - s.Done }

// ProgressFunc is called from a single goroutine after each task finishes.
type ProgressFunc func(Stats)

// Config configures the worker pool.
type Config struct {
	// Workers is the number of goroutines (default: 1)
	Workers    int
	Handler    Handler
	OnProgress ProgressFunc
}

// Pool runs tasks through a Handler on a fixed number of goroutines.
type Pool struct {
	workers    int
	handler    Handler
	onProgress ProgressFunc
}

// New creates a worker pool.
func New(cfg Config) *Pool {
	return &Pool{
		workers:    max(cfg.Workers, 1),
		handler:    cfg.Handler,
		onProgress: cfg.OnProgress,
	}
}

// Run processes tasks and returns one result per task in completion order.
// Tasks not started before ctx is cancelled finish with ctx.Err().
func (p *Pool) Run(ctx context.Context, tasks []Task) []Result {
	if len(tasks) == 0 {
		return nil
	}

	queue := make(chan Task, len(tasks))
	for _, t := range tasks {
		queue <- t
	}
	close(queue)

	out := make(chan Result, len(tasks))
	var wg sync.WaitGroup
	for range min(p.workers, len(tasks)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range queue {
				out <- p.run(ctx, t)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()

	stats := Stats{Tasks: len(tasks)}
	results := make([]Result, 0, len(tasks))
	for r := range out {
		results = append(results, r)
		stats.Done++
		if r.Err != nil {
			stats.Failed++
		} else {
			stats.Items += r.Count
		}
		if p.onProgress != nil {
			p.onProgress(stats)
		}
	}
	return results
}

func (p *Pool) run(ctx context.Context, t Task) Result {
	if err := ctx.Err(); err != nil {
		return Result{Task: t, Err: err}
	}
	start := time.Now()
	n, err := p.handler.Handle(ctx, t)
	if err != nil {
		n = 0
	}
	return Result{Task: t, Count: n, Err: err, Elapsed: time.Since(start)}
}
