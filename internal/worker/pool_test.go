package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileTasks returns one task per name, with the record count encoded in the
// source, as the importer hands out facility files.
func fileTasks(counts map[string]int) []Task {
	tasks := make([]Task, 0, len(counts))
	for name, n := range counts {
		tasks = append(tasks, Task{Name: name, Source: fmt.Sprint(n)})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
	return tasks
}

func countHandler(fail map[string]bool) HandlerFunc {
	return func(_ context.Context, t Task) (int, error) {
		var n int
		_, _ = fmt.Sscan(t.Source, &n)
		if fail[t.Name] {
			return n, errors.New("malformed record")
		}
		return n, nil
	}
}

func TestRun_SumsItemsOfSuccessfulTasks(t *testing.T) {
	var seen []Stats
	pool := New(Config{
		Workers:    3,
		Handler:    countHandler(map[string]bool{"broken.json": true}),
		OnProgress: func(s Stats) { seen = append(seen, s) },
	})

	results := pool.Run(context.Background(), fileTasks(map[string]int{
		"seoul.json": 120, "busan.json": 45, "broken.json": 9, "jeju.json": 3,
	}))

	require.Len(t, results, 4)
	for _, r := range results {
		if r.Task.Name == "broken.json" {
			assert.Error(t, r.Err)
			assert.Zero(t, r.Count, "a failed task contributes no items")
			continue
		}
		assert.NoError(t, r.Err)
	}

	require.Len(t, seen, 4)
	for i, s := range seen {
		assert.Equal(t, i+1, s.Done)
		assert.Equal(t, 4, s.Tasks)
	}
	assert.Equal(t, Stats{Tasks: 4, Done: 4, Failed: 1, Items: 168}, seen[3])
	assert.Zero(t, seen[3].Remaining())
}

func TestRun_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	pool := New(Config{
		Workers: 2,
		Handler: HandlerFunc(func(context.Context, Task) (int, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return 1, nil
		}),
	})

	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Name: fmt.Sprintf("part-%d.json", i)}
	}
	results := pool.Run(context.Background(), tasks)

	assert.Len(t, results, 8)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_CancelledTasksReportContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var handled atomic.Int32
	pool := New(Config{
		Workers: 1,
		Handler: HandlerFunc(func(context.Context, Task) (int, error) {
			handled.Add(1)
			cancel()
			return 10, nil
		}),
	})

	results := pool.Run(ctx, fileTasks(map[string]int{"a.json": 1, "b.json": 1, "c.json": 1}))

	require.Len(t, results, 3, "every task gets a result")
	assert.Equal(t, int32(1), handled.Load())
	var cancelled int
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelled++
		}
	}
	assert.Equal(t, 2, cancelled)
}

func TestRun_NoTasks(t *testing.T) {
	called := false
	pool := New(Config{Handler: countHandler(nil), OnProgress: func(Stats) { called = true }})

	assert.Nil(t, pool.Run(context.Background(), nil))
	assert.False(t, called)
}

func TestNew_AtLeastOneWorker(t *testing.T) {
	assert.Equal(t, 1, New(Config{Workers: -4}).workers)
}
