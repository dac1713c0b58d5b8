package taskqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithAlarm(t *testing.T) {
	mu := sync.Mutex{}
	res := map[Subject]int{
		"schema": 0,
		"gen":    0,
	}
	hAlarm := func(task *Task) error {
		mu.Lock()
		res[task.Subject] += 1
		mu.Unlock()
		return nil
	}
	hTask := func(task *Task) error {
		time.Sleep(time.Millisecond * 20)
		return nil
	}
	handlers := map[Subject]Handler{
		"schema": hTask,
		"gen":    hTask,
	}
	q := NewTaskQueue(
		WithHandlers(handlers),
		WithAlarm(time.Millisecond, hAlarm),
	)
	defer q.Close()

	ctx := context.Background()
	_, err := q.PushAsync(ctx, "schema")
	assert.NoError(t, err)
	assert.NoError(t, q.PushSync(ctx, "gen"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, map[Subject]int{"schema": 1, "gen": 1}, res)
}

func TestWithCapacity(t *testing.T) {
	release := make(chan struct{})
	hTask := func(task *Task) error {
		<-release
		return nil
	}
	var last []Task
	q := NewTaskQueue(
		WithCapacity(2),
		WithHandlers(map[Subject]Handler{"parse": hTask}),
		WithDebugger(func(tasks []Task) { last = tasks }),
	)

	ctx := context.Background()
	var err error
	for range 4 {
		if _, err = q.PushAsync(ctx, "parse"); err != nil {
			break
		}
	}
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrTaskQueue))
	assert.True(t, errors.Is(err, ErrTaskQueueCapacity))
	assert.NotEmpty(t, last)
	close(release)
	q.Close()
}

func TestWithHandlers(t *testing.T) {
	mu := sync.Mutex{}
	res := map[Subject]int{}
	hTask := func(task *Task) error {
		mu.Lock()
		res[task.Subject] += 1
		mu.Unlock()
		return nil
	}
	handlers := map[Subject]Handler{
		"gen":   hTask,
		"parse": hTask,
	}
	q := NewTaskQueue(WithHandlers(handlers))
	defer q.Close()

	ctx := context.Background()
	task, err := q.PushAsync(ctx, "gen")
	assert.NoError(t, err)
	assert.Equal(t, uint8(1), task.Idx)
	assert.Equal(t, Subject("gen"), task.Subject)
	assert.Equal(t, []any(nil), task.Args)
	task, err = q.PushAsync(ctx, "parse", "vulkan_json_parser.hpp", 1, true)
	assert.NoError(t, err)
	assert.Equal(t, uint8(2), task.Idx)
	assert.Equal(t, []any{"vulkan_json_parser.hpp", 1, true}, task.Args)

	/* use sync to complete queue and check totals */
	assert.NoError(t, q.PushSync(ctx, "parse"))
	mu.Lock()
	assert.Equal(t, map[Subject]int{"gen": 1, "parse": 2}, res)
	mu.Unlock()

	err = q.PushSync(ctx, "schema")
	assert.True(t, errors.Is(err, ErrTaskQueue))
	assert.True(t, errors.Is(err, ErrTaskQueueUndefined))
}

func TestWithWorkers(t *testing.T) {
	var running, peak atomic.Int32
	hTask := func(task *Task) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond * 20)
		running.Add(-1)
		return nil
	}
	q := NewTaskQueue(WithWorkers(3), WithHandlers(map[Subject]Handler{"gen": hTask}))

	ctx := context.Background()
	tasks := []*Task{}
	for range 3 {
		task, err := q.PushAsync(ctx, "gen")
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	for _, task := range tasks {
		assert.NoError(t, <-task.Done())
	}
	q.Close()
	assert.Equal(t, int32(3), peak.Load())

	_, err := q.PushAsync(ctx, "gen")
	assert.ErrorIs(t, err, ErrTaskQueueClosed)
}

func TestHandlerErrors(t *testing.T) {
	errEmit := errors.New("emit failed")
	q := NewTaskQueue(WithHandlers(map[Subject]Handler{
		"schema": func(*Task) error { return errEmit },
		"gen":    func(*Task) error { panic("unexpected member") },
	}))
	defer q.Close()

	ctx := context.Background()
	assert.ErrorIs(t, q.PushSync(ctx, "schema"), errEmit)
	err := q.PushSync(ctx, "gen")
	assert.ErrorIs(t, err, ErrTaskQueuePanic)
	assert.Contains(t, err.Error(), "unexpected member")

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	task, err := q.PushAsync(canceled, "schema")
	require.NoError(t, err)
	assert.ErrorIs(t, <-task.Done(), context.Canceled)
}
