package taskqueue

import (
	"container/ring"
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

const defaultCapacity = 8

var (
	ErrTaskQueue          = fmt.Errorf("task queue error")
	ErrTaskQueueCapacity  = fmt.Errorf("%w: capacity is exhausted", ErrTaskQueue)
	ErrTaskQueueClosed    = fmt.Errorf("%w: closed", ErrTaskQueue)
	ErrTaskQueuePanic     = fmt.Errorf("%w: handler panic", ErrTaskQueue)
	ErrTaskQueueUndefined = fmt.Errorf("%w: undefined", ErrTaskQueue)
)

// Task defines queued task
type Task struct {
	done    chan error
	Ctx     context.Context
	Args    []any
	Idx     uint8
	Subject Subject
}

// Done returns channel for result
func (task Task) Done() chan error {
	return task.done
}

// Handler defines task handler
type Handler func(*Task) error

// Subject defines task subject, a generation target for example
type Subject string

// TaskQueue runs queued tasks on a fixed set of workers
type TaskQueue struct {
	mu           sync.Mutex
	wg           sync.WaitGroup
	alarm        time.Duration
	alarmHandler Handler
	capacity     uint8
	closed       bool
	debugger     func([]Task)
	handlers     map[Subject]Handler
	idx          uint8
	queue        chan *Task
	ring         *ring.Ring
	workers      uint8
}

// PushAsync adds task into queue and returns immediately
func (q *TaskQueue) PushAsync(ctx context.Context, subj Subject, args ...any) (*Task, error) {
	if _, ok := q.handlers[subj]; !ok {
		return nil, fmt.Errorf("%w: %v", ErrTaskQueueUndefined, subj)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrTaskQueueClosed
	}
	task := &Task{done: make(chan error, 1), Ctx: ctx, Args: args, Idx: q.idx + 1, Subject: subj}
	select {
	case q.queue <- task:
		q.idx = task.Idx
		if q.idx > math.MaxUint8-1 {
			q.idx = 0
		}
		/* put task into ring buffer for debug */
		q.ring.Value = *task
		q.ring = q.ring.Next()
		return task, nil
	default:
		if q.debugger != nil {
			lastTasks := []Task{}
			q.ring.Do(func(p any) {
				if p != nil {
					lastTasks = append(lastTasks, p.(Task))
				}
			})
			q.debugger(lastTasks)
		}
		return nil, fmt.Errorf("%w: %v", ErrTaskQueueCapacity, q.capacity)
	}
}

// PushSync adds task into queue and returns after task processing
// or when ctx is done
func (q *TaskQueue) PushSync(ctx context.Context, subj Subject, args ...any) error {
	task, err := q.PushAsync(ctx, subj, args...)
	if err != nil {
		return err
	}
	select {
	case err := <-task.Done():
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for the queued ones
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.queue)
	}
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *TaskQueue) runQueue() {
	defer q.wg.Done()
	for task := range q.queue {
		task.done <- q.run(task)
		close(task.done)
	}
}

func (q *TaskQueue) run(task *Task) (err error) {
	if task.Ctx != nil {
		if err := task.Ctx.Err(); err != nil {
			return err
		}
	}
	if q.alarm != 0 && q.alarmHandler != nil {
		alarmTimer := time.AfterFunc(q.alarm, func() {
			_ = q.alarmHandler(task)
		})
		defer alarmTimer.Stop()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v: %v", ErrTaskQueuePanic, task.Subject, r)
		}
	}()
	return q.handlers[task.Subject](task)
}

// TaskQueueOption defines task queue option
type TaskQueueOption func(*TaskQueue)

// NewTaskQueue creates task queue
func NewTaskQueue(opts ...TaskQueueOption) *TaskQueue {
	q := &TaskQueue{capacity: defaultCapacity, workers: 1}
	for _, optFn := range opts {
		optFn(q)
	}
	if q.workers == 0 {
		q.workers = 1
	}
	if q.capacity == 0 {
		q.capacity = defaultCapacity
	}
	q.ring = ring.New(int(q.capacity))
	q.queue = make(chan *Task, q.capacity)
	q.wg.Add(int(q.workers))
	for range q.workers {
		go q.runQueue()
	}
	return q
}

// WithAlarm defines handler invoked on timeout after task start
// useful for log the long executed task
func WithAlarm(d time.Duration, h Handler) TaskQueueOption {
	return func(q *TaskQueue) {
		q.alarm = d
		q.alarmHandler = h
	}
}

// WithCapacity defines capacity of task queue
func WithCapacity(c uint8) TaskQueueOption {
	return func(q *TaskQueue) {
		q.capacity = c
	}
}

// WithHandlers defines tasks
func WithHandlers(m map[Subject]Handler) TaskQueueOption {
	return func(q *TaskQueue) {
		q.handlers = m
	}
}

// WithDebugger defines debug
func WithDebugger(fn func([]Task)) TaskQueueOption {
	return func(q *TaskQueue) {
		q.debugger = fn
	}
}

// WithWorkers defines count of tasks processed concurrently
func WithWorkers(n uint8) TaskQueueOption {
	return func(q *TaskQueue) {
		q.workers = n
	}
}
