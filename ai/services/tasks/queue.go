// Package tasks runs fire-and-forget background work such as title
// generation and summary refresh, off the request path.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const defaultTaskTimeout = 30 * time.Second

// Task is one unit of background work.
type Task struct {
	// Name labels logs and metrics, e.g. "title".
	Name string
	// Key deduplicates tasks: while one with the same key is queued or
	// running, others are refused. Empty disables it.
	Key string
	Run func(ctx context.Context) error
}

// Recorder receives task outcomes for metrics.
type Recorder interface {
	RecordTask(name string, err error)
}

// Queue runs tasks one at a time on a single worker.
type Queue struct {
	queue    chan *Task
	wg       sync.WaitGroup
	logger   *slog.Logger
	stopCh   chan struct{}
	once     sync.Once
	inflight sync.Map // key -> struct{}, while queued or running
	timeout  time.Duration
	recorder Recorder
	closed   atomic.Bool
}

// NewQueue starts a queue holding at most size pending tasks.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	if size <= 0 {
		size = 64
	}
	q := &Queue{
		queue:   make(chan *Task, size),
		logger:  logger,
		stopCh:  make(chan struct{}),
		timeout: defaultTaskTimeout,
	}
	q.wg.Add(1)
	go q.process()
	return q
}

// SetRecorder installs a metrics recorder.
func (q *Queue) SetRecorder(r Recorder) { q.recorder = r }

// Enqueue schedules t. It returns false when the queue is full, closed,
// or a task with the same key is still queued or running.
func (q *Queue) Enqueue(t *Task) bool {
	if q.closed.Load() {
		return false
	}
	if t.Key != "" {
		if _, loaded := q.inflight.LoadOrStore(t.Key, struct{}{}); loaded {
			q.logger.Debug("Tasks: ignoring duplicate task", "task", t.Name, "key", t.Key)
			return false
		}
	}

	select {
	case q.queue <- t:
		return true
	default:
		q.release(t)
		q.logger.Warn("Tasks: queue full, dropping task", "task", t.Name, "queue_size", len(q.queue))
		return false
	}
}

func (q *Queue) release(t *Task) {
	if t.Key != "" {
		q.inflight.Delete(t.Key)
	}
}

func (q *Queue) process() {
	defer q.wg.Done()
	for {
		select {
		case t := <-q.queue:
			q.run(t)
		case <-q.stopCh:
			q.drain()
			return
		}
	}
}

func (q *Queue) drain() {
	q.logger.Info("Tasks: draining queue", "remaining", len(q.queue))
	for {
		select {
		case t := <-q.queue:
			q.run(t)
		default:
			return
		}
	}
}

// run executes one task. Panics and errors are logged, never propagated.
func (q *Queue) run(t *Task) {
	defer q.release(t)
	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task panicked: %v", r)
			}
		}()
		return t.Run(ctx)
	}()

	if q.recorder != nil {
		q.recorder.RecordTask(t.Name, err)
	}
	if err != nil {
		q.logger.Warn("Tasks: task failed", "task", t.Name, "key", t.Key, "error", err)
		return
	}
	q.logger.Debug("Tasks: task done", "task", t.Name, "key", t.Key, "duration_ms", time.Since(start).Milliseconds())
}

// Close stops accepting tasks, runs the pending ones and waits up to timeout.
func (q *Queue) Close(timeout time.Duration) error {
	q.closed.Store(true)
	q.once.Do(func() { close(q.stopCh) })

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Tasks: shutdown complete")
		return nil
	case <-time.After(timeout):
		q.logger.Warn("Tasks: shutdown timeout")
		return context.DeadlineExceeded
	}
}

// Len returns the number of pending tasks.
func (q *Queue) Len() int {
	return len(q.queue)
}
