package tasks

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/freshmart/pkg/config"
	"go.uber.org/zap"
)

type job struct {
	task Task
}

// worker runs every handler for each task it receives, one task at a time.
type worker struct {
	id       int
	handlers []Handler
	timeout  time.Duration
	logger   *zap.Logger
}

func (w *worker) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *job:
		w.run(msg.task)

	case *actor.Started:
		w.logger.Debug("Task worker started", zap.Int("worker", w.id))

	case *actor.Stopped:
		w.logger.Debug("Task worker stopped", zap.Int("worker", w.id))
	}
}

func (w *worker) run(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	for _, h := range w.handlers {
		if err := h.Handle(ctx, task); err != nil {
			w.logger.Error("Task handler failed",
				zap.String("task", fmt.Sprintf("%T", task)),
				zap.String("order_id", task.OrderRef()),
				zap.Error(err))
		}
	}
}

// Queue hands tasks to a fixed pool of worker actors, round robin.
// Enqueue never blocks on task execution.
type Queue struct {
	system  *actor.ActorSystem
	workers []*actor.PID
	next    atomic.Uint64
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

func NewQueue(cfg config.TasksConfig, logger *zap.Logger, handlers ...Handler) (*Queue, error) {
	n := cfg.Workers
	if n <= 0 {
		n = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	q := &Queue{
		system: actor.NewActorSystem(),
		logger: logger,
	}
	for i := 0; i < n; i++ {
		w := &worker{id: i, handlers: handlers, timeout: timeout, logger: logger}
		props := actor.PropsFromProducer(func() actor.Actor { return w })
		pid, err := q.system.Root.SpawnNamed(props, fmt.Sprintf("task-worker-%d", i))
		if err != nil {
			return nil, fmt.Errorf("failed to spawn task worker: %w", err)
		}
		q.workers = append(q.workers, pid)
	}

	logger.Info("Task queue started", zap.Int("workers", n))
	return q, nil
}

// Enqueue reports false once the queue has been shut down.
func (q *Queue) Enqueue(task Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Warn("Task dropped after shutdown", zap.String("order_id", task.OrderRef()))
		return false
	}
	i := q.next.Add(1) - 1
	q.system.Root.Send(q.workers[i%uint64(len(q.workers))], &job{task: task})
	return true
}

// Shutdown stops accepting tasks and waits for queued ones to finish.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	for _, pid := range q.workers {
		if err := q.system.Root.PoisonFuture(pid).Wait(); err != nil {
			q.logger.Warn("Task worker did not stop cleanly", zap.String("pid", pid.Id), zap.Error(err))
		}
	}
	q.logger.Info("Task queue drained")
}
