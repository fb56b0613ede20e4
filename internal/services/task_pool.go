package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"invoicebot/internal/metrics"
	"invoicebot/internal/models"
)

type task struct {
	name string
	fn   func(ctx context.Context) error
}

// TaskPool runs fire-and-forget work on a fixed number of goroutines behind a
// bounded queue.
type TaskPool struct {
	ctx    context.Context
	queue  chan task
	pool   *pool.Pool
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewTaskPool(ctx context.Context, workers, queueSize int, logger *zap.Logger) *TaskPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &TaskPool{
		ctx:    ctx,
		queue:  make(chan task, queueSize),
		pool:   pool.New().WithMaxGoroutines(workers),
		logger: logger,
		done:   make(chan struct{}),
	}
	go p.dispatch()
	return p
}

func (p *TaskPool) dispatch() {
	defer close(p.done)
	for t := range p.queue {
		metrics.TaskQueueDepth(len(p.queue))
		t := t
		p.pool.Go(func() { p.run(t) })
	}
	p.pool.Wait()
}

func (p *TaskPool) run(t task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("background task panicked", zap.String("task", t.name), zap.String("panic", fmt.Sprint(r)))
		}
	}()
	if err := t.fn(p.ctx); err != nil {
		p.logger.Error("background task failed", zap.String("task", t.name), zap.Error(err))
		return
	}
	p.logger.Debug("background task done", zap.String("task", t.name))
}

// Submit enqueues fn without waiting for it to start.
func (p *TaskPool) Submit(name string, fn func(ctx context.Context) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("%w: pool is shut down", models.ErrQueueFull)
	}
	select {
	case p.queue <- task{name: name, fn: fn}:
		metrics.TaskQueueDepth(len(p.queue))
		return nil
	default:
		return models.ErrQueueFull
	}
}

// Close stops accepting work and waits for queued tasks to finish or ctx to end.
func (p *TaskPool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
