package jobs

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Buffered so submission almost never blocks on a busy pool.
const queueCapacity = 1024

// task is one unit of work for the pool. Direct submissions are admitted
// already in their processing state and arrive claimed; batch chunks arrive
// queued and must win the claim transition before running.
type task struct {
	id      uuid.UUID
	claimed bool
}

// dispatcher fans admitted jobs out to a fixed pool of workers. The pool size
// caps how many external analysis processes run at once.
type dispatcher struct {
	queue   chan task
	workers int
	wg      sync.WaitGroup
}

func newDispatcher(workers int) *dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &dispatcher{
		queue:   make(chan task, queueCapacity),
		workers: workers,
	}
}

// start launches the worker pool. Workers run until ctx is cancelled; jobs left
// in the queue keep their persisted state and survive in the database.
func (d *dispatcher) start(ctx context.Context, run func(ctx context.Context, t task)) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-d.queue:
					run(ctx, t)
				}
			}
		}()
	}
}

// enqueue hands a task to the pool, blocking only if the buffer is full.
func (d *dispatcher) enqueue(ctx context.Context, t task) error {
	select {
	case d.queue <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// wait blocks until every worker has observed cancellation and returned.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
