package worker

import (
	"context"
	"errors"
	"sync"
)

// ErrPoolClosed is returned by Submit once the pool is shut down or closed
var ErrPoolClosed = errors.New("worker pool closed")

// Job is a unit of work executed by the pool
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is the outcome of one Job
type Result interface {
	GetError() error
}

// Pool runs jobs on a fixed number of workers.
//
// Results are delivered on Results() and must be drained while jobs are
// submitted; Close ends the run and closes the results channel once every
// worker has returned.
type Pool struct {
	workers int
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// NewPool creates a pool with the given number of workers, bound to ctx
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers: workers,
		jobs:    make(chan Job, workers),
		results: make(chan Result, workers),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			result := job.Execute(p.ctx)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues job, blocking while all workers are busy. It returns
// ErrPoolClosed after Close or Shutdown, and ctx's error when the pool's
// context ends first.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Results returns the channel results are delivered on
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close stops accepting jobs. Queued jobs still run.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobs)
		p.mu.Unlock()
	})
}

// Shutdown cancels running jobs and waits for the workers to return
func (p *Pool) Shutdown() {
	p.cancel()
	p.Close()
	p.wg.Wait()
}

// Run executes jobs on a new pool and returns every result in completion
// order.
func Run(ctx context.Context, workers int, jobs []Job) []Result {
	pool := NewPool(ctx, workers)
	pool.Start()
	defer pool.Shutdown()

	go func() {
		defer pool.Close()
		for _, job := range jobs {
			if err := pool.Submit(job); err != nil {
				return
			}
		}
	}()

	results := make([]Result, 0, len(jobs))
	for result := range pool.Results() {
		results = append(results, result)
	}
	return results
}
