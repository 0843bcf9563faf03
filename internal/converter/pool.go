package converter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/internal/sizing"
	"github.com/harliandi/sizefit/pkg/metrics"
)

var (
	// ErrPoolBusy is returned when the worker pool is at capacity
	ErrPoolBusy = errors.New("worker pool is busy, please retry later")
	// ErrPoolStopped is returned when submitting to a stopped pool
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Job represents a conversion job
type Job struct {
	Request Request
	Result  chan<- Result
}

// Result represents the outcome of a conversion job
type Result struct {
	Outcome *sizing.Outcome
	Err     error
}

// WorkerPool runs conversions on a fixed number of goroutines. Each job is
// one independent engine run.
type WorkerPool struct {
	converter *Converter
	jobs      chan Job
	workers   int
	active    atomic.Int32
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a worker pool with the specified number of workers
func NewWorkerPool(c *Converter, workers int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		converter: c,
		jobs:      make(chan Job, workers*2), // Buffered channel
		workers:   workers,
	}
}

// Start starts the worker pool goroutines
func (p *WorkerPool) Start() {
	p.startOnce.Do(func() {
		log.Info().Int("workers", p.workers).Msg("starting worker pool")
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for job := range p.jobs {
		p.active.Add(1)
		p.reportStats()

		var result Result
		result.Outcome, result.Err = p.converter.Convert(job.Request)

		p.active.Add(-1)
		p.reportStats()

		// Result channel is buffered; a gone receiver never blocks the worker.
		select {
		case job.Result <- result:
		default:
			log.Warn().Int("worker", id).Msg("result channel full or closed")
		}
	}
}

// Submit submits a job to the worker pool with context cancellation support.
// Returns ErrPoolBusy if the worker pool queue is full.
func (p *WorkerPool) Submit(ctx context.Context, req Request) (*sizing.Outcome, error) {
	p.Start()

	resultChan := make(chan Result, 1)
	job := Job{Request: req, Result: resultChan}

	p.mu.RLock()
	if p.stopped {
		p.mu.RUnlock()
		return nil, ErrPoolStopped
	}
	select {
	case <-ctx.Done():
		p.mu.RUnlock()
		return nil, ctx.Err()
	case p.jobs <- job:
		p.mu.RUnlock()
	default:
		p.mu.RUnlock()
		return nil, ErrPoolBusy
	}
	p.reportStats()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultChan:
		return result.Outcome, result.Err
	}
}

// SubmitWithRetry submits a job to the worker pool with retry on busy
func (p *WorkerPool) SubmitWithRetry(ctx context.Context, req Request, maxRetries int) (*sizing.Outcome, error) {
	lastErr := ErrPoolBusy
	for i := 0; i < maxRetries; i++ {
		out, err := p.Submit(ctx, req)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, ErrPoolBusy) {
			return nil, err
		}
		lastErr = err

		waitTime := time.Duration(i+1) * 10 * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(waitTime):
		}
	}
	return nil, lastErr
}

// Stop drains queued jobs and waits for the workers to exit.
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.jobs)
		p.mu.Unlock()
		p.wg.Wait()
		log.Info().Msg("worker pool stopped")
	})
}

// Stats returns the number of queued and running jobs.
func (p *WorkerPool) Stats() (queued, active int) {
	return len(p.jobs), int(p.active.Load())
}

func (p *WorkerPool) reportStats() {
	queued, active := p.Stats()
	metrics.UpdateWorkerPoolMetrics(queued, active)
}
