// Package batch runs independent units of work, such as whole-document parses,
// across a fixed number of goroutines.
package batch

import (
	"context"
	"runtime"
	"sync"
)

// DefaultWorkers is the pool size used when none is given.
func DefaultWorkers() int {
	return runtime.GOMAXPROCS(0)
}

// Pool provides a reusable worker pool pattern for parallel processing.
// It manages job distribution across multiple workers and collects results.
type Pool[Job any, Result any] struct {
	numWorkers int
	jobs       chan Job
	results    chan Result
	wg         sync.WaitGroup
}

// NewPool creates a new worker pool with the specified number of workers.
// If numWorkers is 0 or negative, it defaults to DefaultWorkers.
// If numJobs is less than numWorkers, the pool is sized to match numJobs.
func NewPool[Job any, Result any](numWorkers, numJobs int) *Pool[Job, Result] {
	if numWorkers <= 0 {
		numWorkers = DefaultWorkers()
	}
	if numJobs > 0 {
		numWorkers = min(numWorkers, numJobs)
	}

	return &Pool[Job, Result]{
		numWorkers: numWorkers,
		jobs:       make(chan Job, max(numJobs, 0)),
		results:    make(chan Result, max(numJobs, 0)),
	}
}

// Workers returns the number of goroutines the pool starts.
func (p *Pool[Job, Result]) Workers() int { return p.numWorkers }

// Start begins the worker pool with the provided worker function.
// The workerFn is called for each job and should return a result.
func (p *Pool[Job, Result]) Start(workerFn func(Job) Result) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				p.results <- workerFn(job)
			}
		}()
	}
}

// Submit adds a job to the worker pool's job queue.
func (p *Pool[Job, Result]) Submit(job Job) {
	p.jobs <- job
}

// Close closes the job channel. The results channel is closed once every
// worker has finished.
func (p *Pool[Job, Result]) Close() {
	close(p.jobs)
	go func() {
		p.wg.Wait()
		close(p.results)
	}()
}

// Results returns the results channel for collecting worker outputs.
func (p *Pool[Job, Result]) Results() <-chan Result {
	return p.results
}

type indexed[T any] struct {
	i int
	v T
}

// Run applies fn to every job on at most workers goroutines and returns the
// results in job order. Jobs not yet started when ctx is cancelled are skipped,
// leaving the zero Result in their slot, and ctx.Err() is returned.
func Run[Job any, Result any](ctx context.Context, jobs []Job, workers int, fn func(context.Context, Job) Result) ([]Result, error) {
	out := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return out, ctx.Err()
	}

	pool := NewPool[indexed[Job], indexed[Result]](workers, len(jobs))
	pool.Start(func(j indexed[Job]) indexed[Result] {
		r := indexed[Result]{i: j.i}
		if ctx.Err() == nil {
			r.v = fn(ctx, j.v)
		}
		return r
	})
	for i, j := range jobs {
		pool.Submit(indexed[Job]{i: i, v: j})
	}
	pool.Close()

	for r := range pool.Results() {
		out[r.i] = r.v
	}
	return out, ctx.Err()
}
