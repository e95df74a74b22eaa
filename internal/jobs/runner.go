// Package jobs runs the scheduled maintenance loops: wallet sync, pending
// cleanup, and payout retry. Each job is a no-arg idempotent entry point, so
// overlapping or repeated runs are harmless.
package jobs

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is one schedulable unit of work.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner drives the registered jobs on their intervals until the context is
// cancelled.
type Runner struct {
	jobs []Job
	wg   sync.WaitGroup
}

func NewRunner(jobs ...Job) *Runner {
	return &Runner{jobs: jobs}
}

// Start launches one goroutine per job. Each job runs once immediately, then
// on its interval. Start returns; use Wait to block until shutdown completes.
func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		r.wg.Add(1)
		go func(job Job) {
			defer r.wg.Done()
			log.Printf("job %s started, interval %s", job.Name, job.Interval)

			r.runOnce(ctx, job)

			ticker := time.NewTicker(job.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.runOnce(ctx, job)
				case <-ctx.Done():
					log.Printf("job %s stopped", job.Name)
					return
				}
			}
		}(job)
	}
}

// Wait blocks until all job goroutines have exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	start := time.Now()
	if err := job.Run(ctx); err != nil {
		log.Printf("job %s failed after %s: %v", job.Name, time.Since(start).Round(time.Millisecond), err)
		return
	}
	log.Printf("job %s completed in %s", job.Name, time.Since(start).Round(time.Millisecond))
}
