package queue

import (
	"context"
	"errors"
	"log"
	"time"

	"ai-grader/core/models"
	"ai-grader/core/orchestrator"
)

// Processor runs one grading pass for a submission
type Processor interface {
	Process(ctx context.Context, submissionID int64) (orchestrator.Outcome, error)
}

// QueuedLister loads submissions awaiting grading, used to reload the
// queue after a restart
type QueuedLister interface {
	ListSubmissionsByStatus(status models.SubmissionStatus, limit int) ([]*models.Submission, error)
}

// Dispatcher pulls jobs off the task queue with a pool of independent
// workers, each running one submission to completion at a time.
type Dispatcher struct {
	queue        *TaskQueue
	processor    Processor
	store        QueuedLister
	workers      int
	maxAttempts  int
	pollInterval time.Duration
	stopChan     chan struct{}
}

// NewDispatcher creates a dispatcher with the given worker pool size and
// per-job delivery attempt budget
func NewDispatcher(q *TaskQueue, processor Processor, store QueuedLister, workers, maxAttempts int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Dispatcher{
		queue:        q,
		processor:    processor,
		store:        store,
		workers:      workers,
		maxAttempts:  maxAttempts,
		pollInterval: time.Second,
		stopChan:     make(chan struct{}),
	}
}

// Enqueue adds a submission to the grading queue
func (d *Dispatcher) Enqueue(submissionID int64) {
	d.queue.Enqueue(submissionID)
}

// Start reloads queued submissions from the store and launches the
// worker pool. It returns immediately; workers run until ctx is done or
// Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.loadQueued()

	for i := 0; i < d.workers; i++ {
		go d.worker(ctx, i)
	}
}

// Stop stops all workers
func (d *Dispatcher) Stop() {
	close(d.stopChan)
}

// loadQueued reloads submissions left in "queued" from the store, so jobs
// enqueued before a restart are not lost
func (d *Dispatcher) loadQueued() {
	subs, err := d.store.ListSubmissionsByStatus(models.StatusQueued, 1000)
	if err != nil {
		log.Printf("Failed to load queued submissions: %v", err)
		return
	}
	for _, sub := range subs {
		d.queue.Enqueue(sub.ID)
	}
	if len(subs) > 0 {
		log.Printf("Reloaded %d queued submissions", len(subs))
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain(ctx, id)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopChan:
			return
		default:
		}

		job, ok := d.queue.Pop()
		if !ok {
			return
		}
		d.run(ctx, workerID, job)
	}
}

// run executes one delivery of a job and applies the redelivery policy:
// only failures the queue can change (transient I/O) are redelivered, up
// to the attempt budget; everything else is acknowledged and dropped.
func (d *Dispatcher) run(ctx context.Context, workerID int, job Job) {
	outcome, err := d.processor.Process(ctx, job.SubmissionID)
	if err == nil {
		if outcome.NoOp {
			if outcome.Status.Terminal() {
				log.Printf("worker %d: submission %d already finished as %s, duplicate delivery dropped",
					workerID, job.SubmissionID, outcome.Status)
			} else {
				log.Printf("worker %d: submission %d held in %s elsewhere, duplicate delivery dropped",
					workerID, job.SubmissionID, outcome.Status)
			}
		} else {
			log.Printf("worker %d: submission %d finished as %s",
				workerID, job.SubmissionID, outcome.Status)
		}
		return
	}

	var runErr *orchestrator.RunError
	if errors.As(err, &runErr) && runErr.Retryable() && job.Attempts+1 < d.maxAttempts {
		log.Printf("worker %d: submission %d attempt %d failed, redelivering: %v",
			workerID, job.SubmissionID, job.Attempts+1, err)
		d.queue.Redeliver(job)
		return
	}

	log.Printf("worker %d: submission %d dropped after failure: %v",
		workerID, job.SubmissionID, err)
}
