package queue

import "sync"

// Job is one grading task: a submission id plus delivery accounting
type Job struct {
	SubmissionID int64
	Attempts     int
}

// TaskQueue is an in-process FIFO queue of grading jobs. Delivery is
// at-least-once: redeliveries push the same submission id again and the
// orchestrator's status guard makes duplicates safe.
type TaskQueue struct {
	mu   sync.Mutex
	jobs []Job
}

// NewTaskQueue creates an empty task queue
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{}
}

// Enqueue adds a fresh job for a submission
func (q *TaskQueue) Enqueue(submissionID int64) {
	q.push(Job{SubmissionID: submissionID})
}

// Redeliver re-adds a job that failed a delivery attempt
func (q *TaskQueue) Redeliver(job Job) {
	job.Attempts++
	q.push(job)
}

func (q *TaskQueue) push(job Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
}

// Pop removes and returns the oldest job
func (q *TaskQueue) Pop() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return Job{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, true
}

// Len returns the number of queued jobs
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
