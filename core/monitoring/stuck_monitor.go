package monitoring

import (
	"context"
	"log"
	"time"

	"ai-grader/core/models"
)

// StuckRequeuer moves submissions held in "grading" past the liveness
// window back to "queued"
type StuckRequeuer interface {
	RequeueStuck(maxAge time.Duration) ([]int64, error)
}

// Enqueuer re-enqueues a grading job for a requeued submission
type Enqueuer interface {
	Enqueue(submissionID int64)
}

// AuditRecorder appends audit events
type AuditRecorder interface {
	Record(event models.AuditEvent) error
}

// StuckMonitor is the reaper for runs that died mid-grading: a worker
// crash leaves the row in "grading" with no owner, and only an external
// sweep can return it to the queue.
type StuckMonitor struct {
	store      StuckRequeuer
	dispatcher Enqueuer
	audit      AuditRecorder
	maxAge     time.Duration
	interval   time.Duration
}

// NewStuckMonitor creates a stuck-run monitor. maxAge is the liveness
// window a run may legitimately hold "grading".
func NewStuckMonitor(store StuckRequeuer, dispatcher Enqueuer, audit AuditRecorder, maxAge time.Duration) *StuckMonitor {
	if maxAge <= 0 {
		maxAge = 15 * time.Minute
	}
	return &StuckMonitor{
		store:      store,
		dispatcher: dispatcher,
		audit:      audit,
		maxAge:     maxAge,
		interval:   time.Minute,
	}
}

// Start runs the sweep loop until ctx is done
func (m *StuckMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *StuckMonitor) sweep() {
	ids, err := m.store.RequeueStuck(m.maxAge)
	if err != nil {
		log.Printf("Stuck sweep failed: %v", err)
		return
	}

	for _, id := range ids {
		log.Printf("Requeued submission %d stuck in grading for over %s", id, m.maxAge)
		if err := m.audit.Record(models.AuditEvent{
			Action:     models.ActionRequeueStuck,
			TargetType: models.TargetSubmission,
			TargetID:   id,
			Metadata:   map[string]interface{}{"max_age": m.maxAge.String()},
		}); err != nil {
			log.Printf("Failed to record requeue audit event for submission %d: %v", id, err)
		}
		m.dispatcher.Enqueue(id)
	}
}
