package scheduler

import (
	"sort"
	"time"

	"agrovoice/internal/models"
)

// jobQueue holds queued jobs ordered by (priority desc, createdAt asc).
// Not safe for concurrent use; the scheduler's mutex guards it.
type jobQueue struct {
	items []*models.Job
}

func (q *jobQueue) push(job *models.Job) {
	q.items = append(q.items, job)
	sort.SliceStable(q.items, func(i, j int) bool {
		if q.items[i].Priority != q.items[j].Priority {
			return q.items[i].Priority > q.items[j].Priority
		}
		return q.items[i].CreatedAt.Before(q.items[j].CreatedAt)
	})
}

// pop removes and returns the highest-ranked job whose NotBefore has passed.
// Returns nil when nothing is ready.
func (q *jobQueue) pop(now time.Time) *models.Job {
	for i, job := range q.items {
		if job.NotBefore.After(now) {
			continue
		}
		q.items = append(q.items[:i], q.items[i+1:]...)
		return job
	}
	return nil
}

// nextReadyAt returns when the next job becomes dispatchable, or zero time
// when the queue is empty.
func (q *jobQueue) nextReadyAt(now time.Time) time.Time {
	if len(q.items) == 0 {
		return time.Time{}
	}
	earliest := q.items[0].NotBefore
	for _, job := range q.items {
		if job.NotBefore.Before(earliest) {
			earliest = job.NotBefore
		}
	}
	if earliest.Before(now) {
		return now
	}
	return earliest
}

func (q *jobQueue) len() int {
	return len(q.items)
}
