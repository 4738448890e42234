package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	job          Job
	claimedUntil time.Time
}

// MemoryQueue is an in-process DelayQueue. Jobs do not survive a restart, so
// it is only for tests and local runs.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[string]*memoryEntry
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]*memoryEntry)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, key string, payload []byte, fireAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[key] = &memoryEntry{job: Job{
		Key:        key,
		Payload:    append([]byte(nil), payload...),
		FireAt:     fireAt.UTC(),
		Generation: uuid.NewString(),
	}}
	return nil
}

func (q *MemoryQueue) Cancel(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.jobs, key)
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int, lease time.Duration) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due := make([]*memoryEntry, 0)
	for _, e := range q.jobs {
		if !e.job.FireAt.After(now) && !e.claimedUntil.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].job.FireAt.Before(due[j].job.FireAt) })
	if len(due) > limit {
		due = due[:limit]
	}

	jobs := make([]Job, 0, len(due))
	for _, e := range due {
		e.claimedUntil = now.Add(lease)
		e.job.Attempts++
		jobs = append(jobs, e.job)
	}
	return jobs, nil
}

func (q *MemoryQueue) Ack(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if e, ok := q.jobs[job.Key]; ok && e.job.Generation == job.Generation {
		delete(q.jobs, job.Key)
	}
	return nil
}

// Pending returns a snapshot of the stored jobs keyed by job key.
func (q *MemoryQueue) Pending() map[string]Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make(map[string]Job, len(q.jobs))
	for k, e := range q.jobs {
		out[k] = e.job
	}
	return out
}

var _ DelayQueue = (*MemoryQueue)(nil)
