package queue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recipescheduler/internal/db"
)

// JobStore is the subset of db.ReminderJobRepository the Postgres queue uses.
type JobStore interface {
	Upsert(ctx context.Context, rec db.JobRecord) error
	Delete(ctx context.Context, key string) error
	ClaimDue(ctx context.Context, now time.Time, limit int, leaseUntil time.Time) ([]db.JobRecord, error)
	DeleteClaimed(ctx context.Context, key, generation string) error
}

// PostgresQueue is a DelayQueue backed by the reminder_jobs table.
type PostgresQueue struct {
	store JobStore
}

// NewPostgresQueue creates a PostgresQueue over store.
func NewPostgresQueue(store JobStore) *PostgresQueue {
	return &PostgresQueue{store: store}
}

func (q *PostgresQueue) Enqueue(ctx context.Context, key string, payload []byte, fireAt time.Time) error {
	err := q.store.Upsert(ctx, db.JobRecord{
		Key:        key,
		Payload:    payload,
		FireAt:     fireAt,
		Generation: uuid.NewString(),
	})
	if err != nil {
		return unavailable("enqueue", err)
	}
	return nil
}

func (q *PostgresQueue) Cancel(ctx context.Context, key string) error {
	if err := q.store.Delete(ctx, key); err != nil {
		return unavailable("cancel", err)
	}
	return nil
}

func (q *PostgresQueue) Claim(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Job, error) {
	records, err := q.store.ClaimDue(ctx, now, limit, now.Add(lease))
	if err != nil {
		return nil, unavailable("claim", err)
	}
	jobs := make([]Job, 0, len(records))
	for _, rec := range records {
		jobs = append(jobs, Job{
			Key:        rec.Key,
			Payload:    rec.Payload,
			FireAt:     rec.FireAt,
			Generation: rec.Generation,
			Attempts:   rec.Attempts,
		})
	}
	return jobs, nil
}

func (q *PostgresQueue) Ack(ctx context.Context, job Job) error {
	if err := q.store.DeleteClaimed(ctx, job.Key, job.Generation); err != nil {
		return unavailable("ack", err)
	}
	return nil
}

var _ DelayQueue = (*PostgresQueue)(nil)
