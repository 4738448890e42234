package db

import (
	"context"
	"time"

	"recipescheduler/internal/types"
)

// JobRecord is one row of the reminder_jobs table.
type JobRecord struct {
	Key        string
	Payload    []byte
	FireAt     time.Time
	Generation string
	Attempts   int
}

// ReminderJobRepository is the durable store behind the Postgres delay
// queue. A row exists from Enqueue until Cancel or a matching Ack.
//
// Claiming leases rows instead of deleting them: a claimed row is hidden
// until claimed_until passes, so a consumer that dies mid-dispatch leaves the
// job to be claimed again.
type ReminderJobRepository struct {
	db DBTX
}

// NewReminderJobRepository creates a new ReminderJobRepository.
func NewReminderJobRepository(db DBTX) *ReminderJobRepository {
	return &ReminderJobRepository{db: db}
}

// Upsert stores the job under key, replacing payload, fire time and
// generation of any existing job with the same key. A replaced job loses its
// lease so the new fire time governs.
func (r *ReminderJobRepository) Upsert(ctx context.Context, rec JobRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO reminder_jobs (job_key, payload, fire_at, generation, claimed_until, attempts)
		 VALUES ($1, $2, $3, $4, NULL, 0)
		 ON CONFLICT (job_key) DO UPDATE
		 SET payload = EXCLUDED.payload,
		     fire_at = EXCLUDED.fire_at,
		     generation = EXCLUDED.generation,
		     claimed_until = NULL,
		     attempts = 0`,
		rec.Key, rec.Payload, rec.FireAt.UTC(), rec.Generation,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert reminder job", err)
	}
	return nil
}

// Delete removes the job under key. A missing key is not an error.
func (r *ReminderJobRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM reminder_jobs WHERE job_key = $1`, key); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete reminder job", err)
	}
	return nil
}

// ClaimDue leases up to limit jobs whose fire time is at or before now and
// whose previous lease (if any) has expired. Rows locked by a concurrent
// claimer are skipped, so two consumers never receive the same job.
func (r *ReminderJobRepository) ClaimDue(ctx context.Context, now time.Time, limit int, leaseUntil time.Time) ([]JobRecord, error) {
	rows, err := r.db.Query(ctx,
		`WITH due AS (
		     SELECT job_key FROM reminder_jobs
		     WHERE fire_at <= $1
		       AND (claimed_until IS NULL OR claimed_until <= $1)
		     ORDER BY fire_at ASC
		     LIMIT $2
		     FOR UPDATE SKIP LOCKED
		 )
		 UPDATE reminder_jobs j
		 SET claimed_until = $3, attempts = j.attempts + 1
		 FROM due
		 WHERE j.job_key = due.job_key
		 RETURNING j.job_key, j.payload, j.fire_at, j.generation, j.attempts`,
		now.UTC(), limit, leaseUntil.UTC(),
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to claim reminder jobs", err)
	}
	defer rows.Close()

	var records []JobRecord
	for rows.Next() {
		var rec JobRecord
		if err := rows.Scan(&rec.Key, &rec.Payload, &rec.FireAt, &rec.Generation, &rec.Attempts); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan reminder job", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate reminder jobs", err)
	}
	return records, nil
}

// DeleteClaimed removes a job after it was handled. The generation guard
// keeps an Ack for a superseded job from deleting its replacement.
func (r *ReminderJobRepository) DeleteClaimed(ctx context.Context, key, generation string) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM reminder_jobs WHERE job_key = $1 AND generation = $2`,
		key, generation,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to ack reminder job", err)
	}
	return nil
}
