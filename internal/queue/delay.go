// Package queue provides the delay queue that holds future reminder jobs and
// the relay that hands due jobs to SQS consumers.
//
// A job is stored under a unique key with an opaque payload and a fire time.
// Consumers claim due jobs under a lease and acknowledge them once handled; a
// job whose lease expires without an Ack becomes claimable again, which gives
// at-least-once delivery.
package queue

import (
	"context"
	"time"

	"recipescheduler/internal/types"
)

// Job is one scheduled unit of work.
type Job struct {
	Key     string
	Payload []byte
	FireAt  time.Time
	// Generation changes on every Enqueue for the key. Ack only removes the
	// generation that was claimed.
	Generation string
	// Attempts counts claims of this generation, starting at 1.
	Attempts int
}

// Producer is the scheduling side of the queue.
type Producer interface {
	// Enqueue stores a job under key. An existing job with the same key is
	// replaced, including its fire time.
	Enqueue(ctx context.Context, key string, payload []byte, fireAt time.Time) error
	// Cancel removes the job under key. Cancelling a missing or already
	// acknowledged job is a no-op.
	Cancel(ctx context.Context, key string) error
}

// Consumer is the delivery side of the queue.
type Consumer interface {
	// Claim leases up to limit jobs whose fire time is at or before now.
	// Claimed jobs are hidden from other claimers for the lease duration.
	Claim(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Job, error)
	// Ack removes a claimed job. It is a no-op when the job was cancelled or
	// replaced after the claim.
	Ack(ctx context.Context, job Job) error
}

// DelayQueue is a queue usable by both sides.
type DelayQueue interface {
	Producer
	Consumer
}

// ErrQueueUnavailable matches (via errors.Is) every error the backends return
// when the underlying store cannot be reached.
var ErrQueueUnavailable = types.NewAppError(types.ErrCodeUpstreamQueue, "delay queue unavailable", nil)

func unavailable(op string, err error) error {
	return types.NewAppError(types.ErrCodeUpstreamQueue, "delay queue "+op+" failed", err)
}
