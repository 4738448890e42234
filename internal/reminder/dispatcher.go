package reminder

import (
	"context"
	"fmt"
	"log/slog"

	"recipescheduler/internal/external"
	"recipescheduler/internal/queue"
	"recipescheduler/internal/types"
)

// AddressStore resolves a user's current push token. found is false when the
// user never registered a device.
type AddressStore interface {
	Lookup(ctx context.Context, userID string) (token string, found bool, err error)
}

// Dispatcher delivers one due reminder. Every path ends in an Outcome; no
// error escapes, and a failed push is not retried.
type Dispatcher struct {
	addresses AddressStore
	push      external.PushSender
	metrics   Metrics
	clock     types.Clock
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher. metrics, clock and logger may be nil.
func NewDispatcher(addresses AddressStore, push external.PushSender, metrics Metrics, clock types.Clock, logger *slog.Logger) *Dispatcher {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		addresses: addresses,
		push:      push,
		metrics:   metrics,
		clock:     clock,
		logger:    logger,
	}
}

// HandleJob decodes a claimed queue job and dispatches it. A job whose
// payload cannot be decoded is reported as DeliveryFailed so the caller
// acknowledges it instead of redelivering it forever.
func (d *Dispatcher) HandleJob(ctx context.Context, job queue.Job) types.Outcome {
	if !job.FireAt.IsZero() {
		d.metrics.RecordLag(ctx, d.clock.Now().Sub(job.FireAt))
	}

	p, err := types.DecodeReminderPayload(job.Payload)
	if err != nil {
		d.logger.ErrorContext(ctx, "discarding malformed reminder job",
			"job_key", job.Key,
			"error", err,
		)
		out := types.Outcome{Kind: types.OutcomeDeliveryFailed, Reason: "malformed payload"}
		d.metrics.RecordOutcome(ctx, out.Kind)
		return out
	}

	ctx = types.WithUserID(ctx, p.UserID)
	out := d.Dispatch(ctx, p)
	d.logger.InfoContext(ctx, "reminder job completed",
		"job_key", job.Key,
		"attempts", job.Attempts,
		"outcome", out.String(),
	)
	return out
}

// Dispatch resolves the recipient, renders the notification and makes a
// single delivery attempt.
func (d *Dispatcher) Dispatch(ctx context.Context, p types.ReminderPayload) types.Outcome {
	d.logger.InfoContext(ctx, "processing reminder",
		"event_id", p.EventID,
		"user_id", p.UserID,
		"title", p.Title,
	)

	out := d.deliver(ctx, p)
	if out.Degraded() {
		d.logger.WarnContext(ctx, "reminder fallback notice",
			"event_id", p.EventID,
			"user_id", p.UserID,
			"outcome", out.String(),
			"title", p.Title,
			"event_time", p.EventTime,
			"notice", fallbackNotice(p),
		)
	}
	d.metrics.RecordOutcome(ctx, out.Kind)
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, p types.ReminderPayload) types.Outcome {
	token, found, err := d.addresses.Lookup(ctx, p.UserID)
	if err != nil {
		d.logger.ErrorContext(ctx, "push address lookup failed",
			"user_id", p.UserID,
			"error", err,
		)
		return types.Outcome{Kind: types.OutcomeDeliveryFailed, Reason: "address lookup failed"}
	}
	if !found {
		return types.Outcome{Kind: types.OutcomeSkippedNoAddress}
	}
	if !d.push.ValidAddress(token) {
		return types.Outcome{Kind: types.OutcomeSkippedInvalidAddress}
	}

	msg := RenderNotification(token, p)
	start := d.clock.Now()
	tickets, err := d.push.Send(ctx, []external.PushMessage{msg})
	d.metrics.RecordPushLatency(ctx, d.clock.Now().Sub(start))
	if err != nil {
		d.logger.ErrorContext(ctx, "failed to send push notification",
			"event_id", p.EventID,
			"error", err,
		)
		return types.Outcome{Kind: types.OutcomeDeliveryFailed, Reason: err.Error()}
	}

	for _, t := range tickets {
		if t.Failed() {
			reason := t.Message
			if t.Details.Error != "" {
				reason = fmt.Sprintf("%s: %s", t.Details.Error, t.Message)
			}
			return types.Outcome{Kind: types.OutcomeDeliveryFailed, Reason: reason}
		}
	}

	d.logger.InfoContext(ctx, "push notification sent",
		"event_id", p.EventID,
		"tickets", len(tickets),
	)
	return types.Outcome{Kind: types.OutcomeDelivered}
}
