// Package reminder turns event lifecycle changes into delay queue jobs and
// dispatches due jobs to the push gateway.
package reminder

import (
	"context"
	"log/slog"
	"time"

	"recipescheduler/internal/queue"
	"recipescheduler/internal/types"
)

// ErrSchedulingFailed matches (via errors.Is) every error the Scheduler
// returns. The event mutation that triggered the call is already committed
// when it is returned; only the reminder is missing.
var ErrSchedulingFailed = types.NewAppError(types.ErrCodeSchedulingFailed, "reminder scheduling failed", nil)

// Scheduler keeps at most one pending reminder job per event, due one lead
// duration before the event time. The job key is the event ID.
type Scheduler struct {
	queue  queue.Producer
	lead   time.Duration
	clock  types.Clock
	logger *slog.Logger
}

// NewScheduler creates a Scheduler. clock and logger may be nil.
func NewScheduler(q queue.Producer, lead time.Duration, clock types.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{queue: q, lead: lead, clock: clock, logger: logger}
}

// Lead returns the configured lead duration.
func (s *Scheduler) Lead() time.Duration {
	return s.lead
}

// FireTime returns when the reminder for an event at eventTime is due.
func (s *Scheduler) FireTime(eventTime time.Time) time.Time {
	return eventTime.Add(-s.lead)
}

// WillRemind reports whether an event at eventTime is still far enough in
// the future to get a reminder.
func (s *Scheduler) WillRemind(eventTime time.Time) bool {
	return s.FireTime(eventTime).After(s.clock.Now())
}

// OnEventCreated enqueues the event's reminder when its fire time is still
// strictly in the future and reports whether it did. Events that are too
// close or already past get no reminder and no error.
func (s *Scheduler) OnEventCreated(ctx context.Context, e *types.Event) (bool, error) {
	fireAt := s.FireTime(e.EventTime)
	now := s.clock.Now()
	if !fireAt.After(now) {
		s.logger.InfoContext(ctx, "event too close to remind, skipping reminder",
			"event_id", e.ID,
			"event_time", e.EventTime,
			"fire_at", fireAt,
		)
		return false, nil
	}

	body, err := types.NewReminderPayload(e).Encode()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeSchedulingFailed, "failed to encode reminder payload", err)
	}
	if err := s.queue.Enqueue(ctx, e.ID, body, fireAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to schedule reminder",
			"event_id", e.ID,
			"error", err,
		)
		return false, types.NewAppError(types.ErrCodeSchedulingFailed, "failed to enqueue reminder", err)
	}

	s.logger.InfoContext(ctx, "reminder scheduled",
		"event_id", e.ID,
		"user_id", e.UserID,
		"fire_at", fireAt,
		"delay_ms", fireAt.Sub(now).Milliseconds(),
	)
	return true, nil
}

// OnEventTimeChanged cancels the pending reminder and schedules a new one
// from the event's current fields. The cancel always runs first, so an
// edit never leaves two reminders behind. Callers also use it after a
// title edit so the queued reminder text stays current.
func (s *Scheduler) OnEventTimeChanged(ctx context.Context, e *types.Event) (bool, error) {
	if err := s.cancel(ctx, e.ID); err != nil {
		return false, err
	}
	return s.OnEventCreated(ctx, e)
}

// OnEventDeleted cancels the event's pending reminder, if any.
func (s *Scheduler) OnEventDeleted(ctx context.Context, eventID string) error {
	return s.cancel(ctx, eventID)
}

func (s *Scheduler) cancel(ctx context.Context, eventID string) error {
	if err := s.queue.Cancel(ctx, eventID); err != nil {
		s.logger.ErrorContext(ctx, "failed to cancel reminder",
			"event_id", eventID,
			"error", err,
		)
		return types.NewAppError(types.ErrCodeSchedulingFailed, "failed to cancel reminder", err)
	}
	s.logger.DebugContext(ctx, "reminder cancelled", "event_id", eventID)
	return nil
}
