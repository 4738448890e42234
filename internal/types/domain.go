package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// DefaultUserID is used when a request carries no user-id header.
const DefaultUserID = "default-user"

// Event is a titled, user-owned occurrence at an absolute time. It is owned
// by the event store; the reminder pipeline only reads it.
type Event struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	EventTime time.Time `json:"eventTime" db:"event_time"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// EventUpdate carries the optional fields of a partial event edit.
type EventUpdate struct {
	Title     *string
	EventTime *time.Time
}

// Apply writes the set fields onto e and reports whether the title or the
// event time actually changed.
func (u EventUpdate) Apply(e *Event) (titleChanged, timeChanged bool) {
	if u.Title != nil && *u.Title != e.Title {
		e.Title = *u.Title
		titleChanged = true
	}
	if u.EventTime != nil && !u.EventTime.Equal(e.EventTime) {
		e.EventTime = u.EventTime.UTC()
		timeChanged = true
	}
	return titleChanged, timeChanged
}

// JobClassReminder names the queue job class produced by the reminder
// scheduler and consumed by the reminder dispatcher.
const JobClassReminder = "reminder"

// ReminderPayload is the opaque body stored with a queued reminder job. The
// JSON keys are part of the queue contract shared by the producer and every
// consumer (worker pool and Lambda worker).
type ReminderPayload struct {
	EventID   string    `json:"eventId"`
	Title     string    `json:"title"`
	EventTime time.Time `json:"eventTime"`
	UserID    string    `json:"userId"`
}

// NewReminderPayload snapshots the fields of e a reminder needs.
func NewReminderPayload(e *Event) ReminderPayload {
	return ReminderPayload{
		EventID:   e.ID,
		Title:     e.Title,
		EventTime: e.EventTime.UTC(),
		UserID:    e.UserID,
	}
}

// Encode serializes the payload for the queue.
func (p ReminderPayload) Encode() ([]byte, error) {
	return json.Marshal(p)
}

// DecodeReminderPayload parses a queued payload. A payload without an event
// or user identifier is rejected since it can never be dispatched.
func DecodeReminderPayload(body []byte) (ReminderPayload, error) {
	var p ReminderPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return ReminderPayload{}, fmt.Errorf("decode reminder payload: %w", err)
	}
	if p.EventID == "" || p.UserID == "" {
		return ReminderPayload{}, fmt.Errorf("decode reminder payload: missing eventId or userId")
	}
	return p, nil
}

// OutcomeKind classifies the terminal state of one dispatch attempt.
type OutcomeKind string

const (
	OutcomeDelivered             OutcomeKind = "delivered"
	OutcomeSkippedNoAddress      OutcomeKind = "skipped_no_address"
	OutcomeSkippedInvalidAddress OutcomeKind = "skipped_invalid_address"
	OutcomeDeliveryFailed        OutcomeKind = "delivery_failed"
)

// Outcome is the in-memory result of dispatching one reminder. It is never
// persisted.
type Outcome struct {
	Kind   OutcomeKind
	Reason string // set for OutcomeDeliveryFailed
}

// Degraded reports whether the user did not receive a push for this outcome.
func (o Outcome) Degraded() bool {
	return o.Kind != OutcomeDelivered
}

func (o Outcome) String() string {
	if o.Reason == "" {
		return string(o.Kind)
	}
	return fmt.Sprintf("%s(%s)", o.Kind, o.Reason)
}
