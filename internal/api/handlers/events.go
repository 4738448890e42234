// Package handlers contains the HTTP handlers for the recipe scheduler API.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"recipescheduler/internal/core"
	"recipescheduler/internal/types"
)

// EventStore is the event persistence the handler needs. db.EventRepository
// satisfies it.
type EventStore interface {
	Create(ctx context.Context, e *types.Event) error
	GetByID(ctx context.Context, id string) (*types.Event, error)
	ListByUser(ctx context.Context, userID string) ([]*types.Event, error)
	Update(ctx context.Context, e *types.Event) error
	Delete(ctx context.Context, id string) error
}

// ReminderScheduler keeps the delay queue in step with event mutations.
// reminder.Scheduler satisfies it.
type ReminderScheduler interface {
	OnEventCreated(ctx context.Context, e *types.Event) (bool, error)
	OnEventTimeChanged(ctx context.Context, e *types.Event) (bool, error)
	OnEventDeleted(ctx context.Context, eventID string) error
	WillRemind(eventTime time.Time) bool
}

// CreateEventRequest is the body of POST /api/events.
type CreateEventRequest struct {
	Title     string `json:"title" validate:"required,notblank,max=200"`
	EventTime string `json:"eventTime" validate:"required,rfc3339"`
}

// UpdateEventRequest is the body of PATCH /api/events/{id}. Absent fields
// are left unchanged.
type UpdateEventRequest struct {
	Title     *string `json:"title,omitempty" validate:"omitempty,notblank,max=200"`
	EventTime *string `json:"eventTime,omitempty" validate:"omitempty,rfc3339"`
}

// EventResponse is an event plus whether a reminder is pending for it. The
// flag is false when the event is too close to remind or when the delay
// queue could not be updated; the event itself is saved either way.
type EventResponse struct {
	*types.Event
	ReminderScheduled bool `json:"reminderScheduled"`
}

// EventHandler serves the event CRUD routes and drives the reminder
// scheduler after each committed write.
type EventHandler struct {
	store     EventStore
	scheduler ReminderScheduler
	validator *core.Validator
	logger    *slog.Logger
}

// NewEventHandler creates an EventHandler.
func NewEventHandler(store EventStore, scheduler ReminderScheduler, v *core.Validator, l *slog.Logger) *EventHandler {
	if l == nil {
		l = slog.Default()
	}
	return &EventHandler{store: store, scheduler: scheduler, validator: v, logger: l}
}

// RegisterRoutes mounts the event routes.
func (h *EventHandler) RegisterRoutes(r chi.Router) {
	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// Create handles POST /api/events.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	eventTime, err := parseEventTime(req.EventTime)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	e := &types.Event{
		ID:        uuid.NewString(),
		UserID:    types.GetUserID(r.Context()),
		Title:     strings.TrimSpace(req.Title),
		EventTime: eventTime,
	}
	if err := h.store.Create(r.Context(), e); err != nil {
		core.Error(w, r, err)
		return
	}

	scheduled, err := h.scheduler.OnEventCreated(r.Context(), e)
	h.logSchedulingFailure(r.Context(), e, err)
	core.JSON(w, r, http.StatusCreated, EventResponse{Event: e, ReminderScheduled: scheduled})
}

// List handles GET /api/events. The userId query parameter selects whose
// events are returned; it defaults to the calling user.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		userID = types.GetUserID(r.Context())
	}

	events, err := h.store.ListByUser(r.Context(), userID)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, events)
}

// Update handles PATCH /api/events/{id}. A changed event time moves the
// reminder; a changed title re-enqueues it so the pushed text is current.
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateEventRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	var update types.EventUpdate
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		update.Title = &title
	}
	if req.EventTime != nil {
		t, err := parseEventTime(*req.EventTime)
		if err != nil {
			core.Error(w, r, err)
			return
		}
		update.EventTime = &t
	}

	e, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	titleChanged, timeChanged := update.Apply(e)
	if !titleChanged && !timeChanged {
		core.JSON(w, r, http.StatusOK, EventResponse{Event: e, ReminderScheduled: h.scheduler.WillRemind(e.EventTime)})
		return
	}

	if err := h.store.Update(r.Context(), e); err != nil {
		core.Error(w, r, err)
		return
	}

	scheduled, err := h.scheduler.OnEventTimeChanged(r.Context(), e)
	h.logSchedulingFailure(r.Context(), e, err)
	core.JSON(w, r, http.StatusOK, EventResponse{Event: e, ReminderScheduled: scheduled})
}

// Delete handles DELETE /api/events/{id}.
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.Delete(r.Context(), id); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.scheduler.OnEventDeleted(r.Context(), id); err != nil {
		// The event is gone; a stale reminder may still fire once.
		h.logger.ErrorContext(r.Context(), "reminder cancel failed after event delete",
			"event_id", id,
			"request_id", types.GetRequestID(r.Context()),
			"error", err,
		)
	}
	w.WriteHeader(http.StatusNoContent)
}

// logSchedulingFailure records a scheduler error. It never undoes the
// committed write.
func (h *EventHandler) logSchedulingFailure(ctx context.Context, e *types.Event, err error) {
	if err == nil {
		return
	}
	h.logger.ErrorContext(ctx, "event saved without reminder",
		"event_id", e.ID,
		"request_id", types.GetRequestID(ctx),
		"error", err,
	)
}

func parseEventTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, types.NewAppError(types.ErrCodeValidationInvalidTime, "eventTime must be an RFC 3339 timestamp", err)
	}
	return t.UTC(), nil
}
