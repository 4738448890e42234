package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"recipescheduler/internal/types"
)

// EventRepository provides data access for the events table.
type EventRepository struct {
	db DBTX
}

// NewEventRepository creates a new EventRepository backed by the given
// database connection (pool or transaction).
func NewEventRepository(db DBTX) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts e. An empty ID is filled with a fresh UUID; CreatedAt is
// populated from the database.
func (r *EventRepository) Create(ctx context.Context, e *types.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	row := r.db.QueryRow(ctx,
		`INSERT INTO events (id, user_id, title, event_time)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		e.ID, e.UserID, e.Title, e.EventTime.UTC(),
	)
	if err := row.Scan(&e.CreatedAt); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create event", err)
	}
	return nil
}

// GetByID returns the event or ErrCodeNotFoundEvent.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*types.Event, error) {
	var e types.Event
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, title, event_time, created_at
		 FROM events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.UserID, &e.Title, &e.EventTime, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to get event", err)
	}
	return &e, nil
}

// ListByUser returns the user's events ordered by event time ascending.
func (r *EventRepository) ListByUser(ctx context.Context, userID string) ([]*types.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, title, event_time, created_at
		 FROM events WHERE user_id = $1
		 ORDER BY event_time ASC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list events", err)
	}
	defer rows.Close()

	events := make([]*types.Event, 0)
	for rows.Next() {
		var e types.Event
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.EventTime, &e.CreatedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan event", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate events", err)
	}
	return events, nil
}

// Update persists the title and event time of e.
func (r *EventRepository) Update(ctx context.Context, e *types.Event) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET title = $2, event_time = $3 WHERE id = $1`,
		e.ID, e.Title, e.EventTime.UTC(),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update event", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil)
	}
	return nil
}

// Delete removes the event.
func (r *EventRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete event", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundEvent, "event not found", nil)
	}
	return nil
}
