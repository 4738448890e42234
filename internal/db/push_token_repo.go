package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"recipescheduler/internal/types"
)

// PushTokenRepository stores the single current push token per user.
type PushTokenRepository struct {
	db DBTX
}

// NewPushTokenRepository creates a new PushTokenRepository.
func NewPushTokenRepository(db DBTX) *PushTokenRepository {
	return &PushTokenRepository{db: db}
}

// Upsert registers token for userID, replacing any previous token.
func (r *PushTokenRepository) Upsert(ctx context.Context, userID, token string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO push_tokens (user_id, token, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE
		 SET token = EXCLUDED.token, updated_at = NOW()`,
		userID, token,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to save push token", err)
	}
	return nil
}

// Lookup returns the user's token. found is false when the user never
// registered a device.
func (r *PushTokenRepository) Lookup(ctx context.Context, userID string) (token string, found bool, err error) {
	err = r.db.QueryRow(ctx,
		`SELECT token FROM push_tokens WHERE user_id = $1`,
		userID,
	).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, types.NewAppError(types.ErrCodeInternalDB, "failed to look up push token", err)
	}
	return token, true, nil
}
