package queue

import (
	"context"
	"fmt"

	"recipescheduler/internal/config"
	"recipescheduler/internal/db"
)

// Backend is an opened DelayQueue plus the function that releases it.
type Backend struct {
	Name  string
	Queue DelayQueue
	Close func() error
	// Ping is nil for backends without a remote dependency of their own.
	Ping func(ctx context.Context) error
}

// OpenBackend builds the DelayQueue selected by cfg.Queue.Backend. pg is only
// used by the postgres backend and may be nil otherwise.
func OpenBackend(ctx context.Context, cfg *config.Config, pg db.DBTX) (*Backend, error) {
	switch cfg.Queue.Backend {
	case config.QueueBackendPostgres:
		if pg == nil {
			return nil, fmt.Errorf("queue: postgres backend requires a database connection")
		}
		return &Backend{
			Name:  config.QueueBackendPostgres,
			Queue: NewPostgresQueue(db.NewReminderJobRepository(pg)),
			Close: func() error { return nil },
		}, nil

	case config.QueueBackendRedis:
		client, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:  config.QueueBackendRedis,
			Queue: NewRedisQueue(client, cfg.Redis.KeyPrefix),
			Close: client.Close,
			Ping:  func(ctx context.Context) error { return client.Ping(ctx).Err() },
		}, nil

	case config.QueueBackendMemory:
		return &Backend{
			Name:  config.QueueBackendMemory,
			Queue: NewMemoryQueue(),
			Close: func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("queue: unknown backend %q", cfg.Queue.Backend)
	}
}
