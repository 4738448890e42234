package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"recipescheduler/internal/config"
)

// NewRedisClient connects to Redis using cfg and fails fast when the server
// is unreachable.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	var opts *redis.Options
	if cfg.URL.IsSet() {
		parsed, err := redis.ParseURL(cfg.URL.Unmask())
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr(),
			Password: cfg.Password.Unmask(),
			DB:       cfg.DB,
		}
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.MaxRetries = 3
	opts.MinRetryBackoff = 100 * time.Millisecond
	opts.MaxRetryBackoff = 1 * time.Second

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// Keys: 1 schedule zset (score = due time in ms), 2 envelope hash,
// 3 generation hash, 4 attempts hash.
var (
	enqueueScript = redis.NewScript(`
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
redis.call('HSET', KEYS[2], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[3], ARGV[1], ARGV[4])
redis.call('HDEL', KEYS[4], ARGV[1])
return 1
`)

	cancelScript = redis.NewScript(`
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('HDEL', KEYS[4], ARGV[1])
return 1
`)

	// A claimed member is re-scored to its lease expiry, so it is due again
	// only if no Ack arrives in time.
	claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
local out = {}
for _, id in ipairs(ids) do
  redis.call('ZADD', KEYS[1], ARGV[3], id)
  local attempts = redis.call('HINCRBY', KEYS[4], id, 1)
  table.insert(out, id)
  table.insert(out, redis.call('HGET', KEYS[2], id) or '')
  table.insert(out, redis.call('HGET', KEYS[3], id) or '')
  table.insert(out, attempts)
end
return out
`)

	ackScript = redis.NewScript(`
if redis.call('HGET', KEYS[3], ARGV[1]) ~= ARGV[2] then
  return 0
end
redis.call('ZREM', KEYS[1], ARGV[1])
redis.call('HDEL', KEYS[2], ARGV[1])
redis.call('HDEL', KEYS[3], ARGV[1])
redis.call('HDEL', KEYS[4], ARGV[1])
return 1
`)
)

type redisEnvelope struct {
	Payload []byte    `json:"payload"`
	FireAt  time.Time `json:"fire_at"`
}

// RedisQueue is a DelayQueue over a Redis sorted set. Every operation is a
// single Lua script, so each one is atomic on the server.
type RedisQueue struct {
	client redis.Scripter
	keys   []string
}

// NewRedisQueue creates a RedisQueue whose keys share prefix. The prefix is
// wrapped in a hash tag so all keys land in one cluster slot.
func NewRedisQueue(client redis.Scripter, prefix string) *RedisQueue {
	tag := "{" + prefix + "}"
	return &RedisQueue{
		client: client,
		keys: []string{
			tag + ":schedule",
			tag + ":jobs",
			tag + ":generations",
			tag + ":attempts",
		},
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, key string, payload []byte, fireAt time.Time) error {
	env, err := json.Marshal(redisEnvelope{Payload: payload, FireAt: fireAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode job envelope: %w", err)
	}
	err = enqueueScript.Run(ctx, q.client, q.keys, key, string(env), fireAt.UnixMilli(), uuid.NewString()).Err()
	if err != nil {
		return unavailable("enqueue", err)
	}
	return nil
}

func (q *RedisQueue) Cancel(ctx context.Context, key string) error {
	if err := cancelScript.Run(ctx, q.client, q.keys, key).Err(); err != nil {
		return unavailable("cancel", err)
	}
	return nil
}

func (q *RedisQueue) Claim(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]Job, error) {
	reply, err := claimScript.Run(ctx, q.client, q.keys, now.UnixMilli(), limit, now.Add(lease).UnixMilli()).Slice()
	if err != nil {
		return nil, unavailable("claim", err)
	}
	if len(reply)%4 != 0 {
		return nil, unavailable("claim", fmt.Errorf("unexpected reply length %d", len(reply)))
	}

	jobs := make([]Job, 0, len(reply)/4)
	for i := 0; i < len(reply); i += 4 {
		job := Job{
			Key:        asString(reply[i]),
			Generation: asString(reply[i+2]),
		}
		if n, ok := reply[i+3].(int64); ok {
			job.Attempts = int(n)
		}
		var env redisEnvelope
		// An undecodable envelope still yields a job so the consumer can
		// log it and Ack it away.
		if raw := asString(reply[i+1]); raw != "" && json.Unmarshal([]byte(raw), &env) == nil {
			job.Payload = env.Payload
			job.FireAt = env.FireAt
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (q *RedisQueue) Ack(ctx context.Context, job Job) error {
	if err := ackScript.Run(ctx, q.client, q.keys, job.Key, job.Generation).Err(); err != nil {
		return unavailable("ack", err)
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

var _ DelayQueue = (*RedisQueue)(nil)
