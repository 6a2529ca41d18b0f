package lockout

import (
	"context"
	"strconv"
	"time"

	apperrors "github.com/bookinghq/go-token-service/internal/errors"
	"github.com/redis/go-redis/v9"
)

var _ Store = (*RedisStore)(nil)

// RedisStore shares lockout counters across instances. Each record is a hash
// whose TTL is the tracking window (extended to cover the lock duration once
// locked); HINCRBY gives the per-key atomic increment the guard relies on.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

// incrScript creates the record with its window TTL on first failure and
// increments thereafter without touching the TTL, so the window is anchored
// at the first failure rather than sliding.
var incrScript = redis.NewScript(`
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
if count == 1 then
	redis.call('HSET', KEYS[1], 'window_start', ARGV[2])
	redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[1]))
end
return count
`)

func (s *RedisStore) Get(ctx context.Context, key string) (*Record, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrPersistence, "redis lockout get: %v", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	rec := &Record{}
	rec.Count, _ = strconv.Atoi(fields["count"])
	if v, ok := fields["window_start"]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.WindowStart = time.Unix(unix, 0)
		}
	}
	if v, ok := fields["locked_until"]; ok {
		if unix, err := strconv.ParseInt(v, 10, 64); err == nil {
			rec.LockedUntil = time.Unix(unix, 0)
		}
	}
	return rec, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, windowTTL time.Duration) (int, error) {
	count, err := incrScript.Run(ctx, s.client, []string{key},
		windowTTL.Milliseconds(), time.Now().Unix()).Int()
	if err != nil {
		return 0, apperrors.Wrapf(apperrors.ErrPersistence, "redis lockout incr: %v", err)
	}
	return count, nil
}

func (s *RedisStore) Lock(ctx context.Context, key string, until time.Time, ttl time.Duration) error {
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, key, "locked_until", until.Unix())
	pipe.PExpire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis lockout lock: %v", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return apperrors.Wrapf(apperrors.ErrPersistence, "redis lockout delete: %v", err)
	}
	return nil
}
