package lockout_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bookinghq/go-token-service/token/lockout"
)

// Integration test; requires a running Redis. Skipped unless REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("redis unreachable at %s: %v", addr, err)
	}

	store := lockout.NewRedisStore(client)
	ctx := context.Background()

	t.Run("incr and get", func(t *testing.T) {
		rec, err := store.Get(ctx, "lockout:otp:a")
		require.NoError(t, err)
		require.Nil(t, rec)

		for want := 1; want <= 3; want++ {
			count, err := store.Incr(ctx, "lockout:otp:a", time.Minute)
			require.NoError(t, err)
			require.Equal(t, want, count)
		}

		rec, err = store.Get(ctx, "lockout:otp:a")
		require.NoError(t, err)
		require.Equal(t, 3, rec.Count)
		require.True(t, rec.LockedUntil.IsZero())
	})

	t.Run("lock and delete", func(t *testing.T) {
		until := time.Now().Add(15 * time.Minute)
		require.NoError(t, store.Lock(ctx, "lockout:otp:b", until, 30*time.Minute))

		rec, err := store.Get(ctx, "lockout:otp:b")
		require.NoError(t, err)
		require.Equal(t, until.Unix(), rec.LockedUntil.Unix())

		require.NoError(t, store.Delete(ctx, "lockout:otp:b"))
		rec, err = store.Get(ctx, "lockout:otp:b")
		require.NoError(t, err)
		require.Nil(t, rec)
	})

	t.Run("guard over redis", func(t *testing.T) {
		guard := lockout.NewGuard(redisGuardConfig{}, store)
		for i := 0; i < 2; i++ {
			status, err := guard.RecordFailure(ctx, "phone-c", "otp")
			require.NoError(t, err)
			require.False(t, status.Locked)
		}
		status, err := guard.RecordFailure(ctx, "phone-c", "otp")
		require.NoError(t, err)
		require.True(t, status.Locked)
	})
}

type redisGuardConfig struct{}

func (redisGuardConfig) GetLockoutThreshold() int           { return 3 }
func (redisGuardConfig) GetLockoutWindow() time.Duration    { return time.Minute }
func (redisGuardConfig) GetLockoutDuration() time.Duration  { return time.Minute }
func (redisGuardConfig) GetLockoutExtendsWhileLocked() bool { return false }
