package revocation_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/bookinghq/go-token-service/token/revocation"
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

	store := revocation.NewRedisStore(client, 15*time.Minute)
	ctx := context.Background()
	now := time.Now()

	t.Run("jti blacklist", func(t *testing.T) {
		blacklisted, err := store.IsBlacklisted(ctx, "jti-1", "user-1", now)
		require.NoError(t, err)
		require.False(t, blacklisted)

		require.NoError(t, store.Blacklist(ctx, "jti-1", "user-1", revocation.ReasonLogout, now.Add(15*time.Minute)))

		blacklisted, err = store.IsBlacklisted(ctx, "jti-1", "user-1", now)
		require.NoError(t, err)
		require.True(t, blacklisted)
	})

	t.Run("owner cutoff", func(t *testing.T) {
		require.NoError(t, store.BlacklistAllForOwner(ctx, "user-2", now))

		blacklisted, err := store.IsBlacklisted(ctx, "old-jti", "user-2", now.Add(-time.Minute))
		require.NoError(t, err)
		require.True(t, blacklisted)

		blacklisted, err = store.IsBlacklisted(ctx, "new-jti", "user-2", now.Add(time.Minute))
		require.NoError(t, err)
		require.False(t, blacklisted)
	})

	t.Run("earlier cutoff does not shorten reach", func(t *testing.T) {
		require.NoError(t, store.BlacklistAllForOwner(ctx, "user-3", now))
		require.NoError(t, store.BlacklistAllForOwner(ctx, "user-3", now.Add(-time.Hour)))

		blacklisted, err := store.IsBlacklisted(ctx, "jti", "user-3", now.Add(-time.Minute))
		require.NoError(t, err)
		require.True(t, blacklisted)
	})
}
