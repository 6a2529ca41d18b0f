package revocation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bookinghq/go-token-service/token/revocation"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func TestBlacklistOverridesValidToken(t *testing.T) {
	clock := newFakeClock()
	store := revocation.NewMemoryStore(revocation.WithNowFunc(clock.Now))
	ctx := context.Background()

	issuedAt := clock.Now()
	expiresAt := issuedAt.Add(15 * time.Minute)

	blacklisted, err := store.IsBlacklisted(ctx, "jti-1", "user-1", issuedAt)
	require.NoError(t, err)
	require.False(t, blacklisted)

	require.NoError(t, store.Blacklist(ctx, "jti-1", "user-1", revocation.ReasonLogout, expiresAt))

	blacklisted, err = store.IsBlacklisted(ctx, "jti-1", "user-1", issuedAt)
	require.NoError(t, err)
	require.True(t, blacklisted)

	// Other tokens are untouched.
	blacklisted, err = store.IsBlacklisted(ctx, "jti-2", "user-1", issuedAt)
	require.NoError(t, err)
	require.False(t, blacklisted)
}

func TestBlacklistEntryExpiresWithToken(t *testing.T) {
	clock := newFakeClock()
	store := revocation.NewMemoryStore(revocation.WithNowFunc(clock.Now))
	ctx := context.Background()

	issuedAt := clock.Now()
	expiresAt := issuedAt.Add(15 * time.Minute)
	require.NoError(t, store.Blacklist(ctx, "jti-1", "user-1", revocation.ReasonSecurity, expiresAt))

	clock.Advance(16 * time.Minute)

	// Past the token's own expiry the entry no longer matters; expiry
	// checking rejects the token regardless.
	blacklisted, err := store.IsBlacklisted(ctx, "jti-1", "user-1", issuedAt)
	require.NoError(t, err)
	require.False(t, blacklisted)
}

func TestBlacklistAllForOwnerUsesIssuedAtCutoff(t *testing.T) {
	clock := newFakeClock()
	store := revocation.NewMemoryStore(revocation.WithNowFunc(clock.Now))
	ctx := context.Background()

	before := clock.Now().Add(-time.Minute)
	require.NoError(t, store.BlacklistAllForOwner(ctx, "user-1", clock.Now()))

	// Issued before the cutoff: rejected, even with no per-jti entry.
	blacklisted, err := store.IsBlacklisted(ctx, "old-jti", "user-1", before)
	require.NoError(t, err)
	require.True(t, blacklisted)

	// Issued after the cutoff: fine.
	after := clock.Now().Add(time.Minute)
	blacklisted, err = store.IsBlacklisted(ctx, "new-jti", "user-1", after)
	require.NoError(t, err)
	require.False(t, blacklisted)

	// Other owners are unaffected.
	blacklisted, err = store.IsBlacklisted(ctx, "other-jti", "user-2", before)
	require.NoError(t, err)
	require.False(t, blacklisted)
}

func TestBlacklistAllForOwnerKeepsLaterCutoff(t *testing.T) {
	clock := newFakeClock()
	store := revocation.NewMemoryStore(revocation.WithNowFunc(clock.Now))
	ctx := context.Background()

	later := clock.Now()
	earlier := later.Add(-time.Hour)
	require.NoError(t, store.BlacklistAllForOwner(ctx, "user-1", later))
	require.NoError(t, store.BlacklistAllForOwner(ctx, "user-1", earlier))

	// A second, earlier cutoff must not shorten the first one's reach.
	blacklisted, err := store.IsBlacklisted(ctx, "jti", "user-1", later.Add(-time.Minute))
	require.NoError(t, err)
	require.True(t, blacklisted)
}

func TestCleanupDropsExpiredEntries(t *testing.T) {
	clock := newFakeClock()
	store := revocation.NewMemoryStore(revocation.WithNowFunc(clock.Now))
	ctx := context.Background()

	require.NoError(t, store.Blacklist(ctx, "jti-1", "user-1", revocation.ReasonLogout, clock.Now().Add(time.Minute)))
	clock.Advance(2 * time.Minute)
	store.Cleanup()

	blacklisted, err := store.IsBlacklisted(ctx, "jti-1", "user-1", clock.Now())
	require.NoError(t, err)
	require.False(t, blacklisted)
}
