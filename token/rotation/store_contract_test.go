package rotation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bookinghq/go-token-service/internal/errors"
	"github.com/bookinghq/go-token-service/token/rotation"
)

// testStoreContract exercises the Store contract that both the in-memory and
// the Redis implementations must satisfy identically.
func testStoreContract(t *testing.T, store rotation.Store) {
	t.Helper()
	ctx := context.Background()

	newRecord := func(owner, family string) *rotation.Record {
		return &rotation.Record{
			ID:        uuid.New().String(),
			OwnerID:   owner,
			Family:    family,
			IssuedAt:  time.Now(),
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}

	t.Run("insert and get", func(t *testing.T) {
		rec := newRecord("owner-a", "fam-a")
		require.NoError(t, store.Insert(ctx, rec))

		got, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.Equal(t, rec.OwnerID, got.OwnerID)
		require.Equal(t, rec.Family, got.Family)
		require.False(t, got.Revoked)
	})

	t.Run("duplicate insert is an error", func(t *testing.T) {
		rec := newRecord("owner-a", "fam-a")
		require.NoError(t, store.Insert(ctx, rec))
		require.Error(t, store.Insert(ctx, rec))
	})

	t.Run("get absent id", func(t *testing.T) {
		_, err := store.Get(ctx, uuid.New().String())
		require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
	})

	t.Run("revoke is idempotent", func(t *testing.T) {
		rec := newRecord("owner-b", "fam-b")
		require.NoError(t, store.Insert(ctx, rec))
		require.NoError(t, store.Revoke(ctx, rec.ID))
		require.NoError(t, store.Revoke(ctx, rec.ID))
		require.NoError(t, store.Revoke(ctx, uuid.New().String()))

		got, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	})

	t.Run("revoke family", func(t *testing.T) {
		family := uuid.New().String()
		recs := []*rotation.Record{
			newRecord("owner-c", family),
			newRecord("owner-c", family),
			newRecord("owner-c", family),
		}
		other := newRecord("owner-c", uuid.New().String())
		for _, rec := range append(recs, other) {
			require.NoError(t, store.Insert(ctx, rec))
		}

		require.NoError(t, store.RevokeFamily(ctx, family))
		for _, rec := range recs {
			got, err := store.Get(ctx, rec.ID)
			require.NoError(t, err)
			require.True(t, got.Revoked)
		}
		got, err := store.Get(ctx, other.ID)
		require.NoError(t, err)
		require.False(t, got.Revoked)
	})

	t.Run("revoke all for owner spans families", func(t *testing.T) {
		owner := uuid.New().String()
		recs := []*rotation.Record{
			newRecord(owner, uuid.New().String()),
			newRecord(owner, uuid.New().String()),
		}
		other := newRecord(uuid.New().String(), uuid.New().String())
		for _, rec := range append(recs, other) {
			require.NoError(t, store.Insert(ctx, rec))
		}

		require.NoError(t, store.RevokeAllForOwner(ctx, owner))
		for _, rec := range recs {
			got, err := store.Get(ctx, rec.ID)
			require.NoError(t, err)
			require.True(t, got.Revoked)
		}
		got, err := store.Get(ctx, other.ID)
		require.NoError(t, err)
		require.False(t, got.Revoked)
	})

	t.Run("swap revokes presented and inserts successor", func(t *testing.T) {
		family := uuid.New().String()
		rec := newRecord("owner-d", family)
		require.NoError(t, store.Insert(ctx, rec))

		successor := newRecord("owner-d", family)
		require.NoError(t, store.Swap(ctx, rec.ID, successor))

		got, err := store.Get(ctx, rec.ID)
		require.NoError(t, err)
		require.True(t, got.Revoked)

		got, err = store.Get(ctx, successor.ID)
		require.NoError(t, err)
		require.False(t, got.Revoked)
	})

	t.Run("swap on revoked id reports reuse", func(t *testing.T) {
		family := uuid.New().String()
		rec := newRecord("owner-e", family)
		require.NoError(t, store.Insert(ctx, rec))
		require.NoError(t, store.Revoke(ctx, rec.ID))

		err := store.Swap(ctx, rec.ID, newRecord("owner-e", family))
		require.ErrorIs(t, err, apperrors.ErrTokenReused)
	})

	t.Run("swap on absent id", func(t *testing.T) {
		err := store.Swap(ctx, uuid.New().String(), newRecord("owner-f", uuid.New().String()))
		require.ErrorIs(t, err, apperrors.ErrTokenNotFound)
	})

	t.Run("concurrent swaps produce one winner", func(t *testing.T) {
		family := uuid.New().String()
		rec := newRecord("owner-g", family)
		require.NoError(t, store.Insert(ctx, rec))

		const callers = 8
		var wg sync.WaitGroup
		errs := make([]error, callers)
		wg.Add(callers)
		for i := 0; i < callers; i++ {
			go func(i int) {
				defer wg.Done()
				errs[i] = store.Swap(ctx, rec.ID, newRecord("owner-g", family))
			}(i)
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				require.ErrorIs(t, err, apperrors.ErrTokenReused)
			}
		}
		require.Equal(t, 1, winners)
	})
}
