package rotation

import "context"

// Store is the authoritative source of truth for which refresh tokens are
// alive. Two conformant implementations exist: MemoryStore (single node,
// tests) and RedisStore (shared across horizontally-scaled instances). Call
// sites select one at startup and never branch on the backend again.
//
// Swap is the operation the replay protection hangs on: it must be
// linearizable per presented id, so that of two concurrent rotations of the
// same token exactly one succeeds and the other observes the revoke.
type Store interface {
	// Insert adds a new unrevoked record. Inserting an id that already
	// exists is an error; ids are random 128-bit values so a collision
	// means caller misuse, not bad luck.
	Insert(ctx context.Context, rec *Record) error

	// Get returns the record for id, or ErrTokenNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// Revoke marks the record revoked. Idempotent; absent ids are a no-op.
	Revoke(ctx context.Context, id string) error

	// RevokeFamily marks every record in the family revoked. Called when a
	// revoked token is replayed (theft signal) and when a session must be
	// fully terminated.
	RevokeFamily(ctx context.Context, family string) error

	// RevokeAllForOwner marks every record owned by the subject revoked,
	// across all families ("sign out everywhere").
	RevokeAllForOwner(ctx context.Context, ownerID string) error

	// Swap atomically revokes the record for presentedID and inserts its
	// successor. No observer may see both tokens valid, nor neither: if the
	// successor cannot be written the presented record stays unrevoked and
	// Swap fails. Returns ErrTokenNotFound when presentedID has no record
	// and ErrTokenReused when it is already revoked; the caller is expected
	// to revoke the family on reuse.
	Swap(ctx context.Context, presentedID string, successor *Record) error
}
