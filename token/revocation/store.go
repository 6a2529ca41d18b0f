package revocation

import (
	"context"
	"time"
)

// Reason records why an access token was blacklisted.
type Reason string

const (
	ReasonLogout   Reason = "logout"
	ReasonSecurity Reason = "security"
	ReasonExpired  Reason = "expired"
)

// Store rejects access tokens before their natural expiry. IsBlacklisted sits
// on the hot path of every authenticated request and must stay O(1).
//
// Bulk revocation uses a per-owner "tokens valid after" cutoff compared
// against each token's iat claim rather than enumerating outstanding jtis:
// individual access tokens issued in the past are not enumerable, and the
// cutoff costs constant storage per owner where enumeration would grow with
// issuance rate.
type Store interface {
	// Blacklist records that the token with this jti must be rejected.
	// Entries need not outlive expiresAt - past that point the expiry check
	// rejects the token anyway.
	Blacklist(ctx context.Context, jti, ownerID string, reason Reason, expiresAt time.Time) error

	// IsBlacklisted reports whether the token must be rejected, either
	// because its jti was blacklisted individually or because it was issued
	// before the owner's bulk-revocation cutoff.
	IsBlacklisted(ctx context.Context, jti, ownerID string, issuedAt time.Time) (bool, error)

	// BlacklistAllForOwner invalidates every access token issued to the
	// owner at or before the given instant.
	BlacklistAllForOwner(ctx context.Context, ownerID string, at time.Time) error
}
