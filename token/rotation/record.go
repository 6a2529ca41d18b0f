package rotation

import "time"

// Record is the server-side metadata for one refresh token. The client only
// ever holds the signed JWT; the record is keyed by the token's jti claim.
// All tokens descended from one original login issuance share a Family, which
// is what lets a replayed token condemn the whole chain.
type Record struct {
	ID        string    // jti claim, globally unique
	OwnerID   string    // subject the token was issued to
	Family    string    // rotation lineage, shared across successors
	Revoked   bool      // set on rotation, logout, or family compromise
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the record's fixed TTL has elapsed. Expiry is
// immutable once set; pruning expired records is storage hygiene only.
func (r *Record) Expired(at time.Time) bool {
	return !r.ExpiresAt.After(at)
}
