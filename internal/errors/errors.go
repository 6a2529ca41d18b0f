package errors

import (
	"errors"
	"fmt"
	"time"
)

// Closed set of token lifecycle errors. Callers branch with errors.Is /
// errors.As rather than matching message strings.
var (
	// ErrInvalidToken - signature or structure invalid; client fault, never retried.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired - valid signature, past expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenMalformed - verified token missing required claims (jti, family).
	ErrTokenMalformed = errors.New("malformed token")

	// ErrTokenNotFound - well-formed token with no backing store record.
	ErrTokenNotFound = errors.New("token not found")

	// ErrTokenReused - a revoked refresh token was presented again. Security
	// significant: triggers family-wide revocation and must be logged
	// distinctly from routine invalid-token noise.
	ErrTokenReused = errors.New("token reused")

	// ErrConfiguration - missing signing secret or misconfigured store.
	// Fatal at startup; the service must not serve traffic.
	ErrConfiguration = errors.New("configuration error")

	// ErrPersistence - transient store failure. Reads may be retried; a
	// token whose persistence write failed must never reach the client.
	ErrPersistence = errors.New("persistence error")

	// ErrLockedOut - identity+purpose under lockout. Usually carried by a
	// LockoutError so callers can report remaining time.
	ErrLockedOut = errors.New("locked out")
)

// LockoutError reports an active lockout together with the information the
// caller needs for a user-facing "try again in N minutes" message.
type LockoutError struct {
	Until             time.Time
	RemainingAttempts int
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("locked out until %s", e.Until.Format(time.RFC3339))
}

// Unwrap makes errors.Is(err, ErrLockedOut) hold for LockoutError values.
func (e *LockoutError) Unwrap() error {
	return ErrLockedOut
}

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
