package lockout

import (
	"context"
	"time"

	"github.com/bookinghq/go-token-service/internal/config"
	apperrors "github.com/bookinghq/go-token-service/internal/errors"
)

// Status reports the lockout state of an (identity, purpose) pair.
type Status struct {
	Locked            bool
	Until             time.Time
	RemainingAttempts int
}

// Guard rate-limits failed authentication attempts independent of token
// mechanics. Each (identity, purpose) pair is tracked separately: an OTP
// lockout for a phone number never blocks password login for the same user.
//
// The state machine is Clean -> Warned(n) -> Locked(until). Lockout expiry is
// lazy - checked when asked, never swept. Whether a failure arriving while
// already locked extends the lock is a configuration policy; the default is
// no, so an attacker hammering the endpoint cannot extend a victim's lockout
// indefinitely.
type Guard struct {
	store             Store
	threshold         int
	window            time.Duration
	duration          time.Duration
	extendWhileLocked bool
	nowFunc           func() time.Time
}

type GuardOption func(*Guard)

func WithNowFunc(now func() time.Time) GuardOption {
	return func(g *Guard) {
		g.nowFunc = now
	}
}

func NewGuard(cfg config.LockoutConfig, store Store, options ...GuardOption) *Guard {
	g := &Guard{
		store:             store,
		threshold:         cfg.GetLockoutThreshold(),
		window:            cfg.GetLockoutWindow(),
		duration:          cfg.GetLockoutDuration(),
		extendWhileLocked: cfg.GetLockoutExtendsWhileLocked(),
		nowFunc:           time.Now,
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

func recordKey(identity, purpose string) string {
	return "lockout:" + purpose + ":" + identity
}

// IsLocked reports whether the pair is currently under lockout. Callers gate
// every credential check on this before touching the credential itself.
func (g *Guard) IsLocked(ctx context.Context, identity, purpose string) (Status, error) {
	rec, err := g.store.Get(ctx, recordKey(identity, purpose))
	if err != nil {
		return Status{}, err
	}
	return g.status(rec), nil
}

func (g *Guard) status(rec *Record) Status {
	if rec == nil {
		return Status{RemainingAttempts: g.threshold}
	}
	if rec.LockedUntil.After(g.nowFunc()) {
		return Status{Locked: true, Until: rec.LockedUntil}
	}
	remaining := g.threshold - rec.Count
	if remaining < 0 {
		remaining = 0
	}
	return Status{RemainingAttempts: remaining}
}

// RecordFailure registers a failed attempt. Reaching the threshold within the
// window transitions the pair to Locked for the configured duration and
// returns an ErrLockedOut-wrapping error alongside the status.
func (g *Guard) RecordFailure(ctx context.Context, identity, purpose string) (Status, error) {
	key := recordKey(identity, purpose)
	now := g.nowFunc()

	rec, err := g.store.Get(ctx, key)
	if err != nil {
		return Status{}, err
	}
	if rec != nil && rec.LockedUntil.After(now) {
		if g.extendWhileLocked {
			until := now.Add(g.duration)
			if err := g.store.Lock(ctx, key, until, g.duration+g.window); err != nil {
				return Status{}, err
			}
			return Status{Locked: true, Until: until}, nil
		}
		// Already locked: do not increment, do not extend.
		return Status{Locked: true, Until: rec.LockedUntil}, nil
	}

	count, err := g.store.Incr(ctx, key, g.window)
	if err != nil {
		return Status{}, err
	}
	if count >= g.threshold {
		until := now.Add(g.duration)
		if err := g.store.Lock(ctx, key, until, g.duration+g.window); err != nil {
			return Status{}, err
		}
		return Status{Locked: true, Until: until}, nil
	}
	return Status{RemainingAttempts: g.threshold - count}, nil
}

// Reset clears the failure record on successful verification.
func (g *Guard) Reset(ctx context.Context, identity, purpose string) error {
	return g.store.Delete(ctx, recordKey(identity, purpose))
}

// Check is the gate callers place in front of a credential check: it returns
// a LockoutError (matching apperrors.ErrLockedOut) when the pair is locked,
// nil otherwise.
func (g *Guard) Check(ctx context.Context, identity, purpose string) error {
	status, err := g.IsLocked(ctx, identity, purpose)
	if err != nil {
		return err
	}
	if status.Locked {
		return &apperrors.LockoutError{Until: status.Until, RemainingAttempts: 0}
	}
	return nil
}
