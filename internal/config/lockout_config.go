package config

import (
	"strconv"
	"time"
)

type LockoutConfig interface {
	GetLockoutThreshold() int
	GetLockoutWindow() time.Duration
	GetLockoutDuration() time.Duration
	GetLockoutExtendsWhileLocked() bool
}

type Lockout struct{}

var _ LockoutConfig = Lockout{}

func (Lockout) GetLockoutThreshold() int {
	n, err := strconv.Atoi(GetEnv("LOCKOUT_THRESHOLD", "5"))
	if err != nil || n < 1 {
		return 5
	}
	return n
}

// GetLockoutWindow is the tracking window for consecutive failures.
func (Lockout) GetLockoutWindow() time.Duration {
	return getDurationEnv("LOCKOUT_WINDOW", 15*time.Minute)
}

func (Lockout) GetLockoutDuration() time.Duration {
	return getDurationEnv("LOCKOUT_DURATION", 15*time.Minute)
}

// GetLockoutExtendsWhileLocked controls whether a failed attempt arriving
// during an active lockout pushes lockoutUntil further out. Off by default:
// an attacker pelting the endpoint must not keep the legitimate user locked
// out indefinitely.
func (Lockout) GetLockoutExtendsWhileLocked() bool {
	return getBoolEnv("LOCKOUT_EXTENDS_WHILE_LOCKED", false)
}
