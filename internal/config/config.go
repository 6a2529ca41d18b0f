package config

import (
	"strings"

	apperrors "github.com/bookinghq/go-token-service/internal/errors"
)

type Config interface {
	EnvConfig
	TokenConfig
	StoreConfig
	LockoutConfig
}

type mainConfig struct {
	EnvVars
	Token
	Store
	Lockout
}

func New() Config {
	return mainConfig{}
}

// MinSigningSecretLength is the floor for the HMAC master secret.
const MinSigningSecretLength = 32

// Validate checks the settings that must be present before the service is
// allowed to serve traffic. A missing or weak signing secret is fatal at
// startup rather than a per-request failure.
func Validate(c Config) error {
	secret := strings.TrimSpace(c.GetSigningSecret())
	if secret == "" {
		return apperrors.Wrapf(apperrors.ErrConfiguration, "SIGNING_SECRET is not set")
	}
	if len(secret) < MinSigningSecretLength {
		return apperrors.Wrapf(apperrors.ErrConfiguration, "SIGNING_SECRET must be at least %d characters", MinSigningSecretLength)
	}
	switch c.GetStoreBackend() {
	case StoreBackendMemory:
	case StoreBackendRedis:
		if strings.TrimSpace(c.GetRedisAddr()) == "" {
			return apperrors.Wrapf(apperrors.ErrConfiguration, "STORE_BACKEND=redis but REDIS_ADDR is not set")
		}
	default:
		return apperrors.Wrapf(apperrors.ErrConfiguration, "unknown STORE_BACKEND %q", c.GetStoreBackend())
	}
	if c.GetLockoutThreshold() < 1 {
		return apperrors.Wrapf(apperrors.ErrConfiguration, "LOCKOUT_THRESHOLD must be at least 1")
	}
	return nil
}
