package config

import (
	"time"
)

type TokenConfig interface {
	GetSigningSecret() string
	GetIssuer() string
	GetAudience() string
	GetAccessTokenExpiry() time.Duration
	GetRefreshTokenExpiry() time.Duration
}

type Token struct{}

var _ TokenConfig = Token{}

func (Token) GetSigningSecret() string {
	return GetEnv("SIGNING_SECRET", "")
}

func (Token) GetIssuer() string {
	return GetEnv("TOKEN_ISSUER", "bookinghq.com")
}

func (Token) GetAudience() string {
	return GetEnv("TOKEN_AUDIENCE", "bookinghq-api")
}

func (Token) GetAccessTokenExpiry() time.Duration {
	return getDurationEnv("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
}

func (Token) GetRefreshTokenExpiry() time.Duration {
	return getDurationEnv("REFRESH_TOKEN_EXPIRY", 30*24*time.Hour)
}

func getDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
