package config

import (
	"strconv"
	"time"
)

const (
	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetStoreTimeout() time.Duration
	GetRevocationFailClosed() bool
}

type Store struct{}

var _ StoreConfig = Store{}

// GetStoreBackend selects the store implementation once at startup: "memory"
// for single-node deployments and tests, "redis" for horizontally-scaled
// deployments where all instances must share revocation/rotation state.
func (Store) GetStoreBackend() string {
	return GetEnv("STORE_BACKEND", StoreBackendMemory)
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "")
}

func (Store) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Store) GetRedisDB() int {
	db, err := strconv.Atoi(GetEnv("REDIS_DB", "0"))
	if err != nil {
		return 0
	}
	return db
}

// GetStoreTimeout bounds every store round-trip within a request.
func (Store) GetStoreTimeout() time.Duration {
	return getDurationEnv("STORE_TIMEOUT", 2*time.Second)
}

// GetRevocationFailClosed decides what the gateway does when the blacklist
// store is unreachable: true rejects the request (favoured for
// security-critical deployments), false lets the signature check stand alone.
// This is a deployment policy, never an accidental default.
func (Store) GetRevocationFailClosed() bool {
	return getBoolEnv("REVOCATION_FAIL_CLOSED", true)
}

func getBoolEnv(envVar string, defaultValue bool) bool {
	value := GetEnv(envVar, "")
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}
