package config

import (
	"os"
	"path/filepath"
)

type StoreConfig interface {
	GetStoreBackend() string
	GetStorePath() string
	GetRedisAddr() string
	GetRedisPrefix() string
	GetRedisDB() int
}

type Store struct{}

var _ StoreConfig = Store{}

// GetStoreBackend is one of "file", "sqlite", "redis" or "memory"
func (Store) GetStoreBackend() string {
	return GetEnv("STORE_BACKEND", "file")
}

func (Store) GetStorePath() string {
	return GetEnv("STORE_PATH", defaultStorePath())
}

func (Store) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Store) GetRedisPrefix() string {
	return GetEnv("REDIS_PREFIX", "plansession")
}

func (Store) GetRedisDB() int {
	return getInt("REDIS_DB", 0)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(dir, "plan-session")
}
