package config

import (
	"fmt"
	"strings"
	"time"
)

type MockAPIConfig interface {
	GetPort() string
	GetJWTSecret() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
}

type MockAPI struct{}

var _ MockAPIConfig = MockAPI{}

func (MockAPI) GetPort() string {
	port := GetEnv("PORT", "8081")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (MockAPI) GetJWTSecret() string {
	return GetEnv("JWT_SECRET", "dev-secret-change-me")
}

func (MockAPI) GetAccessTokenTTL() time.Duration {
	return getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute)
}

func (MockAPI) GetRefreshTokenTTL() time.Duration {
	return getDuration("JWT_REFRESH_EXPIRY", 7*24*time.Hour)
}
