package config

import "time"

type SessionConfig interface {
	GetSafetyMargin() time.Duration
	GetRequestTimeout() time.Duration
	GetHydrationGrace() time.Duration
	GetMaxRefreshTimeouts() int
}

type Session struct{}

var _ SessionConfig = Session{}

// GetSafetyMargin is how long before access token expiry a proactive refresh fires
func (Session) GetSafetyMargin() time.Duration {
	return getDuration("SESSION_SAFETY_MARGIN", 30*time.Second)
}

func (Session) GetRequestTimeout() time.Duration {
	return getDuration("SESSION_REQUEST_TIMEOUT", 10*time.Second)
}

// GetHydrationGrace bounds how stale a persisted access token may be and still be restored
func (Session) GetHydrationGrace() time.Duration {
	return getDuration("SESSION_HYDRATION_GRACE", 7*24*time.Hour) // 7 days
}

func (Session) GetMaxRefreshTimeouts() int {
	n := getInt("SESSION_MAX_REFRESH_TIMEOUTS", 3)
	if n < 1 {
		return 1
	}
	return n
}
