package refresh

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

const tokenLength = 32 // 32 bytes = 256 bits

// Manager handles refresh token creation, validation, and rotation
type Manager struct {
	repo Repo
	ttl  time.Duration
	mu   sync.Mutex // serializes rotation so a token can only be exchanged once
}

// NewManager creates a new refresh token manager
func NewManager(repo Repo, ttl time.Duration) *Manager {
	return &Manager{
		repo: repo,
		ttl:  ttl,
	}
}

// Create generates a new refresh token for userID and stores it
func (m *Manager) Create(userID string) (string, error) {
	tokenBytes := make([]byte, tokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	now := NowTimeFunc()
	tokenStr := hex.EncodeToString(tokenBytes)
	if err := m.repo.Upsert(&StoredRefreshToken{
		Token:     tokenStr,
		UserID:    userID,
		Iat:       now,
		ExpiresAt: now.Add(m.ttl),
	}); err != nil {
		return "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return tokenStr, nil
}

// Rotate exchanges a refresh token for a new one. The old token is consumed even when
// it turns out to be expired.
func (m *Manager) Rotate(token string) (newToken, userID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.repo.Get(token)
	if err != nil || stored == nil {
		return "", "", ErrInvalidRefreshToken
	}
	if err := m.repo.Delete(token); err != nil {
		return "", "", fmt.Errorf("failed to delete refresh token: %w", err)
	}
	if NowTimeFunc().After(stored.ExpiresAt) {
		return "", "", ErrRefreshTokenExpired
	}

	newToken, err = m.Create(stored.UserID)
	if err != nil {
		return "", "", err
	}
	return newToken, stored.UserID, nil
}

// Revoke removes a single refresh token; unknown tokens are ignored
func (m *Manager) Revoke(token string) {
	_ = m.repo.Delete(token)
}

// RevokeAllForUser removes every refresh token issued to userID
func (m *Manager) RevokeAllForUser(userID string) (int, error) {
	return m.repo.DeleteByUserID(userID)
}
