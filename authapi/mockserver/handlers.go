package mockserver

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jrsteele09/plan-session/authapi"
	apperrors "github.com/jrsteele09/plan-session/internal/errors"
	"github.com/jrsteele09/plan-session/token/refresh"
	"github.com/jrsteele09/plan-session/users"
)

func (s *Server) login(c *gin.Context) {
	var req authapi.Credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authapi.WireError{Error: "bad_request", Message: err.Error()})
		return
	}

	u, err := s.users.GetByEmail(req.Email)
	if err != nil || u == nil || !users.CheckPasswordHash(req.Password, u.PasswordHash) {
		c.JSON(http.StatusUnauthorized, authapi.WireError{Error: "invalid_credentials", Message: "invalid email or password"})
		return
	}

	s.respondWithSession(c, http.StatusOK, u)
}

func (s *Server) register(c *gin.Context) {
	var req authapi.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authapi.WireError{Error: "bad_request", Message: err.Error()})
		return
	}

	if fields := validateRegistration(req); len(fields) > 0 {
		c.JSON(http.StatusUnprocessableEntity, authapi.WireError{Error: "validation_failed", Message: "registration is invalid", Fields: fields})
		return
	}

	s.registerMu.Lock()
	defer s.registerMu.Unlock()

	existing, err := s.users.GetByEmail(req.Email)
	switch {
	case err == nil && existing != nil:
		c.JSON(http.StatusConflict, authapi.WireError{Error: "conflict", Message: "an account with this email already exists"})
		return
	case err != nil && !apperrors.Is(err, apperrors.ErrNotFound):
		s.logger.Error().Err(err).Msg("Failed to look up user")
		c.JSON(http.StatusInternalServerError, authapi.WireError{Error: "internal", Message: "failed to create user"})
		return
	}

	userType := req.UserType
	if userType == "" {
		userType = users.UserTypeClient
	}
	u, err := s.SeedUser(strings.TrimSpace(req.Email), req.Password, strings.TrimSpace(req.Name), userType)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, authapi.WireError{Error: "internal", Message: "failed to create user"})
		return
	}

	s.respondWithSession(c, http.StatusCreated, u)
}

func (s *Server) refreshTokens(c *gin.Context) {
	var req authapi.WireRefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, authapi.WireError{Error: "bad_request", Message: "refreshToken is required"})
		return
	}

	next, userID, err := s.refresh.Rotate(req.RefreshToken)
	if errors.Is(err, refresh.ErrInvalidRefreshToken) || errors.Is(err, refresh.ErrRefreshTokenExpired) {
		c.JSON(http.StatusUnauthorized, authapi.WireError{Error: "invalid_grant", Message: err.Error()})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to rotate refresh token")
		c.JSON(http.StatusInternalServerError, authapi.WireError{Error: "internal", Message: "failed to rotate refresh token"})
		return
	}

	u, err := s.users.GetByID(userID)
	if err != nil || u == nil {
		s.refresh.Revoke(next)
		c.JSON(http.StatusUnauthorized, authapi.WireError{Error: "invalid_grant", Message: "user no longer exists"})
		return
	}

	access, expiresAt, err := s.creator.CreateAccessToken(u)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to sign access token")
		c.JSON(http.StatusInternalServerError, authapi.WireError{Error: "internal", Message: "failed to sign access token"})
		return
	}

	c.JSON(http.StatusOK, authapi.WireTokens{
		AccessToken:  access,
		RefreshToken: next,
		ExpiresAt:    &expiresAt,
	})
}

// logout revokes the refresh token and, when a bearer token is supplied, the access token
func (s *Server) logout(c *gin.Context) {
	var req authapi.WireRefreshRequest
	_ = c.ShouldBindJSON(&req)
	if req.RefreshToken != "" {
		s.refresh.Revoke(req.RefreshToken)
	}

	if raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
		if ti, err := s.inspector.Introspect(raw); err == nil && ti.Active {
			s.revoked.Revoke(ti.JTI, ti.Exp)
		}
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) me(c *gin.Context) {
	ti := introspectionFrom(c)
	if ti == nil {
		c.JSON(http.StatusUnauthorized, authapi.WireError{Error: "unauthorized"})
		return
	}
	u, err := s.users.GetByID(ti.Sub)
	if err != nil || u == nil {
		c.JSON(http.StatusNotFound, authapi.WireError{Error: "not_found", Message: "user not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":           u,
		"tokenExpiresAt": ti.Exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) respondWithSession(c *gin.Context, status int, u *users.User) {
	tokens, err := s.issueTokens(u)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", u.ID).Msg("Failed to issue tokens")
		c.JSON(http.StatusInternalServerError, authapi.WireError{Error: "internal", Message: "failed to issue tokens"})
		return
	}
	c.JSON(status, gin.H{"user": u, "tokens": tokens})
}

func validateRegistration(req authapi.Registration) map[string]string {
	fields := map[string]string{}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.Email)); err != nil || strings.TrimSpace(req.Email) == "" {
		fields["email"] = "must be a valid email address"
	}
	if err := users.ValidatePasswordStrength(req.Password); err != nil {
		fields["password"] = err.Error()
	}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = "is required"
	}
	if req.UserType != "" && !req.UserType.Valid() {
		fields["userType"] = "must be client or provider"
	}
	return fields
}
