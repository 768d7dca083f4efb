// Package mockserver is an in-process implementation of the authentication backend. It
// issues HS256 access tokens and rotating opaque refresh tokens, and exposes knobs that
// let tests and demos shorten token lifetimes, revoke sessions or inject failures.
package mockserver

import (
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/internal/config"
	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/token/jwt"
	"github.com/jrsteele09/plan-session/token/refresh"
	refreshrepofake "github.com/jrsteele09/plan-session/token/refresh/repofake"
	"github.com/jrsteele09/plan-session/users"
	fakeuserrepo "github.com/jrsteele09/plan-session/users/repofake"
)

const issuer = "plan-session-mockapi"

type injectedFailure struct {
	status int
	count  int
}

// Server is the mock authentication backend
type Server struct {
	users     users.UserRepo
	creator   *jwt.Creator
	inspector *jwt.Inspector
	refresh   *refresh.Manager
	revoked   *token.RevocationList
	engine    *gin.Engine
	logger    zerolog.Logger

	registerMu sync.Mutex

	mu       sync.Mutex
	failures map[string]*injectedFailure
	latency  time.Duration

	calls sync.Map // path -> *atomic.Int64
}

type Option func(*Server)

func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		s.users = repo
	}
}

func WithRefreshRepo(repo refresh.Repo, ttl time.Duration) Option {
	return func(s *Server) {
		s.refresh = refresh.NewManager(repo, ttl)
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

func New(cfg config.MockAPIConfig, opts ...Option) (*Server, error) {
	if cfg.GetJWTSecret() == "" {
		return nil, errors.New("[mockserver.New] JWT secret is required")
	}

	creator := jwt.NewCreator(cfg.GetJWTSecret(), cfg.GetAccessTokenTTL(), issuer)
	revoked := token.NewRevocationList()
	s := &Server{
		users:     fakeuserrepo.NewFakeUserRepo(),
		creator:   creator,
		inspector: jwt.NewInspector(creator, revoked),
		refresh:   refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), cfg.GetRefreshTokenTTL()),
		revoked:   revoked,
		logger:    log.Logger,
		failures:  make(map[string]*injectedFailure),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger(), s.faultInjector())
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving every endpoint
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	auth := s.engine.Group("/auth")
	{
		auth.POST("/login", s.login)
		auth.POST("/register", s.register)
		auth.POST("/refresh", s.refreshTokens)
		auth.POST("/logout", s.logout)
	}

	api := s.engine.Group("/api")
	api.Use(s.requireBearer())
	{
		api.GET("/me", s.me)
	}

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// SeedUser creates an account directly, bypassing registration validation
func (s *Server) SeedUser(email, password, name string, userType users.UserType) (*users.User, error) {
	hash, err := users.HashPassword(password)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	u := &users.User{
		Email:        email,
		Name:         name,
		UserType:     userType,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Upsert(u); err != nil {
		return nil, err
	}
	return u, nil
}

// SetAccessTokenTTL changes the lifetime of access tokens issued from now on
func (s *Server) SetAccessTokenTTL(ttl time.Duration) {
	s.creator.SetTTL(ttl)
}

// RevokeSessions invalidates every refresh token issued to the user
func (s *Server) RevokeSessions(userID string) (int, error) {
	return s.refresh.RevokeAllForUser(userID)
}

// FailNext makes the next count requests to path fail with status
func (s *Server) FailNext(path string, status, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &injectedFailure{status: status, count: count}
}

// SetLatency delays every response by d
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Calls returns the number of requests received for path
func (s *Server) Calls(path string) int {
	v, ok := s.calls.Load(path)
	if !ok {
		return 0
	}
	return int(v.(*atomic.Int64).Load())
}

func (s *Server) issueTokens(u *users.User) (*authapi.WireTokens, error) {
	access, expiresAt, err := s.creator.CreateAccessToken(u)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.refresh.Create(u.ID)
	if err != nil {
		return nil, err
	}
	return &authapi.WireTokens{
		AccessToken:  access,
		RefreshToken: refreshToken,
		ExpiresAt:    &expiresAt,
	}, nil
}
