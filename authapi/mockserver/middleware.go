package mockserver

import (
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/token/jwt"
)

const introspectionKey = "introspection"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		v, _ := s.calls.LoadOrStore(path, new(atomic.Int64))
		v.(*atomic.Int64).Add(1)

		c.Next()

		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", c.Writer.Status()).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Dur("elapsed", time.Since(start)).
			Msg("Mock API request")
	}
}

// faultInjector applies SetLatency and FailNext before the handler runs
func (s *Server) faultInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		latency := s.latency
		status := 0
		if f, ok := s.failures[c.Request.URL.Path]; ok && f.count > 0 {
			status = f.status
			f.count--
		}
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-c.Request.Context().Done():
				c.Abort()
				return
			}
		}
		if status != 0 {
			c.AbortWithStatusJSON(status, authapi.WireError{Error: "injected_failure", Message: http.StatusText(status)})
			return
		}
		c.Next()
	}
}

func (s *Server) requireBearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, authapi.WireError{Error: "unauthorized", Message: "authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, authapi.WireError{Error: "unauthorized", Message: "invalid authorization header format"})
			return
		}

		ti, err := s.inspector.Introspect(parts[1])
		if err != nil || ti == nil || !ti.Active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, authapi.WireError{Error: "unauthorized", Message: "invalid or expired token"})
			return
		}

		c.Set(introspectionKey, ti)
		c.Next()
	}
}

func introspectionFrom(c *gin.Context) *jwt.TokenIntrospection {
	v, ok := c.Get(introspectionKey)
	if !ok {
		return nil
	}
	ti, _ := v.(*jwt.TokenIntrospection)
	return ti
}
