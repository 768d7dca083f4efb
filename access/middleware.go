package access

import (
	"context"
	"net/http"

	"github.com/jrsteele09/plan-session/sessions"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeySnapshot stores the session snapshot the request was admitted with
const ContextKeySnapshot ContextKey = "session_snapshot"

// Middleware wraps a handler
type Middleware func(http.HandlerFunc) http.HandlerFunc

// ChainMiddleware applies mw so that the first one listed runs first
func ChainMiddleware(routeFunction http.HandlerFunc, mw ...Middleware) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// RequireAuthenticated redirects requests without a session to the login page, keeping
// the requested path in returnUrl
func (g *Gate) RequireAuthenticated() Middleware {
	return g.require(g.guard)
}

// RequireProvider admits provider accounts only
func (g *Gate) RequireProvider() Middleware {
	return g.require(g.guardProvider)
}

func (g *Gate) require(guard func(sessions.Snapshot, string) Decision) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			snap := g.source.Current()
			decision := guard(snap, r.URL.RequestURI())
			if !decision.Allowed {
				http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeySnapshot, snap)
			next(w, r.WithContext(ctx))
		}
	}
}

// SnapshotFromContext returns the snapshot stored by the Require middleware
func SnapshotFromContext(ctx context.Context) (sessions.Snapshot, bool) {
	snap, ok := ctx.Value(ContextKeySnapshot).(sessions.Snapshot)
	return snap, ok
}
