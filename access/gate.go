// Package access decides whether the current session may open a view and where to send
// it otherwise. It only reads the session; it never refreshes or mutates it.
package access

import (
	"errors"
	"net/url"
	"strings"

	"github.com/jrsteele09/plan-session/internal/config"
	"github.com/jrsteele09/plan-session/sessions"
)

// ReturnURLParam is the query parameter carrying the originally requested path
const ReturnURLParam = "returnUrl"

// SnapshotSource is anything that can report the current session
type SnapshotSource interface {
	Current() sessions.Snapshot
}

// Decision is the outcome of a guard check. When Allowed is false RedirectTo holds where
// to send the user and ReturnURL the path they asked for, if it should be resumed.
type Decision struct {
	Allowed    bool
	RedirectTo string
	ReturnURL  string
}

type Gate struct {
	source SnapshotSource
	routes config.RoutesConfig
}

func NewGate(source SnapshotSource, routes config.RoutesConfig) (*Gate, error) {
	if source == nil {
		return nil, errors.New("[NewGate] session source is required")
	}
	if routes == nil {
		return nil, errors.New("[NewGate] routes config is required")
	}
	return &Gate{source: source, routes: routes}, nil
}

func (g *Gate) IsAuthenticated() bool {
	return g.source.Current().IsAuthenticated
}

// IsProvider is true only for an authenticated provider account
func (g *Gate) IsProvider() bool {
	snap := g.source.Current()
	return snap.IsAuthenticated && snap.User.IsProvider()
}

// Guard allows any authenticated session and sends everyone else to the login page
func (g *Gate) Guard(targetPath string) Decision {
	return g.guard(g.source.Current(), targetPath)
}

// GuardProvider allows provider accounts only. Authenticated clients are sent to the
// default landing page rather than the login page.
func (g *Gate) GuardProvider(targetPath string) Decision {
	return g.guardProvider(g.source.Current(), targetPath)
}

func (g *Gate) guard(snap sessions.Snapshot, targetPath string) Decision {
	if snap.IsAuthenticated {
		return Decision{Allowed: true}
	}
	return g.loginRedirect(targetPath)
}

func (g *Gate) guardProvider(snap sessions.Snapshot, targetPath string) Decision {
	switch {
	case !snap.IsAuthenticated:
		return g.loginRedirect(targetPath)
	case !snap.User.IsProvider():
		return Decision{RedirectTo: g.routes.GetDefaultLandingPath()}
	default:
		return Decision{Allowed: true}
	}
}

// PostLoginPath is where to go after a successful login
func (g *Gate) PostLoginPath(returnURL string) string {
	return PostLoginPath(returnURL, g.routes.GetDefaultLandingPath())
}

// LandingPath is the home view for the current account
func (g *Gate) LandingPath() string {
	if g.IsProvider() {
		return g.routes.GetProviderLandingPath()
	}
	return g.routes.GetDefaultLandingPath()
}

func (g *Gate) loginRedirect(targetPath string) Decision {
	loginPath := g.routes.GetLoginPath()
	if targetPath == "" || !IsSafeReturnURL(targetPath) || samePath(targetPath, loginPath) {
		return Decision{RedirectTo: loginPath}
	}
	return Decision{
		RedirectTo: LoginRedirectURL(loginPath, targetPath),
		ReturnURL:  targetPath,
	}
}

// LoginRedirectURL builds "<loginPath>?returnUrl=<targetPath>". Slashes are left
// unescaped so the common case reads /login?returnUrl=/dashboard.
func LoginRedirectURL(loginPath, targetPath string) string {
	escaped := strings.ReplaceAll(url.QueryEscape(targetPath), "%2F", "/")
	return loginPath + "?" + ReturnURLParam + "=" + escaped
}

// PostLoginPath returns returnURL when it is a safe same-site path, else defaultLanding
func PostLoginPath(returnURL, defaultLanding string) string {
	if returnURL == "" || !IsSafeReturnURL(returnURL) {
		return defaultLanding
	}
	return returnURL
}

// IsSafeReturnURL accepts only relative paths on this site. Absolute URLs,
// scheme-relative "//host" forms and backslash tricks are rejected.
func IsSafeReturnURL(raw string) bool {
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil
}

func samePath(target, path string) bool {
	u, err := url.Parse(target)
	if err != nil {
		return false
	}
	return u.Path == path
}
