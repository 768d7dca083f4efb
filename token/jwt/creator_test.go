package jwt_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/plan-session/token"
	"github.com/jrsteele09/plan-session/token/jwt"
	"github.com/jrsteele09/plan-session/users"
	"github.com/stretchr/testify/require"
)

func testUser() *users.User {
	return &users.User{ID: "user-1", Email: "a@b.com", UserType: users.UserTypeProvider}
}

func TestCreateAndIntrospect(t *testing.T) {
	creator := jwt.NewCreator("secret", 15*time.Minute, "plan-api")
	inspector := jwt.NewInspector(creator, nil)

	raw, exp, err := creator.CreateAccessToken(testUser())
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), exp, 2*time.Second)

	ti, err := inspector.Introspect(raw)
	require.NoError(t, err)
	require.True(t, ti.Active)
	require.Equal(t, "user-1", ti.Sub)
	require.Equal(t, "provider", ti.UserType)
	require.True(t, exp.Equal(ti.Exp))
}

func TestIntrospectRejectsWrongSecret(t *testing.T) {
	raw, _, err := jwt.NewCreator("secret", time.Minute, "plan-api").CreateAccessToken(testUser())
	require.NoError(t, err)

	ti, err := jwt.NewInspector(jwt.NewCreator("other", time.Minute, "plan-api"), nil).Introspect(raw)
	require.Error(t, err)
	require.False(t, ti.Active)
}

func TestIntrospectExpired(t *testing.T) {
	creator := jwt.NewCreator("secret", -time.Minute, "plan-api")
	raw, _, err := creator.CreateAccessToken(testUser())
	require.NoError(t, err)

	ti, err := jwt.NewInspector(creator, nil).Introspect(raw)
	require.Error(t, err)
	require.False(t, ti.Active)
}

func TestIntrospectRevoked(t *testing.T) {
	creator := jwt.NewCreator("secret", time.Minute, "plan-api")
	revoked := token.NewRevocationList()
	inspector := jwt.NewInspector(creator, revoked)

	raw, exp, err := creator.CreateAccessToken(testUser())
	require.NoError(t, err)
	ti, err := inspector.Introspect(raw)
	require.NoError(t, err)

	revoked.Revoke(ti.JTI, exp)
	ti, err = inspector.Introspect(raw)
	require.NoError(t, err)
	require.False(t, ti.Active)
}

func TestExpiryUnverified(t *testing.T) {
	raw, exp, err := jwt.NewCreator("secret", time.Hour, "plan-api").CreateAccessToken(testUser())
	require.NoError(t, err)

	got, ok := jwt.ExpiryUnverified(raw)
	require.True(t, ok)
	require.True(t, exp.Equal(got))

	_, ok = jwt.ExpiryUnverified("opaque-token")
	require.False(t, ok)
}
