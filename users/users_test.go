package users_test

import (
	"testing"

	"github.com/jrsteele09/plan-session/internal/utils"
	"github.com/jrsteele09/plan-session/users"
	"github.com/stretchr/testify/require"
)

func TestParseUserType(t *testing.T) {
	ut, err := users.ParseUserType("")
	require.NoError(t, err)
	require.Equal(t, users.UserTypeClient, ut)

	ut, err = users.ParseUserType(" Provider ")
	require.NoError(t, err)
	require.Equal(t, users.UserTypeProvider, ut)

	_, err = users.ParseUserType("admin")
	require.Error(t, err)
}

func TestIsProvider(t *testing.T) {
	var nilUser *users.User
	require.False(t, nilUser.IsProvider())
	require.False(t, (&users.User{UserType: users.UserTypeClient}).IsProvider())
	require.True(t, (&users.User{UserType: users.UserTypeProvider}).IsProvider())
}

func TestCloneDoesNotShareAvatar(t *testing.T) {
	u := &users.User{ID: "u-1", Avatar: utils.Ptr("a.png")}
	c := u.Clone()
	*c.Avatar = "b.png"
	require.Equal(t, "a.png", *u.Avatar)
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Passw0rdOK"))
	require.ErrorContains(t, users.ValidatePasswordStrength("short"), "at least 8")
	require.ErrorContains(t, users.ValidatePasswordStrength("alllower1"), "uppercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("ALLUPPER1"), "lowercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("NoNumbers"), "number")
}

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := users.HashPassword("Secret123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Secret123", hash))
	require.False(t, users.CheckPasswordHash("secret123", hash))
}
