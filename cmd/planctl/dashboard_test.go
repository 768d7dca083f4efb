package main

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/jrsteele09/plan-session/access"
	"github.com/jrsteele09/plan-session/auth"
	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/authapi/apifake"
	"github.com/jrsteele09/plan-session/internal/config"
	"github.com/jrsteele09/plan-session/tokenstore"
	"github.com/jrsteele09/plan-session/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDashboard(t *testing.T, userType users.UserType) (*httptest.Server, *apifake.FakeClient) {
	t.Helper()
	c := config.New()
	client := apifake.NewFakeClient(users.User{ID: "user-1", Email: "a@b.com", Name: "Alice", UserType: userType})

	service, err := auth.NewService(client, tokenstore.NewMemoryStore(), c, auth.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(service.Close)

	gate, err := access.NewGate(service, c)
	require.NoError(t, err)

	a := &app{config: c, logger: zerolog.Nop(), service: service, gate: gate}
	srv := httptest.NewServer((&dashboard{app: a}).routes())
	t.Cleanup(srv.Close)
	return srv, client
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func TestDashboardRedirectsToLoginWithReturnURL(t *testing.T) {
	srv, _ := newTestDashboard(t, users.UserTypeClient)

	resp, err := noRedirectClient().Get(srv.URL + "/plans?year=2024")
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login?returnUrl=/plans%3Fyear%3D2024", resp.Header.Get("Location"))
}

func TestDashboardLoginReturnsToRequestedPage(t *testing.T) {
	srv, _ := newTestDashboard(t, users.UserTypeClient)
	client := noRedirectClient()

	form := url.Values{"email": {"a@b.com"}, "password": {"Passw0rd!"}, access.ReturnURLParam: {"/plans"}}
	resp, err := client.PostForm(srv.URL+"/login", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/plans", resp.Header.Get("Location"))

	resp, err = client.Get(srv.URL + "/plans")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestDashboardLoginIgnoresExternalReturnURL(t *testing.T) {
	srv, _ := newTestDashboard(t, users.UserTypeClient)

	form := url.Values{"email": {"a@b.com"}, "password": {"Passw0rd!"}, access.ReturnURLParam: {"https://evil.example"}}
	resp, err := noRedirectClient().PostForm(srv.URL+"/login", form)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestDashboardLoginFailureRendersForm(t *testing.T) {
	srv, fake := newTestDashboard(t, users.UserTypeClient)
	fake.FailLogin(authapi.ErrInvalidCredentials)

	form := url.Values{"email": {"a@b.com"}, "password": {"wrong"}}
	resp, err := noRedirectClient().PostForm(srv.URL+"/login", form)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := new(strings.Builder)
	_, err = io.Copy(body, resp.Body)
	require.NoError(t, err)
	require.Contains(t, body.String(), "email or password is incorrect")
	require.Contains(t, body.String(), `value="a@b.com"`)
}

func TestDashboardProviderPages(t *testing.T) {
	srv, _ := newTestDashboard(t, users.UserTypeClient)
	client := noRedirectClient()

	resp, err := client.PostForm(srv.URL+"/login", url.Values{"email": {"a@b.com"}, "password": {"Passw0rd!"}})
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/provider/invoices")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard", resp.Header.Get("Location"), "clients are sent to their own landing page")
}

func TestDashboardLogout(t *testing.T) {
	srv, fake := newTestDashboard(t, users.UserTypeProvider)
	client := noRedirectClient()

	resp, err := client.PostForm(srv.URL+"/login", url.Values{"email": {"a@b.com"}, "password": {"Passw0rd!"}})
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "/provider/dashboard", resp.Header.Get("Location"))

	resp, err = client.Post(srv.URL+"/logout", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "/login", resp.Header.Get("Location"))
	require.Equal(t, 1, fake.LogoutCalls())

	resp, err = client.Get(srv.URL + "/provider/invoices")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, "/login?returnUrl=/provider/invoices", resp.Header.Get("Location"))
}
