package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/internal/config"
	"github.com/jrsteele09/plan-session/users"
	"github.com/pkg/errors"
)

const passwordEnvVar = "PLANCTL_PASSWORD"

func loginCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (default $"+passwordEnvVar+")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	user, err := a.service.Login(ctx, authapi.Credentials{
		Email:    *email,
		Password: passwordOrEnv(*password),
	})
	if err != nil {
		return describeAuthError(err)
	}
	fmt.Printf("Logged in as %s (%s)\n", user.Email, user.UserType)
	fmt.Printf("Continue at %s\n", a.gate.LandingPath())
	return nil
}

func registerCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (default $"+passwordEnvVar+")")
	name := fs.String("name", "", "display name")
	role := fs.String("type", string(users.UserTypeClient), "account type: client or provider")
	if err := fs.Parse(args); err != nil {
		return err
	}

	userType, err := users.ParseUserType(*role)
	if err != nil {
		return err
	}
	user, err := a.service.Register(ctx, authapi.Registration{
		Email:    *email,
		Password: passwordOrEnv(*password),
		Name:     *name,
		UserType: userType,
	})
	if err != nil {
		return describeAuthError(err)
	}
	fmt.Printf("Registered %s as %s\n", user.Email, user.UserType)
	return nil
}

func logoutCmd(ctx context.Context, a *app, _ []string) error {
	if err := a.service.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func statusCmd(_ context.Context, a *app, _ []string) error {
	snap := a.service.Current()
	fmt.Printf("Status:     %s\n", snap.Status)
	if snap.Err != nil {
		fmt.Printf("Error:      %v\n", snap.Err)
	}
	if !snap.IsAuthenticated {
		return nil
	}
	fmt.Printf("User:       %s <%s> (%s)\n", snap.User.Name, snap.User.Email, snap.User.UserType)
	fmt.Printf("Expires at: %s\n", snap.Tokens.ExpiresAt.Local().Format(time.RFC3339))
	if next := a.service.NextScheduledRefresh(); !next.IsZero() {
		fmt.Printf("Refresh at: %s\n", next.Local().Format(time.RFC3339))
	}
	return nil
}

func whoamiCmd(ctx context.Context, a *app, _ []string) error {
	return a.get(ctx, authapi.PathMe, os.Stdout)
}

func guardCmd(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("guard", flag.ContinueOnError)
	provider := fs.Bool("provider", false, "check the provider-only guard")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("guard needs exactly one path")
	}

	decision := a.gate.Guard(fs.Arg(0))
	if *provider {
		decision = a.gate.GuardProvider(fs.Arg(0))
	}
	if decision.Allowed {
		fmt.Printf("allow %s\n", fs.Arg(0))
		return nil
	}
	fmt.Printf("redirect %s\n", decision.RedirectTo)
	return nil
}

func callCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errors.New("call needs exactly one API path")
	}
	path := args[0]
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return a.get(ctx, path, os.Stdout)
}

// get performs an authenticated GET against the auth API and copies the body to out
func (a *app) get(ctx context.Context, path string, out io.Writer) error {
	if !a.service.Current().IsAuthenticated {
		return errors.New("not logged in, run planctl login first")
	}

	client := a.service.HTTPClient(ctx, nil)
	client.Timeout = a.config.GetRequestTimeout()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.api.BaseURL()+path, nil)
	if err != nil {
		return errors.Wrap(err, "[app.get] building request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "[app.get] GET %s", path)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("GET %s: %s", path, resp.Status)
	}
	_, err = io.Copy(out, resp.Body)
	fmt.Fprintln(out)
	return err
}

func passwordOrEnv(password string) string {
	if password != "" {
		return password
	}
	return config.GetEnv(passwordEnvVar, "")
}

func describeAuthError(err error) error {
	var verr *authapi.ValidationError
	switch {
	case errors.As(err, &verr):
		for field, msg := range verr.Fields {
			fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
		}
		return errors.New("please correct the fields above")
	case errors.Is(err, authapi.ErrInvalidCredentials):
		return errors.New("email or password is incorrect")
	case errors.Is(err, authapi.ErrConflict):
		return errors.New("an account with this email already exists")
	case errors.Is(err, authapi.ErrNetwork):
		return errors.Wrap(err, "the auth API could not be reached")
	}
	return err
}
