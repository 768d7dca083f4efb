package main

import (
	"context"
	"embed"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/jrsteele09/plan-session/access"
	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/sessions"
)

const contentTypeHTML = "text/html; charset=utf-8"

//go:embed templates/*.html
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName   string
	ReturnURL string
	Email     string // Preserve email on error
	Error     string
	Expired   bool
}

// PageData contains data for rendering a guarded page
type PageData struct {
	AppName  string
	Title    string
	Snapshot sessions.Snapshot
	Landing  string
}

type dashboard struct {
	app *app
}

func serveCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:8080", "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	displayAppname(a.config.GetAppName())
	d := &dashboard{app: a}
	server := &http.Server{Addr: *addr, Handler: d.routes(), ReadHeaderTimeout: 10 * time.Second}

	unsubscribe := a.service.Subscribe(func(snap sessions.Snapshot) {
		a.logger.Debug().Str("status", string(snap.Status)).Bool("expired", snap.Expired).Msg("Session changed")
	})
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", server.Addr).Msg("Dashboard preview listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server.ListenAndServe %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func (d *dashboard) routes() http.Handler {
	gate := d.app.gate
	loginPath := d.app.config.GetLoginPath()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", d.home)
	mux.HandleFunc("GET "+loginPath, d.loginPage)
	mux.HandleFunc("POST "+loginPath, d.loginSubmit)
	mux.HandleFunc("POST /logout", d.logout)
	mux.HandleFunc("GET "+d.app.config.GetDefaultLandingPath(),
		access.ChainMiddleware(d.page("Dashboard"), gate.RequireAuthenticated()))
	mux.HandleFunc("GET /plans",
		access.ChainMiddleware(d.page("Plans"), gate.RequireAuthenticated()))
	mux.HandleFunc("GET /provider/",
		access.ChainMiddleware(d.page("Provider"), gate.RequireProvider()))
	return mux
}

func (d *dashboard) home(w http.ResponseWriter, r *http.Request) {
	if !d.app.gate.IsAuthenticated() {
		http.Redirect(w, r, d.app.config.GetLoginPath(), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, d.app.gate.LandingPath(), http.StatusSeeOther)
}

// loginPage displays the login page (GET /login)
func (d *dashboard) loginPage(w http.ResponseWriter, r *http.Request) {
	returnURL := r.URL.Query().Get(access.ReturnURLParam)
	if d.app.gate.IsAuthenticated() {
		http.Redirect(w, r, d.app.gate.PostLoginPath(returnURL), http.StatusSeeOther)
		return
	}
	d.renderLogin(w, http.StatusOK, LoginPageData{
		ReturnURL: returnURL,
		Expired:   d.app.service.Current().Expired,
	})
}

// loginSubmit processes the login form submission
func (d *dashboard) loginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	data := LoginPageData{
		ReturnURL: r.PostForm.Get(access.ReturnURLParam),
		Email:     r.PostForm.Get("email"),
	}

	_, err := d.app.service.Login(r.Context(), authapi.Credentials{
		Email:    data.Email,
		Password: r.PostForm.Get("password"),
	})
	if err != nil {
		d.app.logger.Info().Err(err).Str("email", data.Email).Msg("Dashboard login failed")
		data.Error = describeAuthError(err).Error()
		d.renderLogin(w, http.StatusUnauthorized, data)
		return
	}
	http.Redirect(w, r, d.app.gate.PostLoginPath(data.ReturnURL), http.StatusSeeOther)
}

func (d *dashboard) logout(w http.ResponseWriter, r *http.Request) {
	if err := d.app.service.Logout(r.Context()); err != nil {
		d.app.logger.Warn().Err(err).Msg("Dashboard logout")
	}
	http.Redirect(w, r, d.app.config.GetLoginPath(), http.StatusSeeOther)
}

func (d *dashboard) page(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, _ := access.SnapshotFromContext(r.Context())
		data := PageData{
			AppName:  d.app.config.GetAppName(),
			Title:    title,
			Snapshot: snap,
			Landing:  d.app.gate.LandingPath(),
		}
		w.Header().Set("Content-Type", contentTypeHTML)
		if err := templates.ExecuteTemplate(w, "page.html", data); err != nil {
			d.app.logger.Err(err).Msg("Failed to render page template")
		}
	}
}

func (d *dashboard) renderLogin(w http.ResponseWriter, status int, data LoginPageData) {
	data.AppName = d.app.config.GetAppName()
	w.Header().Set("Content-Type", contentTypeHTML)
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, "login.html", data); err != nil {
		d.app.logger.Err(err).Msg("Failed to render login template")
	}
}
