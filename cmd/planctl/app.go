package main

import (
	"context"
	"os"

	"github.com/jrsteele09/plan-session/access"
	"github.com/jrsteele09/plan-session/auth"
	"github.com/jrsteele09/plan-session/authapi"
	"github.com/jrsteele09/plan-session/internal/config"
	"github.com/jrsteele09/plan-session/internal/logging"
	"github.com/jrsteele09/plan-session/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// app is the wiring shared by every command: one restored session per process
type app struct {
	config  config.Config
	logger  zerolog.Logger
	api     *authapi.HTTPClient
	service *auth.Service
	gate    *access.Gate

	closeStore func() error
}

func newApp(ctx context.Context, envFile, configFile string) (*app, error) {
	c, err := config.Load(envFile, configFile)
	if err != nil {
		return nil, err
	}
	logger := logging.New(c.GetLogLevel(), c.GetEnv(), os.Stderr)

	store, closeStore, err := tokenstore.Open(c)
	if err != nil {
		return nil, errors.Wrap(err, "[newApp] opening token store")
	}

	api, err := authapi.NewHTTPClient(c.GetAPIBaseURL(), authapi.WithLogger(logger))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	service, err := auth.NewService(api, store, c, auth.WithLogger(logger))
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	gate, err := access.NewGate(service, c)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	// A store failure leaves the session in the error state, which every command reports
	if err := service.Restore(ctx); err != nil {
		logger.Warn().Err(err).Msg("Could not restore the saved session")
	}

	return &app{
		config:     c,
		logger:     logger,
		api:        api,
		service:    service,
		gate:       gate,
		closeStore: closeStore,
	}, nil
}

func (a *app) close() {
	a.service.Close()
	if err := a.closeStore(); err != nil {
		a.logger.Warn().Err(err).Msg("Closing token store")
	}
}
