package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/plan-session/authapi/mockserver"
	"github.com/jrsteele09/plan-session/internal/config"
	"github.com/jrsteele09/plan-session/internal/logging"
	"github.com/rs/zerolog/log"
)

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	for {
		if err := run(*envFile, *configFile); err != nil {
			log.Error().Err(err).Msg("Error running mock API")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Mock API stopped")
}

func run(envFile, configFile string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load(envFile, configFile)
	if err != nil {
		return err
	}
	logger := logging.New(c.GetLogLevel(), c.GetEnv(), os.Stderr)
	displayAppname(c.GetAppName() + " API")

	api, err := mockserver.New(c, mockserver.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := seedDemoUsers(api); err != nil {
		return err
	}

	server := &http.Server{Addr: c.GetPort(), Handler: api.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(server) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Mock API listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
