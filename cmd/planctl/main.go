// Command planctl holds a dashboard session on the command line: it logs in against the
// auth API, keeps the tokens fresh and serves a local preview of the guarded dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"login", "log in with email and password", loginCmd},
	{"register", "create an account and log in", registerCmd},
	{"logout", "end the session and revoke its tokens", logoutCmd},
	{"status", "show the session state", statusCmd},
	{"whoami", "fetch the current user from the API", whoamiCmd},
	{"guard", "show the access decision for a dashboard path", guardCmd},
	{"call", "GET an API path with the session's token", callCmd},
	{"serve", "serve the local dashboard preview", serveCmd},
}

func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	configFile := flag.String("config", "", "optional YAML config file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := dispatch(ctx, *envFile, *configFile, flag.Arg(0), flag.Args()[1:]); err != nil {
		log.Error().Err(err).Msg("planctl failed")
		stop()
		os.Exit(1)
	}
}

func dispatch(ctx context.Context, envFile, configFile, name string, args []string) error {
	for _, cmd := range commands {
		if cmd.name != name {
			continue
		}
		a, err := newApp(ctx, envFile, configFile)
		if err != nil {
			return err
		}
		defer a.close()
		return cmd.run(ctx, a, args)
	}
	usage()
	return fmt.Errorf("unknown command %q", name)
}

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "usage: planctl [-env file] [-config file] <command> [flags]\n\ncommands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(out, "  %-9s %s\n", cmd.name, cmd.summary)
	}
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
