package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/biztrack/console/internal/config"
	"github.com/biztrack/console/internal/console"
	"github.com/biztrack/console/internal/guard"
	"github.com/biztrack/console/internal/session"
	"github.com/biztrack/console/pkg/clients/biztrack"
	"github.com/biztrack/console/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	baseLogger := logger.Must(logger.NewConsole(os.Getenv("BIZTRACK_VERBOSE") != ""))
	defer func() { _ = baseLogger.Sync() }()

	tokens := session.NewFileStore(cfg.Console.TokenPath)
	api := biztrack.NewClient(cfg.API, tokens)
	app := console.New(cfg, tokens, api, baseLogger, os.Stdin, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		switch {
		case errors.Is(err, guard.ErrNotAuthenticated), errors.Is(err, guard.ErrSessionExpired):
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "Run: console login -email <email> -password <password>")
		default:
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
