package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/noah-isme/marksvault/internal/app"
	"github.com/noah-isme/marksvault/pkg/config"
	"github.com/noah-isme/marksvault/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logr, err := logger.NewCLI(os.Getenv("MARKSCTL_LOG_LEVEL"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cli := &commandLine{
		cfg:     cfg,
		logger:  logr,
		out:     os.Stdout,
		stdinFd: int(os.Stdin.Fd()),
		newApp:  app.New,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, errHelp):
			os.Exit(2)
		case errors.Is(err, errDrift):
			os.Exit(3)
		default:
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}
}
