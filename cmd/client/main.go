package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/iudanet/gophauth/internal/client/api"
	"github.com/iudanet/gophauth/internal/client/auth"
	"github.com/iudanet/gophauth/internal/client/cli"
	"github.com/iudanet/gophauth/internal/client/iocli"
	"github.com/iudanet/gophauth/internal/client/storage/boltdb"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := cli.BuildInfo{Version: Version, BuildDate: BuildDate, GitCommit: GitCommit}

	if err := cli.Run(ctx, iocli.NewStdio(), newService, build, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newService wires the session service to the bbolt file and the server
func newService(ctx context.Context, opts cli.Options) (auth.Service, func() error, error) {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	store, err := boltdb.New(ctx, opts.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	svc := auth.NewService(api.NewClient(opts.ServerURL), store, logger)

	return svc, store.Close, nil
}
