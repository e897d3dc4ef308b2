package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"newsagg/internal/app"
	"newsagg/internal/logger"
	"newsagg/internal/tracing"
)

func main() {
	cmd := newCommand(configPath(), serve)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "newsagg: %v\n", err)
		os.Exit(1)
	}
}

// serve runs the API until ctx is cancelled.
func serve(ctx context.Context, cfg *app.Config, trace bool) error {
	logger.InitLogger(cfg.Env)
	defer logger.Sync()

	if trace {
		shutdown, err := tracing.Setup(os.Stdout)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Log.Warn("Tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	srv, err := app.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}
	return srv.Run(ctx, cfg.Addr)
}
