package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/koi-classifier/internal/adapters/mcp"
	"github.com/kirillkom/koi-classifier/internal/bootstrap"
	"github.com/kirillkom/koi-classifier/internal/config"
	"github.com/kirillkom/koi-classifier/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	// stdout carries the protocol.
	logger := logging.NewJSONLoggerTo(os.Stderr, "koi-mcp", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Logger: logger})
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if app.Events != nil {
		go func() {
			if err := app.Registry.Follow(ctx, app.Events); err != nil {
				logger.Error("model event subscription stopped", "error", err)
			}
		}()
	}

	srv := mcpadapter.NewServer(mcpadapter.Services{
		Predictions: app.PredictionUC,
		Models:      app.Registry,
		Dataset:     app.PreviewUC,
	}, version, logger)
	if err := srv.ServeStdio(); err != nil {
		logger.Error("mcp server stopped", "error", err)
	}
}
