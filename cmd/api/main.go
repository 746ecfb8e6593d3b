package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/kirillkom/koi-classifier/internal/adapters/http"
	"github.com/kirillkom/koi-classifier/internal/bootstrap"
	"github.com/kirillkom/koi-classifier/internal/config"
	"github.com/kirillkom/koi-classifier/internal/observability/logging"
	"github.com/kirillkom/koi-classifier/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("koi-api", cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := httpadapter.LoadOpenAPI(ctx); err != nil {
		logger.Error("openapi document invalid", "error", err)
		os.Exit(1)
	}

	m := metrics.NewHTTPServerMetrics("koi-api")
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Logger:      logger,
		Training:    m,
		Predictions: m,
	})
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if info, err := app.Registry.ActiveModel(); err == nil {
		m.SetActiveModel(info.ModelName, info.F1)
	}
	if app.Events != nil {
		go func() {
			if err := app.Registry.Follow(ctx, app.Events); err != nil {
				logger.Error("model event subscription stopped", "error", err)
			}
		}()
	}

	router := httpadapter.NewRouter(cfg, httpadapter.Services{
		Uploader:    app.TrainingUC,
		Predictor:   app.PredictionUC,
		Predictions: app.PredictionUC,
		Dataset:     app.PreviewUC,
		Models:      app.Registry,
		Chat:        app.ChatUC,
		OTP:         app.OTPUC,
	}, m, logger).Handler()

	// Uploads retrain synchronously, so the write deadline covers a full run.
	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.TrainTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("api listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown error", "error", err)
	}
}
