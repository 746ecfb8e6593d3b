package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kirillkom/koi-classifier/internal/config"
	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/trainer"
	"github.com/kirillkom/koi-classifier/internal/core/ports"
	"github.com/kirillkom/koi-classifier/internal/core/usecase"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/mail/smtp"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/otp/memory"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/predictionlog/csvfile"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/queue/nats"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/resilience"
	"github.com/kirillkom/koi-classifier/internal/infrastructure/storage/localfs"
)

// Options carries the process-specific collaborators. Nil recorders disable the
// corresponding metrics.
type Options struct {
	Logger      *slog.Logger
	Training    usecase.TrainingRecorder
	Predictions usecase.PredictionRecorder
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Registry *usecase.ModelRegistry
	Events   ports.ModelEvents

	TrainingUC   *usecase.TrainingUseCase
	PredictionUC *usecase.PredictionUseCase
	PreviewUC    *usecase.DatasetPreviewUseCase
	ChatUC       *usecase.ChatUseCase
	OTPUC        *usecase.OTPUseCase

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	executor := resilience.NewExecutor(resilience.Config{
		Retry:   resilience.RetryPolicy{MaxAttempts: cfg.ResilienceRetryMaxAttempts},
		Breaker: resilience.BreakerPolicy{Disabled: !cfg.ResilienceBreakerEnabled},
	}, logger)

	dataset, err := localfs.NewDatasetFile(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("init dataset store: %w", err)
	}
	bundles, err := localfs.NewBundleStore(cfg.ArtifactDir)
	if err != nil {
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	predictionLog, err := app.openPredictionLog(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	if cfg.NATSURL != "" {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Events = queue
		app.closeFns = append(app.closeFns, queue.Close)
	}

	registry := usecase.NewModelRegistry(bundles, logger)
	if err := registry.Reload(ctx); err != nil && !errors.Is(err, domain.ErrModelNotReady) {
		app.Close()
		return nil, fmt.Errorf("load model bundle: %w", err)
	} else if err != nil {
		logger.Warn("no trained model yet, predictions disabled until first upload", "artifact_dir", cfg.ArtifactDir)
	}
	app.Registry = registry

	app.TrainingUC = usecase.NewTrainingUseCase(dataset, bundles, registry, trainer.New(logger, cfg.TrainSeed), usecase.TrainingOptions{
		Timeout:  cfg.TrainTimeout,
		Events:   app.Events,
		Recorder: opts.Training,
		Logger:   logger,
	})
	app.PredictionUC = usecase.NewPredictionUseCase(registry, predictionLog, opts.Predictions)
	app.PreviewUC = usecase.NewDatasetPreviewUseCase(dataset)

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaChatModel, ollama.Options{
		MaxTokens:          cfg.ChatMaxTokens,
		Timeout:            cfg.ChatTimeout,
		ResilienceExecutor: executor,
	})
	app.ChatUC = usecase.NewChatUseCase(ollama.NewGenerator(ollamaClient))

	mailer := smtp.New(smtp.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	}, executor)
	app.OTPUC, err = usecase.NewOTPUseCase(memory.New(), mailer, cfg.OTPEmailPattern, cfg.OTPTTL)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init otp: %w", err)
	}

	return app, nil
}

func (a *App) openPredictionLog(ctx context.Context, cfg config.Config) (ports.PredictionLog, error) {
	switch cfg.PredictionStore {
	case config.PredictionStorePostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closeFns = append(a.closeFns, func() { closeDB(db) })
		repo := postgres.NewPredictionRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, nil
	case config.PredictionStoreCSV, "":
		log, err := csvfile.New(cfg.PredictionLogPath)
		if err != nil {
			return nil, fmt.Errorf("init prediction log: %w", err)
		}
		return log, nil
	default:
		return nil, fmt.Errorf("unknown prediction store %q", cfg.PredictionStore)
	}
}

func closeDB(db *sql.DB) {
	_ = db.Close()
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
