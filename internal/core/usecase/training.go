package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/bundle"
	"github.com/kirillkom/koi-classifier/internal/core/ml/schema"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
	"github.com/kirillkom/koi-classifier/internal/core/ml/trainer"
	"github.com/kirillkom/koi-classifier/internal/core/ml/transform"
	"github.com/kirillkom/koi-classifier/internal/core/ports"
)

// TrainingRecorder receives training outcomes; the Prometheus metrics satisfy it.
type TrainingRecorder interface {
	StartTraining()
	FinishTraining(duration time.Duration, err error)
	SetActiveModel(model string, f1 float64)
}

type TrainingOptions struct {
	Timeout  time.Duration
	Events   ports.ModelEvents
	Recorder TrainingRecorder
	Logger   *slog.Logger
}

type TrainingUseCase struct {
	dataset  ports.DatasetStore
	store    ports.ArtifactStore
	registry *ModelRegistry
	trainer  *trainer.Trainer
	events   ports.ModelEvents
	recorder TrainingRecorder
	logger   *slog.Logger
	timeout  time.Duration

	now      func() time.Time
	newRunID func() string

	// mu serialises training runs: one dataset merge and one bundle write at a time.
	mu sync.Mutex
}

func NewTrainingUseCase(
	dataset ports.DatasetStore,
	store ports.ArtifactStore,
	registry *ModelRegistry,
	tr *trainer.Trainer,
	opts TrainingOptions,
) *TrainingUseCase {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = noopRecorder{}
	}
	return &TrainingUseCase{
		dataset:  dataset,
		store:    store,
		registry: registry,
		trainer:  tr,
		events:   opts.Events,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		timeout:  opts.Timeout,
		now:      time.Now,
		newRunID: func() string { return time.Now().UTC().Format("20060102T150405") + "-" + uuid.NewString()[:8] },
	}
}

// UploadAndRetrain appends a labeled upload to the master dataset and retrains on
// the merged data.
func (uc *TrainingUseCase) UploadAndRetrain(ctx context.Context, filename string, body io.Reader) (*domain.UploadResult, error) {
	upload, err := readUpload(filename, body)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(upload, true); err != nil {
		return nil, err
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	merged := upload
	master, err := uc.dataset.Load(ctx)
	switch {
	case err == nil:
		merged = table.Concat(master, upload)
	case domain.IsKind(err, domain.ErrDatasetNotFound):
		uc.logger.Info("no master dataset yet, starting from upload", "rows", upload.Rows())
	default:
		return nil, fmt.Errorf("load master dataset: %w", err)
	}
	if err := uc.dataset.Replace(ctx, merged); err != nil {
		return nil, fmt.Errorf("save merged dataset: %w", err)
	}

	report, err := uc.train(ctx, merged)
	if err != nil {
		return nil, err
	}
	return &domain.UploadResult{
		RowsUploaded:        upload.Rows(),
		RowsTotalAfterMerge: merged.Rows(),
		Training:            *report,
	}, nil
}

// TrainTable retrains on t alone. The master dataset is left untouched.
func (uc *TrainingUseCase) TrainTable(ctx context.Context, t *table.Table) (*domain.TrainingReport, error) {
	if err := schema.Validate(t, true); err != nil {
		return nil, err
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.train(ctx, t)
}

// Retrain retrains on the current master dataset.
func (uc *TrainingUseCase) Retrain(ctx context.Context) (*domain.TrainingReport, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	t, err := uc.dataset.Load(ctx)
	if err != nil {
		return nil, err
	}
	return uc.train(ctx, t)
}

func (uc *TrainingUseCase) train(ctx context.Context, t *table.Table) (report *domain.TrainingReport, err error) {
	if uc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, uc.timeout)
		defer cancel()
	}

	started := uc.now()
	uc.recorder.StartTraining()
	defer func() {
		uc.recorder.FinishTraining(uc.now().Sub(started), err)
	}()

	fit, err := transform.Fit(t)
	if err != nil {
		return nil, err
	}
	if fit.Labels == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "train", errors.New("training data has no label column"))
	}

	result, err := uc.trainer.Train(ctx, fit.Matrix, fit.Labels)
	if err != nil {
		return nil, err
	}

	runID := uc.newRunID()
	b, err := bundle.New(runID, result.Model, fit.Operators, result.F1, result.Rows, uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.store.Save(ctx, b); err != nil {
		return nil, fmt.Errorf("save bundle: %w", err)
	}
	uc.registry.Swap(b)
	uc.recorder.SetActiveModel(b.Manifest.ModelName, b.Manifest.F1)

	if uc.events != nil {
		if err := uc.events.PublishModelRetrained(ctx, runID); err != nil {
			uc.logger.Warn("publish model retrained failed", "run_id", runID, "error", err)
		}
	}

	report = &domain.TrainingReport{
		RunID:      runID,
		ModelName:  b.Manifest.ModelName,
		F1:         b.Manifest.F1,
		Rows:       result.Rows,
		Features:   b.Manifest.K,
		Duration:   uc.now().Sub(started),
		Candidates: result.Scores,
	}
	uc.logger.Info("training completed",
		"run_id", runID,
		"model", report.ModelName,
		"f1", report.F1,
		"rows", report.Rows,
		"features", report.Features,
		"duration", report.Duration,
	)
	return report, nil
}

type noopRecorder struct{}

func (noopRecorder) StartTraining()                      {}
func (noopRecorder) FinishTraining(time.Duration, error) {}
func (noopRecorder) SetActiveModel(string, float64)      {}
