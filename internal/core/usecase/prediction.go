package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/inference"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
	"github.com/kirillkom/koi-classifier/internal/core/ports"
)

// PredictionRecorder counts served predictions by disposition.
type PredictionRecorder interface {
	RecordPredictions(labels []string)
}

type PredictionUseCase struct {
	registry *ModelRegistry
	log      ports.PredictionLog
	recorder PredictionRecorder
}

func NewPredictionUseCase(registry *ModelRegistry, log ports.PredictionLog, recorder PredictionRecorder) *PredictionUseCase {
	return &PredictionUseCase{registry: registry, log: log, recorder: recorder}
}

func (uc *PredictionUseCase) PredictUpload(ctx context.Context, filename string, body io.Reader) (*domain.PredictionBatch, error) {
	t, err := readUpload(filename, body)
	if err != nil {
		return nil, err
	}
	return uc.PredictTable(ctx, t)
}

// PredictTable classifies every row of t with the active bundle and appends the
// results to the prediction log. Nothing is logged when any step fails.
func (uc *PredictionUseCase) PredictTable(ctx context.Context, t *table.Table) (*domain.PredictionBatch, error) {
	labels, err := inference.Predict(ctx, uc.registry.Active(), t)
	if err != nil {
		return nil, err
	}

	ids, ok := t.Column(domain.ColumnKepID)
	if !ok {
		return nil, domain.WrapError(domain.ErrSchemaMismatch, "predict", fmt.Errorf("missing %q column", domain.ColumnKepID))
	}
	predictions := make([]domain.Prediction, len(labels))
	names := make([]string, len(labels))
	for i, label := range labels {
		predictions[i] = domain.Prediction{KepID: int64(ids.Values[i]), Prediction: label}
		names[i] = string(label)
	}

	if err := uc.log.Append(ctx, predictions); err != nil {
		return nil, fmt.Errorf("append prediction log: %w", err)
	}
	if uc.recorder != nil {
		uc.recorder.RecordPredictions(names)
	}
	return &domain.PredictionBatch{
		RowsUploaded: t.Rows(),
		Predictions:  predictions,
	}, nil
}

// Lookup returns the most recently logged prediction for kepID.
func (uc *PredictionUseCase) Lookup(ctx context.Context, kepID int64) (*domain.Prediction, error) {
	return uc.log.Latest(ctx, kepID)
}
