package usecase

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/koitest"
)

func TestPredictUploadEndToEnd(t *testing.T) {
	deps := &trainingDeps{}
	trainUC := newTrainingUC(deps, knnTrainer(), 0)
	if _, err := trainUC.UploadAndRetrain(context.Background(), "train.csv", bytes.NewReader(koitest.CSV(100, 0, 7, true))); err != nil {
		t.Fatalf("UploadAndRetrain() error = %v", err)
	}

	log := &predictionLogFake{}
	rec := &recorderFake{}
	uc := NewPredictionUseCase(deps.registry, log, rec)
	batch, err := uc.PredictUpload(context.Background(), "new.csv", bytes.NewReader(koitest.CSV(10, 100, 99, false)))
	if err != nil {
		t.Fatalf("PredictUpload() error = %v", err)
	}
	if batch.RowsUploaded != 10 || len(batch.Predictions) != 10 {
		t.Fatalf("unexpected batch %+v", batch)
	}

	correct := 0
	for i, p := range batch.Predictions {
		if p.KepID != int64(10000000+100+i) {
			t.Fatalf("row %d has kepid %d", i, p.KepID)
		}
		if p.Prediction == koitest.Class(100+i) {
			correct++
		}
	}
	if correct < 9 {
		t.Fatalf("expected at least 9/10 correct, got %d", correct)
	}
	if len(log.rows) != 10 {
		t.Fatalf("expected 10 logged predictions, got %d", len(log.rows))
	}
	total := 0
	for _, n := range rec.predicted {
		total += n
	}
	if total != 10 {
		t.Fatalf("expected 10 recorded predictions, got %d", total)
	}

	got, err := uc.Lookup(context.Background(), 10000100)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.Prediction != batch.Predictions[0].Prediction {
		t.Fatalf("lookup returned %+v", got)
	}
}

func TestPredictWithoutModel(t *testing.T) {
	log := &predictionLogFake{}
	uc := NewPredictionUseCase(NewModelRegistry(&artifactStoreFake{}, quietLogger()), log, nil)

	_, err := uc.PredictUpload(context.Background(), "new.csv", bytes.NewReader(koitest.CSV(5, 0, 1, false)))
	if !errors.Is(err, domain.ErrModelNotReady) {
		t.Fatalf("expected ErrModelNotReady, got %v", err)
	}
	if len(log.rows) != 0 {
		t.Fatalf("failed prediction must not be logged")
	}
}

func TestPredictRejectsLabeledUpload(t *testing.T) {
	deps := &trainingDeps{}
	trainUC := newTrainingUC(deps, knnTrainer(), 0)
	if _, err := trainUC.TrainTable(context.Background(), koitest.Table(60, 0, 1, true)); err != nil {
		t.Fatalf("TrainTable() error = %v", err)
	}
	uc := NewPredictionUseCase(deps.registry, &predictionLogFake{}, nil)

	_, err := uc.PredictUpload(context.Background(), "new.csv", bytes.NewReader(koitest.CSV(5, 0, 1, true)))
	if !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestPredictLogFailureFailsRequest(t *testing.T) {
	deps := &trainingDeps{}
	trainUC := newTrainingUC(deps, knnTrainer(), 0)
	if _, err := trainUC.TrainTable(context.Background(), koitest.Table(60, 0, 1, true)); err != nil {
		t.Fatalf("TrainTable() error = %v", err)
	}
	uc := NewPredictionUseCase(deps.registry, &predictionLogFake{appendErr: errors.New("read-only fs")}, nil)

	if _, err := uc.PredictUpload(context.Background(), "new.csv", bytes.NewReader(koitest.CSV(5, 0, 1, false))); err == nil {
		t.Fatalf("expected append error")
	}
}

func TestLookupNotFound(t *testing.T) {
	uc := NewPredictionUseCase(NewModelRegistry(&artifactStoreFake{}, quietLogger()), &predictionLogFake{}, nil)
	if _, err := uc.Lookup(context.Background(), 42); !errors.Is(err, domain.ErrPredictionNotFound) {
		t.Fatalf("expected ErrPredictionNotFound, got %v", err)
	}
}
