package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/koitest"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeIn(t, t.TempDir(), args...)
}

func executeIn(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("PREDICTION_STORE", "csv")
	t.Setenv("NATS_URL", "")

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestLookupRejectsNonNumericID(t *testing.T) {
	_, err := execute(t, "lookup", "K00752.01")
	if err == nil || !strings.Contains(err.Error(), "kepid must be an integer") {
		t.Fatalf("expected kepid error, got %v", err)
	}
}

func TestLookupWithoutPredictionLog(t *testing.T) {
	_, err := execute(t, "lookup", "10797460")
	if !errors.Is(err, domain.ErrPredictionNotFound) {
		t.Fatalf("expected ErrPredictionNotFound, got %v", err)
	}
}

func TestPreviewWithoutDataset(t *testing.T) {
	_, err := execute(t, "preview", "--rows", "3")
	if !errors.Is(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
}

func TestPredictRequiresData(t *testing.T) {
	predictFlags.data = ""
	_, err := execute(t, "predict")
	if err == nil || !strings.Contains(err.Error(), "data") {
		t.Fatalf("expected missing --data error, got %v", err)
	}
}

func TestTrainPredictLookup(t *testing.T) {
	dataDir := t.TempDir()
	labeled := filepath.Join(dataDir, "labeled.csv")
	unlabeled := filepath.Join(dataDir, "unlabeled.csv")
	if err := os.WriteFile(labeled, koitest.CSV(90, 0, 7, true), 0o644); err != nil {
		t.Fatalf("write labeled: %v", err)
	}
	if err := os.WriteFile(unlabeled, koitest.CSV(3, 200, 9, false), 0o644); err != nil {
		t.Fatalf("write unlabeled: %v", err)
	}
	textfile := filepath.Join(dataDir, "koi.prom")

	out, err := executeIn(t, dataDir, "train", "--data", labeled, "--metrics-textfile", textfile)
	if err != nil {
		t.Fatalf("train error = %v", err)
	}
	var res domain.UploadResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode train output %q: %v", out, err)
	}
	if res.RowsTotalAfterMerge != 90 || res.Training.ModelName == "" {
		t.Fatalf("unexpected train result %+v", res)
	}
	if data, err := os.ReadFile(textfile); err != nil || !strings.Contains(string(data), "koi_training_runs_total") {
		t.Fatalf("metrics textfile not written: %v", err)
	}

	out, err = executeIn(t, dataDir, "predict", "--data", unlabeled)
	if err != nil {
		t.Fatalf("predict error = %v", err)
	}
	var batch domain.PredictionBatch
	if err := json.Unmarshal([]byte(out), &batch); err != nil {
		t.Fatalf("decode predict output: %v", err)
	}
	if len(batch.Predictions) != 3 {
		t.Fatalf("expected 3 predictions, got %+v", batch)
	}

	out, err = executeIn(t, dataDir, "lookup", "10000200")
	if err != nil {
		t.Fatalf("lookup error = %v", err)
	}
	var p domain.Prediction
	if err := json.Unmarshal([]byte(out), &p); err != nil {
		t.Fatalf("decode lookup output: %v", err)
	}
	if p.KepID != 10000200 || p.Prediction != batch.Predictions[0].Prediction {
		t.Fatalf("lookup returned %+v, want %+v", p, batch.Predictions[0])
	}
}
