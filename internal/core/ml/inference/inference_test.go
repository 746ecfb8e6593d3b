package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/bundle"
	"github.com/kirillkom/koi-classifier/internal/core/ml/koitest"
	"github.com/kirillkom/koi-classifier/internal/core/ml/trainer"
	"github.com/kirillkom/koi-classifier/internal/core/ml/transform"
)

func trainBundle(t *testing.T, rows int) *bundle.Bundle {
	t.Helper()
	fit, err := transform.Fit(koitest.Table(rows, 0, 11, true))
	if err != nil {
		t.Fatalf("transform.Fit() error = %v", err)
	}
	res, err := trainer.New(slog.New(slog.NewTextHandler(io.Discard, nil)), 123).
		Train(context.Background(), fit.Matrix, fit.Labels)
	if err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	b, err := bundle.New("run-1", res.Model, fit.Operators, res.F1, res.Rows, time.Now())
	if err != nil {
		t.Fatalf("bundle.New() error = %v", err)
	}
	return b
}

func TestPredictHeldOutRows(t *testing.T) {
	b := trainBundle(t, 100)

	heldOut := koitest.Table(10, 100, 99, false)
	got, err := Predict(context.Background(), b, heldOut)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 predictions, got %d", len(got))
	}
	correct := 0
	for i, d := range got {
		if d == koitest.Class(100+i) {
			correct++
		}
	}
	if correct < 9 {
		t.Fatalf("expected at least 9/10 correct, got %d (%v)", correct, got)
	}
}

func TestPredictRejectsLabeledInput(t *testing.T) {
	b := trainBundle(t, 60)
	_, err := Predict(context.Background(), b, koitest.Table(5, 0, 1, true))
	if !errors.Is(err, domain.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestPredictWithoutBundle(t *testing.T) {
	_, err := Predict(context.Background(), nil, koitest.Table(5, 0, 1, false))
	if !errors.Is(err, domain.ErrModelNotReady) {
		t.Fatalf("expected ErrModelNotReady, got %v", err)
	}
}

type strayModel struct{ width int }

func (m *strayModel) Name() string                                 { return "stray" }
func (m *strayModel) NumFeatures() int                             { return m.width }
func (m *strayModel) Fit(context.Context, mat.Matrix, []int) error { return nil }
func (m *strayModel) Predict(x mat.Matrix) ([]int, error) {
	r, _ := x.Dims()
	out := make([]int, r)
	for i := range out {
		out[i] = 7
	}
	return out, nil
}

func TestPredictMapsUnknownClass(t *testing.T) {
	fit, err := transform.Fit(koitest.Table(30, 0, 2, true))
	if err != nil {
		t.Fatalf("transform.Fit() error = %v", err)
	}
	b, err := bundle.New("run-x", &strayModel{width: fit.Operators.Width()}, fit.Operators, 0.5, 30, time.Now())
	if err != nil {
		t.Fatalf("bundle.New() error = %v", err)
	}
	got, err := Predict(context.Background(), b, koitest.Table(3, 0, 2, false))
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	for _, d := range got {
		if d != domain.DispositionUnknown {
			t.Fatalf("expected UNKNOWN, got %q", d)
		}
	}
}

func TestPredictRejectsMismatchedBundle(t *testing.T) {
	b := trainBundle(t, 60)
	b.Model = &strayModel{width: b.Operators.Width() - 1}
	_, err := Predict(context.Background(), b, koitest.Table(3, 0, 2, false))
	if !errors.Is(err, domain.ErrModelNotReady) {
		t.Fatalf("expected ErrModelNotReady, got %v", err)
	}
}
