package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/bundle"
	"github.com/kirillkom/koi-classifier/internal/core/ml/classifier"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
	"github.com/kirillkom/koi-classifier/internal/core/ml/trainer"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// knnTrainer keeps usecase tests fast; the full roster is covered by the trainer package.
func knnTrainer() *trainer.Trainer {
	return trainer.New(quietLogger(), 123).WithRoster(func(int64) []classifier.Classifier {
		return []classifier.Classifier{classifier.NewKNN(5)}
	})
}

type datasetFake struct {
	mu       sync.Mutex
	table    *table.Table
	loadErr  error
	replaced int
}

func (f *datasetFake) Load(context.Context) (*table.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.table == nil {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "load dataset", errors.New("no file"))
	}
	return f.table.Clone(), nil
}

func (f *datasetFake) Replace(_ context.Context, t *table.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.table = t.Clone()
	f.replaced++
	return nil
}

type artifactStoreFake struct {
	mu       sync.Mutex
	saved    []*bundle.Bundle
	saveErr  error
	inFlight int
	overlap  bool
}

func (f *artifactStoreFake) Save(_ context.Context, b *bundle.Bundle) error {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > 1 {
		f.overlap = true
	}
	f.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight--
	if f.saveErr != nil {
		return f.saveErr
	}
	if err := b.Validate(); err != nil {
		return err
	}
	f.saved = append(f.saved, b)
	return nil
}

func (f *artifactStoreFake) Load(context.Context) (*bundle.Bundle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return nil, domain.WrapError(domain.ErrModelNotReady, "load bundle", errors.New("empty"))
	}
	return f.saved[len(f.saved)-1], nil
}

type eventsFake struct {
	mu         sync.Mutex
	published  []string
	publishErr error
	incoming   []string
}

func (f *eventsFake) PublishModelRetrained(_ context.Context, runID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, runID)
	return nil
}

// SubscribeModelRetrained delivers the queued incoming events and returns.
func (f *eventsFake) SubscribeModelRetrained(ctx context.Context, handler func(context.Context, string) error) error {
	for _, runID := range f.incoming {
		if err := handler(ctx, runID); err != nil {
			return err
		}
	}
	return nil
}

type recorderFake struct {
	mu          sync.Mutex
	started     int
	failed      int
	succeeded   int
	activeModel string
	predicted   map[string]int
}

func (f *recorderFake) StartTraining() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *recorderFake) FinishTraining(_ time.Duration, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.failed++
		return
	}
	f.succeeded++
}

func (f *recorderFake) SetActiveModel(model string, _ float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activeModel = model
}

func (f *recorderFake) RecordPredictions(labels []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.predicted == nil {
		f.predicted = map[string]int{}
	}
	for _, l := range labels {
		f.predicted[l]++
	}
}

type predictionLogFake struct {
	rows      []domain.Prediction
	appendErr error
}

func (f *predictionLogFake) Append(_ context.Context, predictions []domain.Prediction) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows = append(f.rows, predictions...)
	return nil
}

func (f *predictionLogFake) Latest(_ context.Context, kepID int64) (*domain.Prediction, error) {
	for i := len(f.rows) - 1; i >= 0; i-- {
		if f.rows[i].KepID == kepID {
			p := f.rows[i]
			return &p, nil
		}
	}
	return nil, domain.WrapError(domain.ErrPredictionNotFound, "latest prediction", errors.New("no row"))
}
