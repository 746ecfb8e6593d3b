package trainer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/classifier"
)

// Result is the outcome of one training run.
type Result struct {
	Model  classifier.Classifier
	F1     float64
	Rows   int
	Scores []domain.ModelScore
}

type Trainer struct {
	logger *slog.Logger
	seed   int64
	roster func(seed int64) []classifier.Classifier
}

func New(logger *slog.Logger, seed int64) *Trainer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trainer{logger: logger, seed: seed, roster: classifier.Roster}
}

// WithRoster replaces the candidate list; used by tests.
func (t *Trainer) WithRoster(roster func(seed int64) []classifier.Classifier) *Trainer {
	t.roster = roster
	return t
}

// Train fits every roster candidate on a stratified split and returns the one with
// the highest weighted F1 on the held-out rows. Rows with a NaN label are dropped.
// Candidates are fitted concurrently; selection follows roster order and only a
// strictly better score replaces the current best.
func (t *Trainer) Train(ctx context.Context, x *mat.Dense, labels []float64) (*Result, error) {
	rows, _ := x.Dims()
	if rows != len(labels) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "train", fmt.Errorf("%d rows but %d labels", rows, len(labels)))
	}

	keep := make([]int, 0, rows)
	codes := make([]int, rows)
	for i, v := range labels {
		if math.IsNaN(v) {
			continue
		}
		keep = append(keep, i)
		codes[i] = int(v)
	}
	if dropped := rows - len(keep); dropped > 0 {
		t.logger.Warn("dropping rows without a usable label", "dropped", dropped, "rows", rows)
	}
	if len(keep) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "train", errors.New("no labeled rows"))
	}
	features, y := classifier.Subset(x, codes, keep)

	trainIdx, testIdx, err := classifier.StratifiedSplit(y, classifier.TestFraction, t.seed)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "train", err)
	}
	trainX, trainY := classifier.Subset(features, y, trainIdx)
	testX, testY := classifier.Subset(features, y, testIdx)

	candidates := t.roster(t.seed)
	scores := make([]domain.ModelScore, len(candidates))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, candidate := range candidates {
		group.Go(func() error {
			started := time.Now()
			if err := candidate.Fit(groupCtx, trainX, trainY); err != nil {
				return fmt.Errorf("fit %s: %w", candidate.Name(), err)
			}
			pred, err := candidate.Predict(testX)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", candidate.Name(), err)
			}
			scores[i] = domain.ModelScore{
				Name:     candidate.Name(),
				Accuracy: classifier.Accuracy(testY, pred),
				F1:       classifier.WeightedF1(testY, pred),
			}
			t.logger.Info("candidate evaluated",
				"model", candidate.Name(),
				"accuracy", scores[i].Accuracy,
				"f1", scores[i].F1,
				"duration", time.Since(started),
			)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, domain.WrapError(domain.ErrTemporary, "train", ctxErr)
		}
		return nil, domain.WrapError(domain.ErrDataFormat, "train", err)
	}

	best := -1
	bestF1 := 0.0
	for i, score := range scores {
		if score.F1 > bestF1 {
			best, bestF1 = i, score.F1
		}
	}
	if best < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "train", errors.New("no candidate scored above zero"))
	}

	return &Result{
		Model:  candidates[best],
		F1:     bestF1,
		Rows:   len(y),
		Scores: scores,
	}, nil
}
