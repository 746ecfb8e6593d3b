package classifier

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Forest is a bagged ensemble of Gini trees with sqrt(features) candidates per
// split. Class probabilities are averaged across trees.
type Forest struct {
	Trees    []*tree  `json:"trees"`
	Labels   labelSet `json:"labels"`
	Features int      `json:"features"`

	size int
	seed int64
}

func NewForest(size int, seed int64) *Forest {
	return &Forest{size: size, seed: seed}
}

func (f *Forest) Name() string     { return NameForest }
func (f *Forest) NumFeatures() int { return f.Features }

func (f *Forest) Fit(ctx context.Context, x mat.Matrix, y []int) error {
	n, width, err := checkFit(x, y)
	if err != nil {
		return err
	}
	labels := newLabelSet(y)
	encoded := labels.encode(y)
	rows := rowsOf(x)
	rng := rand.New(rand.NewSource(f.seed))
	cfg := treeConfig{
		minSplit:    2,
		maxFeatures: max(1, int(math.Sqrt(float64(width)))),
		rng:         rng,
	}

	trees := make([]*tree, 0, f.size)
	for range f.size {
		if err := ctx.Err(); err != nil {
			return err
		}
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.Intn(n)
		}
		trees = append(trees, growTree(rows, sample, newGini(encoded, len(labels.Classes)), cfg))
	}

	f.Trees, f.Labels, f.Features = trees, labels, width
	return nil
}

func (f *Forest) Predict(x mat.Matrix) ([]int, error) {
	if err := checkPredict(x, f.Features); err != nil {
		return nil, err
	}
	rows := rowsOf(x)
	out := make([]int, len(rows))
	votes := make([]float64, len(f.Labels.Classes))
	for i, row := range rows {
		clear(votes)
		for _, t := range f.Trees {
			for k, p := range t.leaf(row) {
				votes[k] += p
			}
		}
		out[i] = f.Labels.decode(argmax(votes))
	}
	return out, nil
}
