package classifier

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Boosting is multinomial gradient boosting: one shallow regression tree per class
// per stage, fitted to the softmax residuals with a Newton step in each leaf.
type Boosting struct {
	// Stages[s][k] is the tree for class k at stage s.
	Stages       [][]*tree `json:"stages"`
	Prior        []float64 `json:"prior"`
	LearningRate float64   `json:"learning_rate"`
	Labels       labelSet  `json:"labels"`
	Features     int       `json:"features"`

	rounds int
	depth  int
}

func NewBoosting(rounds int, learningRate float64, depth int) *Boosting {
	return &Boosting{rounds: rounds, LearningRate: learningRate, depth: depth}
}

func (b *Boosting) Name() string     { return NameBoosting }
func (b *Boosting) NumFeatures() int { return b.Features }

func (b *Boosting) Fit(ctx context.Context, x mat.Matrix, y []int) error {
	n, width, err := checkFit(x, y)
	if err != nil {
		return err
	}
	labels := newLabelSet(y)
	encoded := labels.encode(y)
	k := len(labels.Classes)
	rows := rowsOf(x)

	prior := make([]float64, k)
	for _, c := range encoded {
		prior[c]++
	}
	for c := range prior {
		prior[c] = math.Log(prior[c] / float64(n))
	}

	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = cloneFloats(prior)
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	residual := make([]float64, n)
	prob := make([]float64, k)
	cfg := treeConfig{maxDepth: b.depth, minSplit: 2}
	scale := float64(k-1) / float64(k)
	if k == 1 {
		scale = 1
	}

	stages := make([][]*tree, 0, b.rounds)
	for range b.rounds {
		if err := ctx.Err(); err != nil {
			return err
		}
		probs := make([][]float64, n)
		for i := range raw {
			softmax(prob, raw[i])
			probs[i] = cloneFloats(prob)
		}

		stage := make([]*tree, k)
		for c := 0; c < k; c++ {
			for i := range residual {
				target := 0.0
				if encoded[i] == c {
					target = 1
				}
				residual[i] = target - probs[i][c]
			}
			crit := &variance{
				target: residual,
				leafValue: func(idx []int) float64 {
					var num, den float64
					for _, i := range idx {
						r := residual[i]
						num += r
						den += math.Abs(r) * (1 - math.Abs(r))
					}
					if den < 1e-150 {
						return 0
					}
					return scale * num / den
				},
			}
			t := growTree(rows, all, crit, cfg)
			for i, row := range rows {
				raw[i][c] += b.LearningRate * t.leaf(row)[0]
			}
			stage[c] = t
		}
		stages = append(stages, stage)
	}

	b.Stages, b.Prior, b.Labels, b.Features = stages, prior, labels, width
	return nil
}

func (b *Boosting) Predict(x mat.Matrix) ([]int, error) {
	if err := checkPredict(x, b.Features); err != nil {
		return nil, err
	}
	rows := rowsOf(x)
	out := make([]int, len(rows))
	score := make([]float64, len(b.Prior))
	for i, row := range rows {
		copy(score, b.Prior)
		for _, stage := range b.Stages {
			for c, t := range stage {
				score[c] += b.LearningRate * t.leaf(row)[0]
			}
		}
		out[i] = b.Labels.decode(argmax(score))
	}
	return out, nil
}

func softmax(dst, raw []float64) {
	top := floats.Max(raw)
	var sum float64
	for i, v := range raw {
		dst[i] = math.Exp(v - top)
		sum += dst[i]
	}
	floats.Scale(1/sum, dst)
}

func cloneFloats(v []float64) []float64 {
	return append([]float64(nil), v...)
}
