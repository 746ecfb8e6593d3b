package classifier

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Logistic is multinomial logistic regression with L2 penalty (C=1), trained by
// full-batch gradient descent.
type Logistic struct {
	// Weights is features x classes, row-major.
	Weights  []float64 `json:"weights"`
	Bias     []float64 `json:"bias"`
	Labels   labelSet  `json:"labels"`
	Features int       `json:"features"`

	maxIter int
}

const logisticStep = 0.5

func NewLogistic(maxIter int) *Logistic {
	return &Logistic{maxIter: maxIter}
}

func (m *Logistic) Name() string     { return NameLogistic }
func (m *Logistic) NumFeatures() int { return m.Features }

func (m *Logistic) Fit(ctx context.Context, x mat.Matrix, y []int) error {
	n, width, err := checkFit(x, y)
	if err != nil {
		return err
	}
	labels := newLabelSet(y)
	encoded := labels.encode(y)
	k := len(labels.Classes)

	w := mat.NewDense(width, k, nil)
	bias := make([]float64, k)
	scores := mat.NewDense(n, k, nil)
	grad := mat.NewDense(width, k, nil)
	prob := make([]float64, k)
	lambda := 1 / float64(n)

	for iter := 0; iter < m.maxIter; iter++ {
		if iter%50 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		scores.Mul(x, w)
		biasGrad := make([]float64, k)
		for i := 0; i < n; i++ {
			row := scores.RawRowView(i)
			for c := range row {
				row[c] += bias[c]
			}
			softmax(prob, row)
			for c := range row {
				row[c] = prob[c]
				if encoded[i] == c {
					row[c]--
				}
				biasGrad[c] += row[c]
			}
		}
		// grad = X^T (P - Y) / n + lambda * W
		grad.Mul(x.T(), scores)
		grad.Scale(1/float64(n), grad)
		grad.Apply(func(i, j int, v float64) float64 { return v + lambda*w.At(i, j) }, grad)

		w.Apply(func(i, j int, v float64) float64 { return v - logisticStep*grad.At(i, j) }, w)
		for c := range bias {
			bias[c] -= logisticStep * biasGrad[c] / float64(n)
		}
	}

	m.Weights = append([]float64(nil), w.RawMatrix().Data...)
	m.Bias, m.Labels, m.Features = bias, labels, width
	return nil
}

func (m *Logistic) Predict(x mat.Matrix) ([]int, error) {
	if err := checkPredict(x, m.Features); err != nil {
		return nil, err
	}
	r, _ := x.Dims()
	k := len(m.Bias)
	var scores mat.Dense
	scores.Mul(x, mat.NewDense(m.Features, k, m.Weights))

	out := make([]int, r)
	for i := 0; i < r; i++ {
		row := scores.RawRowView(i)
		for c := range row {
			row[c] += m.Bias[c]
		}
		out[i] = m.Labels.decode(argmax(row))
	}
	return out, nil
}
