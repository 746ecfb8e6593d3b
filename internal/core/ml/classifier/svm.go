package classifier

import (
	"context"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// SVM approximates an RBF-kernel support vector machine: inputs are lifted with
// random Fourier features and a linear one-vs-rest hinge model is trained on them
// with Pegasos. Gamma follows the "scale" heuristic 1/(features * var(X)).
type SVM struct {
	Omega    []float64   `json:"omega"` // components x features, row-major
	Phase    []float64   `json:"phase"`
	Weights  [][]float64 `json:"weights"` // one hyperplane per class, bias last
	Gamma    float64     `json:"gamma"`
	Labels   labelSet    `json:"labels"`
	Features int         `json:"features"`

	seed int64
}

const (
	svmComponents = 256
	svmLambda     = 1e-3
	svmEpochs     = 15
)

func NewSVM(seed int64) *SVM {
	return &SVM{seed: seed}
}

func (s *SVM) Name() string     { return NameSVM }
func (s *SVM) NumFeatures() int { return s.Features }

func (s *SVM) Fit(ctx context.Context, x mat.Matrix, y []int) error {
	n, width, err := checkFit(x, y)
	if err != nil {
		return err
	}
	labels := newLabelSet(y)
	encoded := labels.encode(y)
	rng := rand.New(rand.NewSource(s.seed))

	all := make([]float64, 0, n*width)
	for _, row := range rowsOf(x) {
		all = append(all, row...)
	}
	gamma := 1.0
	if v := stat.Variance(all, nil); v > 0 {
		gamma = 1 / (float64(width) * v)
	}

	omega := make([]float64, svmComponents*width)
	for i := range omega {
		omega[i] = rng.NormFloat64() * math.Sqrt(2*gamma)
	}
	phase := make([]float64, svmComponents)
	for i := range phase {
		phase[i] = rng.Float64() * 2 * math.Pi
	}
	s.Omega, s.Phase, s.Gamma, s.Features = omega, phase, gamma, width

	lifted := s.lift(x)
	weights := make([][]float64, len(labels.Classes))
	for c := range weights {
		if err := ctx.Err(); err != nil {
			s.Features = 0
			return err
		}
		target := make([]float64, n)
		for i, v := range encoded {
			target[i] = -1
			if v == c {
				target[i] = 1
			}
		}
		weights[c] = pegasos(lifted, target, rng)
	}

	s.Weights, s.Labels = weights, labels
	return nil
}

// lift maps rows into the random feature space with a trailing constant 1.
func (s *SVM) lift(x mat.Matrix) [][]float64 {
	rows := rowsOf(x)
	out := make([][]float64, len(rows))
	norm := math.Sqrt(2 / float64(svmComponents))
	for i, row := range rows {
		z := make([]float64, svmComponents+1)
		for d := 0; d < svmComponents; d++ {
			proj := floats.Dot(s.Omega[d*s.Features:(d+1)*s.Features], row)
			z[d] = norm * math.Cos(proj+s.Phase[d])
		}
		z[svmComponents] = 1
		out[i] = z
	}
	return out
}

func pegasos(z [][]float64, target []float64, rng *rand.Rand) []float64 {
	w := make([]float64, len(z[0]))
	order := make([]int, len(z))
	for i := range order {
		order[i] = i
	}
	radius := 1 / math.Sqrt(svmLambda)
	t := 0
	for range svmEpochs {
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		for _, i := range order {
			t++
			eta := 1 / (svmLambda * float64(t))
			margin := target[i] * floats.Dot(w, z[i])
			floats.Scale(1-eta*svmLambda, w)
			if margin < 1 {
				floats.AddScaled(w, eta*target[i], z[i])
			}
			if norm := floats.Norm(w, 2); norm > radius {
				floats.Scale(radius/norm, w)
			}
		}
	}
	return w
}

func (s *SVM) Predict(x mat.Matrix) ([]int, error) {
	if err := checkPredict(x, s.Features); err != nil {
		return nil, err
	}
	lifted := s.lift(x)
	out := make([]int, len(lifted))
	scores := make([]float64, len(s.Weights))
	for i, z := range lifted {
		for c, w := range s.Weights {
			scores[c] = floats.Dot(w, z)
		}
		out[i] = s.Labels.decode(argmax(scores))
	}
	return out, nil
}
