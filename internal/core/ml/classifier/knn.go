package classifier

import (
	"context"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// KNN votes among the k nearest training rows by Euclidean distance. Ties in the
// vote go to the smallest class code.
type KNN struct {
	K        int         `json:"k"`
	Points   [][]float64 `json:"points"`
	Targets  []int       `json:"targets"`
	Features int         `json:"features"`
}

func NewKNN(k int) *KNN {
	return &KNN{K: k}
}

func (m *KNN) Name() string     { return NameKNN }
func (m *KNN) NumFeatures() int { return m.Features }

func (m *KNN) Fit(_ context.Context, x mat.Matrix, y []int) error {
	_, width, err := checkFit(x, y)
	if err != nil {
		return err
	}
	rows := rowsOf(x)
	points := make([][]float64, len(rows))
	for i, row := range rows {
		points[i] = cloneFloats(row)
	}
	m.Points, m.Targets, m.Features = points, slices.Clone(y), width
	return nil
}

func (m *KNN) Predict(x mat.Matrix) ([]int, error) {
	if err := checkPredict(x, m.Features); err != nil {
		return nil, err
	}
	k := min(m.K, len(m.Points))
	dist := make([]float64, len(m.Points))
	order := make([]int, len(m.Points))
	rows := rowsOf(x)
	out := make([]int, len(rows))
	for i, row := range rows {
		for p, point := range m.Points {
			dist[p] = floats.Distance(row, point, 2)
			order[p] = p
		}
		slices.SortStableFunc(order, func(a, b int) int {
			switch {
			case dist[a] < dist[b]:
				return -1
			case dist[a] > dist[b]:
				return 1
			default:
				return 0
			}
		})

		votes := map[int]int{}
		for _, p := range order[:k] {
			votes[m.Targets[p]]++
		}
		best, bestVotes := 0, -1
		for class, n := range votes {
			if n > bestVotes || (n == bestVotes && class < best) {
				best, bestVotes = class, n
			}
		}
		out[i] = best
	}
	return out, nil
}
