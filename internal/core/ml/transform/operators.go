package transform

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/koi-classifier/internal/core/ml/stats"
)

var nan = math.NaN()

// Imputer replaces missing values with the per-column median seen at fit time.
type Imputer struct {
	Columns []string  `json:"columns"`
	Medians []float64 `json:"medians"`
}

// FitImputer computes medians per column. A column with no observed value gets 0
// so the feature width stays fixed.
func FitImputer(names []string, cols [][]float64) *Imputer {
	medians := make([]float64, len(cols))
	for j, col := range cols {
		m := stats.Median(col)
		if math.IsNaN(m) {
			m = 0
		}
		medians[j] = m
	}
	return &Imputer{Columns: append([]string(nil), names...), Medians: medians}
}

func (im *Imputer) Transform(cols [][]float64) error {
	if len(cols) != len(im.Medians) {
		return fmt.Errorf("imputer fitted on %d columns, got %d", len(im.Medians), len(cols))
	}
	for j, col := range cols {
		for i, v := range col {
			if math.IsNaN(v) {
				col[i] = im.Medians[j]
			}
		}
	}
	return nil
}

// Scaler maps each column onto [0,1] using the min and max seen at fit time.
// Values outside the fitted range are not clipped.
type Scaler struct {
	Min []float64 `json:"min"`
	Max []float64 `json:"max"`
}

func FitScaler(cols [][]float64) *Scaler {
	s := &Scaler{Min: make([]float64, len(cols)), Max: make([]float64, len(cols))}
	for j, col := range cols {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range col {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		s.Min[j], s.Max[j] = lo, hi
	}
	return s
}

func (s *Scaler) Transform(cols [][]float64) error {
	if len(cols) != len(s.Min) {
		return fmt.Errorf("scaler fitted on %d columns, got %d", len(s.Min), len(cols))
	}
	for j, col := range cols {
		scale := s.Max[j] - s.Min[j]
		if scale == 0 {
			scale = 1
		}
		for i, v := range col {
			col[i] = (v - s.Min[j]) / scale
		}
	}
	return nil
}

// Selector keeps the K columns with the highest mutual information with the label.
type Selector struct {
	K       int       `json:"k"`
	Scores  []float64 `json:"scores"`
	Indices []int     `json:"indices"`
}

const (
	MaxSelectedFeatures = 20
	miNeighbors         = 3
)

// FitSelector ranks columns against labels. Without labels every row is scored
// against the same class, which leaves the ranking close to arbitrary.
func FitSelector(cols [][]float64, labels []float64) *Selector {
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	classes := make([]int, rows)
	for i := range classes {
		if labels == nil {
			continue
		}
		if math.IsNaN(labels[i]) {
			classes[i] = -1
			continue
		}
		classes[i] = int(labels[i])
	}

	scores := make([]float64, len(cols))
	for j, col := range cols {
		scores[j] = mutualInfo(col, classes, miNeighbors)
	}

	k := min(MaxSelectedFeatures, len(cols))
	order := make([]int, len(cols))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })
	indices := append([]int(nil), order[len(order)-k:]...)
	sort.Ints(indices)

	return &Selector{K: k, Scores: scores, Indices: indices}
}

func (s *Selector) Transform(cols [][]float64) ([][]float64, error) {
	out := make([][]float64, 0, len(s.Indices))
	for _, idx := range s.Indices {
		if idx < 0 || idx >= len(cols) {
			return nil, fmt.Errorf("selector index %d out of range for %d columns", idx, len(cols))
		}
		out = append(out, cols[idx])
	}
	return out, nil
}
