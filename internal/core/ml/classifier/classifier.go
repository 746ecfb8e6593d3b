// Package classifier implements the candidate models evaluated on every training
// run. All models take a dense feature matrix and integer class codes and share
// a JSON codec so the winner can be persisted with its transform operators.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

const (
	NameLogistic = "Logistic Regression"
	NameForest   = "Random Forest"
	NameSVM      = "SVM"
	NameBoosting = "Gradient Boosting"
	NameKNN      = "KNN"
)

var errNotFitted = errors.New("classifier is not fitted")

type Classifier interface {
	Name() string
	Fit(ctx context.Context, x mat.Matrix, y []int) error
	Predict(x mat.Matrix) ([]int, error)
	// NumFeatures is the column count seen at fit time, 0 before Fit.
	NumFeatures() int
}

// Roster returns fresh, unfitted candidates in evaluation order. Ties between
// candidates are resolved in favour of the earlier entry.
func Roster(seed int64) []Classifier {
	return []Classifier{
		NewLogistic(1000),
		NewForest(100, seed),
		NewSVM(seed),
		NewBoosting(100, 0.1, 3),
		NewKNN(5),
	}
}

// labelSet maps arbitrary class codes onto 0..len(classes)-1.
type labelSet struct {
	Classes []int `json:"classes"`
}

func newLabelSet(y []int) labelSet {
	classes := slices.Clone(y)
	slices.Sort(classes)
	return labelSet{Classes: slices.Compact(classes)}
}

func (l labelSet) encode(y []int) []int {
	out := make([]int, len(y))
	for i, v := range y {
		out[i], _ = slices.BinarySearch(l.Classes, v)
	}
	return out
}

func (l labelSet) decode(idx int) int {
	return l.Classes[idx]
}

func checkFit(x mat.Matrix, y []int) (int, int, error) {
	r, c := x.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.New("empty training matrix")
	}
	if r != len(y) {
		return 0, 0, fmt.Errorf("matrix has %d rows, labels have %d", r, len(y))
	}
	return r, c, nil
}

func checkPredict(x mat.Matrix, features int) error {
	if features == 0 {
		return errNotFitted
	}
	if _, c := x.Dims(); c != features {
		return fmt.Errorf("model expects %d features, got %d", features, c)
	}
	return nil
}

// rowsOf exposes the matrix as row slices. Dense matrices are viewed, not copied.
func rowsOf(x mat.Matrix) [][]float64 {
	r, c := x.Dims()
	out := make([][]float64, r)
	if d, ok := x.(mat.RawMatrixer); ok {
		raw := d.RawMatrix()
		for i := range out {
			out[i] = raw.Data[i*raw.Stride : i*raw.Stride+c]
		}
		return out
	}
	for i := range out {
		row := make([]float64, c)
		mat.Row(row, i, x)
		out[i] = row
	}
	return out
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
