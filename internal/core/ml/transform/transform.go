// Package transform turns raw KOI tables into fixed-width feature matrices.
//
// Fit learns the imputer, scaler and selector from a labeled table; Apply replays
// exactly those operators on new data. Both paths share every step so training and
// inference cannot drift apart.
package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
)

// Operators is the fitted transform state. It is immutable once fitted and is
// always applied in the order imputer, scaler, selector.
type Operators struct {
	Imputer  *Imputer
	Scaler   *Scaler
	Selector *Selector
}

// Features returns the fit-time feature column order.
func (o *Operators) Features() []string {
	return o.Imputer.Columns
}

// Selected returns the names of the selected columns.
func (o *Operators) Selected() []string {
	names := make([]string, 0, len(o.Selector.Indices))
	for _, idx := range o.Selector.Indices {
		names = append(names, o.Imputer.Columns[idx])
	}
	return names
}

// Width is the number of columns Apply produces.
func (o *Operators) Width() int {
	return len(o.Selector.Indices)
}

func (o *Operators) Validate() error {
	if o == nil || o.Imputer == nil || o.Scaler == nil || o.Selector == nil {
		return errors.New("transform operators are incomplete")
	}
	n := len(o.Imputer.Columns)
	if len(o.Imputer.Medians) != n || len(o.Scaler.Min) != n || len(o.Scaler.Max) != n {
		return fmt.Errorf("operator widths disagree: imputer=%d scaler=%d/%d", n, len(o.Scaler.Min), len(o.Scaler.Max))
	}
	if o.Selector.K != len(o.Selector.Indices) || o.Selector.K > n {
		return fmt.Errorf("selector keeps %d of %d indices over %d columns", o.Selector.K, len(o.Selector.Indices), n)
	}
	return nil
}

type FitResult struct {
	Matrix *mat.Dense
	// Labels holds one class code per matrix row, NaN where the disposition was
	// missing or unrecognised. It is nil when the table had no label column.
	Labels    []float64
	Operators *Operators
}

// Fit learns the transform from t. The input table is not modified.
func Fit(t *table.Table) (*FitResult, error) {
	work := t.Clone()
	if err := MergeErrors(work); err != nil {
		return nil, err
	}
	Prune(work)
	labels := ExtractLabels(work)

	names, cols, err := numericColumns(work, work.Columns())
	if err != nil {
		return nil, err
	}
	cols, labels = dedup(cols, labels)
	if len(cols) == 0 || len(cols[0]) == 0 {
		return nil, domain.WrapError(domain.ErrDataFormat, "fit transform", errors.New("no rows or feature columns after preprocessing"))
	}

	imputer := FitImputer(names, cols)
	if err := imputer.Transform(cols); err != nil {
		return nil, err
	}
	scaler := FitScaler(cols)
	if err := scaler.Transform(cols); err != nil {
		return nil, err
	}
	selector := FitSelector(cols, labels)
	selected, err := selector.Transform(cols)
	if err != nil {
		return nil, err
	}

	return &FitResult{
		Matrix:    toDense(selected),
		Labels:    labels,
		Operators: &Operators{Imputer: imputer, Scaler: scaler, Selector: selector},
	}, nil
}

// Apply replays fitted operators on t. Rows are kept one-for-one with the input;
// a label column, if present, is ignored.
func Apply(t *table.Table, ops *Operators) (*mat.Dense, error) {
	if err := ops.Validate(); err != nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "apply transform", err)
	}
	if t.Rows() == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "apply transform", errors.New("table has no rows"))
	}

	work := t.Clone()
	if err := MergeErrors(work); err != nil {
		return nil, err
	}
	Prune(work)
	work.Drop(domain.ColumnDisposition)

	_, cols, err := numericColumns(work, ops.Features())
	if err != nil {
		return nil, err
	}
	if err := ops.Imputer.Transform(cols); err != nil {
		return nil, err
	}
	if err := ops.Scaler.Transform(cols); err != nil {
		return nil, err
	}
	selected, err := ops.Selector.Transform(cols)
	if err != nil {
		return nil, err
	}
	return toDense(selected), nil
}

// numericColumns copies the named columns out of t as float slices.
func numericColumns(t *table.Table, names []string) ([]string, [][]float64, error) {
	cols := make([][]float64, 0, len(names))
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			return nil, nil, domain.WrapError(domain.ErrDataFormat, "transform", fmt.Errorf("missing feature column %q", name))
		}
		if !col.Kind.Numeric() {
			return nil, nil, notNumeric(name)
		}
		for row, v := range col.Values {
			if math.IsInf(v, 0) {
				return nil, nil, domain.WrapError(domain.ErrDataFormat, "transform", fmt.Errorf("column %q row %d is not finite", name, row+1))
			}
		}
		cols = append(cols, append([]float64(nil), col.Values...))
	}
	return append([]string(nil), names...), cols, nil
}

// dedup removes exact duplicate rows, label included, keeping first occurrences.
func dedup(cols [][]float64, labels []float64) ([][]float64, []float64) {
	if len(cols) == 0 {
		return cols, labels
	}
	rows := len(cols[0])
	width := len(cols)
	if labels != nil {
		width++
	}

	seen := make(map[string]struct{}, rows)
	keep := make([]int, 0, rows)
	key := make([]byte, 8*width)
	for i := 0; i < rows; i++ {
		for j, col := range cols {
			putBits(key[8*j:], col[i])
		}
		if labels != nil {
			putBits(key[8*len(cols):], labels[i])
		}
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}
		keep = append(keep, i)
	}
	if len(keep) == rows {
		return cols, labels
	}

	out := make([][]float64, len(cols))
	for j, col := range cols {
		next := make([]float64, len(keep))
		for p, i := range keep {
			next[p] = col[i]
		}
		out[j] = next
	}
	var outLabels []float64
	if labels != nil {
		outLabels = make([]float64, len(keep))
		for p, i := range keep {
			outLabels[p] = labels[i]
		}
	}
	return out, outLabels
}

func putBits(dst []byte, v float64) {
	bits := math.Float64bits(v)
	if math.IsNaN(v) {
		bits = math.Float64bits(nan)
	}
	for b := 0; b < 8; b++ {
		dst[b] = byte(bits >> (8 * b))
	}
}

func toDense(cols [][]float64) *mat.Dense {
	rows := len(cols[0])
	m := mat.NewDense(rows, len(cols), nil)
	for j, col := range cols {
		m.SetCol(j, col)
	}
	return m
}
