package transform

import (
	"fmt"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
)

// MeasuredFields are the base measurements that carry asymmetric uncertainties.
var MeasuredFields = []string{
	"koi_period", "koi_time0bk", "koi_impact",
	"koi_duration", "koi_depth",
	"koi_prad", "koi_teq", "koi_insol",
	"koi_steff", "koi_slogg", "koi_srad",
}

// DroppedColumns are identifiers, label-leaking fields and the raw uncertainty
// companions, which are redundant once merged into their base field.
var DroppedColumns = func() []string {
	cols := []string{
		"kepid", "kepoi_name", "kepler_name",
		"koi_pdisposition", "koi_score", "koi_tce_delivname",
	}
	for _, field := range MeasuredFields {
		cols = append(cols, field+"_err1", field+"_err2")
	}
	return cols
}()

// MergeErrors folds each measurement's uncertainties into the measurement itself:
// value = value + (err1 + err2) / 2, with every missing operand read as 0.
// Fields absent from t are skipped.
func MergeErrors(t *table.Table) error {
	for _, field := range MeasuredFields {
		base, ok := t.Column(field)
		if !ok {
			continue
		}
		if !base.Kind.Numeric() {
			return notNumeric(field)
		}
		err1, err := companion(t, field+"_err1")
		if err != nil {
			return err
		}
		err2, err := companion(t, field+"_err2")
		if err != nil {
			return err
		}

		merged := make([]float64, t.Rows())
		for i := range merged {
			merged[i] = zeroNaN(base.Values[i]) + (zeroNaN(err1[i])+zeroNaN(err2[i]))/2
		}
		base.Kind = table.KindFloat
		base.Values = merged
	}
	return nil
}

func companion(t *table.Table, name string) ([]float64, error) {
	col, ok := t.Column(name)
	if !ok {
		return make([]float64, t.Rows()), nil
	}
	if !col.Kind.Numeric() {
		return nil, notNumeric(name)
	}
	return col.Values, nil
}

// Prune drops DroppedColumns; names not present are ignored.
func Prune(t *table.Table) {
	t.Drop(DroppedColumns...)
}

// ExtractLabels encodes the disposition column in place of its text and returns the
// codes, with NaN for missing or unrecognised values. It returns nil when t has no
// label column.
func ExtractLabels(t *table.Table) []float64 {
	col, ok := t.Column(domain.ColumnDisposition)
	if !ok {
		return nil
	}
	labels := make([]float64, t.Rows())
	for i, text := range col.Raw {
		class, ok := domain.EncodeDisposition(text)
		if !ok {
			labels[i] = nan
			continue
		}
		labels[i] = float64(class)
	}
	t.Drop(domain.ColumnDisposition)
	return labels
}

func notNumeric(name string) error {
	return domain.WrapError(domain.ErrDataFormat, "transform", fmt.Errorf("column %q is not numeric", name))
}

func zeroNaN(v float64) float64 {
	if v != v {
		return 0
	}
	return v
}
