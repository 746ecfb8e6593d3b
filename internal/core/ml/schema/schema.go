// Package schema enforces the column contract of KOI survey uploads.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
)

type Field struct {
	Name string
	Kind table.Kind
}

// KOI is the expected layout of a cumulative KOI table export.
var KOI = []Field{
	{"kepid", table.KindInt},
	{"kepoi_name", table.KindObject},
	{"kepler_name", table.KindObject},
	{"koi_disposition", table.KindObject},
	{"koi_pdisposition", table.KindObject},
	{"koi_score", table.KindFloat},
	{"koi_fpflag_nt", table.KindInt},
	{"koi_fpflag_ss", table.KindInt},
	{"koi_fpflag_co", table.KindInt},
	{"koi_fpflag_ec", table.KindInt},
	{"koi_period", table.KindFloat},
	{"koi_period_err1", table.KindFloat},
	{"koi_period_err2", table.KindFloat},
	{"koi_time0bk", table.KindFloat},
	{"koi_time0bk_err1", table.KindFloat},
	{"koi_time0bk_err2", table.KindFloat},
	{"koi_impact", table.KindFloat},
	{"koi_impact_err1", table.KindFloat},
	{"koi_impact_err2", table.KindFloat},
	{"koi_duration", table.KindFloat},
	{"koi_duration_err1", table.KindFloat},
	{"koi_duration_err2", table.KindFloat},
	{"koi_depth", table.KindFloat},
	{"koi_depth_err1", table.KindFloat},
	{"koi_depth_err2", table.KindFloat},
	{"koi_prad", table.KindFloat},
	{"koi_prad_err1", table.KindFloat},
	{"koi_prad_err2", table.KindFloat},
	{"koi_teq", table.KindFloat},
	{"koi_teq_err1", table.KindFloat},
	{"koi_teq_err2", table.KindFloat},
	{"koi_insol", table.KindFloat},
	{"koi_insol_err1", table.KindFloat},
	{"koi_insol_err2", table.KindFloat},
	{"koi_model_snr", table.KindFloat},
	{"koi_tce_plnt_num", table.KindInt},
	{"koi_tce_delivname", table.KindObject},
	{"koi_steff", table.KindFloat},
	{"koi_steff_err1", table.KindFloat},
	{"koi_steff_err2", table.KindFloat},
	{"koi_slogg", table.KindFloat},
	{"koi_slogg_err1", table.KindFloat},
	{"koi_slogg_err2", table.KindFloat},
	{"koi_srad", table.KindFloat},
	{"koi_srad_err1", table.KindFloat},
	{"koi_srad_err2", table.KindFloat},
	{"ra", table.KindFloat},
	{"dec", table.KindFloat},
	{"koi_kepmag", table.KindFloat},
}

// flexibleInt names int64 columns that also accept float64, which is what a blank
// cell or a CSV round trip turns them into.
var flexibleInt = map[string]struct{}{
	"koi_tce_plnt_num": {},
}

// Validate checks that t has exactly the KOI column set with the declared kinds.
// When requireLabel is false the label column must be absent.
func Validate(t *table.Table, requireLabel bool) error {
	return validate(t, KOI, requireLabel)
}

func validate(t *table.Table, fields []Field, requireLabel bool) error {
	if !requireLabel && t.Has(domain.ColumnDisposition) {
		return reject(fmt.Errorf("prediction file must not contain %q", domain.ColumnDisposition))
	}

	expected := make(map[string]table.Kind, len(fields))
	for _, f := range fields {
		if f.Name == domain.ColumnDisposition && !requireLabel {
			continue
		}
		expected[f.Name] = f.Kind
	}

	var missing, extra []string
	for name := range expected {
		if !t.Has(name) {
			missing = append(missing, name)
		}
	}
	for _, name := range t.Columns() {
		if _, ok := expected[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(missing) > 0 || len(extra) > 0 {
		sort.Strings(missing)
		sort.Strings(extra)
		return reject(fmt.Errorf("invalid schema: missing=[%s] unexpected=[%s]",
			strings.Join(missing, ","), strings.Join(extra, ",")))
	}

	for _, f := range fields {
		want, ok := expected[f.Name]
		if !ok {
			continue
		}
		col, _ := t.Column(f.Name)
		if col.Kind == want {
			continue
		}
		if _, flex := flexibleInt[f.Name]; flex && col.Kind == table.KindFloat {
			continue
		}
		return reject(fmt.Errorf("invalid dtype for %s: expected %s, got %s", f.Name, want, col.Kind))
	}
	return nil
}

func reject(err error) error {
	return domain.WrapError(domain.ErrSchemaMismatch, "validate schema", err)
}
