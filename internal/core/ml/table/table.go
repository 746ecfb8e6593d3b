// Package table holds the columnar representation of uploaded survey files.
//
// Every column keeps the source text of its cells so a table can be written back
// unchanged, and numeric columns additionally carry parsed float64 values with NaN
// marking missing cells. Numeric transforms operate on Values only; Raw is never
// rewritten by them.
package table

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

type Kind int

const (
	KindInt Kind = iota
	KindFloat
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int64"
	case KindFloat:
		return "float64"
	default:
		return "object"
	}
}

func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

type Column struct {
	Name   string
	Kind   Kind
	Raw    []string
	Values []float64
}

func (c *Column) Len() int {
	return len(c.Raw)
}

// Missing reports whether the cell at row i holds no value.
func (c *Column) Missing(i int) bool {
	if c.Kind.Numeric() {
		return math.IsNaN(c.Values[i])
	}
	return isNA(c.Raw[i])
}

// firstInfinite returns the first row of a numeric column whose value is
// infinite, or -1.
func (c *Column) firstInfinite() int {
	if !c.Kind.Numeric() {
		return -1
	}
	for i, v := range c.Values {
		if math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind, Raw: append([]string(nil), c.Raw...)}
	if c.Values != nil {
		out.Values = append([]float64(nil), c.Values...)
	}
	return out
}

// NewColumn builds a column from cell text and infers its kind.
func NewColumn(name string, raw []string) *Column {
	col := &Column{Name: name, Raw: raw}
	col.Kind, col.Values = infer(raw)
	return col
}

// NewNumericColumn builds a float64 column from values; NaN marks missing cells.
func NewNumericColumn(name string, values []float64) *Column {
	raw := make([]string, len(values))
	for i, v := range values {
		if !math.IsNaN(v) {
			raw[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return &Column{Name: name, Kind: KindFloat, Raw: raw, Values: values}
}

type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

func New(rows int) *Table {
	return &Table{index: make(map[string]int), rows: rows}
}

func (t *Table) Rows() int {
	return t.rows
}

func (t *Table) Columns() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

func (t *Table) Column(name string) (*Column, bool) {
	idx, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[idx], true
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Add appends a column or replaces an existing column with the same name in place.
func (t *Table) Add(col *Column) error {
	if col.Len() != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", col.Name, col.Len(), t.rows)
	}
	if idx, ok := t.index[col.Name]; ok {
		t.columns[idx] = col
		return nil
	}
	t.index[col.Name] = len(t.columns)
	t.columns = append(t.columns, col)
	return nil
}

// Drop removes the named columns. Names that are not present are ignored.
func (t *Table) Drop(names ...string) {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	kept := t.columns[:0]
	for _, col := range t.columns {
		if _, ok := drop[col.Name]; ok {
			continue
		}
		kept = append(kept, col)
	}
	t.columns = kept
	t.reindex()
}

func (t *Table) Clone() *Table {
	out := New(t.rows)
	for _, col := range t.columns {
		out.columns = append(out.columns, col.clone())
	}
	out.reindex()
	return out
}

// Select returns a table holding only the named columns, in the given order.
func (t *Table) Select(names ...string) (*Table, error) {
	out := New(t.rows)
	for _, name := range names {
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("column %q not found", name)
		}
		if err := out.Add(col.clone()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Filter keeps the rows whose keep flag is set.
func (t *Table) Filter(keep []bool) *Table {
	rows := 0
	for _, k := range keep {
		if k {
			rows++
		}
	}
	out := New(rows)
	for _, col := range t.columns {
		next := &Column{Name: col.Name, Kind: col.Kind, Raw: make([]string, 0, rows)}
		if col.Values != nil {
			next.Values = make([]float64, 0, rows)
		}
		for i, k := range keep {
			if !k {
				continue
			}
			next.Raw = append(next.Raw, col.Raw[i])
			if col.Values != nil {
				next.Values = append(next.Values, col.Values[i])
			}
		}
		out.columns = append(out.columns, next)
	}
	out.reindex()
	return out
}

// Head returns the first n rows.
func (t *Table) Head(n int) *Table {
	if n >= t.rows {
		return t.Clone()
	}
	keep := make([]bool, t.rows)
	for i := 0; i < n; i++ {
		keep[i] = true
	}
	return t.Filter(keep)
}

// Concat appends the rows of b below a. The column set is the union of both, in
// first-seen order; cells absent from one side are left empty. Kinds are re-inferred.
func Concat(a, b *Table) *Table {
	names := a.Columns()
	for _, name := range b.Columns() {
		if !a.Has(name) {
			names = append(names, name)
		}
	}

	out := New(a.rows + b.rows)
	for _, name := range names {
		raw := make([]string, 0, a.rows+b.rows)
		raw = appendRaw(raw, a, name)
		raw = appendRaw(raw, b, name)
		out.columns = append(out.columns, NewColumn(name, raw))
	}
	out.reindex()
	return out
}

func appendRaw(dst []string, t *Table, name string) []string {
	col, ok := t.Column(name)
	if !ok {
		return append(dst, make([]string, t.rows)...)
	}
	return append(dst, col.Raw...)
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.columns))
	for i, col := range t.columns {
		t.index[col.Name] = i
	}
}

var naTokens = map[string]struct{}{
	"": {}, "NA": {}, "N/A": {}, "n/a": {}, "NaN": {}, "nan": {}, "-NaN": {}, "-nan": {},
	"null": {}, "NULL": {}, "None": {}, "<NA>": {}, "#N/A": {}, "#NA": {},
}

func isNA(cell string) bool {
	_, ok := naTokens[strings.TrimSpace(cell)]
	return ok
}

// infer mirrors the dtype rules of common dataframe CSV readers: a column with only
// integers and no blanks is int64, numbers with blanks (or only blanks) are float64,
// anything else is object.
func infer(raw []string) (Kind, []float64) {
	if len(raw) == 0 {
		return KindObject, nil
	}
	values := make([]float64, len(raw))
	allInt := true
	anyMissing := false

	for i, cell := range raw {
		if isNA(cell) {
			values[i] = math.NaN()
			anyMissing = true
			continue
		}
		text := strings.TrimSpace(cell)
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			values[i] = float64(n)
			continue
		}
		allInt = false
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return KindObject, nil
		}
		values[i] = f
	}

	if allInt && !anyMissing {
		return KindInt, values
	}
	return KindFloat, values
}
