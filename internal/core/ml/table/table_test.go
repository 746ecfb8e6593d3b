package table

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestReadCSVInfersKinds(t *testing.T) {
	input := "id,score,name,flag,blank\n1,0.5,a,1,\n2,,b,0,\n3,1.5,c,1,\n"
	tbl, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if tbl.Rows() != 3 {
		t.Fatalf("expected 3 rows, got %d", tbl.Rows())
	}

	want := map[string]Kind{
		"id":    KindInt,
		"score": KindFloat,
		"name":  KindObject,
		"flag":  KindInt,
		"blank": KindFloat,
	}
	for name, kind := range want {
		col, ok := tbl.Column(name)
		if !ok {
			t.Fatalf("missing column %s", name)
		}
		if col.Kind != kind {
			t.Fatalf("column %s: expected %s, got %s", name, kind, col.Kind)
		}
	}

	score, _ := tbl.Column("score")
	if !math.IsNaN(score.Values[1]) || !score.Missing(1) {
		t.Fatalf("expected blank score to be missing, got %v", score.Values[1])
	}
}

func TestReadCSVRejectsInfiniteNumbers(t *testing.T) {
	for _, cell := range []string{"inf", "-Inf", "Infinity", "+INF"} {
		_, err := ReadCSV(strings.NewReader("kepid,koi_model_snr\n1,12.5\n2," + cell + "\n"))
		if !errors.Is(err, ErrNonFinite) {
			t.Fatalf("cell %q: expected ErrNonFinite, got %v", cell, err)
		}
		if !strings.Contains(err.Error(), `"koi_model_snr" row 2`) {
			t.Fatalf("error should name the column and row, got %v", err)
		}
	}

	tbl, err := ReadCSV(strings.NewReader("name\ninfinity pool\ninf\n"))
	if err != nil {
		t.Fatalf("text columns may hold the word inf, got %v", err)
	}
	if col, _ := tbl.Column("name"); col.Kind != KindObject {
		t.Fatalf("expected object column, got %s", col.Kind)
	}
}

func TestReadCSVRejectsDuplicateHeader(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("a,a\n1,2\n")); err == nil {
		t.Fatalf("expected duplicate column error")
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("")); err != ErrEmptyFile {
		t.Fatalf("expected ErrEmptyFile, got %v", err)
	}
}

func TestConcatUnionsColumnsAndReinfersKinds(t *testing.T) {
	a, err := ReadCSV(strings.NewReader("x,y\n1,2\n"))
	if err != nil {
		t.Fatalf("ReadCSV(a) error = %v", err)
	}
	b, err := ReadCSV(strings.NewReader("y,z\n3.5,q\n"))
	if err != nil {
		t.Fatalf("ReadCSV(b) error = %v", err)
	}

	merged := Concat(a, b)
	if got := strings.Join(merged.Columns(), ","); got != "x,y,z" {
		t.Fatalf("unexpected columns %s", got)
	}
	if merged.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", merged.Rows())
	}
	x, _ := merged.Column("x")
	if x.Kind != KindFloat || !x.Missing(1) {
		t.Fatalf("expected x to become float with a missing cell, got %s", x.Kind)
	}
	y, _ := merged.Column("y")
	if y.Kind != KindFloat || y.Values[1] != 3.5 {
		t.Fatalf("unexpected y column: %+v", y)
	}
}

func TestFilterHeadAndDrop(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader("a,b\n1,x\n2,y\n3,z\n"))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	filtered := tbl.Filter([]bool{true, false, true})
	a, _ := filtered.Column("a")
	if filtered.Rows() != 2 || a.Values[1] != 3 {
		t.Fatalf("unexpected filter result: rows=%d values=%v", filtered.Rows(), a.Values)
	}

	if head := tbl.Head(1); head.Rows() != 1 {
		t.Fatalf("expected 1 row, got %d", head.Rows())
	}

	tbl.Drop("b", "missing")
	if tbl.Has("b") || !tbl.Has("a") {
		t.Fatalf("unexpected columns after drop: %v", tbl.Columns())
	}
}

func TestWriteCSVPreservesSourceText(t *testing.T) {
	input := "a,b\n1.0,x y\n,z\n"
	tbl, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, tbl); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if buf.String() != input {
		t.Fatalf("expected %q, got %q", input, buf.String())
	}
}

func TestReadXLSXFirstSheet(t *testing.T) {
	book := excelize.NewFile()
	defer book.Close()
	sheet := book.GetSheetName(0)
	if err := book.SetSheetRow(sheet, "A1", &[]any{"kepid", "koi_period"}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	if err := book.SetSheetRow(sheet, "A2", &[]any{10797460, 9.48}); err != nil {
		t.Fatalf("SetSheetRow() error = %v", err)
	}
	buf, err := book.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	tbl, err := ReadXLSX(buf)
	if err != nil {
		t.Fatalf("ReadXLSX() error = %v", err)
	}
	kepid, ok := tbl.Column("kepid")
	if !ok || kepid.Kind != KindInt || kepid.Values[0] != 10797460 {
		t.Fatalf("unexpected kepid column: %+v", kepid)
	}
	period, _ := tbl.Column("koi_period")
	if period.Kind != KindFloat || period.Values[0] != 9.48 {
		t.Fatalf("unexpected period column: %+v", period)
	}
}
