package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrEmptyFile = errors.New("file has no header row")
	ErrNonFinite = errors.New("non-finite numeric value")
)

// FromRecords builds a table from a header and row records.
func FromRecords(header []string, records [][]string) (*Table, error) {
	seen := make(map[string]struct{}, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("duplicate column %q", name)
		}
		seen[name] = struct{}{}
		header[i] = name
	}

	t := New(len(records))
	for c, name := range header {
		raw := make([]string, len(records))
		for r, record := range records {
			if c < len(record) {
				raw[r] = record[c]
			}
		}
		col := NewColumn(name, raw)
		if row := col.firstInfinite(); row >= 0 {
			return nil, fmt.Errorf("%w: column %q row %d holds %q", ErrNonFinite, name, row+1, raw[row])
		}
		if err := t.Add(col); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header = append([]string(nil), header...)

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	return FromRecords(header, records)
}

// ReadXLSX reads the first sheet of a workbook; its first row is the header.
func ReadXLSX(r io.Reader) (*Table, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyFile
	}
	return FromRecords(rows[0], rows[1:])
}

func WriteCSV(w io.Writer, t *Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.columns))
	for r := 0; r < t.rows; r++ {
		for c, col := range t.columns {
			record[c] = col.Raw[r]
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", r, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
