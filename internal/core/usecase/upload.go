package usecase

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
)

// readUpload parses an uploaded survey file by its extension.
func readUpload(filename string, body io.Reader) (*table.Table, error) {
	var (
		t   *table.Table
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv":
		t, err = table.ReadCSV(body)
	case ".xlsx":
		t, err = table.ReadXLSX(body)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "read upload",
			fmt.Errorf("unsupported file type %q: only .csv and .xlsx files are allowed", ext))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrDataFormat, "read upload", err)
	}
	return t, nil
}
