package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/stats"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
	"github.com/kirillkom/koi-classifier/internal/core/ports"
)

// PreviewColumns are the dataset columns exposed by the preview, in order.
var PreviewColumns = []string{
	"kepoi_name",
	"koi_disposition",
	"koi_score",
	"koi_period",
	"koi_time0bk",
	"koi_impact",
	"koi_duration",
	"koi_depth",
	"koi_teq",
}

const iqrFactor = 1.5

type DatasetPreviewUseCase struct {
	dataset ports.DatasetStore
}

func NewDatasetPreviewUseCase(dataset ports.DatasetStore) *DatasetPreviewUseCase {
	return &DatasetPreviewUseCase{dataset: dataset}
}

// Preview returns the master dataset restricted to PreviewColumns with numeric
// gaps zero-filled and 1.5 IQR outliers removed. numRows 0 means all rows.
func (uc *DatasetPreviewUseCase) Preview(ctx context.Context, numRows int) (*domain.DatasetPreview, error) {
	if numRows < 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "preview dataset", fmt.Errorf("num_rows must be at least 1, got %d", numRows))
	}
	master, err := uc.dataset.Load(ctx)
	if err != nil {
		return nil, err
	}
	t, err := master.Select(PreviewColumns...)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDataFormat, "preview dataset", err)
	}

	keep := make([]bool, t.Rows())
	for i := range keep {
		keep[i] = true
	}
	for _, name := range PreviewColumns {
		col, _ := t.Column(name)
		if !col.Kind.Numeric() {
			continue
		}
		for i, v := range col.Values {
			if math.IsNaN(v) {
				col.Values[i] = 0
			}
		}
		lower, upper := iqrBounds(col.Values)
		for i, v := range col.Values {
			if v < lower || v > upper {
				keep[i] = false
			}
		}
	}
	t = t.Filter(keep)
	if numRows > 0 {
		t = t.Head(numRows)
	}

	data := make([]domain.PreviewRow, t.Rows())
	for i := range data {
		data[i] = previewRow(t, i)
	}
	return &domain.DatasetPreview{Data: data, Rows: len(data)}, nil
}

// iqrBounds computes the outlier fences of values from linearly interpolated quartiles.
func iqrBounds(values []float64) (lower, upper float64) {
	q1 := stats.Quantile(values, 0.25)
	q3 := stats.Quantile(values, 0.75)
	iqr := q3 - q1
	return q1 - iqrFactor*iqr, q3 + iqrFactor*iqr
}

func previewRow(t *table.Table, i int) domain.PreviewRow {
	row := make(domain.PreviewRow, len(PreviewColumns))
	for _, name := range PreviewColumns {
		col, _ := t.Column(name)
		switch {
		case col.Kind == table.KindInt:
			row[name] = int64(col.Values[i])
		case col.Kind.Numeric():
			row[name] = col.Values[i]
		case col.Missing(i):
			row[name] = nil
		default:
			row[name] = col.Raw[i]
		}
	}
	return row
}
