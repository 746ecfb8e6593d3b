// Package inference applies an artifact bundle to unlabeled KOI tables.
package inference

import (
	"context"
	"errors"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/bundle"
	"github.com/kirillkom/koi-classifier/internal/core/ml/schema"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
	"github.com/kirillkom/koi-classifier/internal/core/ml/transform"
)

// Predict returns one disposition per row of t, in row order. Classes without a
// label come back as domain.DispositionUnknown.
func Predict(ctx context.Context, b *bundle.Bundle, t *table.Table) ([]domain.Disposition, error) {
	if b == nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "predict", errors.New("no trained model"))
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if err := schema.Validate(t, false); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	x, err := transform.Apply(t, b.Operators)
	if err != nil {
		return nil, err
	}
	classes, err := b.Model.Predict(x)
	if err != nil {
		return nil, domain.WrapError(domain.ErrModelNotReady, "predict", err)
	}

	out := make([]domain.Disposition, len(classes))
	for i, c := range classes {
		out[i] = domain.DecodeClass(c)
	}
	return out, nil
}
