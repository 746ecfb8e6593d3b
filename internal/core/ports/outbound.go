package ports

import (
	"context"
	"time"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
	"github.com/kirillkom/koi-classifier/internal/core/ml/bundle"
	"github.com/kirillkom/koi-classifier/internal/core/ml/table"
)

// ArtifactStore persists artifact bundles. Save replaces the active bundle
// atomically; Load returns the active one.
type ArtifactStore interface {
	Save(ctx context.Context, b *bundle.Bundle) error
	Load(ctx context.Context) (*bundle.Bundle, error)
}

// DatasetStore holds the master training dataset.
type DatasetStore interface {
	Load(ctx context.Context) (*table.Table, error)
	Replace(ctx context.Context, t *table.Table) error
}

// PredictionLog is the append-only record of served predictions.
type PredictionLog interface {
	Append(ctx context.Context, predictions []domain.Prediction) error
	Latest(ctx context.Context, kepID int64) (*domain.Prediction, error)
}

// ModelEvents fans out retrain notifications between replicas.
type ModelEvents interface {
	PublishModelRetrained(ctx context.Context, runID string) error
	SubscribeModelRetrained(ctx context.Context, handler func(context.Context, string) error) error
}

type AnswerGenerator interface {
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// OTPStore keeps issued codes until they are consumed or expire.
type OTPStore interface {
	Issue(entry domain.OTPEntry, now time.Time) bool
	Consume(code, email string, now time.Time) bool
}
