package ports

import (
	"context"
	"io"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
)

// DatasetUploader is the inbound contract for labeled uploads that retrain the model.
type DatasetUploader interface {
	UploadAndRetrain(ctx context.Context, filename string, body io.Reader) (*domain.UploadResult, error)
}

// BatchPredictor classifies an unlabeled upload and records the predictions.
type BatchPredictor interface {
	PredictUpload(ctx context.Context, filename string, body io.Reader) (*domain.PredictionBatch, error)
}

// PredictionReader is the inbound read model for recorded predictions.
type PredictionReader interface {
	Lookup(ctx context.Context, kepID int64) (*domain.Prediction, error)
}

type DatasetPreviewer interface {
	Preview(ctx context.Context, numRows int) (*domain.DatasetPreview, error)
}

// ModelInspector reports the active artifact bundle.
type ModelInspector interface {
	ActiveModel() (*domain.ModelInfo, error)
}

type ChatService interface {
	Ask(ctx context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error)
}

// OTPService issues and verifies one-time codes sent by email.
type OTPService interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}
