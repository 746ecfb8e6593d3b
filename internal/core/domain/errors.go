package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSchemaMismatch     = errors.New("schema mismatch")
	ErrDataFormat         = errors.New("data format error")
	ErrInvalidInput       = errors.New("invalid input")
	ErrModelNotReady      = errors.New("model artifacts not available")
	ErrPredictionNotFound = errors.New("prediction not found")
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrLogFormat          = errors.New("prediction log has no identifier column")
	ErrOTPInvalid         = errors.New("invalid or expired otp")
	ErrTemporary          = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
