package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/koi-classifier/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrSchemaMismatch),
		domain.IsKind(err, domain.ErrDataFormat),
		domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrOTPInvalid):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrPredictionNotFound),
		domain.IsKind(err, domain.ErrDatasetNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrLogFormat):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrModelNotReady),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
