package app

import (
	"errors"
	"fmt"
	"net/http"

	"coachcatalog/api/internal/auth"
	"coachcatalog/api/internal/catalog"
	"coachcatalog/api/internal/export"
	"coachcatalog/api/internal/media"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrMissingToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	switch {
	case errors.Is(err, export.ErrUnsupportedFormat):
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Formato de plantilla no soportado.", nil
	case errors.Is(err, media.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "VIDEO_TOO_LARGE", err.Error(), nil
	case errors.Is(err, media.ErrUnsupportedURL):
		return http.StatusBadRequest, "INVALID_VIDEO_URL", err.Error(), nil
	}

	switch catalog.KindOf(err) {
	case catalog.KindSchema:
		var schema *catalog.SchemaError
		errors.As(err, &schema)
		return http.StatusUnprocessableEntity, "SCHEMA_MISMATCH", schema.Error(), schema.Details()
	case catalog.KindEmpty:
		return http.StatusUnprocessableEntity, "EMPTY_FILE", err.Error(), nil
	case catalog.KindParse:
		return http.StatusBadRequest, "UNREADABLE_FILE", err.Error(), nil
	case catalog.KindQuota:
		var quota *catalog.QuotaError
		errors.As(err, &quota)
		return http.StatusConflict, "QUOTA_EXCEEDED", quota.Error(), map[string]int{
			"limit": quota.Limit, "current": quota.Current, "requested": quota.Requested,
		}
	case catalog.KindPersistence:
		return http.StatusBadGateway, "PERSISTENCE_FAILED", err.Error(), nil
	case catalog.KindNotFound:
		if errors.Is(err, catalog.ErrBatchUnknown) {
			return http.StatusNotFound, "BATCH_NOT_FOUND", catalog.ErrBatchUnknown.Error(), nil
		}
		return http.StatusNotFound, "NOT_FOUND", "Elemento no encontrado.", nil
	case catalog.KindValidation:
		return http.StatusBadRequest, "VALIDATION_FAILED", err.Error(), nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
