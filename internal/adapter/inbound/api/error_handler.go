package api

import (
	"errors"
	"net/http"

	"documine/internal/application/common/slogger"
	"documine/internal/application/dto"
	"documine/internal/application/service"
	"documine/internal/domain/entity"
)

// ErrorHandler defines methods for translating errors into HTTP responses.
type ErrorHandler interface {
	HandleValidationError(w http.ResponseWriter, r *http.Request, err error)
	HandleServiceError(w http.ResponseWriter, r *http.Request, err error)
}

// errorConfig maps a sentinel error onto its HTTP rendering.
type errorConfig struct {
	Status  int
	Code    string
	Message string
}

// DefaultErrorHandler implements ErrorHandler with standard responses.
type DefaultErrorHandler struct {
	configs map[error]errorConfig
}

// NewDefaultErrorHandler creates an error handler with the service-layer
// sentinel mappings.
func NewDefaultErrorHandler() ErrorHandler {
	return &DefaultErrorHandler{
		configs: map[error]errorConfig{
			service.ErrDocumentNotFound: {
				Status:  http.StatusNotFound,
				Code:    "DOCUMENT_NOT_FOUND",
				Message: "Document not found",
			},
			service.ErrJobNotFound: {
				Status:  http.StatusNotFound,
				Code:    "JOB_NOT_FOUND",
				Message: "No processing job exists for this document",
			},
			service.ErrRetryNotAllowed: {
				Status:  http.StatusConflict,
				Code:    "RETRY_NOT_ALLOWED",
				Message: "The job is not in a retryable state",
			},
		},
	}
}

// HandleValidationError writes a 400 with the validation detail.
func (h *DefaultErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, err error) {
	slogger.Warn(r.Context(), "Request validation failed", slogger.Fields{
		"path":  r.URL.Path,
		"error": err.Error(),
	})

	response := dto.ErrorResponse{
		Error:   "VALIDATION_ERROR",
		Message: "Request validation failed",
		Details: err.Error(),
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		response.Details = validationErr.Message
	}

	_ = WriteJSON(w, http.StatusBadRequest, response)
}

// HandleServiceError maps known sentinels and domain errors onto statuses;
// anything unrecognized becomes an opaque 500.
func (h *DefaultErrorHandler) HandleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	for sentinel, cfg := range h.configs {
		if errors.Is(err, sentinel) {
			_ = WriteJSON(w, cfg.Status, dto.ErrorResponse{
				Error:   cfg.Code,
				Message: cfg.Message,
			})
			return
		}
	}

	var domainErr *entity.DomainError
	if errors.As(err, &domainErr) {
		_ = WriteJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
			Error:   domainErr.Code(),
			Message: domainErr.Error(),
		})
		return
	}

	slogger.ErrorWithError(r.Context(), err, "Unhandled service error", slogger.Fields{
		"path": r.URL.Path,
	})
	_ = WriteJSON(w, http.StatusInternalServerError, dto.ErrorResponse{
		Error:   "INTERNAL_ERROR",
		Message: "An internal error occurred",
	})
}
