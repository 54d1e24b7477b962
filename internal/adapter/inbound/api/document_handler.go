package api

import (
	"encoding/json"
	"net/http"

	"documine/internal/application/dto"
	"documine/internal/port/inbound"

	"github.com/google/uuid"
)

// DocumentHandler handles document registration, status reads, retries, and
// queue summaries.
type DocumentHandler struct {
	service      inbound.DocumentService
	errorHandler ErrorHandler
}

// NewDocumentHandler creates a DocumentHandler.
func NewDocumentHandler(service inbound.DocumentService, errorHandler ErrorHandler) *DocumentHandler {
	return &DocumentHandler{service: service, errorHandler: errorHandler}
}

// RegisterDocument handles POST /documents.
func (h *DocumentHandler) RegisterDocument(w http.ResponseWriter, r *http.Request) {
	var request dto.RegisterDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.errorHandler.HandleValidationError(w, r, NewValidationError("body", "invalid JSON payload"))
		return
	}
	if request.Name == "" {
		h.errorHandler.HandleValidationError(w, r, NewValidationError("name", "name is required"))
		return
	}
	if request.StorageLocation == "" {
		h.errorHandler.HandleValidationError(w, r, NewValidationError("storage_location", "storage_location is required"))
		return
	}
	if request.TenantID == uuid.Nil {
		h.errorHandler.HandleValidationError(w, r, NewValidationError("tenant_id", "tenant_id is required"))
		return
	}

	response, err := h.service.RegisterDocument(r.Context(), request)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusAccepted, response)
}

// GetDocument handles GET /documents/{id}.
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID, ok := h.parseID(w, r)
	if !ok {
		return
	}

	response, err := h.service.GetDocument(r.Context(), documentID)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, response)
}

// GetJob handles GET /documents/{id}/job.
func (h *DocumentHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	documentID, ok := h.parseID(w, r)
	if !ok {
		return
	}

	snapshot, err := h.service.GetJobSnapshot(r.Context(), documentID)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, snapshot)
}

// RetryDocument handles POST /documents/{id}/retry.
func (h *DocumentHandler) RetryDocument(w http.ResponseWriter, r *http.Request) {
	documentID, ok := h.parseID(w, r)
	if !ok {
		return
	}

	response, err := h.service.RetryDocument(r.Context(), documentID)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusAccepted, response)
}

// GetQueueSummary handles GET /queue/summary with an optional job_id query
// parameter.
func (h *DocumentHandler) GetQueueSummary(w http.ResponseWriter, r *http.Request) {
	var jobID *uuid.UUID
	if raw := r.URL.Query().Get("job_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.errorHandler.HandleValidationError(w, r, NewValidationError("job_id", "invalid job ID"))
			return
		}
		jobID = &parsed
	}

	summary, err := h.service.QueueSummary(r.Context(), jobID)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}
	_ = WriteJSON(w, http.StatusOK, summary)
}

func (h *DocumentHandler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	documentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, NewValidationError("id", "invalid document ID"))
		return uuid.Nil, false
	}
	return documentID, true
}
