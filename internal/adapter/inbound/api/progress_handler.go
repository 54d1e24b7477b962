package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"documine/internal/port/inbound"

	"github.com/google/uuid"
)

// ProgressHandler streams job progress over Server-Sent Events. SSE fits the
// one-way, browser-consumable nature of progress updates; clients reconnect
// and get the persisted snapshot first, so missed events are harmless.
type ProgressHandler struct {
	service      inbound.ProgressStreamService
	errorHandler ErrorHandler
}

// NewProgressHandler creates a ProgressHandler.
func NewProgressHandler(service inbound.ProgressStreamService, errorHandler ErrorHandler) *ProgressHandler {
	return &ProgressHandler{service: service, errorHandler: errorHandler}
}

// StreamProgress handles GET /documents/{id}/progress.
func (h *ProgressHandler) StreamProgress(w http.ResponseWriter, r *http.Request) {
	documentID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.errorHandler.HandleValidationError(w, r, NewValidationError("id", "invalid document ID"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.errorHandler.HandleServiceError(w, r, fmt.Errorf("streaming unsupported by connection"))
		return
	}

	events, err := h.service.StreamProgress(r.Context(), documentID)
	if err != nil {
		h.errorHandler.HandleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot, open := <-events:
			if !open {
				return
			}
			payload, marshalErr := json.Marshal(snapshot)
			if marshalErr != nil {
				continue
			}
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", payload)
			flusher.Flush()

			// Completion and non-transient failures end the stream. A
			// transient failure is about to be re-enqueued, so keep
			// streaming through the retry.
			if snapshot.Status == "completed" {
				return
			}
			if snapshot.Status == "failed" && snapshot.ErrorCategory != "transient" {
				return
			}
		}
	}
}
