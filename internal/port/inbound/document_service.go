package inbound

import (
	"context"

	"documine/internal/application/dto"
	"documine/internal/port/outbound"

	"github.com/google/uuid"
)

// DocumentService defines the inbound port for the document-facing API.
type DocumentService interface {
	// RegisterDocument stores a newly uploaded document and enqueues its
	// processing job. Enqueueing is idempotent: a duplicate trigger for a
	// document with an active job returns the existing job.
	RegisterDocument(ctx context.Context, request dto.RegisterDocumentRequest) (*dto.DocumentResponse, error)
	GetDocument(ctx context.Context, documentID uuid.UUID) (*dto.DocumentResponse, error)
	// GetJobSnapshot returns the latest persisted job state for a document,
	// including queue position when pending.
	GetJobSnapshot(ctx context.Context, documentID uuid.UUID) (*outbound.JobSnapshot, error)
	// RetryDocument re-enqueues a failed job on the same row. Only allowed
	// when the failure is retry-eligible or user-actionable.
	RetryDocument(ctx context.Context, documentID uuid.UUID) (*dto.RetryDocumentResponse, error)
	// QueueSummary reports pending totals and, when jobID is non-nil, the
	// position and estimated wait for that job.
	QueueSummary(ctx context.Context, jobID *uuid.UUID) (*dto.QueueSummaryResponse, error)
}

// ProgressStreamService defines the inbound port for live progress
// subscriptions.
type ProgressStreamService interface {
	// StreamProgress emits the latest persisted snapshot first, then live
	// updates, until the context is cancelled.
	StreamProgress(ctx context.Context, documentID uuid.UUID) (<-chan outbound.JobSnapshot, error)
}

// HealthService defines the inbound port for health reporting.
type HealthService interface {
	Check(ctx context.Context) HealthStatus
}

// HealthStatus reports service liveness and dependency state.
type HealthStatus struct {
	Status       string            `json:"status"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}
