package dto

import (
	"time"

	"documine/internal/port/outbound"

	"github.com/google/uuid"
)

// RegisterDocumentRequest registers an uploaded file for processing. The
// upload itself happens directly against object storage; this request hands
// the stored location to the pipeline.
type RegisterDocumentRequest struct {
	TenantID        uuid.UUID         `json:"tenant_id"`
	UploaderID      uuid.UUID         `json:"uploader_id"`
	Name            string            `json:"name"`
	StorageLocation string            `json:"storage_location"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// DocumentResponse is the API representation of a document.
type DocumentResponse struct {
	ID              uuid.UUID             `json:"id"`
	TenantID        uuid.UUID             `json:"tenant_id"`
	UploaderID      uuid.UUID             `json:"uploader_id"`
	Name            string                `json:"name"`
	StorageLocation string                `json:"storage_location"`
	Status          string                `json:"status"`
	PageCount       *int                  `json:"page_count,omitempty"`
	Metadata        map[string]string     `json:"metadata,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	Job             *outbound.JobSnapshot `json:"job,omitempty"`
}

// RetryDocumentResponse is returned by the operator retry action.
type RetryDocumentResponse struct {
	Job outbound.JobSnapshot `json:"job"`
}
