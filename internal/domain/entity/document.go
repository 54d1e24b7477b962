package entity

import (
	"time"

	"documine/internal/domain/valueobject"

	"github.com/google/uuid"
)

// Document represents an uploaded file awaiting or having undergone
// processing. Its status is always consistent with the most recent terminal
// or active state of its processing job: a document is never ready without a
// completed job and never processing without an active one.
type Document struct {
	id              uuid.UUID
	tenantID        uuid.UUID
	uploaderID      uuid.UUID
	name            string
	storageLocation string
	status          valueobject.DocumentStatus
	pageCount       *int
	metadata        map[string]string
	createdAt       time.Time
	updatedAt       time.Time
}

// NewDocument creates a new Document entity in uploaded status.
func NewDocument(tenantID, uploaderID uuid.UUID, name, storageLocation string) (*Document, error) {
	if name == "" {
		return nil, NewDomainError("document name cannot be empty", "INVALID_DOCUMENT_NAME")
	}
	if storageLocation == "" {
		return nil, NewDomainError("document storage location cannot be empty", "INVALID_STORAGE_LOCATION")
	}

	now := time.Now()
	return &Document{
		id:              uuid.New(),
		tenantID:        tenantID,
		uploaderID:      uploaderID,
		name:            name,
		storageLocation: storageLocation,
		status:          valueobject.DocumentStatusUploaded,
		metadata:        make(map[string]string),
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

// RestoreDocument creates a Document entity from stored data.
func RestoreDocument(
	id uuid.UUID,
	tenantID uuid.UUID,
	uploaderID uuid.UUID,
	name string,
	storageLocation string,
	status valueobject.DocumentStatus,
	pageCount *int,
	metadata map[string]string,
	createdAt time.Time,
	updatedAt time.Time,
) *Document {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	return &Document{
		id:              id,
		tenantID:        tenantID,
		uploaderID:      uploaderID,
		name:            name,
		storageLocation: storageLocation,
		status:          status,
		pageCount:       pageCount,
		metadata:        metadata,
		createdAt:       createdAt,
		updatedAt:       updatedAt,
	}
}

// ID returns the document ID.
func (d *Document) ID() uuid.UUID {
	return d.id
}

// TenantID returns the owning tenant's ID.
func (d *Document) TenantID() uuid.UUID {
	return d.tenantID
}

// UploaderID returns the uploading user's ID.
func (d *Document) UploaderID() uuid.UUID {
	return d.uploaderID
}

// Name returns the document display name.
func (d *Document) Name() string {
	return d.name
}

// StorageLocation returns the object-storage location of the source file.
func (d *Document) StorageLocation() string {
	return d.storageLocation
}

// Status returns the current document status.
func (d *Document) Status() valueobject.DocumentStatus {
	return d.status
}

// PageCount returns the parsed page count, or nil before parsing.
func (d *Document) PageCount() *int {
	return d.pageCount
}

// Metadata returns the structured metadata extracted during analysis.
func (d *Document) Metadata() map[string]string {
	return d.metadata
}

// CreatedAt returns the creation timestamp.
func (d *Document) CreatedAt() time.Time {
	return d.createdAt
}

// UpdatedAt returns the last update timestamp.
func (d *Document) UpdatedAt() time.Time {
	return d.updatedAt
}

// MarkProcessing transitions the document into processing.
func (d *Document) MarkProcessing() error {
	if !d.status.CanTransitionTo(valueobject.DocumentStatusProcessing) {
		return NewDomainError("cannot start processing document in current status", "INVALID_STATUS_TRANSITION")
	}
	d.status = valueobject.DocumentStatusProcessing
	d.updatedAt = time.Now()
	return nil
}

// MarkReady transitions the document into ready with the parsed page count.
func (d *Document) MarkReady(pageCount int) error {
	if !d.status.CanTransitionTo(valueobject.DocumentStatusReady) {
		return NewDomainError("cannot mark document ready in current status", "INVALID_STATUS_TRANSITION")
	}
	d.status = valueobject.DocumentStatusReady
	d.pageCount = &pageCount
	d.updatedAt = time.Now()
	return nil
}

// MarkFailed transitions the document into failed.
func (d *Document) MarkFailed() error {
	if !d.status.CanTransitionTo(valueobject.DocumentStatusFailed) {
		return NewDomainError("cannot mark document failed in current status", "INVALID_STATUS_TRANSITION")
	}
	d.status = valueobject.DocumentStatusFailed
	d.updatedAt = time.Now()
	return nil
}

// Rename updates the document display name.
func (d *Document) Rename(name string) error {
	if name == "" {
		return NewDomainError("document name cannot be empty", "INVALID_DOCUMENT_NAME")
	}
	d.name = name
	d.updatedAt = time.Now()
	return nil
}

// SetMetadata replaces the analysis metadata.
func (d *Document) SetMetadata(metadata map[string]string) {
	if metadata == nil {
		metadata = make(map[string]string)
	}
	d.metadata = metadata
	d.updatedAt = time.Now()
}

// Equal compares two Document entities by identity.
func (d *Document) Equal(other *Document) bool {
	if other == nil {
		return false
	}
	return d.id == other.id
}
