package valueobject

import "fmt"

// DocumentStatus represents the lifecycle status of a document. It mirrors
// the terminal or active state of the document's most recent processing
// job.
type DocumentStatus string

// Document status constants.
const (
	DocumentStatusUploaded   DocumentStatus = "uploaded"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusReady      DocumentStatus = "ready"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// validDocumentStatuses contains all valid document statuses.
var validDocumentStatuses = map[DocumentStatus]bool{
	DocumentStatusUploaded:   true,
	DocumentStatusProcessing: true,
	DocumentStatusReady:      true,
	DocumentStatusFailed:     true,
}

// NewDocumentStatus creates a new DocumentStatus with validation.
func NewDocumentStatus(status string) (DocumentStatus, error) {
	s := DocumentStatus(status)
	if !validDocumentStatuses[s] {
		return "", fmt.Errorf("invalid document status: %s", status)
	}
	return s, nil
}

// String returns the string representation of the status.
func (s DocumentStatus) String() string {
	return string(s)
}

// CanTransitionTo returns true if the status can transition to the target status.
func (s DocumentStatus) CanTransitionTo(target DocumentStatus) bool {
	transitions := map[DocumentStatus][]DocumentStatus{
		DocumentStatusUploaded: {
			DocumentStatusProcessing,
			DocumentStatusFailed,
		},
		DocumentStatusProcessing: {
			DocumentStatusReady,
			DocumentStatusFailed,
		},
		// A failed document returns to processing when its job is retried.
		DocumentStatusFailed: {
			DocumentStatusProcessing,
		},
		DocumentStatusReady: {},
	}

	validTransitions, exists := transitions[s]
	if !exists {
		return false
	}

	for _, validTarget := range validTransitions {
		if target == validTarget {
			return true
		}
	}
	return false
}

// AllDocumentStatuses returns all valid document statuses.
func AllDocumentStatuses() []DocumentStatus {
	statuses := make([]DocumentStatus, 0, len(validDocumentStatuses))
	for status := range validDocumentStatuses {
		statuses = append(statuses, status)
	}
	return statuses
}
