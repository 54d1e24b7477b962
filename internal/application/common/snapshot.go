// Package common holds application-layer helpers shared between the API
// services and the worker.
package common

import (
	"documine/internal/domain/classify"
	"documine/internal/domain/entity"
	"documine/internal/port/outbound"
)

// BuildJobSnapshot converts a job entity into its wire snapshot. The
// suggested action is recovered from the classifier rule set by error code,
// so snapshots rebuilt from persisted state carry the same guidance as live
// events.
func BuildJobSnapshot(job *entity.ProcessingJob, classifier *classify.Classifier) outbound.JobSnapshot {
	snapshot := outbound.JobSnapshot{
		JobID:       job.ID(),
		DocumentID:  job.DocumentID(),
		Status:      job.Status().String(),
		Stage:       job.Stage().String(),
		Progress:    job.Progress(),
		RetryCount:  job.RetryCount(),
		CreatedAt:   job.CreatedAt(),
		StartedAt:   job.StartedAt(),
		CompletedAt: job.CompletedAt(),
		UpdatedAt:   job.LastProgressAt(),
	}

	if job.ErrorCode() != nil {
		snapshot.ErrorCode = *job.ErrorCode()
		if classifier != nil {
			snapshot.SuggestedAction = classifier.ActionForCode(*job.ErrorCode())
		}
	}
	if job.ErrorCategory() != nil {
		snapshot.ErrorCategory = job.ErrorCategory().String()
	}
	if job.ErrorMessage() != nil {
		snapshot.ErrorMessage = *job.ErrorMessage()
	}

	return snapshot
}
