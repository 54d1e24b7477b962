package dto

import "time"

// QueueSummaryResponse describes the pending queue for the operator and the
// waiting UI. The estimated wait for a job is its position multiplied by
// the average historical processing duration.
type QueueSummaryResponse struct {
	TotalPending     int           `json:"total_pending"`
	AverageDuration  time.Duration `json:"-"`
	AverageDurationS float64       `json:"average_duration_seconds"`
	Position         int           `json:"position,omitempty"`
	EstimatedWaitS   float64       `json:"estimated_wait_seconds,omitempty"`
}
