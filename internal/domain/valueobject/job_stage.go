package valueobject

import "fmt"

// JobStage represents the pipeline stage a processing job is in. Stages
// advance strictly forward within an attempt; a retry resets to queued.
type JobStage string

// Job stage constants, in pipeline order.
const (
	JobStageQueued      JobStage = "queued"
	JobStageDownloading JobStage = "downloading"
	JobStageParsing     JobStage = "parsing"
	JobStageChunking    JobStage = "chunking"
	JobStageEmbedding   JobStage = "embedding"
	JobStageAnalyzing   JobStage = "analyzing"
	JobStageCompleted   JobStage = "completed"
)

// jobStageOrder defines the canonical stage ordering.
var jobStageOrder = []JobStage{
	JobStageQueued,
	JobStageDownloading,
	JobStageParsing,
	JobStageChunking,
	JobStageEmbedding,
	JobStageAnalyzing,
	JobStageCompleted,
}

// NewJobStage creates a new JobStage with validation.
func NewJobStage(stage string) (JobStage, error) {
	s := JobStage(stage)
	if s.Index() < 0 {
		return "", fmt.Errorf("invalid job stage: %s", stage)
	}
	return s, nil
}

// String returns the string representation of the stage.
func (s JobStage) String() string {
	return string(s)
}

// Index returns the stage's position in pipeline order, or -1 for an
// unknown stage.
func (s JobStage) Index() int {
	for i, stage := range jobStageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the stage that follows this one. Completed has no successor
// and returns itself.
func (s JobStage) Next() JobStage {
	i := s.Index()
	if i < 0 || i >= len(jobStageOrder)-1 {
		return s
	}
	return jobStageOrder[i+1]
}

// Before returns true if this stage comes before the other in pipeline
// order.
func (s JobStage) Before(other JobStage) bool {
	return s.Index() < other.Index()
}

// WorkStages returns the stages a worker actually executes, in order.
// Queued and completed are bookkeeping states, not work.
func WorkStages() []JobStage {
	return []JobStage{
		JobStageDownloading,
		JobStageParsing,
		JobStageChunking,
		JobStageEmbedding,
		JobStageAnalyzing,
	}
}

// AllJobStages returns every stage in pipeline order.
func AllJobStages() []JobStage {
	stages := make([]JobStage, len(jobStageOrder))
	copy(stages, jobStageOrder)
	return stages
}
