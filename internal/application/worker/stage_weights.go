package worker

import "documine/internal/domain/valueobject"

// StageWeights maps each work stage to its share of the overall progress
// percentage. Weights are non-uniform because parsing dominates wall-clock
// time for typical insurance documents.
type StageWeights map[valueobject.JobStage]int

// DefaultStageWeights returns the production weighting. The values sum to
// 100.
func DefaultStageWeights() StageWeights {
	return StageWeights{
		valueobject.JobStageDownloading: 10,
		valueobject.JobStageParsing:     40,
		valueobject.JobStageChunking:    15,
		valueobject.JobStageEmbedding:   25,
		valueobject.JobStageAnalyzing:   10,
	}
}

// Total returns the sum of all weights.
func (w StageWeights) Total() int {
	total := 0
	for _, weight := range w {
		total += weight
	}
	return total
}

// Overall maps a stage's 0-100 sub-progress onto the overall job
// percentage: the cumulative weight of all earlier stages plus the
// weighted share of the current one.
func (w StageWeights) Overall(stage valueobject.JobStage, stagePercent int) int {
	if stagePercent < 0 {
		stagePercent = 0
	}
	if stagePercent > 100 {
		stagePercent = 100
	}

	cumulative := 0
	for _, earlier := range valueobject.WorkStages() {
		if !earlier.Before(stage) {
			break
		}
		cumulative += w[earlier]
	}

	total := w.Total()
	if total == 0 {
		return 0
	}
	overall := (cumulative*100 + w[stage]*stagePercent) / total
	if overall > 100 {
		overall = 100
	}
	return overall
}
