package worker

import (
	"testing"

	"documine/internal/domain/valueobject"

	"github.com/stretchr/testify/assert"
)

func TestDefaultStageWeights_SumTo100(t *testing.T) {
	assert.Equal(t, 100, DefaultStageWeights().Total())
}

func TestStageWeights_Overall(t *testing.T) {
	weights := DefaultStageWeights()

	tests := []struct {
		name         string
		stage        valueobject.JobStage
		stagePercent int
		want         int
	}{
		{"download start", valueobject.JobStageDownloading, 0, 0},
		{"download done", valueobject.JobStageDownloading, 100, 10},
		{"parsing halfway", valueobject.JobStageParsing, 50, 30},
		{"parsing done", valueobject.JobStageParsing, 100, 50},
		{"chunking done", valueobject.JobStageChunking, 100, 65},
		{"embedding halfway", valueobject.JobStageEmbedding, 50, 77},
		{"analyzing done", valueobject.JobStageAnalyzing, 100, 100},
		{"over-range clamps", valueobject.JobStageAnalyzing, 150, 100},
		{"negative clamps", valueobject.JobStageDownloading, -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, weights.Overall(tt.stage, tt.stagePercent))
		})
	}
}

func TestStageWeights_OverallIsMonotonicAcrossStages(t *testing.T) {
	weights := DefaultStageWeights()

	previous := 0
	for _, stage := range valueobject.WorkStages() {
		entry := weights.Overall(stage, 0)
		exit := weights.Overall(stage, 100)
		assert.GreaterOrEqual(t, entry, previous, "stage %s entry", stage)
		assert.GreaterOrEqual(t, exit, entry, "stage %s exit", stage)
		previous = exit
	}
	assert.Equal(t, 100, previous)
}
