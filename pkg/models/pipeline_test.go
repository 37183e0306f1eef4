package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPipelineStatus_IsTerminal(t *testing.T) {
	assert.False(t, PipelineStatusPending.IsTerminal())
	assert.False(t, PipelineStatusRunning.IsTerminal())
	assert.True(t, PipelineStatusCompleted.IsTerminal())
	assert.True(t, PipelineStatusFailed.IsTerminal())
}

func TestPipelineStatus_IsValid(t *testing.T) {
	assert.True(t, PipelineStatusPending.IsValid())
	assert.False(t, PipelineStatus("cancelled").IsValid())
	assert.False(t, PipelineStatus("").IsValid())
}

func TestStageName_Order(t *testing.T) {
	assert.Equal(t, 0, StageDataGeneration.Order())
	assert.Equal(t, 2, StageSparkProcessing.Order())
	assert.Equal(t, 4, StageDataExport.Order())
	assert.Equal(t, -1, StageName("Cleanup").Order())
}

func TestPipelineStage_DeriveExecutionTime(t *testing.T) {
	started := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	completed := started.Add(2500 * time.Millisecond)

	stage := PipelineStage{StartedAt: &started, CompletedAt: &completed}
	stage.DeriveExecutionTime()

	if assert.NotNil(t, stage.ExecutionTimeSeconds) {
		assert.InDelta(t, 2.5, *stage.ExecutionTimeSeconds, 0.001)
	}
}

func TestPipelineStage_DeriveExecutionTime_Incomplete(t *testing.T) {
	started := time.Now()

	stage := PipelineStage{StartedAt: &started}
	stage.DeriveExecutionTime()

	assert.Nil(t, stage.ExecutionTimeSeconds)
}
