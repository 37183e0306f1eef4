package tracker

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence/sqlite"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()

	ctx := context.Background()

	p, err := sqlite.NewPersistence(ctx, slog.Default(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		err := p.Close(ctx)
		if err != nil {
			t.Logf("Failed to close persistence: %v", err)
		}
	})

	return New(p, slog.Default())
}

func createRun(t *testing.T, tracker *Tracker) *models.Pipeline {
	t.Helper()

	pipeline, err := tracker.CreatePipeline(context.Background(), "Test Run", "tracker test")
	require.NoError(t, err)

	return pipeline
}

func TestTracker_CreatePipeline(t *testing.T) {
	tracker := newTracker(t)

	pipeline := createRun(t, tracker)
	assert.Positive(t, pipeline.ID)
	assert.Equal(t, models.PipelineStatusPending, pipeline.Status)
	assert.Equal(t, "Test Run", pipeline.Name)
	assert.False(t, pipeline.CreatedAt.IsZero())
}

func TestTracker_UpdateStatus_UnknownPipeline(t *testing.T) {
	tracker := newTracker(t)

	err := tracker.UpdateStatus(context.Background(), 9999, StatusUpdate{
		Status: models.PipelineStatusRunning,
	})

	require.ErrorIs(t, err, persistence.ErrPipelineNotFound)
}

func TestTracker_UpdateStatus_InvalidStatus(t *testing.T) {
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	err := tracker.UpdateStatus(context.Background(), pipeline.ID, StatusUpdate{
		Status: "cancelled",
	})

	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestTracker_UpdateStatus_InvalidStageName(t *testing.T) {
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	err := tracker.UpdateStatus(context.Background(), pipeline.ID, StatusUpdate{
		StageName: "Cleanup",
		Status:    models.PipelineStatusRunning,
	})

	require.ErrorIs(t, err, persistence.ErrInvalidStageName)
}

func TestTracker_FirstStageRunning_MovesPipelineToRunning(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageDataGeneration,
		Status:    models.PipelineStatusRunning,
	})
	require.NoError(t, err)

	updated, err := tracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusRunning, updated.Status)
}

func TestTracker_StartedAt_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageDataGeneration,
		Status:    models.PipelineStatusRunning,
	})
	require.NoError(t, err)

	stages, err := tracker.GetStages(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	require.NotNil(t, stages[0].StartedAt)

	firstStart := *stages[0].StartedAt

	// Re-entering at running, as a retry does, keeps the original start.
	err = tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageDataGeneration,
		Status:    models.PipelineStatusRunning,
	})
	require.NoError(t, err)

	stages, err = tracker.GetStages(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	require.NotNil(t, stages[0].StartedAt)
	assert.Equal(t, firstStart, *stages[0].StartedAt)
}

func TestTracker_OneRowPerStage(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	for range 3 {
		err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
			StageName: models.StageDataIngestion,
			Status:    models.PipelineStatusRunning,
		})
		require.NoError(t, err)
	}

	err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageDataIngestion,
		Status:    models.PipelineStatusCompleted,
	})
	require.NoError(t, err)

	stages, err := tracker.GetStages(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, models.PipelineStatusCompleted, stages[0].Status)
	assert.NotNil(t, stages[0].CompletedAt)
	assert.NotNil(t, stages[0].ExecutionTimeSeconds)
}

func TestTracker_StageFailure_PropagatesToPipeline(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageSparkProcessing,
		Status:    models.PipelineStatusFailed,
		Message:   "executor lost",
	})
	require.NoError(t, err)

	updated, err := tracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusFailed, updated.Status)
	assert.NotNil(t, updated.CompletedAt)

	if assert.NotNil(t, updated.ErrorMessage) {
		assert.Equal(t, "executor lost", *updated.ErrorMessage)
	}

	stages, err := tracker.GetStages(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stages, 1)

	if assert.NotNil(t, stages[0].ErrorMessage) {
		assert.Equal(t, "executor lost", *stages[0].ErrorMessage)
	}
}

func TestTracker_ExportCompletion_CompletesPipeline(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	recordCount := 500

	err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName:        models.StageDataExport,
		Status:           models.PipelineStatusCompleted,
		RecordsProcessed: &recordCount,
	})
	require.NoError(t, err)

	updated, err := tracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusCompleted, updated.Status)
	assert.Equal(t, 500, updated.RecordsProcessed)
	assert.NotNil(t, updated.CompletedAt)
}

func TestTracker_NonExportCompletion_DoesNotCompletePipeline(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageDataGeneration,
		Status:    models.PipelineStatusCompleted,
	})
	require.NoError(t, err)

	updated, err := tracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusPending, updated.Status)
}

func TestTracker_TerminalStatus_Absorbs(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageDataIngestion,
		Status:    models.PipelineStatusFailed,
		Message:   "parse error",
	})
	require.NoError(t, err)

	// A late completion report is accepted but never regresses the run.
	err = tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		Status: models.PipelineStatusRunning,
	})
	require.NoError(t, err)

	updated, err := tracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusFailed, updated.Status)

	if assert.NotNil(t, updated.ErrorMessage) {
		assert.Equal(t, "parse error", *updated.ErrorMessage)
	}
}

func TestTracker_FirstFailureMessageSticks(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageDataGeneration,
		Status:    models.PipelineStatusFailed,
		Message:   "first failure",
	})
	require.NoError(t, err)

	err = tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
		StageName: models.StageDataIngestion,
		Status:    models.PipelineStatusFailed,
		Message:   "second failure",
	})
	require.NoError(t, err)

	updated, err := tracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)

	if assert.NotNil(t, updated.ErrorMessage) {
		assert.Equal(t, "first failure", *updated.ErrorMessage)
	}
}

func TestTracker_GetStages_FixedSequenceOrder(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	// Report stages out of order.
	for _, name := range []models.StageName{
		models.StageDataExport,
		models.StageDataGeneration,
		models.StageSparkProcessing,
	} {
		err := tracker.UpdateStatus(ctx, pipeline.ID, StatusUpdate{
			StageName: name,
			Status:    models.PipelineStatusRunning,
		})
		require.NoError(t, err)
	}

	stages, err := tracker.GetStages(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stages, 3)

	assert.Equal(t, models.StageDataGeneration, stages[0].StageName)
	assert.Equal(t, models.StageSparkProcessing, stages[1].StageName)
	assert.Equal(t, models.StageDataExport, stages[2].StageName)
}

func TestTracker_GetStages_UnknownPipeline(t *testing.T) {
	tracker := newTracker(t)

	_, err := tracker.GetStages(context.Background(), 404)
	require.ErrorIs(t, err, persistence.ErrPipelineNotFound)
}

func TestTracker_ListPipelines_NewestFirst(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)

	first := createRun(t, tracker)
	second := createRun(t, tracker)

	pipelines, err := tracker.ListPipelines(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pipelines, 2)

	assert.Equal(t, second.ID, pipelines[0].ID)
	assert.Equal(t, first.ID, pipelines[1].ID)
}

func TestTracker_SetFiles(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t)
	pipeline := createRun(t, tracker)

	require.NoError(t, tracker.SetInputFile(ctx, pipeline.ID, "sample_data_20250801_100000.json"))
	require.NoError(t, tracker.SetOutputFile(ctx, pipeline.ID, "pipeline_1_results_20250801_100500.json"))

	updated, err := tracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)

	if assert.NotNil(t, updated.InputFile) {
		assert.Equal(t, "sample_data_20250801_100000.json", *updated.InputFile)
	}

	if assert.NotNil(t, updated.OutputFile) {
		assert.Equal(t, "pipeline_1_results_20250801_100500.json", *updated.OutputFile)
	}
}

func TestTracker_HealthCheck(t *testing.T) {
	tracker := newTracker(t)

	message, ok := tracker.HealthCheck(context.Background())
	assert.True(t, ok)
	assert.NotEmpty(t, message)
}
