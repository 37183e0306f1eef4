package runner

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence/sqlite"
	"github.com/kyletaylored/datadog-data-jobs/pkg/stages"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

func newTestRunner(t *testing.T) (*Runner, *tracker.Tracker, string) {
	t.Helper()

	ctx := context.Background()
	dataDir := t.TempDir()

	p, err := sqlite.NewPersistence(ctx, slog.Default(), filepath.Join(dataDir, "test.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		err := p.Close(ctx)
		if err != nil {
			t.Logf("Failed to close persistence: %v", err)
		}
	})

	pipelineTracker := tracker.New(p, slog.Default())

	r := New(pipelineTracker, Config{
		InputDir:  filepath.Join(dataDir, "input"),
		OutputDir: filepath.Join(dataDir, "output"),
		Seed:      42,
	})
	disableStageDelays(r)

	return r, pipelineTracker, dataDir
}

func TestRunner_Run_EndToEnd(t *testing.T) {
	ctx := context.Background()
	r, pipelineTracker, _ := newTestRunner(t)

	pipeline, err := pipelineTracker.CreatePipeline(ctx, "End to End", "")
	require.NoError(t, err)

	result, err := r.Run(ctx, slog.Default(), pipeline.ID, 10)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 10, result.RecordsProcessed)

	// The exported payload carries every derived field.
	data, err := os.ReadFile(result.OutputFile)
	require.NoError(t, err)

	var payload stages.ExportPayload

	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, pipeline.ID, payload.PipelineID)
	assert.Equal(t, 10, payload.RecordCount)
	require.Len(t, payload.Data, 10)

	for i, record := range payload.Data {
		assert.Equal(t, i, record.ID)
		assert.NotEmpty(t, record.PricingTier)
		assert.Positive(t, record.DiscountFactor)
		assert.Positive(t, record.CategoryAvgValue)
		assert.Equal(t, "spark", record.ProcessedBy)
		assert.Equal(t, "dbt", record.TransformedBy)
		assert.InDelta(t, record.Value*float64(record.Quantity), record.TotalValue, 0.001)
	}

	// The run itself is completed with all five stage rows.
	updated, err := pipelineTracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusCompleted, updated.Status)
	assert.Equal(t, 10, updated.RecordsProcessed)
	assert.NotNil(t, updated.CompletedAt)
	assert.NotNil(t, updated.InputFile)
	assert.NotNil(t, updated.OutputFile)

	stageRows, err := pipelineTracker.GetStages(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stageRows, len(models.StageSequence))

	for i, stage := range stageRows {
		assert.Equal(t, models.StageSequence[i], stage.StageName)
		assert.Equal(t, models.PipelineStatusCompleted, stage.Status)
		assert.NotNil(t, stage.StartedAt)
		assert.NotNil(t, stage.CompletedAt)
	}
}

func TestRunner_Run_DeterministicForSeed(t *testing.T) {
	ctx := context.Background()

	firstRunner, firstTracker, _ := newTestRunner(t)
	secondRunner, secondTracker, _ := newTestRunner(t)

	firstPipeline, err := firstTracker.CreatePipeline(ctx, "First", "")
	require.NoError(t, err)

	secondPipeline, err := secondTracker.CreatePipeline(ctx, "Second", "")
	require.NoError(t, err)

	firstResult, err := firstRunner.Run(ctx, slog.Default(), firstPipeline.ID, 10)
	require.NoError(t, err)

	secondResult, err := secondRunner.Run(ctx, slog.Default(), secondPipeline.ID, 10)
	require.NoError(t, err)

	firstPayload := readPayload(t, firstResult.OutputFile)
	secondPayload := readPayload(t, secondResult.OutputFile)

	require.Len(t, firstPayload.Data, 10)

	for i := range firstPayload.Data {
		assert.Equal(t, firstPayload.Data[i].Category, secondPayload.Data[i].Category)
		assert.InDelta(t, firstPayload.Data[i].Value, secondPayload.Data[i].Value, 0.001)
		assert.Equal(t, firstPayload.Data[i].Quantity, secondPayload.Data[i].Quantity)
	}
}

func TestRunner_Run_UnknownPipeline(t *testing.T) {
	r, _, _ := newTestRunner(t)

	_, err := r.Run(context.Background(), slog.Default(), 9999, 10)
	require.Error(t, err)
}

func TestRunner_Run_DefaultsRecordCount(t *testing.T) {
	ctx := context.Background()
	r, pipelineTracker, _ := newTestRunner(t)

	pipeline, err := pipelineTracker.CreatePipeline(ctx, "Defaulted", "")
	require.NoError(t, err)

	result, err := r.Run(ctx, slog.Default(), pipeline.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultRecordCount, result.RecordsProcessed)
}

func TestRunner_StageFailure_RecordedOnceAndStopsRun(t *testing.T) {
	ctx := context.Background()
	r, pipelineTracker, _ := newTestRunner(t)

	pipeline, err := pipelineTracker.CreatePipeline(ctx, "Failing", "")
	require.NoError(t, err)

	err = r.tracker.UpdateStatus(ctx, pipeline.ID, tracker.StatusUpdate{
		Status: models.PipelineStatusRunning,
	})
	require.NoError(t, err)

	// Drive the ingestion stage against a file that does not exist; the
	// retry budget is spent and the failure recorded exactly once.
	missing := filepath.Join(t.TempDir(), "missing.json")

	err = r.runStage(ctx, slog.Default(), pipeline.ID, models.StageDataIngestion, func(ctx context.Context) error {
		_, runErr := r.ingestor.Run(ctx, slog.Default(), pipeline.ID, missing)

		return runErr
	})
	require.Error(t, err)

	updated, err := pipelineTracker.GetPipeline(ctx, pipeline.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusFailed, updated.Status)
	assert.NotNil(t, updated.ErrorMessage)

	// Only the failed stage has a row; later stages were never invoked.
	stageRows, err := pipelineTracker.GetStages(ctx, pipeline.ID)
	require.NoError(t, err)
	require.Len(t, stageRows, 1)
	assert.Equal(t, models.StageDataIngestion, stageRows[0].StageName)
	assert.Equal(t, models.PipelineStatusFailed, stageRows[0].Status)
	assert.NotNil(t, stageRows[0].ErrorMessage)
}

func readPayload(t *testing.T, path string) stages.ExportPayload {
	t.Helper()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var payload stages.ExportPayload

	require.NoError(t, json.Unmarshal(data, &payload))

	return payload
}

// disableStageDelays removes the simulated processing sleeps and retry
// delays so tests run fast.
func disableStageDelays(r *Runner) {
	noSleep := func(time.Duration) {}

	r.spark.Sleep = noSleep
	r.dbt.Sleep = noSleep

	for name, policy := range r.policies {
		policy.Delay = time.Millisecond
		r.policies[name] = policy
	}
}
