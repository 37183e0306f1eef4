package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

// ExportPayload is the shape of the exported results file.
type ExportPayload struct {
	PipelineID  int64           `json:"pipeline_id"`
	GeneratedAt time.Time       `json:"generated_at"`
	RecordCount int             `json:"record_count"`
	Data        []models.Record `json:"data"`
}

// Exporter writes the transformed batch to a timestamp-named results file
// under the output directory and records the handle on the run.
type Exporter struct {
	tracker   *tracker.Tracker
	outputDir string
	now       func() time.Time
}

func NewExporter(t *tracker.Tracker, outputDir string) *Exporter {
	return &Exporter{
		tracker:   t,
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Run exports the batch and returns a handle to the written file. The
// completion report carries the final records-processed count for the run.
func (e *Exporter) Run(ctx context.Context, logger *slog.Logger, pipelineID int64, records []models.Record) (string, error) {
	logger.InfoContext(ctx, "Exporting batch", "pipeline_id", pipelineID, "record_count", len(records))

	err := begin(ctx, e.tracker, pipelineID, models.StageDataExport,
		fmt.Sprintf("Exporting %d records", len(records)))
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(e.outputDir, 0o755)
	if err != nil {
		return "", NewStageError(models.StageDataExport, KindTransient,
			fmt.Errorf("failed to create output directory: %w", err))
	}

	payload := ExportPayload{
		PipelineID:  pipelineID,
		GeneratedAt: e.now().UTC(),
		RecordCount: len(records),
		Data:        records,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", NewStageError(models.StageDataExport, KindTransient,
			fmt.Errorf("failed to encode results: %w", err))
	}

	filename := fmt.Sprintf("pipeline_%d_results_%s.json", pipelineID, e.now().Format("20060102_150405"))
	path := filepath.Join(e.outputDir, filename)

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return "", NewStageError(models.StageDataExport, KindTransient,
			fmt.Errorf("failed to write results file: %w", err))
	}

	err = e.tracker.SetOutputFile(ctx, pipelineID, filename)
	if err != nil {
		return "", NewStageError(models.StageDataExport, statusErrorKind(err),
			fmt.Errorf("failed to record output file: %w", err))
	}

	logger.InfoContext(ctx, "Results exported", "pipeline_id", pipelineID, "file", path)

	recordCount := len(records)

	err = complete(ctx, e.tracker, pipelineID, models.StageDataExport,
		fmt.Sprintf("Data exported to %s", filename), &recordCount)
	if err != nil {
		return "", err
	}

	return path, nil
}
