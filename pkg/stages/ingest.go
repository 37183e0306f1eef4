package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

// Ingestor reads a generated data file back into an in-memory batch and
// validates every record at the boundary.
type Ingestor struct {
	tracker   *tracker.Tracker
	validator *validator.Validate
}

func NewIngestor(t *tracker.Tracker) *Ingestor {
	return &Ingestor{
		tracker:   t,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Run loads and validates the batch at inputFile, records the input handle
// on the run, and returns the batch.
func (i *Ingestor) Run(ctx context.Context, logger *slog.Logger, pipelineID int64, inputFile string) ([]models.Record, error) {
	logger.InfoContext(ctx, "Ingesting data", "pipeline_id", pipelineID, "file", inputFile)

	err := begin(ctx, i.tracker, pipelineID, models.StageDataIngestion,
		fmt.Sprintf("Ingesting data from %s", filepath.Base(inputFile)))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, NewStageError(models.StageDataIngestion, KindTransient,
			fmt.Errorf("failed to read input file: %w", err))
	}

	var records []models.Record

	err = json.Unmarshal(data, &records)
	if err != nil {
		return nil, NewStageError(models.StageDataIngestion, KindValidation,
			fmt.Errorf("failed to parse input file: %w", err))
	}

	for idx := range records {
		err = i.validator.Struct(&records[idx])
		if err != nil {
			return nil, NewStageError(models.StageDataIngestion, KindValidation,
				fmt.Errorf("invalid record at index %d: %w", idx, err))
		}
	}

	err = i.tracker.SetInputFile(ctx, pipelineID, filepath.Base(inputFile))
	if err != nil {
		return nil, NewStageError(models.StageDataIngestion, statusErrorKind(err),
			fmt.Errorf("failed to record input file: %w", err))
	}

	err = complete(ctx, i.tracker, pipelineID, models.StageDataIngestion,
		fmt.Sprintf("Successfully ingested %d records", len(records)), nil)
	if err != nil {
		return nil, err
	}

	return records, nil
}
