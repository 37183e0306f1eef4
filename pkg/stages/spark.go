package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

const (
	sparkDelayPerRecord = 10 * time.Millisecond
	sparkDelayCap       = 5 * time.Second
)

// SparkProcessor simulates a Spark job over the batch: a processing delay
// proportional to batch size, then a pure per-record enrichment.
type SparkProcessor struct {
	tracker *tracker.Tracker
	now     func() time.Time

	// Sleep implements the simulated processing delay. Replaceable for
	// tests.
	Sleep func(time.Duration)
}

func NewSparkProcessor(t *tracker.Tracker) *SparkProcessor {
	return &SparkProcessor{
		tracker: t,
		now:     time.Now,
		Sleep:   time.Sleep,
	}
}

// Run enriches every record with its total value and processing marker and
// returns the new batch. The input batch is not mutated.
func (p *SparkProcessor) Run(ctx context.Context, logger *slog.Logger, pipelineID int64, records []models.Record) ([]models.Record, error) {
	logger.InfoContext(ctx, "Processing batch", "pipeline_id", pipelineID, "record_count", len(records))

	err := begin(ctx, p.tracker, pipelineID, models.StageSparkProcessing,
		fmt.Sprintf("Processing %d records with Spark", len(records)))
	if err != nil {
		return nil, err
	}

	p.Sleep(min(time.Duration(len(records))*sparkDelayPerRecord, sparkDelayCap))

	processedAt := p.now().UTC()
	processed := make([]models.Record, len(records))

	var totalSum float64

	for idx, record := range records {
		record.TotalValue = record.Value * float64(record.Quantity)
		record.ProcessedBy = "spark"
		record.ProcessedAt = &processedAt
		processed[idx] = record

		totalSum += record.TotalValue
	}

	if len(processed) > 0 {
		logger.InfoContext(ctx, "Batch processed",
			"pipeline_id", pipelineID,
			"record_count", len(processed),
			"avg_total_value", totalSum/float64(len(processed)),
		)
	}

	err = complete(ctx, p.tracker, pipelineID, models.StageSparkProcessing,
		fmt.Sprintf("Successfully processed %d records", len(processed)), nil)
	if err != nil {
		return nil, err
	}

	return processed, nil
}
