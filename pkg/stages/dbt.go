package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

const dbtDelay = 2 * time.Second

var discountFactors = map[string]float64{
	"A": 0.9,
	"B": 0.85,
	"C": 0.8,
}

const defaultDiscountFactor = 0.95

// DBTTransformer simulates a dbt model run: a fixed processing delay, then
// the pricing business rules applied per record plus a category-level
// aggregate over the batch.
type DBTTransformer struct {
	tracker *tracker.Tracker
	now     func() time.Time

	// Sleep implements the simulated processing delay. Replaceable for
	// tests.
	Sleep func(time.Duration)
}

func NewDBTTransformer(t *tracker.Tracker) *DBTTransformer {
	return &DBTTransformer{
		tracker: t,
		now:     time.Now,
		Sleep:   time.Sleep,
	}
}

// Run applies the pricing rules to every record and returns the new batch.
// The input batch is not mutated.
func (d *DBTTransformer) Run(ctx context.Context, logger *slog.Logger, pipelineID int64, records []models.Record) ([]models.Record, error) {
	logger.InfoContext(ctx, "Transforming batch", "pipeline_id", pipelineID, "record_count", len(records))

	err := begin(ctx, d.tracker, pipelineID, models.StageDBTTransformation, "Transforming data with dbt")
	if err != nil {
		return nil, err
	}

	d.Sleep(dbtDelay)

	transformed := TransformRecords(records, d.now().UTC())

	categories := make(map[string]struct{})
	for _, record := range transformed {
		categories[record.Category] = struct{}{}
	}

	logger.InfoContext(ctx, "Batch transformed",
		"pipeline_id", pipelineID,
		"record_count", len(transformed),
		"categories", len(categories),
	)

	err = complete(ctx, d.tracker, pipelineID, models.StageDBTTransformation,
		fmt.Sprintf("Successfully transformed %d records", len(transformed)), nil)
	if err != nil {
		return nil, err
	}

	return transformed, nil
}

// TransformRecords applies the pricing rules: discount factor and
// discounted value per category, pricing tier and high-value flag from the
// total value, and the category average computed over the whole batch once
// all per-record fields are set.
func TransformRecords(records []models.Record, transformedAt time.Time) []models.Record {
	transformed := make([]models.Record, len(records))

	categorySums := make(map[string]float64)
	categoryCounts := make(map[string]int)

	for idx, record := range records {
		factor, ok := discountFactors[record.Category]
		if !ok {
			factor = defaultDiscountFactor
		}

		record.DiscountFactor = factor
		record.DiscountedValue = record.TotalValue * factor
		record.PricingTier = PricingTier(record.TotalValue)

		highValue := record.TotalValue > 5000
		record.IsHighValue = &highValue

		record.TransformedBy = "dbt"
		record.TransformedAt = &transformedAt

		categorySums[record.Category] += record.TotalValue
		categoryCounts[record.Category]++

		transformed[idx] = record
	}

	for idx := range transformed {
		category := transformed[idx].Category
		transformed[idx].CategoryAvgValue = categorySums[category] / float64(categoryCounts[category])
	}

	return transformed
}

// PricingTier buckets a total value: above 5000 is premium, 1000 and above
// is standard, anything below is basic.
func PricingTier(totalValue float64) string {
	switch {
	case totalValue > 5000:
		return "premium"
	case totalValue >= 1000:
		return "standard"
	default:
		return "basic"
	}
}
