package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

var recordCategories = []string{"A", "B", "C", "D"}

// Generator produces a batch of synthetic records and writes them to a
// timestamp-named file under the input directory.
type Generator struct {
	tracker  *tracker.Tracker
	inputDir string
	seed     int64
	now      func() time.Time
}

// NewGenerator creates a generator writing into inputDir. A non-zero seed
// makes the batch reproducible; zero seeds from the clock.
func NewGenerator(t *tracker.Tracker, inputDir string, seed int64) *Generator {
	return &Generator{
		tracker:  t,
		inputDir: inputDir,
		seed:     seed,
		now:      time.Now,
	}
}

// Run generates count records and returns a handle to the written file.
func (g *Generator) Run(ctx context.Context, logger *slog.Logger, pipelineID int64, count int) (string, error) {
	logger.InfoContext(ctx, "Generating sample data", "pipeline_id", pipelineID, "record_count", count)

	err := begin(ctx, g.tracker, pipelineID, models.StageDataGeneration, fmt.Sprintf("Generating %d records", count))
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(g.inputDir, 0o755)
	if err != nil {
		return "", NewStageError(models.StageDataGeneration, KindTransient,
			fmt.Errorf("failed to create input directory: %w", err))
	}

	seed := g.seed
	if seed == 0 {
		seed = g.now().UnixNano()
	}

	records := GenerateRecords(count, seed, g.now())

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", NewStageError(models.StageDataGeneration, KindTransient,
			fmt.Errorf("failed to encode records: %w", err))
	}

	filename := fmt.Sprintf("sample_data_%s.json", g.now().Format("20060102_150405"))
	path := filepath.Join(g.inputDir, filename)

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return "", NewStageError(models.StageDataGeneration, KindTransient,
			fmt.Errorf("failed to write data file: %w", err))
	}

	logger.InfoContext(ctx, "Generated data file", "pipeline_id", pipelineID, "file", path)

	err = complete(ctx, g.tracker, pipelineID, models.StageDataGeneration,
		fmt.Sprintf("Generated %d records to %s", count, filename), nil)
	if err != nil {
		return "", err
	}

	return path, nil
}

// GenerateRecords builds count synthetic records from a seeded source.
// Records are numbered from zero; creation timestamps fall within the past
// thirty days of now.
func GenerateRecords(count int, seed int64, now time.Time) []models.Record {
	rng := rand.New(rand.NewSource(seed))

	records := make([]models.Record, 0, count)
	for i := range count {
		value := 10 + rng.Float64()*990

		records = append(records, models.Record{
			ID:        i,
			Name:      fmt.Sprintf("Item %d", i),
			Category:  recordCategories[rng.Intn(len(recordCategories))],
			Value:     math.Round(value*100) / 100,
			Quantity:  1 + rng.Intn(100),
			IsActive:  rng.Intn(2) == 0,
			CreatedAt: now.AddDate(0, 0, -rng.Intn(31)),
		})
	}

	return records
}
