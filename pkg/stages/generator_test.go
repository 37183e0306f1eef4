package stages

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRecords_Shape(t *testing.T) {
	now := time.Now().UTC()
	records := GenerateRecords(50, 42, now)
	require.Len(t, records, 50)

	for i, record := range records {
		assert.Equal(t, i, record.ID)
		assert.Equal(t, fmt.Sprintf("Item %d", i), record.Name)
		assert.Contains(t, recordCategories, record.Category)
		assert.GreaterOrEqual(t, record.Value, 10.0)
		assert.LessOrEqual(t, record.Value, 1000.0)
		assert.GreaterOrEqual(t, record.Quantity, 1)
		assert.LessOrEqual(t, record.Quantity, 100)
		assert.False(t, record.CreatedAt.After(now))
		assert.False(t, record.CreatedAt.Before(now.AddDate(0, 0, -30)))
	}
}

func TestGenerateRecords_DeterministicForSeed(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	first := GenerateRecords(10, 7, now)
	second := GenerateRecords(10, 7, now)

	assert.Equal(t, first, second)
}

func TestGenerateRecords_DifferentSeedsDiffer(t *testing.T) {
	now := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	first := GenerateRecords(20, 1, now)
	second := GenerateRecords(20, 2, now)

	assert.NotEqual(t, first, second)
}

func TestGenerateRecords_Empty(t *testing.T) {
	records := GenerateRecords(0, 1, time.Now())
	assert.Empty(t, records)
}
