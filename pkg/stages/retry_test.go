package stages

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
)

func TestRetryPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, Delay: time.Millisecond}

	attempts := 0

	err := policy.Do(context.Background(), slog.Default(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return NewStageError(models.StageDataIngestion, KindTransient, errors.New("flaky read"))
		}

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetryPolicy_ExhaustsBudget(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond}

	attempts := 0
	failure := NewStageError(models.StageDataGeneration, KindTransient, errors.New("disk full"))

	err := policy.Do(context.Background(), slog.Default(), func(ctx context.Context) error {
		attempts++

		return failure
	})

	require.Error(t, err)
	assert.Equal(t, 2, attempts)

	var stageErr *StageError

	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, models.StageDataGeneration, stageErr.Stage)
}

func TestRetryPolicy_DoesNotRetryNotFound(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 5, Delay: time.Millisecond}

	attempts := 0

	err := policy.Do(context.Background(), slog.Default(), func(ctx context.Context) error {
		attempts++

		return NewStageError(models.StageDataIngestion, KindNotFound, persistence.ErrPipelineNotFound)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	policy := RetryPolicy{}

	attempts := 0

	err := policy.Do(context.Background(), slog.Default(), func(ctx context.Context) error {
		attempts++

		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryPolicy_StopsOnContextCancel(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 10, Delay: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.Do(ctx, slog.Default(), func(ctx context.Context) error {
		return NewStageError(models.StageDataGeneration, KindTransient, errors.New("boom"))
	})

	require.ErrorIs(t, err, context.Canceled)
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(errors.New("plain error")))
	assert.True(t, Retryable(NewStageError(models.StageDataExport, KindTransient, errors.New("x"))))
	assert.True(t, Retryable(NewStageError(models.StageDataExport, KindValidation, errors.New("x"))))
	assert.False(t, Retryable(NewStageError(models.StageDataExport, KindNotFound, errors.New("x"))))
	assert.False(t, Retryable(persistence.ErrPipelineNotFound))
}
