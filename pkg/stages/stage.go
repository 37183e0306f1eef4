package stages

import (
	"context"
	"fmt"

	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

// begin reports the stage as running before any work happens.
func begin(ctx context.Context, t *tracker.Tracker, pipelineID int64, stage models.StageName, message string) error {
	err := t.UpdateStatus(ctx, pipelineID, tracker.StatusUpdate{
		StageName: stage,
		Status:    models.PipelineStatusRunning,
		Message:   message,
	})
	if err != nil {
		return NewStageError(stage, statusErrorKind(err), fmt.Errorf("failed to report stage start: %w", err))
	}

	return nil
}

// complete reports the stage as completed with a summary message.
func complete(ctx context.Context, t *tracker.Tracker, pipelineID int64, stage models.StageName, summary string, recordsProcessed *int) error {
	err := t.UpdateStatus(ctx, pipelineID, tracker.StatusUpdate{
		StageName:        stage,
		Status:           models.PipelineStatusCompleted,
		Message:          summary,
		RecordsProcessed: recordsProcessed,
	})
	if err != nil {
		return NewStageError(stage, statusErrorKind(err), fmt.Errorf("failed to report stage completion: %w", err))
	}

	return nil
}

// statusErrorKind separates caller bugs (unknown pipeline) from store
// faults worth retrying.
func statusErrorKind(err error) ErrorKind {
	if persistence.IsPipelineNotFound(err) {
		return KindNotFound
	}

	return KindTransient
}
