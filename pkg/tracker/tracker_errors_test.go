package tracker_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kyletaylored/datadog-data-jobs/pkg/mocks"
	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

func TestTracker_CreatePipeline_StoreFailure(t *testing.T) {
	persistenceMock := &mocks.MockPersistence{}
	persistenceMock.On("CreatePipeline", mock.Anything, mock.Anything).
		Return(nil, errors.New("disk full"))

	pipelineTracker := tracker.New(persistenceMock, slog.Default())

	_, err := pipelineTracker.CreatePipeline(context.Background(), "Doomed", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	persistenceMock.AssertExpectations(t)
}

func TestTracker_UpdateStatus_UpsertFailure(t *testing.T) {
	persistenceMock := &mocks.MockPersistence{}
	persistenceMock.On("PipelineByID", mock.Anything, int64(1)).
		Return(&models.Pipeline{ID: 1, Name: "Run", Status: models.PipelineStatusRunning}, nil)
	persistenceMock.On("UpsertStage", mock.Anything, mock.Anything).
		Return(errors.New("constraint violation"))

	pipelineTracker := tracker.New(persistenceMock, slog.Default())

	err := pipelineTracker.UpdateStatus(context.Background(), 1, tracker.StatusUpdate{
		StageName: models.StageDataGeneration,
		Status:    models.PipelineStatusRunning,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "constraint violation")
	persistenceMock.AssertExpectations(t)
}

func TestTracker_UpdateStatus_PipelineUpdateFailure(t *testing.T) {
	persistenceMock := &mocks.MockPersistence{}
	persistenceMock.On("PipelineByID", mock.Anything, int64(2)).
		Return(&models.Pipeline{ID: 2, Name: "Run", Status: models.PipelineStatusPending}, nil)
	persistenceMock.On("UpdatePipeline", mock.Anything, mock.Anything).
		Return(errors.New("connection reset"))

	pipelineTracker := tracker.New(persistenceMock, slog.Default())

	err := pipelineTracker.UpdateStatus(context.Background(), 2, tracker.StatusUpdate{
		Status: models.PipelineStatusRunning,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	persistenceMock.AssertExpectations(t)
}
