// Package events defines event types and structures for pipeline run
// lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries all pipeline lifecycle events.
const Topic = "datajobs.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// PipelineTriggeredEvent asks a worker to execute the five-stage flow
	// for one run.
	PipelineTriggeredEvent EventType = "pipeline.triggered"

	// PipelineFinishedEvent reports a run that reached completed.
	PipelineFinishedEvent EventType = "pipeline.finished"

	// PipelineFailedEvent reports a run that reached failed.
	PipelineFailedEvent EventType = "pipeline.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	PipelineID int64          `json:"pipeline_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// PipelineTriggered is published by the API (or the trigger CLI) when a run
// is requested.
type PipelineTriggered struct {
	BaseEvent

	RecordCount int `json:"record_count"`
}

func (p PipelineTriggered) GetType() EventType {
	return PipelineTriggeredEvent
}

// PipelineFinished is published by the worker after the export stage
// completes the run.
type PipelineFinished struct {
	BaseEvent

	OutputFile       string        `json:"output_file,omitempty"`
	RecordsProcessed int           `json:"records_processed"`
	Duration         time.Duration `json:"duration"`
}

func (p PipelineFinished) GetType() EventType {
	return PipelineFinishedEvent
}

// PipelineFailed is published by the worker when a stage fails after its
// retries are exhausted.
type PipelineFailed struct {
	BaseEvent

	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (p PipelineFailed) GetType() EventType {
	return PipelineFailedEvent
}

func NewBaseEvent(eventType EventType, pipelineID int64) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		PipelineID: pipelineID,
		Metadata:   make(map[string]any),
	}
}
