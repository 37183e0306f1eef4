// Package web provides the HTTP handlers for the pipeline dashboard API.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/kyletaylored/datadog-data-jobs/pkg/eventbus"
	"github.com/kyletaylored/datadog-data-jobs/pkg/events"
	"github.com/kyletaylored/datadog-data-jobs/pkg/models"
	"github.com/kyletaylored/datadog-data-jobs/pkg/persistence"
	"github.com/kyletaylored/datadog-data-jobs/pkg/runner"
	"github.com/kyletaylored/datadog-data-jobs/pkg/tracker"
)

type APIHandlers struct {
	tracker   *tracker.Tracker
	eventBus  eventbus.EventBus
	validator *validator.Validate
	logger    *slog.Logger
}

func NewAPIHandlers(
	t *tracker.Tracker,
	eventBus eventbus.EventBus,
	validator *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		tracker:   t,
		eventBus:  eventBus,
		validator: validator,
		logger:    logger.With("module", "web"),
	}
}

func (h *APIHandlers) CreatePipeline(c fiber.Ctx) error {
	var req CreatePipelineRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	pipeline, err := h.tracker.CreatePipeline(c.Context(), req.Name, req.Description)
	if err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pipeline)
}

func (h *APIHandlers) GetPipelines(c fiber.Ctx) error {
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		return badRequest(c, "Invalid offset parameter")
	}

	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return badRequest(c, "Invalid limit parameter")
	}

	pipelines, err := h.tracker.ListPipelines(c.Context(), offset, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"pipelines": pipelines,
		"count":     len(pipelines),
	})
}

func (h *APIHandlers) GetPipeline(c fiber.Ctx) error {
	id, err := pipelineID(c)
	if err != nil {
		return badRequest(c, "Invalid pipeline ID")
	}

	pipeline, err := h.tracker.GetPipeline(c.Context(), id)
	if err != nil {
		return handleTrackerError(c, err)
	}

	return c.JSON(pipeline)
}

func (h *APIHandlers) GetPipelineStages(c fiber.Ctx) error {
	id, err := pipelineID(c)
	if err != nil {
		return badRequest(c, "Invalid pipeline ID")
	}

	stages, err := h.tracker.GetStages(c.Context(), id)
	if err != nil {
		return handleTrackerError(c, err)
	}

	return c.JSON(fiber.Map{
		"pipeline_id": id,
		"stages":      stages,
	})
}

// GetPipelineStatus serves the dashboard poll: the run and its stage rows
// in one payload.
func (h *APIHandlers) GetPipelineStatus(c fiber.Ctx) error {
	id, err := pipelineID(c)
	if err != nil {
		return badRequest(c, "Invalid pipeline ID")
	}

	pipeline, err := h.tracker.GetPipeline(c.Context(), id)
	if err != nil {
		return handleTrackerError(c, err)
	}

	stages, err := h.tracker.GetStages(c.Context(), id)
	if err != nil {
		return handleTrackerError(c, err)
	}

	return c.JSON(PipelineStatusResponse{
		Pipeline: pipeline,
		Stages:   stages,
	})
}

// TriggerPipeline asks a worker to execute the flow for an existing run.
func (h *APIHandlers) TriggerPipeline(c fiber.Ctx) error {
	id, err := pipelineID(c)
	if err != nil {
		return badRequest(c, "Invalid pipeline ID")
	}

	recordCount := runner.DefaultRecordCount

	if recordsStr := c.Query("records"); recordsStr != "" {
		recordCount, err = strconv.Atoi(recordsStr)
		if err != nil || recordCount <= 0 {
			return badRequest(c, "Invalid records parameter")
		}
	}

	pipeline, err := h.tracker.GetPipeline(c.Context(), id)
	if err != nil {
		return handleTrackerError(c, err)
	}

	event := events.PipelineTriggered{
		BaseEvent:   events.NewBaseEvent(events.PipelineTriggeredEvent, pipeline.ID),
		RecordCount: recordCount,
	}

	err = h.eventBus.Publish(c.Context(), strconv.FormatInt(pipeline.ID, 10), event)
	if err != nil {
		return internalError(c, err)
	}

	h.logger.InfoContext(c.Context(), "Pipeline triggered",
		"pipeline_id", pipeline.ID,
		"record_count", recordCount,
	)

	return c.Status(fiber.StatusAccepted).JSON(TriggerResponse{
		PipelineID:  pipeline.ID,
		RecordCount: recordCount,
		Status:      string(pipeline.Status),
	})
}

// StatusUpdate applies one status report posted over HTTP.
func (h *APIHandlers) StatusUpdate(c fiber.Ctx) error {
	var req StatusUpdateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	update := tracker.StatusUpdate{
		StageName:        models.StageName(req.StageName),
		Status:           models.PipelineStatus(req.Status),
		Message:          req.ErrorMessage,
		RecordsProcessed: req.RecordsProcessed,
	}

	err := h.tracker.UpdateStatus(c.Context(), req.PipelineID, update)
	if err != nil {
		if errors.Is(err, tracker.ErrInvalidStatus) || errors.Is(err, persistence.ErrInvalidStageName) {
			return badRequest(c, err.Error())
		}

		return handleTrackerError(c, err)
	}

	return c.JSON(fiber.Map{
		"pipeline_id": req.PipelineID,
		"updated":     true,
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeCheck, ok := h.tracker.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Data jobs API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Data jobs API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func pipelineID(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

func queryInt(c fiber.Ctx, name string, fallback int) (int, error) {
	value := c.Query(name)
	if value == "" {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return parsed, nil
}
