// Package web provides the HTTP surface of the macro automation engine:
// trigger submission and execution inspection and control.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/workstack/macrod/pkg/engine"
	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
)

type APIHandlers struct {
	engine    *engine.Engine
	validator *validator.Validate
}

func NewAPIHandlers(eng *engine.Engine, validate *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    eng,
		validator: validate,
	}
}

// SubmitTrigger accepts a trigger event and dispatches it synchronously.
func (h *APIHandlers) SubmitTrigger(c fiber.Ctx) error {
	var req SubmitTriggerRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	event := models.NewTriggerEvent(models.TriggerEventType(req.Type), req.Source, req.Payload)

	result, err := h.engine.SubmitTrigger(c.Context(), event)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(result)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	execution, err := h.engine.Execution(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(execution)
}

func (h *APIHandlers) GetMacroExecutions(c fiber.Ctx) error {
	macroID := c.Params("id")
	if macroID == "" {
		return badRequest(c, "Macro ID is required")
	}

	filter, err := h.parseExecutionFilter(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	executions, err := h.engine.Executions(c.Context(), macroID, *filter)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"executions":  executions,
		"total_count": len(executions),
	})
}

func (h *APIHandlers) parseExecutionFilter(c fiber.Ctx) (*persistence.ExecutionFilter, error) {
	filter := &persistence.ExecutionFilter{}

	if statusStr := c.Query("status"); statusStr != "" {
		filter.Status = models.ExecutionStatus(statusStr)
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		filter.Limit = limit
	}

	return filter, nil
}

func (h *APIHandlers) CancelExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	if err := h.engine.CancelExecution(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) ResumeExecution(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Execution ID is required")
	}

	var req ResumeExecutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.engine.ResumeExecution(c.Context(), id, req.Input); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusAccepted)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Macrod API is healthy"
	httpStatus := http.StatusOK

	if err := h.engine.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = err.Error()
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
