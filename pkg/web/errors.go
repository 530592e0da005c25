package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/workstack/macrod/pkg/services"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps the engine's error taxonomy onto problem+json
// responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsMacroBusy(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("concurrency_conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, services.ErrNotWaitingForInput):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("not_waiting_for_input").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrMacroNotFound):
		return notFound(c, "macro not found")

	case errors.Is(err, services.ErrExecutionNotFound):
		return notFound(c, "execution not found")

	default:
		return internalError(c, err)
	}
}
