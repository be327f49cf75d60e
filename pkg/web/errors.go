package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/meetflow/meetflow/pkg/delivery"
	"github.com/meetflow/meetflow/pkg/persistence"
	"github.com/moogar0880/problems"
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

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleCoreError maps the core's sentinel errors onto problem responses.
func handleCoreError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsNotFound(err):
		return notFound(c, "conversation not found")
	case errors.Is(err, delivery.ErrJobNotFound):
		return notFound(c, "email job not found")
	case errors.Is(err, delivery.ErrJobFinished):
		return conflict(c, "email job already finished")
	case errors.Is(err, delivery.ErrJobNotRetryable):
		return conflict(c, "email job is not in a retryable state")
	case errors.Is(err, delivery.ErrRetriesExceeded):
		return conflict(c, "email job retry limit reached")
	default:
		return internalError(c, err)
	}
}
