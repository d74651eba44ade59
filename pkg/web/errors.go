package web

import (
	"errors"

	"github.com/dukex/sqlgems/pkg/models"
	"github.com/dukex/sqlgems/pkg/registry"
	"github.com/dukex/sqlgems/pkg/schema"
	"github.com/dukex/sqlgems/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

// DiagnosticsProblem is a problem body that also lists the diagnostics behind it.
type DiagnosticsProblem struct {
	*problems.Problem

	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, problemType, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType(problemType).
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

// handleServiceError provides typed error handling for service layer errors.
func handleServiceError(c fiber.Ctx, err error) error {
	var invalid *services.InvalidComponentError

	switch {
	case errors.As(err, &invalid):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_component").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(DiagnosticsProblem{
			Problem:     problem,
			Diagnostics: invalid.Diagnostics,
		})

	case errors.Is(err, schema.ErrFormat):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("schema_format_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case services.IsPreconditionError(err):
		problem := problems.NewStatusProblem(412).
			WithInstance(c.Path()).
			WithType("precondition_failed").
			WithDetail(err.Error())

		return c.Status(fiber.StatusPreconditionFailed).JSON(problem)

	case services.IsConflictError(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("version_conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, services.ErrPipelineNotFound):
		return notFound(c, "pipeline_not_found", "pipeline not found")

	case errors.Is(err, services.ErrComponentNotFound):
		return notFound(c, "component_not_found", "component not found")

	case errors.Is(err, services.ErrNodeNotFound):
		return notFound(c, "node_not_found", "node not found")

	case registry.IsGemNotFound(err):
		return notFound(c, "gem_not_found", err.Error())

	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	default:
		return internalError(c, err)
	}
}
