package web

import (
	"github.com/dukex/stepflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps service and operation errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var (
		status  int
		errType string
	)

	switch {
	case services.IsValidationError(err):
		status, errType = fiber.StatusBadRequest, "validation_error"
	case services.IsNotFoundError(err):
		status, errType = fiber.StatusNotFound, "not_found"
	case services.IsConflictError(err):
		status, errType = fiber.StatusConflict, "flow_version_locked"
	case services.IsUnprocessableError(err):
		status, errType = fiber.StatusUnprocessableEntity, "flow_operation_invalid"
	default:
		return internalError(c, err)
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(errType).
		WithDetail(err.Error())

	return c.Status(status).JSON(problem)
}
