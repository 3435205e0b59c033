// Package web provides the HTTP API for editing flow versions and recording runs.
package web

import (
	"context"
	"net/http"
	"slices"
	"sort"
	"time"

	"github.com/dukex/stepflow/pkg/operations"
	"github.com/dukex/stepflow/pkg/registry"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type APIHandlers struct {
	flowVersions *services.FlowVersions
	runs         *services.Runs
	registry     *registry.Registry
	health       HealthChecker
	validator    *validator.Validate
}

func NewAPIHandlers(
	flowVersions *services.FlowVersions,
	runs *services.Runs,
	registry *registry.Registry,
	health HealthChecker,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		flowVersions: flowVersions,
		runs:         runs,
		registry:     registry,
		health:       health,
		validator:    validator,
	}
}

func (h *APIHandlers) CreateFlowVersion(c fiber.Ctx) error {
	var req CreateFlowVersionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.flowVersions.Create(c.Context(), services.CreateFlowVersionRequest{
		FlowID:      req.FlowID,
		DisplayName: req.DisplayName,
		FolderID:    req.FolderID,
		CreatedBy:   c.Get(UserHeader),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetFlowVersion(c fiber.Ctx) error {
	fv, err := h.flowVersions.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fv)
}

func (h *APIHandlers) ListFlowVersions(c fiber.Ctx) error {
	flowID := c.Query("flow_id")
	if flowID == "" {
		return badRequest(c, "flow_id query parameter is required")
	}

	versions, err := h.flowVersions.List(c.Context(), flowID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(FlowVersionListResponse{FlowVersions: versions, TotalCount: len(versions)})
}

// ApplyOperation runs one {"type", "request"} operation against a flow version.
func (h *APIHandlers) ApplyOperation(c fiber.Ctx) error {
	var req operations.Request
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid operation: "+err.Error())
	}

	updated, err := h.flowVersions.Apply(c.Context(), c.Params("id"), req, c.Get(UserHeader))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteFlowVersion(c fiber.Ctx) error {
	if err := h.flowVersions.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) RecordStep(c fiber.Ctx) error {
	var req services.RecordStepRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	journal, err := h.runs.RecordStep(c.Context(), c.Params("id"), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RunResponse{Summary: services.Summarize(c.Params("id"), journal), Journal: journal})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	runID := c.Params("id")

	journal, err := h.runs.Journal(c.Context(), runID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(RunResponse{Summary: services.Summarize(runID, journal), Journal: journal})
}

func (h *APIHandlers) ListPieces(c fiber.Ctx) error {
	pieces := h.registry.Pieces()
	out := make([]PieceResponse, 0, len(pieces))

	for _, p := range pieces {
		out = append(out, PieceResponse{
			Name:        p.Name,
			DisplayName: p.DisplayName,
			Actions:     sortedKeys(p.Actions),
			Triggers:    sortedKeys(p.Triggers),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return c.JSON(out)
}

func sortedKeys(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Persistence layer is healthy"
	httpStatus := http.StatusOK

	if err := h.health.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		message = "Persistence layer is unhealthy: " + err.Error()
		httpStatus = http.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":    len(h.registry.Pieces()),
			"persistence": message,
		},
		"timestamp": time.Now().UTC(),
	})
}
