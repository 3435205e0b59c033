package web

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

// Register mounts the API routes on router. metrics may be nil.
func Register(router fiber.Router, h *APIHandlers, metrics http.Handler) {
	f := router.Group("/flows")
	f.Get("/", h.ListFlowVersions)
	f.Post("/", h.CreateFlowVersion)
	f.Get("/:id", h.GetFlowVersion)
	f.Delete("/:id", h.DeleteFlowVersion)
	f.Post("/:id/operations", h.ApplyOperation)

	r := router.Group("/runs")
	r.Post("/:id/steps", h.RecordStep)
	r.Get("/:id", h.GetRun)

	router.Get("/pieces", h.ListPieces)
	router.Get("/health", h.HealthCheck)

	if metrics != nil {
		router.Get("/metrics", adaptor.HTTPHandler(metrics))
	}
}
