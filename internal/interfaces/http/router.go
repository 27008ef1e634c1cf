package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/integraciones-api/internal/application/dto"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Service  string
	Health   HealthReader
	Metrics  MetricsReader
	Sync     SyncReader // opcional
	OpsToken string
}

// Router registra las rutas operativas.
func Router(app *fiber.App, deps RouterDeps) {
	// Liveness (público)
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(dto.LivenessResponse{Status: "ok", Service: deps.Service})
	})

	// Monitoreo (protegido con el token operativo si está configurado)
	mon := app.Group("/api/monitoring", AuthMiddleware(deps.OpsToken))
	handler := NewMonitoringHandler(deps.Health, deps.Metrics)
	mon.Get("/health", handler.Health)
	mon.Get("/health/:integration", handler.IntegrationHealth)
	mon.Get("/metrics", handler.Metrics)
	mon.Get("/metrics/:integration", handler.IntegrationMetrics)
	if deps.Sync != nil {
		mon.Get("/sync", NewSyncHandler(deps.Sync).List)
	}
}
