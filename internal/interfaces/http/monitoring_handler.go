package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/integraciones-api/internal/application/dto"
	"github.com/jhoicas/integraciones-api/internal/domain/monitoring"
)

// HealthReader lectura del estado de las integraciones. Lo implementa *monitoring.HealthService.
type HealthReader interface {
	All() []monitoring.IntegrationHealth
	Overall() monitoring.HealthStatus
	Status(integration string) (monitoring.IntegrationHealth, bool)
	History(integration string, limit int) []monitoring.CheckResult
}

// MetricsReader lectura de métricas agregadas. Lo implementa *monitoring.MetricsService.
type MetricsReader interface {
	Snapshot(integration string) (monitoring.MetricsSnapshot, bool)
	Snapshots() []monitoring.MetricsSnapshot
}

// MonitoringHandler expone el estado y las métricas de las integraciones.
type MonitoringHandler struct {
	health  HealthReader
	metrics MetricsReader
}

// NewMonitoringHandler construye el handler.
func NewMonitoringHandler(health HealthReader, metrics MetricsReader) *MonitoringHandler {
	return &MonitoringHandler{health: health, metrics: metrics}
}

// Health GET /api/monitoring/health
// Responde 503 si alguna integración está unhealthy.
func (h *MonitoringHandler) Health(c *fiber.Ctx) error {
	resp := dto.HealthResponse{
		Status:       h.health.Overall(),
		Integrations: h.health.All(),
	}
	status := fiber.StatusOK
	if resp.Status == monitoring.StatusUnhealthy {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

// IntegrationHealth GET /api/monitoring/health/:integration?history=20
func (h *MonitoringHandler) IntegrationHealth(c *fiber.Ctx) error {
	name := c.Params("integration")
	st, ok := h.health.Status(name)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "integración no registrada"})
	}
	limit, err := strconv.Atoi(c.Query("history", "20"))
	if err != nil || limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "history debe ser un entero >= 0"})
	}
	return c.JSON(dto.IntegrationHealthResponse{
		IntegrationHealth: st,
		History:           h.health.History(name, limit),
	})
}

// Metrics GET /api/monitoring/metrics
func (h *MonitoringHandler) Metrics(c *fiber.Ctx) error {
	return c.JSON(dto.MetricsResponse{Integrations: h.metrics.Snapshots()})
}

// IntegrationMetrics GET /api/monitoring/metrics/:integration
func (h *MonitoringHandler) IntegrationMetrics(c *fiber.Ctx) error {
	snap, ok := h.metrics.Snapshot(c.Params("integration"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "sin métricas para la integración"})
	}
	return c.JSON(snap)
}
