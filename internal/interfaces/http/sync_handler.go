package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/integraciones-api/internal/domain/integration"
)

// SyncReader historial de sincronizaciones con ERPs. Lo implementa *billing.FiscalOrchestrator.
type SyncReader interface {
	Results() []integration.SyncResult
}

// SyncHandler expone los intentos de timbrado de facturas ERP.
type SyncHandler struct {
	sync SyncReader
}

// NewSyncHandler construye el handler.
func NewSyncHandler(s SyncReader) *SyncHandler {
	return &SyncHandler{sync: s}
}

// List GET /api/monitoring/sync?integration=netsuite&failed=true
func (h *SyncHandler) List(c *fiber.Ctx) error {
	name := c.Query("integration")
	onlyFailed := c.QueryBool("failed", false)
	out := []integration.SyncResult{}
	for _, r := range h.sync.Results() {
		if name != "" && r.Integration != name {
			continue
		}
		if onlyFailed && r.Success {
			continue
		}
		out = append(out, r)
	}
	return c.JSON(fiber.Map{"results": out})
}
