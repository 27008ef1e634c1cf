package dto

import "github.com/jhoicas/integraciones-api/internal/domain/monitoring"

// HealthResponse estado global y por integración.
type HealthResponse struct {
	Status       monitoring.HealthStatus        `json:"status"`
	Integrations []monitoring.IntegrationHealth `json:"integrations"`
}

// IntegrationHealthResponse estado de una integración con sus verificaciones recientes.
type IntegrationHealthResponse struct {
	monitoring.IntegrationHealth
	History []monitoring.CheckResult `json:"history"`
}

// MetricsResponse agregados de todas las integraciones.
type MetricsResponse struct {
	Integrations []monitoring.MetricsSnapshot `json:"integrations"`
}
