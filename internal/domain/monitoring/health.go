// Package monitoring tipos de salud de integraciones, métricas por llamada y retención.
package monitoring

import "time"

// HealthStatus estado de salud de una integración.
type HealthStatus string

const (
	StatusUnknown   HealthStatus = "unknown"
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// severity orden para calcular el peor estado.
func (s HealthStatus) severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 2
	case StatusUnhealthy:
		return 3
	default:
		return 1
	}
}

// Worst devuelve el estado más grave de la lista; sin estados, unknown.
func Worst(statuses ...HealthStatus) HealthStatus {
	if len(statuses) == 0 {
		return StatusUnknown
	}
	w := statuses[0]
	for _, s := range statuses[1:] {
		if s.severity() > w.severity() {
			w = s
		}
	}
	return w
}

// CheckResult resultado de una verificación.
type CheckResult struct {
	Integration string        `json:"integration"`
	Success     bool          `json:"success"`
	Latency     time.Duration `json:"-"`
	LatencyMs   float64       `json:"latency_ms"`
	Error       string        `json:"error,omitempty"`
	CheckedAt   time.Time     `json:"checked_at"`
}

// NewCheckResult arma el resultado a partir del error del probe.
func NewCheckResult(integration string, latency time.Duration, err error, at time.Time) CheckResult {
	r := CheckResult{
		Integration: integration,
		Success:     err == nil,
		Latency:     latency,
		LatencyMs:   Millis(latency),
		CheckedAt:   at,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Thresholds umbrales de la máquina de estados.
type Thresholds struct {
	FailureThreshold  int           // fallas consecutivas para unhealthy
	RecoveryThreshold int           // éxitos consecutivos para volver a healthy
	LatencyThreshold  time.Duration // éxito más lento que esto = degraded; 0 desactiva
}

// DefaultThresholds 3 fallas, 2 éxitos, 5 s.
var DefaultThresholds = Thresholds{FailureThreshold: 3, RecoveryThreshold: 2, LatencyThreshold: 5 * time.Second}

func (t Thresholds) normalized() Thresholds {
	if t.FailureThreshold < 1 {
		t.FailureThreshold = 1
	}
	if t.RecoveryThreshold < 1 {
		t.RecoveryThreshold = 1
	}
	return t
}

// IntegrationHealth estado acumulado de una integración.
type IntegrationHealth struct {
	Integration          string       `json:"integration"`
	Status               HealthStatus `json:"status"`
	ConsecutiveFailures  int          `json:"consecutive_failures"`
	ConsecutiveSuccesses int          `json:"consecutive_successes"`
	LastCheck            time.Time    `json:"last_check,omitempty"`
	LastSuccess          time.Time    `json:"last_success,omitempty"`
	LastError            string       `json:"last_error,omitempty"`
	LastLatencyMs        float64      `json:"last_latency_ms"`
	Since                time.Time    `json:"since"`
}

// NewIntegrationHealth estado inicial (unknown).
func NewIntegrationHealth(integration string, now time.Time) *IntegrationHealth {
	return &IntegrationHealth{Integration: integration, Status: StatusUnknown, Since: now}
}

// Apply incorpora un resultado y devuelve true si el estado cambió.
//
//	falla:  fallas >= FailureThreshold -> unhealthy; si no -> degraded
//	éxito:  unknown -> healthy; unhealthy -> degraded;
//	        degraded -> healthy con RecoveryThreshold éxitos consecutivos;
//	        un éxito lento nunca deja el estado en healthy
func (h *IntegrationHealth) Apply(r CheckResult, th Thresholds) bool {
	th = th.normalized()
	h.LastCheck = r.CheckedAt
	h.LastLatencyMs = r.LatencyMs

	next := h.Status
	if !r.Success {
		h.ConsecutiveFailures++
		h.ConsecutiveSuccesses = 0
		h.LastError = r.Error
		if h.ConsecutiveFailures >= th.FailureThreshold {
			next = StatusUnhealthy
		} else if h.Status != StatusUnhealthy {
			next = StatusDegraded
		}
	} else {
		h.ConsecutiveSuccesses++
		h.ConsecutiveFailures = 0
		h.LastSuccess = r.CheckedAt
		slow := th.LatencyThreshold > 0 && r.Latency > th.LatencyThreshold
		switch h.Status {
		case StatusUnknown, StatusHealthy:
			next = StatusHealthy
		case StatusUnhealthy:
			next = StatusDegraded
		case StatusDegraded:
			if h.ConsecutiveSuccesses >= th.RecoveryThreshold {
				next = StatusHealthy
			}
		}
		if slow {
			next = StatusDegraded
		}
	}

	if next == h.Status {
		return false
	}
	h.Status = next
	h.Since = r.CheckedAt
	return true
}

// Millis convierte una duración a milisegundos con decimales.
func Millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
