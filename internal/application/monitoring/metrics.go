package monitoring

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	dom "github.com/jhoicas/integraciones-api/internal/domain/monitoring"
)

// MetricsService acumula una muestra por llamada a integraciones y la refleja en OpenTelemetry.
// Implementa httpclient.Recorder.
type MetricsService struct {
	window time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	samples map[string][]dom.Sample

	requests metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

// MetricsConfig parámetros del servicio de métricas.
type MetricsConfig struct {
	Window time.Duration // ventana de Snapshot; por omisión 1 h
	Meter  metric.Meter  // nil = sin exportación
	Clock  func() time.Time
}

// NewMetricsService crea el servicio y sus instrumentos.
func NewMetricsService(cfg MetricsConfig) (*MetricsService, error) {
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	meter := cfg.Meter
	if meter == nil {
		meter = noop.NewMeterProvider().Meter("integraciones")
	}
	m := &MetricsService{
		window:  cfg.Window,
		now:     cfg.Clock,
		samples: map[string][]dom.Sample{},
	}
	if m.now == nil {
		m.now = time.Now
	}

	var err error
	if m.requests, err = meter.Int64Counter("integration_requests_total",
		metric.WithDescription("Llamadas a integraciones externas"),
		metric.WithUnit("{requests}"),
	); err != nil {
		return nil, fmt.Errorf("monitoring: contador de llamadas: %w", err)
	}
	if m.failures, err = meter.Int64Counter("integration_errors_total",
		metric.WithDescription("Llamadas a integraciones que terminaron en error"),
		metric.WithUnit("{requests}"),
	); err != nil {
		return nil, fmt.Errorf("monitoring: contador de errores: %w", err)
	}
	if m.latency, err = meter.Float64Histogram("integration_request_duration_seconds",
		metric.WithDescription("Duración de las llamadas a integraciones, incluidos reintentos"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("monitoring: histograma de latencia: %w", err)
	}
	return m, nil
}

// Record registra una llamada.
func (m *MetricsService) Record(integration, operation string, d time.Duration, err error) {
	s := dom.Sample{Integration: integration, Operation: operation, Duration: d, At: m.now()}
	outcome := "success"
	if err != nil {
		s.Error = err.Error()
		outcome = "error"
	}

	m.mu.Lock()
	m.samples[integration] = append(m.samples[integration], s)
	m.mu.Unlock()

	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("integration", integration),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.latency.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.failures.Add(ctx, 1, attrs)
	}
}

// Snapshot agregado de la integración en la ventana configurada.
func (m *MetricsService) Snapshot(integration string) (dom.MetricsSnapshot, bool) {
	now := m.now()
	m.mu.RLock()
	samples, ok := m.samples[integration]
	m.mu.RUnlock()
	if !ok {
		return dom.MetricsSnapshot{}, false
	}
	return dom.Aggregate(integration, samples, now.Add(-m.window), now), true
}

// Snapshots agregados de todas las integraciones ordenados por nombre.
func (m *MetricsService) Snapshots() []dom.MetricsSnapshot {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]dom.MetricsSnapshot, 0, len(m.samples))
	for name, samples := range m.samples {
		out = append(out, dom.Aggregate(name, samples, now.Add(-m.window), now))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Integration < out[j].Integration })
	return out
}

// Prune aplica la retención a las muestras de cada integración.
func (m *MetricsService) Prune(policy dom.RetentionPolicy, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for name, samples := range m.samples {
		kept := dom.Keep(samples, policy, now, func(s dom.Sample) time.Time { return s.At })
		removed += len(samples) - len(kept)
		m.samples[name] = append([]dom.Sample(nil), kept...)
	}
	return removed
}
