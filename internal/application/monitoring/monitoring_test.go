package monitoring_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/goleak"

	"github.com/jhoicas/integraciones-api/internal/application/monitoring"
	dom "github.com/jhoicas/integraciones-api/internal/domain/monitoring"
)

// clock reloj manual compartido por los servicios bajo prueba.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock { return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func togglable(name string, failing *atomic.Bool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if failing.Load() {
			return errors.New(name + ": sin respuesta")
		}
		return nil
	}
}

// ── Health ──────────────────────────────────────────────────────────────────

func TestHealthService_TransicionesPorIntegracion(t *testing.T) {
	clk := newClock()
	svc := monitoring.NewHealthService(monitoring.HealthConfig{
		Thresholds: dom.Thresholds{FailureThreshold: 2, RecoveryThreshold: 1, LatencyThreshold: time.Second},
		Clock:      clk.Now,
	}, zerolog.Nop())

	var nsFailing atomic.Bool
	nsFailing.Store(true)
	svc.Register(monitoring.NewProbe("quickbooks", func(context.Context) error { return nil }))
	svc.Register(monitoring.NewProbe("netsuite", togglable("netsuite", &nsFailing)))

	st, ok := svc.Status("netsuite")
	require.True(t, ok)
	assert.Equal(t, dom.StatusUnknown, st.Status)

	results := svc.RunOnce(context.Background())
	require.Len(t, results, 2)

	qbo, _ := svc.Status("quickbooks")
	assert.Equal(t, dom.StatusHealthy, qbo.Status)
	ns, _ := svc.Status("netsuite")
	assert.Equal(t, dom.StatusDegraded, ns.Status)
	assert.Equal(t, dom.StatusDegraded, svc.Overall())

	clk.Advance(time.Minute)
	svc.RunOnce(context.Background())
	ns, _ = svc.Status("netsuite")
	assert.Equal(t, dom.StatusUnhealthy, ns.Status)
	assert.Equal(t, "netsuite: sin respuesta", ns.LastError)
	assert.Equal(t, dom.StatusUnhealthy, svc.Overall())

	nsFailing.Store(false)
	clk.Advance(time.Minute)
	svc.RunOnce(context.Background())
	ns, _ = svc.Status("netsuite")
	assert.Equal(t, dom.StatusDegraded, ns.Status)

	clk.Advance(time.Minute)
	svc.RunOnce(context.Background())
	ns, _ = svc.Status("netsuite")
	assert.Equal(t, dom.StatusHealthy, ns.Status)
	assert.Equal(t, clk.Now(), ns.Since)

	all := svc.All()
	require.Len(t, all, 2)
	assert.Equal(t, "netsuite", all[0].Integration)
	assert.Equal(t, "quickbooks", all[1].Integration)

	hist := svc.History("netsuite", 0)
	require.Len(t, hist, 4)
	assert.False(t, hist[0].Success)
	assert.True(t, hist[3].Success)
	assert.Len(t, svc.History("netsuite", 2), 2)
}

func TestHealthService_TimeoutPorProbe(t *testing.T) {
	svc := monitoring.NewHealthService(monitoring.HealthConfig{Timeout: 20 * time.Millisecond}, zerolog.Nop())
	svc.Register(monitoring.NewProbe("pac", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	start := time.Now()
	results := svc.RunOnce(context.Background())
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "deadline exceeded")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestHealthService_RegistroRepetidoReemplaza(t *testing.T) {
	svc := monitoring.NewHealthService(monitoring.HealthConfig{}, zerolog.Nop())
	svc.Register(monitoring.NewProbe("redis", func(context.Context) error { return errors.New("caído") }))
	svc.Register(monitoring.NewProbe("redis", func(context.Context) error { return nil }))

	results := svc.RunOnce(context.Background())
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestHealthService_SinProbesEsDesconocido(t *testing.T) {
	svc := monitoring.NewHealthService(monitoring.HealthConfig{}, zerolog.Nop())
	assert.Empty(t, svc.RunOnce(context.Background()))
	assert.Equal(t, dom.StatusUnknown, svc.Overall())
	_, ok := svc.Status("quickbooks")
	assert.False(t, ok)
}

func TestHealthService_PruneHistorial(t *testing.T) {
	clk := newClock()
	svc := monitoring.NewHealthService(monitoring.HealthConfig{Clock: clk.Now}, zerolog.Nop())
	svc.Register(monitoring.NewProbe("sat", func(context.Context) error { return nil }))
	for i := 0; i < 5; i++ {
		svc.RunOnce(context.Background())
		clk.Advance(time.Minute)
	}

	removed := svc.Prune(dom.RetentionPolicy{MaxEntries: 2}, clk.Now())
	assert.Equal(t, 3, removed)
	assert.Len(t, svc.History("sat", 0), 2)

	removed = svc.Prune(dom.RetentionPolicy{MaxAge: 90 * time.Second}, clk.Now())
	assert.Equal(t, 1, removed)
}

func TestHealthService_StartSeDetieneConContexto(t *testing.T) {
	defer goleak.VerifyNone(t)

	var calls atomic.Int32
	svc := monitoring.NewHealthService(monitoring.HealthConfig{Interval: 10 * time.Millisecond}, zerolog.Nop())
	svc.Register(monitoring.NewProbe("quickbooks", func(context.Context) error {
		calls.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := svc.Start(ctx)
	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("el ciclo de health checks no terminó")
	}
}

// ── Métricas ────────────────────────────────────────────────────────────────

func TestMetricsService_SnapshotPorVentana(t *testing.T) {
	clk := newClock()
	svc, err := monitoring.NewMetricsService(monitoring.MetricsConfig{Window: 10 * time.Minute, Clock: clk.Now})
	require.NoError(t, err)

	svc.Record("quickbooks", "customer.create", 100*time.Millisecond, nil)
	clk.Advance(20 * time.Minute)
	svc.Record("quickbooks", "customer.create", 200*time.Millisecond, nil)
	svc.Record("quickbooks", "invoice.create", 400*time.Millisecond, errors.New("quickbooks: 500"))
	svc.Record("netsuite", "suiteql", 50*time.Millisecond, nil)

	snap, ok := svc.Snapshot("quickbooks")
	require.True(t, ok)
	assert.Equal(t, 2, snap.Count)
	assert.Equal(t, 1, snap.Errors)
	assert.InDelta(t, 0.5, snap.ErrorRate, 1e-9)
	assert.InDelta(t, 300.0, snap.AvgLatencyMs, 1e-9)
	assert.Equal(t, "quickbooks: 500", snap.LastError)
	assert.Equal(t, map[string]int{"customer.create": 1, "invoice.create": 1}, snap.Operations)

	_, ok = svc.Snapshot("pac")
	assert.False(t, ok)

	all := svc.Snapshots()
	require.Len(t, all, 2)
	assert.Equal(t, "netsuite", all[0].Integration)
	assert.Equal(t, "quickbooks", all[1].Integration)
}

func TestMetricsService_ExportaOpenTelemetry(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	svc, err := monitoring.NewMetricsService(monitoring.MetricsConfig{Meter: provider.Meter("test")})
	require.NoError(t, err)

	svc.Record("netsuite", "customer.get", 120*time.Millisecond, nil)
	svc.Record("netsuite", "customer.get", 80*time.Millisecond, nil)
	svc.Record("netsuite", "invoice.create", time.Second, errors.New("netsuite: 409"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var requests, failures int64
	var histCount uint64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "integration_requests_total":
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					requests += dp.Value
				}
			case "integration_errors_total":
				for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
					failures += dp.Value
					outcome, _ := dp.Attributes.Value("outcome")
					assert.Equal(t, "error", outcome.AsString())
				}
			case "integration_request_duration_seconds":
				for _, dp := range m.Data.(metricdata.Histogram[float64]).DataPoints {
					histCount += dp.Count
				}
			}
		}
	}
	assert.Equal(t, int64(3), requests)
	assert.Equal(t, int64(1), failures)
	assert.Equal(t, uint64(3), histCount)
}

func TestMetricsService_ConcurrenciaSegura(t *testing.T) {
	svc, err := monitoring.NewMetricsService(monitoring.MetricsConfig{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				svc.Record("pac", "timbrar", time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	snap, ok := svc.Snapshot("pac")
	require.True(t, ok)
	assert.Equal(t, 1000, snap.Count)
}

// ── Retención ───────────────────────────────────────────────────────────────

func TestRetention_PodaTodosLosAlmacenes(t *testing.T) {
	metrics, err := monitoring.NewMetricsService(monitoring.MetricsConfig{})
	require.NoError(t, err)
	health := monitoring.NewHealthService(monitoring.HealthConfig{}, zerolog.Nop())
	health.Register(monitoring.NewProbe("sat", func(context.Context) error { return nil }))

	for i := 0; i < 4; i++ {
		metrics.Record("sat", "validar", time.Millisecond, nil)
		health.RunOnce(context.Background())
	}

	r := monitoring.NewRetention(dom.RetentionPolicy{MaxEntries: 1}, time.Hour, zerolog.Nop(), metrics, health)
	assert.Equal(t, 6, r.RunOnce())
	assert.Equal(t, 0, r.RunOnce())
	assert.Len(t, health.History("sat", 0), 1)
}

func TestRetention_StartSeDetieneConContexto(t *testing.T) {
	defer goleak.VerifyNone(t)

	metrics, err := monitoring.NewMetricsService(monitoring.MetricsConfig{})
	require.NoError(t, err)
	metrics.Record("redis", "ping", time.Millisecond, nil)
	metrics.Record("redis", "ping", time.Millisecond, nil)

	r := monitoring.NewRetention(dom.RetentionPolicy{MaxEntries: 1}, 5*time.Millisecond, zerolog.Nop(), metrics)
	ctx, cancel := context.WithCancel(context.Background())
	done := r.Start(ctx)

	require.Eventually(t, func() bool {
		snap, _ := metrics.Snapshot("redis")
		return snap.Count == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
