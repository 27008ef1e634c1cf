// Package monitoring servicios de monitoreo de integraciones: health checks periódicos,
// métricas por llamada y retención de historiales.
package monitoring

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	dom "github.com/jhoicas/integraciones-api/internal/domain/monitoring"
)

// probeFunc adapta una función a integration.Pinger.
type probeFunc struct {
	name string
	fn   func(ctx context.Context) error
}

func (p probeFunc) Name() string                   { return p.name }
func (p probeFunc) Ping(ctx context.Context) error { return p.fn(ctx) }

// NewProbe crea un probe a partir de una función (Redis, SAT, etc.).
func NewProbe(name string, fn func(ctx context.Context) error) integration.Pinger {
	return probeFunc{name: name, fn: fn}
}

// HealthConfig parámetros del servicio de salud.
type HealthConfig struct {
	Interval    time.Duration
	Timeout     time.Duration // por probe; por omisión 10 s
	Thresholds  dom.Thresholds
	MaxParallel int // 0 = sin límite
	Clock       func() time.Time
}

// HealthService ejecuta los probes registrados y mantiene el estado de cada integración.
type HealthService struct {
	cfg HealthConfig
	log zerolog.Logger
	now func() time.Time

	mu      sync.RWMutex
	probes  []integration.Pinger
	states  map[string]*dom.IntegrationHealth
	history map[string][]dom.CheckResult
}

// NewHealthService crea el servicio.
func NewHealthService(cfg HealthConfig, log zerolog.Logger) *HealthService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Thresholds == (dom.Thresholds{}) {
		cfg.Thresholds = dom.DefaultThresholds
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &HealthService{
		cfg:     cfg,
		log:     log,
		now:     now,
		states:  map[string]*dom.IntegrationHealth{},
		history: map[string][]dom.CheckResult{},
	}
}

// Register agrega un probe; un nombre repetido reemplaza al anterior.
func (s *HealthService) Register(p integration.Pinger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, q := range s.probes {
		if q.Name() == p.Name() {
			s.probes[i] = p
			return
		}
	}
	s.probes = append(s.probes, p)
	s.states[p.Name()] = dom.NewIntegrationHealth(p.Name(), s.now())
}

// RunOnce ejecuta todos los probes en paralelo y aplica los resultados.
func (s *HealthService) RunOnce(ctx context.Context) []dom.CheckResult {
	s.mu.RLock()
	probes := append([]integration.Pinger(nil), s.probes...)
	s.mu.RUnlock()

	results := make([]dom.CheckResult, len(probes))
	var g errgroup.Group
	if s.cfg.MaxParallel > 0 {
		g.SetLimit(s.cfg.MaxParallel)
	}
	for i, p := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
			defer cancel()
			start := time.Now()
			err := p.Ping(pctx)
			results[i] = dom.NewCheckResult(p.Name(), time.Since(start), err, s.now())
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		h, ok := s.states[r.Integration]
		if !ok {
			h = dom.NewIntegrationHealth(r.Integration, r.CheckedAt)
			s.states[r.Integration] = h
		}
		prev := h.Status
		if h.Apply(r, s.cfg.Thresholds) {
			ev := s.log.Info()
			if h.Status == dom.StatusUnhealthy {
				ev = s.log.Warn()
			}
			ev.Str("integration", r.Integration).
				Str("from", string(prev)).
				Str("to", string(h.Status)).
				Str("error", r.Error).
				Msg("monitoring: cambio de estado")
		}
		s.history[r.Integration] = append(s.history[r.Integration], r)
	}
	return results
}

// Start ejecuta RunOnce de inmediato y luego en cada intervalo hasta que ctx termina.
// El canal devuelto se cierra al salir del ciclo.
func (s *HealthService) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
	return done
}

// Status estado de una integración.
func (s *HealthService) Status(integration string) (dom.IntegrationHealth, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.states[integration]
	if !ok {
		return dom.IntegrationHealth{}, false
	}
	return *h, true
}

// All estados de todas las integraciones ordenados por nombre.
func (s *HealthService) All() []dom.IntegrationHealth {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dom.IntegrationHealth, 0, len(s.states))
	for _, h := range s.states {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Integration < out[j].Integration })
	return out
}

// Overall peor estado entre las integraciones registradas.
func (s *HealthService) Overall() dom.HealthStatus {
	all := s.All()
	statuses := make([]dom.HealthStatus, 0, len(all))
	for _, h := range all {
		statuses = append(statuses, h.Status)
	}
	return dom.Worst(statuses...)
}

// History últimos limit resultados de una integración (limit <= 0: todos), más reciente al final.
func (s *HealthService) History(integration string, limit int) []dom.CheckResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.history[integration]
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	return append([]dom.CheckResult(nil), h...)
}

// Prune aplica la retención al historial de verificaciones.
func (s *HealthService) Prune(policy dom.RetentionPolicy, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for name, h := range s.history {
		kept := dom.Keep(h, policy, now, func(r dom.CheckResult) time.Time { return r.CheckedAt })
		removed += len(h) - len(kept)
		s.history[name] = append([]dom.CheckResult(nil), kept...)
	}
	return removed
}
