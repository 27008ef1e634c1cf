package monitoring

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	dom "github.com/jhoicas/integraciones-api/internal/domain/monitoring"
)

// Retention aplica periódicamente una política de retención a varios almacenes.
type Retention struct {
	policy   dom.RetentionPolicy
	interval time.Duration
	stores   []dom.Prunable
	log      zerolog.Logger
	now      func() time.Time
}

// NewRetention crea el proceso de retención; interval por omisión 1 h.
func NewRetention(policy dom.RetentionPolicy, interval time.Duration, log zerolog.Logger, stores ...dom.Prunable) *Retention {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Retention{policy: policy, interval: interval, stores: stores, log: log, now: time.Now}
}

// RunOnce poda todos los almacenes y devuelve el total de entradas eliminadas.
func (r *Retention) RunOnce() int {
	now := r.now()
	total := 0
	for _, s := range r.stores {
		total += s.Prune(r.policy, now)
	}
	if total > 0 {
		r.log.Debug().Int("removed", total).Msg("monitoring: retención aplicada")
	}
	return total
}

// Start ejecuta RunOnce en cada intervalo hasta que ctx termina. El canal se cierra al salir.
func (r *Retention) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.RunOnce()
			}
		}
	}()
	return done
}
