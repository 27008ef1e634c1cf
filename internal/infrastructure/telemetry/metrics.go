// Package telemetry inicializa el MeterProvider de OpenTelemetry con exportación OTLP.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/jhoicas/integraciones-api/pkg/config"
)

// MeterProvider envuelve el proveedor del SDK; sin exportador usa el proveedor global.
type MeterProvider struct {
	provider *sdkmetric.MeterProvider
	log      zerolog.Logger
}

// NewMeterProvider crea el proveedor con un PeriodicReader hacia el colector OTLP (gRPC)
// y lo registra como global. Con métricas deshabilitadas no crea exportador.
func NewMeterProvider(ctx context.Context, cfg config.TelemetryConfig, service string, log zerolog.Logger) (*MeterProvider, error) {
	mp := &MeterProvider{log: log}
	if !cfg.Enabled {
		log.Info().Msg("telemetry: métricas OTLP deshabilitadas")
		return mp, nil
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: exportador OTLP: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(service)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: recurso: %w", err)
	}

	mp.provider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(mp.provider)

	log.Info().
		Str("endpoint", cfg.Endpoint).
		Dur("interval", interval).
		Msg("telemetry: MeterProvider inicializado")
	return mp, nil
}

// Meter devuelve un meter con nombre.
func (mp *MeterProvider) Meter(name string) metric.Meter {
	if mp.provider == nil {
		return otel.GetMeterProvider().Meter(name)
	}
	return mp.provider.Meter(name)
}

// Enabled indica si hay exportación activa.
func (mp *MeterProvider) Enabled() bool { return mp.provider != nil }

// Shutdown exporta lo pendiente y libera el exportador.
func (mp *MeterProvider) Shutdown(ctx context.Context) error {
	if mp.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := mp.provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("telemetry: apagar MeterProvider: %w", err)
	}
	return nil
}
