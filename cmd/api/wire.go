package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/integraciones-api/internal/application/billing"
	appcfdi "github.com/jhoicas/integraciones-api/internal/application/cfdi"
	appmon "github.com/jhoicas/integraciones-api/internal/application/monitoring"
	"github.com/jhoicas/integraciones-api/internal/domain"
	dom "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/monitoring"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/pac"
	satws "github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/sat"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/signer"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/memory"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/netsuite"
	infrapdf "github.com/jhoicas/integraciones-api/internal/infrastructure/pdf"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/quickbooks"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/telemetry"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/tokencache"
	"github.com/jhoicas/integraciones-api/pkg/config"
	"github.com/jhoicas/integraciones-api/pkg/logger"
)

// csdWarning anticipación con la que el CSD próximo a vencer degrada el health check.
const csdWarning = 30 * 24 * time.Hour

// services componentes construidos a partir de la configuración.
type services struct {
	Tokens     tokencache.Store
	Documents  *appcfdi.DocumentService
	Facade     *appcfdi.Facade
	Billing    *billing.FiscalOrchestrator
	QuickBooks *quickbooks.Client
	NetSuite   *netsuite.Client
	Health     *appmon.HealthService
	Metrics    *appmon.MetricsService
	Retention  *appmon.Retention
	Meter      *telemetry.MeterProvider
}

func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*services, error) {
	s := &services{}

	meter, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, cfg.App.Name, log.Component("telemetry"))
	if err != nil {
		return nil, err
	}
	s.Meter = meter

	s.Metrics, err = appmon.NewMetricsService(appmon.MetricsConfig{
		Window: cfg.Monitoring.MetricsWindow,
		Meter:  meter.Meter("integraciones"),
	})
	if err != nil {
		return nil, err
	}
	s.Health = appmon.NewHealthService(appmon.HealthConfig{
		Interval: cfg.Monitoring.CheckInterval,
		Thresholds: monitoring.Thresholds{
			FailureThreshold:  cfg.Monitoring.FailureThreshold,
			RecoveryThreshold: cfg.Monitoring.RecoveryThreshold,
			LatencyThreshold:  cfg.Monitoring.LatencyThreshold,
		},
	}, log.Component("health"))
	// Token cache: Redis si está configurado, si no memoria local.
	if cfg.Redis.Host != "" {
		rs, err := tokencache.NewRedisStore(ctx, tokencache.RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		s.Tokens = rs
		s.Health.Register(appmon.NewProbe("redis", rs.Ping))
	} else {
		s.Tokens = tokencache.NewMemoryStore()
	}

	if err := s.buildCFDI(cfg, log); err != nil {
		return nil, err
	}
	if err := s.buildConnectors(cfg, log); err != nil {
		return nil, err
	}

	s.Retention = appmon.NewRetention(monitoring.RetentionPolicy{
		MaxAge:     cfg.Monitoring.RetentionMaxAge,
		MaxEntries: cfg.Monitoring.RetentionMaxItems,
	}, cfg.Monitoring.RetentionInterval, log.Component("retention"), s.Metrics, s.Health, s.Billing)
	return s, nil
}

// buildCFDI arma el flujo sello → timbrado → validación SAT → representación impresa.
func (s *services) buildCFDI(cfg *config.Config, log *logger.Logger) error {
	provider, err := pac.New(cfg.CFDI, pac.Deps{
		Recorder: s.Metrics,
		Tokens:   s.Tokens,
		Logger:   log.Component("pac"),
	})
	if err != nil {
		return err
	}
	s.Health.Register(appmon.NewProbe("pac_"+provider.Name(), provider.Ping))

	satClient := satws.NewClient(httpclient.New(httpclient.Config{
		Integration: "sat",
		BaseURL:     cfg.SAT.ConsultaURL,
		Timeout:     cfg.SAT.Timeout,
		MaxRetries:  2,
	}, httpclient.WithRecorder(s.Metrics), httpclient.WithLogger(log.Component("sat"))))

	deps := appcfdi.Deps{
		Repo:   memory.NewDocumentRepository(),
		PAC:    provider,
		SAT:    satClient,
		HTML:   infrapdf.NewHTMLRenderer(),
		PDF:    infrapdf.NewMarotoPDFGenerator(),
		Logger: log.Component("cfdi"),
	}

	emisor := dom.Emisor{RegimenFiscal: cfg.CFDI.RegimenFiscal}
	if cfg.CFDI.CertPath != "" {
		cred, err := signer.LoadFromFiles(cfg.CFDI.CertPath, cfg.CFDI.KeyPath, cfg.CFDI.KeyPassword)
		if err != nil {
			return fmt.Errorf("cargar CSD: %w", err)
		}
		csd := signer.NewCSDSigner(cred)
		deps.Sealer = csd
		emisor.Rfc, emisor.Nombre = cred.RFC, cred.Nombre
		s.Health.Register(appmon.NewProbe("csd", func(context.Context) error {
			if csd.ExpiresWithin(time.Now(), csdWarning) {
				return fmt.Errorf("csd %s vence el %s", cred.NoCertificado, cred.NotAfter.Format(time.DateOnly))
			}
			return nil
		}))
		log.Info().
			Str("rfc", cred.RFC).
			Str("no_certificado", cred.NoCertificado).
			Time("vigencia", cred.NotAfter).
			Msg("CSD cargado")
	} else {
		log.Warn().Msg("CFDI_CERT_PATH vacío: los comprobantes no podrán sellarse")
	}

	s.Documents = appcfdi.NewDocumentService(deps)
	s.Facade = appcfdi.NewFacade(s.Documents, appcfdi.FacadeConfig{
		Emisor:          emisor,
		LugarExpedicion: cfg.CFDI.LugarExpedicion,
		Serie:           cfg.CFDI.Serie,
	})
	s.Billing = billing.NewFiscalOrchestrator(s.Facade, billing.FiscalConfig{}, log.Component("billing"))
	return nil
}

// buildConnectors crea los conectores configurados; los que no tienen credenciales se omiten.
func (s *services) buildConnectors(cfg *config.Config, log *logger.Logger) error {
	qbo, err := quickbooks.NewClient(quickbooks.ConfigFrom(cfg.QuickBooks), s.Tokens,
		quickbooks.WithRecorder(s.Metrics),
		quickbooks.WithLogger(log.Component("quickbooks")),
	)
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		log.Info().Msg("QuickBooks no configurado")
	case err != nil:
		return err
	default:
		s.QuickBooks = qbo
		s.Health.Register(qbo)
	}

	nsCfg, err := netsuite.ConfigFrom(cfg.NetSuite)
	if err == nil {
		var ns *netsuite.Client
		ns, err = netsuite.NewClient(nsCfg, s.Tokens,
			netsuite.WithRecorder(s.Metrics),
			netsuite.WithLogger(log.Component("netsuite")),
		)
		if err == nil {
			s.NetSuite = ns
			s.Health.Register(ns)
		}
	}
	switch {
	case errors.Is(err, domain.ErrNotConfigured):
		log.Info().Msg("NetSuite no configurado")
	case err != nil:
		return err
	}
	return nil
}

// close libera los recursos con estado externo.
func (s *services) close(ctx context.Context, log zerolog.Logger) {
	if err := s.Meter.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("apagado de telemetría")
	}
	if c, ok := s.Tokens.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			log.Error().Err(err).Msg("cierre del token cache")
		}
	}
}
