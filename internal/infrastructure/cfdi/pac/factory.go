package pac

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/tokencache"
	"github.com/jhoicas/integraciones-api/pkg/config"
)

// Deps dependencias compartidas por los adaptadores HTTP.
type Deps struct {
	Recorder httpclient.Recorder
	Tokens   tokencache.Store
	Logger   zerolog.Logger
	Clock    func() time.Time // solo para el mock
}

// New construye el proveedor indicado por CFDI_PAC_PROVIDER (mock, sw, finkok).
func New(cfg config.CFDIConfig, deps Deps) (Provider, error) {
	opts := []httpclient.Option{httpclient.WithLogger(deps.Logger)}
	if deps.Recorder != nil {
		opts = append(opts, httpclient.WithRecorder(deps.Recorder))
	}
	switch cfg.PACProvider {
	case "", "mock":
		var mopts []MockOption
		if deps.Clock != nil {
			mopts = append(mopts, WithClock(deps.Clock))
		}
		return NewMockProvider(mopts...), nil
	case "sw":
		sw := SWConfig{User: cfg.PACUser, Password: cfg.PACPassword, Env: cfg.PACEnvironment, BaseURL: cfg.PACURL}
		client := httpclient.New(httpclient.Config{
			Integration: "pac_sw",
			BaseURL:     SWBaseURL(sw),
			Timeout:     60 * time.Second,
			MaxRetries:  2,
		}, opts...)
		return NewSWProvider(sw, client, deps.Tokens), nil
	case "finkok":
		fk := FinkokConfig{User: cfg.PACUser, Password: cfg.PACPassword, Env: cfg.PACEnvironment, BaseURL: cfg.PACURL}
		client := httpclient.New(httpclient.Config{
			Integration: "pac_finkok",
			BaseURL:     FinkokBaseURL(fk),
			Timeout:     60 * time.Second,
			MaxRetries:  2,
		}, opts...)
		return NewFinkokProvider(fk, client), nil
	default:
		return nil, fmt.Errorf("pac: proveedor desconocido %q: %w", cfg.PACProvider, domain.ErrNotConfigured)
	}
}
