// Package pac integra los Proveedores Autorizados de Certificación que timbran y cancelan CFDI.
package pac

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// ── Errores ─────────────────────────────────────────────────────────────────

var (
	// ErrStampRejected el PAC rechazó el comprobante (error de validación, no transitorio).
	ErrStampRejected = errors.New("pac: timbrado rechazado")
	// ErrCancelRejected el PAC o el SAT rechazaron la solicitud de cancelación.
	ErrCancelRejected = errors.New("pac: cancelación rechazada")
)

// ProviderError error reportado por el PAC con su código propio.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error // ErrStampRejected, ErrCancelRejected o un error de dominio
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("pac %s: [%s] %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("pac %s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ── Puerto ──────────────────────────────────────────────────────────────────

// StampResult resultado del timbrado.
type StampResult struct {
	UUID   string
	XML    []byte // XML sellado con el TimbreFiscalDigital incluido
	Timbre *cfdi.TimbreFiscalDigital
}

// CancelRequest solicitud de cancelación de un CFDI timbrado.
type CancelRequest struct {
	UUID             string
	RfcEmisor        string
	RfcReceptor      string
	Total            decimal.Decimal
	Motivo           string
	FolioSustitucion string
}

// Validate verifica el motivo y la relación de sustitución.
func (r CancelRequest) Validate() error {
	if !sat.IsUUID(r.UUID) {
		return fmt.Errorf("pac: UUID %q inválido: %w", r.UUID, domain.ErrInvalidInput)
	}
	if !sat.ValidMotivosCancelacion[r.Motivo] {
		return fmt.Errorf("pac: motivo de cancelación %q inválido: %w", r.Motivo, domain.ErrInvalidInput)
	}
	if r.Motivo == sat.MotivoErroresConRelacion {
		if !sat.IsUUID(r.FolioSustitucion) {
			return fmt.Errorf("pac: el motivo 01 requiere el UUID que sustituye: %w", domain.ErrInvalidInput)
		}
	} else if r.FolioSustitucion != "" {
		return fmt.Errorf("pac: FolioSustitucion solo aplica al motivo 01: %w", domain.ErrInvalidInput)
	}
	return nil
}

// CancelResult respuesta del PAC a una solicitud de cancelación.
type CancelResult struct {
	UUID          string
	Status        cfdi.CancellationStatus // accepted o pending (requiere aceptación del receptor)
	CodigoEstatus string
	Acuse         string
}

// Provider puerto de salida hacia un PAC.
type Provider interface {
	Name() string
	// Stamp timbra un XML sellado y devuelve el XML con el TimbreFiscalDigital.
	Stamp(ctx context.Context, xml []byte) (*StampResult, error)
	Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error)
	// Ping verifica conectividad y credenciales (sonda de salud).
	Ping(ctx context.Context) error
}
