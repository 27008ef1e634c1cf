// Package cfdi orquesta el ciclo de vida de los CFDI 4.0: validación, sellado, timbrado,
// verificación ante el SAT, cancelación y representación impresa.
package cfdi

import (
	"context"

	domain "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/signer"
)

// Sealer sella un comprobante con el CSD del emisor (signer.CSDSigner).
type Sealer interface {
	Seal(c *domain.Comprobante) (*signer.SealResult, error)
}

// XMLBuilder serializa un comprobante a XML CFDI 4.0.
type XMLBuilder interface {
	Build(c *domain.Comprobante) ([]byte, error)
}

// Renderer genera una representación impresa (HTML o PDF).
type Renderer interface {
	Render(ctx context.Context, doc *domain.Document) ([]byte, error)
}
