package repository

import (
	"context"
	"time"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
)

// DocumentFilter criterios de búsqueda de documentos CFDI. Los campos vacíos no filtran.
type DocumentFilter struct {
	Status            cfdi.Status
	TipoDeComprobante string
	ReceptorRfc       string
	From              time.Time // CreatedAt >= From
	To                time.Time // CreatedAt < To
	Limit             int
	Offset            int
}

// DocumentRepository define el puerto de persistencia de documentos CFDI.
type DocumentRepository interface {
	Create(ctx context.Context, doc *cfdi.Document) error
	// Update reemplaza el documento completo; actualiza también el índice por UUID.
	Update(ctx context.Context, doc *cfdi.Document) error
	GetByID(ctx context.Context, id string) (*cfdi.Document, error)
	GetByUUID(ctx context.Context, uuid string) (*cfdi.Document, error)
	// List devuelve los documentos ordenados por CreatedAt ascendente.
	List(ctx context.Context, filter DocumentFilter) ([]*cfdi.Document, error)
}
