// Package memory implementa los puertos de persistencia en memoria del proceso.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/repository"
)

var _ repository.DocumentRepository = (*DocumentRepository)(nil)

// DocumentRepository almacén de documentos indexado por ID y por UUID fiscal.
// Devuelve copias: modificar un documento leído no altera el almacén hasta llamar Update.
type DocumentRepository struct {
	mu     sync.RWMutex
	byID   map[string]*cfdi.Document
	byUUID map[string]string // UUID -> ID
}

// NewDocumentRepository crea el almacén vacío.
func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		byID:   make(map[string]*cfdi.Document),
		byUUID: make(map[string]string),
	}
}

// Create guarda un documento nuevo. Falla con domain.ErrDuplicate si el ID ya existe.
func (r *DocumentRepository) Create(_ context.Context, doc *cfdi.Document) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("memory: documento sin ID: %w", domain.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[doc.ID]; ok {
		return fmt.Errorf("memory: documento %s: %w", doc.ID, domain.ErrDuplicate)
	}
	r.byID[doc.ID] = clone(doc)
	if doc.UUID != "" {
		r.byUUID[strings.ToUpper(doc.UUID)] = doc.ID
	}
	return nil
}

// Update reemplaza un documento existente.
func (r *DocumentRepository) Update(_ context.Context, doc *cfdi.Document) error {
	if doc == nil {
		return fmt.Errorf("memory: documento nulo: %w", domain.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byID[doc.ID]
	if !ok {
		return fmt.Errorf("memory: documento %s: %w", doc.ID, domain.ErrNotFound)
	}
	if prev.UUID != "" && !strings.EqualFold(prev.UUID, doc.UUID) {
		delete(r.byUUID, strings.ToUpper(prev.UUID))
	}
	if doc.UUID != "" {
		if owner, taken := r.byUUID[strings.ToUpper(doc.UUID)]; taken && owner != doc.ID {
			return fmt.Errorf("memory: UUID %s ya asignado a %s: %w", doc.UUID, owner, domain.ErrConflict)
		}
		r.byUUID[strings.ToUpper(doc.UUID)] = doc.ID
	}
	r.byID[doc.ID] = clone(doc)
	return nil
}

// GetByID devuelve una copia del documento.
func (r *DocumentRepository) GetByID(_ context.Context, id string) (*cfdi.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("memory: documento %s: %w", id, domain.ErrNotFound)
	}
	return clone(doc), nil
}

// GetByUUID busca por folio fiscal (sin distinguir mayúsculas).
func (r *DocumentRepository) GetByUUID(_ context.Context, uuid string) (*cfdi.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUUID[strings.ToUpper(uuid)]
	if !ok {
		return nil, fmt.Errorf("memory: UUID %s: %w", uuid, domain.ErrNotFound)
	}
	return clone(r.byID[id]), nil
}

// List aplica el filtro, ordena por CreatedAt y pagina.
func (r *DocumentRepository) List(_ context.Context, f repository.DocumentFilter) ([]*cfdi.Document, error) {
	r.mu.RLock()
	out := make([]*cfdi.Document, 0, len(r.byID))
	for _, d := range r.byID {
		if matches(d, f) {
			out = append(out, clone(d))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []*cfdi.Document{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

// Len número de documentos almacenados.
func (r *DocumentRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func matches(d *cfdi.Document, f repository.DocumentFilter) bool {
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if d.Comprobante != nil {
		if f.TipoDeComprobante != "" && d.Comprobante.TipoDeComprobante != f.TipoDeComprobante {
			return false
		}
		if f.ReceptorRfc != "" && !strings.EqualFold(d.Comprobante.Receptor.Rfc, f.ReceptorRfc) {
			return false
		}
	} else if f.TipoDeComprobante != "" || f.ReceptorRfc != "" {
		return false
	}
	if !f.From.IsZero() && d.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !d.CreatedAt.Before(f.To) {
		return false
	}
	return true
}

func clone(d *cfdi.Document) *cfdi.Document {
	c := *d
	if d.XML != nil {
		c.XML = append([]byte(nil), d.XML...)
	}
	if d.History != nil {
		c.History = append([]cfdi.StatusChange(nil), d.History...)
	}
	if d.Comprobante != nil {
		comp := *d.Comprobante
		c.Comprobante = &comp
	}
	if d.Cancellation != nil {
		canc := *d.Cancellation
		c.Cancellation = &canc
	}
	if d.SAT != nil {
		s := *d.SAT
		c.SAT = &s
	}
	return &c
}
