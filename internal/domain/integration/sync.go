package integration

import (
	"context"
	"time"
)

// ListOptions paginación y filtro incremental de las consultas.
type ListOptions struct {
	Limit         int
	Offset        int
	ModifiedSince time.Time // cero = sin filtro
}

// DefaultPageSize tamaño de página cuando Limit es 0.
const DefaultPageSize = 100

// PageSize devuelve Limit o DefaultPageSize.
func (o ListOptions) PageSize() int {
	if o.Limit <= 0 {
		return DefaultPageSize
	}
	return o.Limit
}

// SyncResult resultado de enviar una entidad a un sistema externo.
type SyncResult struct {
	Integration string    `json:"integration"`
	Entity      string    `json:"entity"`
	Operation   string    `json:"operation"` // create, update, delete
	LocalID     string    `json:"local_id,omitempty"`
	ExternalID  string    `json:"external_id,omitempty"`
	Success     bool      `json:"success"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// NewSyncResult arma el resultado a partir del error de la operación.
func NewSyncResult(integration, entity, operation, localID, externalID string, err error, at time.Time) SyncResult {
	r := SyncResult{
		Integration: integration,
		Entity:      entity,
		Operation:   operation,
		LocalID:     localID,
		ExternalID:  externalID,
		Success:     err == nil,
		At:          at,
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

// Pinger sistema externo que puede verificarse con una llamada liviana (health check).
type Pinger interface {
	Name() string
	Ping(ctx context.Context) error
}
