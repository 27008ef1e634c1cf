package cfdi

import (
	"fmt"
	"time"

	"github.com/jhoicas/integraciones-api/internal/domain"
)

// Status estado del documento dentro de su ciclo de vida.
type Status string

const (
	StatusDraft               Status = "draft"
	StatusSealed              Status = "sealed"
	StatusStamped             Status = "stamped"
	StatusValid               Status = "valid"
	StatusCancellationPending Status = "cancellation_pending"
	StatusCancelled           Status = "cancelled"
)

// transitions movimientos permitidos: origen -> destinos.
var transitions = map[Status][]Status{
	StatusDraft:               {StatusSealed},
	StatusSealed:              {StatusSealed, StatusStamped},
	StatusStamped:             {StatusValid, StatusCancellationPending, StatusCancelled},
	StatusValid:               {StatusCancellationPending, StatusCancelled},
	StatusCancellationPending: {StatusCancelled, StatusValid},
}

// CanTransition indica si el documento puede pasar de from a to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal indica si el estado ya no admite transiciones.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// StatusChange registro de una transición.
type StatusChange struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// SATStatus resultado de la consulta de estado del CFDI ante el SAT.
type SATStatus struct {
	CodigoEstatus      string    `json:"codigo_estatus"`
	Estado             string    `json:"estado"` // Vigente, Cancelado, No Encontrado
	EsCancelable       string    `json:"es_cancelable"`
	EstatusCancelacion string    `json:"estatus_cancelacion"`
	ValidacionEFOS     string    `json:"validacion_efos"`
	CheckedAt          time.Time `json:"checked_at"`
}

// Estados que devuelve el servicio de consulta del SAT.
const (
	SATEstadoVigente      = "Vigente"
	SATEstadoCancelado    = "Cancelado"
	SATEstadoNoEncontrado = "No Encontrado"
)

// CancellationStatus estado de la solicitud de cancelación.
type CancellationStatus string

const (
	CancellationRequested CancellationStatus = "requested"
	CancellationPending   CancellationStatus = "pending" // en espera de aceptación del receptor
	CancellationAccepted  CancellationStatus = "accepted"
	CancellationRejected  CancellationStatus = "rejected"
)

// Cancellation datos de la cancelación de un CFDI timbrado.
type Cancellation struct {
	Motivo           string             `json:"motivo"`
	FolioSustitucion string             `json:"folio_sustitucion,omitempty"`
	Status           CancellationStatus `json:"status"`
	Acuse            string             `json:"acuse,omitempty"`
	RequestedAt      time.Time          `json:"requested_at"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
}

// Document CFDI gestionado por el servicio de documentos: comprobante, artefactos
// generados en cada etapa y bitácora de estados.
type Document struct {
	ID           string
	Status       Status
	Comprobante  *Comprobante
	XML          []byte // último XML generado (sellado o timbrado)
	Cadena       string
	UUID         string
	XMLHash      string // SHA-256 del XML timbrado canonicalizado
	Validation   *ValidationResult
	SAT          *SATStatus
	Cancellation *Cancellation
	LastError    string
	History      []StatusChange
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewDocument crea un documento en borrador.
func NewDocument(id string, c *Comprobante, now time.Time) *Document {
	return &Document{
		ID:          id,
		Status:      StatusDraft,
		Comprobante: c,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Transition mueve el documento al estado to y lo registra en el historial.
// Devuelve domain.ErrInvalidTransition si el movimiento no está permitido.
func (d *Document) Transition(to Status, now time.Time, reason string) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, d.Status, to)
	}
	d.History = append(d.History, StatusChange{From: d.Status, To: to, At: now, Reason: reason})
	d.Status = to
	d.UpdatedAt = now
	return nil
}

// IsStamped indica si el documento ya cuenta con timbre fiscal.
func (d *Document) IsStamped() bool {
	switch d.Status {
	case StatusStamped, StatusValid, StatusCancellationPending, StatusCancelled:
		return true
	}
	return false
}
