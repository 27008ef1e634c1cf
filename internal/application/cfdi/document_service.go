package cfdi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jhoicas/integraciones-api/internal/domain"
	dom "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/repository"
	cfdixml "github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/pac"
	satws "github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/sat"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// Deps dependencias del servicio de documentos. SAT, HTML y PDF son opcionales.
type Deps struct {
	Repo    repository.DocumentRepository
	Builder XMLBuilder
	Sealer  Sealer
	PAC     pac.Provider
	SAT     satws.StatusChecker
	HTML    Renderer
	PDF     Renderer
	Logger  zerolog.Logger
}

// Option configura el servicio.
type Option func(*DocumentService)

// WithClock reemplaza el reloj (pruebas).
func WithClock(now func() time.Time) Option {
	return func(s *DocumentService) { s.now = now }
}

// WithIDGenerator reemplaza el generador de IDs de documento.
func WithIDGenerator(fn func() string) Option {
	return func(s *DocumentService) { s.newID = fn }
}

// WithLocation zona horaria en la que se interpretan las fechas del timbre.
func WithLocation(loc *time.Location) Option {
	return func(s *DocumentService) { s.loc = loc }
}

// DocumentService casos de uso del ciclo de vida de un CFDI:
//
//	draft → sealed → stamped → valid → cancellation_pending → cancelled
//
// Un timbrado fallido deja el documento en sealed con LastError para reintentarlo.
type DocumentService struct {
	repo    repository.DocumentRepository
	builder XMLBuilder
	sealer  Sealer
	pac     pac.Provider
	sat     satws.StatusChecker
	html    Renderer
	pdf     Renderer
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
	loc     *time.Location
}

// NewDocumentService construye el servicio.
func NewDocumentService(d Deps, opts ...Option) *DocumentService {
	s := &DocumentService{
		repo:    d.Repo,
		builder: d.Builder,
		sealer:  d.Sealer,
		pac:     d.PAC,
		sat:     d.SAT,
		html:    d.HTML,
		pdf:     d.PDF,
		log:     d.Logger,
		now:     time.Now,
		newID:   uuid.NewString,
		loc:     time.UTC,
	}
	if s.builder == nil {
		s.builder = cfdixml.NewXMLBuilderService()
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ── Alta y consulta ─────────────────────────────────────────────────────────

// Create registra el comprobante como borrador.
func (s *DocumentService) Create(ctx context.Context, c *dom.Comprobante) (*dom.Document, error) {
	if c == nil {
		return nil, fmt.Errorf("cfdi: %w", domain.ErrInvalidInput)
	}
	if c.Version == "" {
		c.Version = sat.VersionCFDI
	}
	doc := dom.NewDocument(s.newID(), c, s.now())
	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("tipo", c.TipoDeComprobante).Msg("cfdi: documento creado")
	return doc, nil
}

// Get devuelve el documento por ID.
func (s *DocumentService) Get(ctx context.Context, id string) (*dom.Document, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByUUID devuelve el documento por folio fiscal.
func (s *DocumentService) GetByUUID(ctx context.Context, uuid string) (*dom.Document, error) {
	return s.repo.GetByUUID(ctx, uuid)
}

// List devuelve los documentos que cumplen el filtro.
func (s *DocumentService) List(ctx context.Context, f repository.DocumentFilter) ([]*dom.Document, error) {
	return s.repo.List(ctx, f)
}

// ── Validación y sellado ────────────────────────────────────────────────────

// Validate aplica las reglas estructurales al comprobante y guarda el resultado en el documento.
func (s *DocumentService) Validate(ctx context.Context, id string) (*dom.ValidationResult, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	res := s.validate(doc)
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *DocumentService) validate(doc *dom.Document) *dom.ValidationResult {
	res := dom.Validate(doc.Comprobante, s.now())
	doc.Validation = res
	doc.UpdatedAt = s.now()
	return res
}

// Sign valida, sella con el CSD y genera el XML. Permite volver a sellar un documento sellado.
func (s *DocumentService) Sign(ctx context.Context, id string) (*dom.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.sign(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) sign(ctx context.Context, doc *dom.Document) error {
	if !dom.CanTransition(doc.Status, dom.StatusSealed) {
		return fmt.Errorf("cfdi: no se puede sellar un documento en estado %s: %w", doc.Status, domain.ErrInvalidTransition)
	}
	if s.sealer == nil {
		return fmt.Errorf("cfdi: CSD no configurado: %w", domain.ErrNotConfigured)
	}
	if res := s.validate(doc); !res.Valid {
		if err := s.repo.Update(ctx, doc); err != nil {
			s.log.Error().Err(err).Str("document_id", doc.ID).Msg("cfdi: no se pudo persistir la validación")
		}
		return res.Err()
	}

	sealed, err := s.sealer.Seal(doc.Comprobante)
	if err != nil {
		return s.fail(ctx, doc, "sellar", err)
	}
	xml, err := s.builder.Build(doc.Comprobante)
	if err != nil {
		return s.fail(ctx, doc, "generar XML", err)
	}
	doc.XML = xml
	doc.Cadena = sealed.Cadena
	doc.LastError = ""
	if err := doc.Transition(dom.StatusSealed, s.now(), ""); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return err
	}
	s.log.Info().Str("document_id", doc.ID).Str("no_certificado", sealed.NoCertificado).Msg("cfdi: comprobante sellado")
	return nil
}

// ── Timbrado ────────────────────────────────────────────────────────────────

// Stamp envía el XML sellado al PAC. Si el PAC falla el documento sigue en sealed.
func (s *DocumentService) Stamp(ctx context.Context, id string) (*dom.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.stamp(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) stamp(ctx context.Context, doc *dom.Document) error {
	if doc.Status != dom.StatusSealed {
		return fmt.Errorf("cfdi: solo se timbran documentos sellados (estado %s): %w", doc.Status, domain.ErrInvalidTransition)
	}
	if s.pac == nil {
		return fmt.Errorf("cfdi: PAC no configurado: %w", domain.ErrNotConfigured)
	}
	res, err := s.pac.Stamp(ctx, doc.XML)
	if err != nil {
		return s.fail(ctx, doc, "timbrar", err)
	}
	hash, err := cfdixml.CanonicalHash(res.XML)
	if err != nil {
		return s.fail(ctx, doc, "huella del XML timbrado", err)
	}
	tfd := res.Timbre
	if tfd == nil {
		if tfd, err = cfdixml.ParseTimbre(res.XML, s.loc); err != nil {
			return s.fail(ctx, doc, "leer timbre", err)
		}
	}

	doc.XML = res.XML
	doc.UUID = strings.ToUpper(res.UUID)
	doc.XMLHash = hash
	doc.Comprobante.Timbre = tfd
	doc.LastError = ""
	if err := doc.Transition(dom.StatusStamped, s.now(), s.pac.Name()); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return err
	}
	s.log.Info().Str("document_id", doc.ID).Str("uuid", doc.UUID).Str("pac", s.pac.Name()).Msg("cfdi: comprobante timbrado")
	return nil
}

// Process ejecuta validación, sellado y timbrado en una sola llamada.
func (s *DocumentService) Process(ctx context.Context, id string) (*dom.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == dom.StatusDraft {
		if err := s.sign(ctx, doc); err != nil {
			return doc, err
		}
	}
	if err := s.stamp(ctx, doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// fail registra el error en el documento sin cambiar su estado.
func (s *DocumentService) fail(ctx context.Context, doc *dom.Document, step string, cause error) error {
	doc.LastError = step + ": " + cause.Error()
	doc.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, doc); err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("cfdi: no se pudo persistir el error")
	}
	s.log.Warn().Err(cause).Str("document_id", doc.ID).Str("step", step).Msg("cfdi: paso fallido")
	return fmt.Errorf("cfdi: %s: %w", step, cause)
}

// ── SAT ─────────────────────────────────────────────────────────────────────

func (s *DocumentService) consulta(ctx context.Context, doc *dom.Document) (*dom.SATStatus, error) {
	if s.sat == nil {
		return nil, fmt.Errorf("cfdi: consulta SAT no configurada: %w", domain.ErrNotConfigured)
	}
	c := doc.Comprobante
	st, err := s.sat.Consulta(ctx, satws.Query{
		RfcEmisor:   c.Emisor.Rfc,
		RfcReceptor: c.Receptor.Rfc,
		Total:       c.Total,
		UUID:        doc.UUID,
	})
	if err != nil {
		return nil, err
	}
	doc.SAT = st
	return st, nil
}

// Verify consulta el estado del CFDI ante el SAT y sincroniza el estado del documento.
func (s *DocumentService) Verify(ctx context.Context, id string) (*dom.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.IsStamped() {
		return nil, fmt.Errorf("cfdi: el documento no está timbrado: %w", domain.ErrInvalidTransition)
	}
	st, err := s.consulta(ctx, doc)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch {
	case st.Estado == dom.SATEstadoVigente && doc.Status == dom.StatusStamped:
		err = doc.Transition(dom.StatusValid, now, st.CodigoEstatus)
	case st.Estado == dom.SATEstadoCancelado && doc.Status != dom.StatusCancelled:
		err = doc.Transition(dom.StatusCancelled, now, "cancelado en el SAT")
		s.resolveCancellation(doc, dom.CancellationAccepted, now)
	default:
		doc.UpdatedAt = now
	}
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ── Cancelación ─────────────────────────────────────────────────────────────

// Cancel solicita la cancelación al PAC. Si el receptor debe aceptarla el documento queda
// en cancellation_pending.
func (s *DocumentService) Cancel(ctx context.Context, id, motivo, folioSustitucion string) (*dom.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !dom.CanTransition(doc.Status, dom.StatusCancellationPending) {
		return nil, fmt.Errorf("cfdi: no se puede cancelar un documento en estado %s: %w", doc.Status, domain.ErrInvalidTransition)
	}
	if s.pac == nil {
		return nil, fmt.Errorf("cfdi: PAC no configurado: %w", domain.ErrNotConfigured)
	}
	c := doc.Comprobante
	res, err := s.pac.Cancel(ctx, pac.CancelRequest{
		UUID:             doc.UUID,
		RfcEmisor:        c.Emisor.Rfc,
		RfcReceptor:      c.Receptor.Rfc,
		Total:            c.Total,
		Motivo:           motivo,
		FolioSustitucion: strings.ToUpper(folioSustitucion),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, s.fail(ctx, doc, "cancelar", err)
	}

	now := s.now()
	doc.Cancellation = &dom.Cancellation{
		Motivo:           motivo,
		FolioSustitucion: strings.ToUpper(folioSustitucion),
		Status:           dom.CancellationRequested,
		Acuse:            res.Acuse,
		RequestedAt:      now,
	}
	doc.LastError = ""
	if res.Status == dom.CancellationAccepted {
		err = doc.Transition(dom.StatusCancelled, now, "motivo "+motivo)
		s.resolveCancellation(doc, dom.CancellationAccepted, now)
	} else {
		err = doc.Transition(dom.StatusCancellationPending, now, "motivo "+motivo)
		doc.Cancellation.Status = dom.CancellationPending
	}
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.log.Info().Str("document_id", doc.ID).Str("uuid", doc.UUID).Str("status", string(doc.Status)).Msg("cfdi: cancelación solicitada")
	return doc, nil
}

// RefreshCancellation consulta al SAT una cancelación pendiente: Cancelado la confirma, un rechazo
// del receptor devuelve el documento a valid.
func (s *DocumentService) RefreshCancellation(ctx context.Context, id string) (*dom.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != dom.StatusCancellationPending {
		return nil, fmt.Errorf("cfdi: el documento no tiene una cancelación pendiente: %w", domain.ErrInvalidTransition)
	}
	st, err := s.consulta(ctx, doc)
	if err != nil {
		return nil, err
	}
	now := s.now()
	switch {
	case st.Estado == dom.SATEstadoCancelado:
		err = doc.Transition(dom.StatusCancelled, now, st.EstatusCancelacion)
		s.resolveCancellation(doc, dom.CancellationAccepted, now)
	case strings.Contains(strings.ToLower(st.EstatusCancelacion), "rechaz"):
		err = doc.Transition(dom.StatusValid, now, st.EstatusCancelacion)
		s.resolveCancellation(doc, dom.CancellationRejected, now)
	default:
		doc.UpdatedAt = now
	}
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) resolveCancellation(doc *dom.Document, st dom.CancellationStatus, now time.Time) {
	if doc.Cancellation == nil {
		doc.Cancellation = &dom.Cancellation{RequestedAt: now}
	}
	doc.Cancellation.Status = st
	doc.Cancellation.ResolvedAt = &now
}

// ── Representación impresa ──────────────────────────────────────────────────

// RenderHTML genera la representación impresa en HTML.
func (s *DocumentService) RenderHTML(ctx context.Context, id string) ([]byte, error) {
	return s.render(ctx, id, s.html, "HTML")
}

// RenderPDF genera la representación impresa en PDF.
func (s *DocumentService) RenderPDF(ctx context.Context, id string) ([]byte, error) {
	return s.render(ctx, id, s.pdf, "PDF")
}

func (s *DocumentService) render(ctx context.Context, id string, r Renderer, kind string) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("cfdi: generador %s no configurado: %w", kind, domain.ErrNotConfigured)
	}
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.Render(ctx, doc)
}
