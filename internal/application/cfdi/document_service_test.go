package cfdi_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfdi "github.com/jhoicas/integraciones-api/internal/application/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain"
	dom "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi/cfditest"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/pac"
	satws "github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/sat"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/signer"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/signer/signertest"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/memory"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/pdf"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

var ahora = cfditest.Fecha.Add(time.Minute)

// ── Dobles de prueba ────────────────────────────────────────────────────────

type fakeSAT struct {
	status *dom.SATStatus
	err    error
	last   satws.Query
}

func (f *fakeSAT) Consulta(_ context.Context, q satws.Query) (*dom.SATStatus, error) {
	f.last = q
	if f.err != nil {
		return nil, f.err
	}
	st := *f.status
	return &st, nil
}

// scriptedPAC delega en el mock salvo cuando se programa un error o un estado de cancelación.
type scriptedPAC struct {
	*pac.MockProvider
	stampErr     error
	cancelStatus dom.CancellationStatus
}

func (p *scriptedPAC) Stamp(ctx context.Context, xml []byte) (*pac.StampResult, error) {
	if p.stampErr != nil {
		return nil, p.stampErr
	}
	return p.MockProvider.Stamp(ctx, xml)
}

func (p *scriptedPAC) Cancel(ctx context.Context, req pac.CancelRequest) (*pac.CancelResult, error) {
	res, err := p.MockProvider.Cancel(ctx, req)
	if err != nil {
		return nil, err
	}
	if p.cancelStatus != "" {
		res.Status = p.cancelStatus
	}
	return res, nil
}

type fixture struct {
	svc  *appcfdi.DocumentService
	repo *memory.DocumentRepository
	pac  *scriptedPAC
	sat  *fakeSAT
}

func newFixture(t *testing.T, mutate ...func(*appcfdi.Deps)) *fixture {
	t.Helper()
	mat, err := signertest.Default()
	require.NoError(t, err)

	f := &fixture{
		repo: memory.NewDocumentRepository(),
		pac:  &scriptedPAC{MockProvider: pac.NewMockProvider(pac.WithClock(func() time.Time { return ahora }))},
		sat:  &fakeSAT{status: &dom.SATStatus{CodigoEstatus: "S - Comprobante obtenido satisfactoriamente.", Estado: dom.SATEstadoVigente}},
	}
	deps := appcfdi.Deps{
		Repo:   f.repo,
		Sealer: signer.NewCSDSigner(mat.Credential),
		PAC:    f.pac,
		SAT:    f.sat,
		HTML:   pdf.NewHTMLRenderer(),
		PDF:    pdf.NewMarotoPDFGenerator(),
	}
	for _, m := range mutate {
		m(&deps)
	}
	seq := 0
	f.svc = appcfdi.NewDocumentService(deps,
		appcfdi.WithClock(func() time.Time { return ahora }),
		appcfdi.WithIDGenerator(func() string { seq++; return fmt.Sprintf("doc-%d", seq) }),
	)
	return f
}

func (f *fixture) stamped(t *testing.T) *dom.Document {
	t.Helper()
	doc, err := f.svc.Create(context.Background(), cfditest.Factura())
	require.NoError(t, err)
	doc, err = f.svc.Process(context.Background(), doc.ID)
	require.NoError(t, err)
	return doc
}

// ── Ciclo de vida ───────────────────────────────────────────────────────────

func TestDocumentService_ProcessTimbra(t *testing.T) {
	f := newFixture(t)
	doc := f.stamped(t)

	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, dom.StatusStamped, doc.Status)
	assert.True(t, sat.IsUUID(doc.UUID))
	assert.NotEmpty(t, doc.XMLHash)
	assert.NotEmpty(t, doc.Cadena)
	require.NotNil(t, doc.Comprobante.Timbre)
	assert.Equal(t, doc.UUID, doc.Comprobante.Timbre.UUID)
	assert.Contains(t, string(doc.XML), "tfd:TimbreFiscalDigital")
	require.Len(t, doc.History, 2)
	assert.Equal(t, dom.StatusSealed, doc.History[0].To)

	porUUID, err := f.svc.GetByUUID(context.Background(), doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, porUUID.ID)
}

func TestDocumentService_SignComprobanteInvalido(t *testing.T) {
	f := newFixture(t)
	c := cfditest.Factura()
	c.Receptor.Rfc = "ABC"
	doc, err := f.svc.Create(context.Background(), c)
	require.NoError(t, err)

	_, err = f.svc.Sign(context.Background(), doc.ID)
	assert.ErrorIs(t, err, dom.ErrInvalidComprobante)

	guardado, err := f.svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusDraft, guardado.Status)
	require.NotNil(t, guardado.Validation)
	assert.True(t, guardado.Validation.HasCode("CFDI40130"))
}

// repoSinUpdate falla al actualizar; el alta se delega en el almacén en memoria.
type repoSinUpdate struct {
	*memory.DocumentRepository
}

func (r repoSinUpdate) Update(context.Context, *dom.Document) error {
	return errors.New("almacén no disponible")
}

func TestDocumentService_SignInvalidoRegistraFalloDePersistencia(t *testing.T) {
	var logs bytes.Buffer
	f := newFixture(t, func(d *appcfdi.Deps) {
		d.Repo = repoSinUpdate{memory.NewDocumentRepository()}
		d.Logger = zerolog.New(&logs)
	})
	c := cfditest.Factura()
	c.Receptor.Rfc = "ABC"
	doc, err := f.svc.Create(context.Background(), c)
	require.NoError(t, err)

	_, err = f.svc.Sign(context.Background(), doc.ID)
	assert.ErrorIs(t, err, dom.ErrInvalidComprobante)
	assert.Contains(t, logs.String(), "no se pudo persistir la validación")
	assert.Contains(t, logs.String(), "almacén no disponible")
	assert.Contains(t, logs.String(), doc.ID)
}

func TestDocumentService_SinCSD(t *testing.T) {
	f := newFixture(t, func(d *appcfdi.Deps) { d.Sealer = nil })
	doc, err := f.svc.Create(context.Background(), cfditest.Factura())
	require.NoError(t, err)

	_, err = f.svc.Sign(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestDocumentService_StampFallidoConservaSellado(t *testing.T) {
	f := newFixture(t)
	f.pac.stampErr = &pac.ProviderError{Provider: "mock", Code: "CFDI40108", Message: "tipo inválido", Err: pac.ErrStampRejected}

	doc, err := f.svc.Create(context.Background(), cfditest.Factura())
	require.NoError(t, err)
	_, err = f.svc.Process(context.Background(), doc.ID)
	require.ErrorIs(t, err, pac.ErrStampRejected)

	guardado, err := f.svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusSealed, guardado.Status)
	assert.Contains(t, guardado.LastError, "CFDI40108")

	f.pac.stampErr = nil
	reintento, err := f.svc.Stamp(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusStamped, reintento.Status)
	assert.Empty(t, reintento.LastError)
}

func TestDocumentService_StampRequiereSellado(t *testing.T) {
	f := newFixture(t)
	doc, err := f.svc.Create(context.Background(), cfditest.Factura())
	require.NoError(t, err)

	_, err = f.svc.Stamp(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ── SAT ─────────────────────────────────────────────────────────────────────

func TestDocumentService_VerifyVigente(t *testing.T) {
	f := newFixture(t)
	doc := f.stamped(t)

	doc, err := f.svc.Verify(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusValid, doc.Status)
	require.NotNil(t, doc.SAT)
	assert.Equal(t, dom.SATEstadoVigente, doc.SAT.Estado)
	assert.Equal(t, doc.UUID, f.sat.last.UUID)
	assert.Equal(t, cfditest.RFCEmisor, f.sat.last.RfcEmisor)
	assert.Equal(t, "1160.00", dom.FormatImporte(f.sat.last.Total))
}

func TestDocumentService_VerifyCanceladoEnSAT(t *testing.T) {
	f := newFixture(t)
	doc := f.stamped(t)
	f.sat.status = &dom.SATStatus{Estado: dom.SATEstadoCancelado}

	doc, err := f.svc.Verify(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusCancelled, doc.Status)
	require.NotNil(t, doc.Cancellation)
	assert.Equal(t, dom.CancellationAccepted, doc.Cancellation.Status)
}

func TestDocumentService_VerifyBorrador(t *testing.T) {
	f := newFixture(t)
	doc, err := f.svc.Create(context.Background(), cfditest.Factura())
	require.NoError(t, err)

	_, err = f.svc.Verify(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ── Cancelación ─────────────────────────────────────────────────────────────

func TestDocumentService_CancelAceptada(t *testing.T) {
	f := newFixture(t)
	doc := f.stamped(t)

	doc, err := f.svc.Cancel(context.Background(), doc.ID, sat.MotivoErroresSinRelacion, "")
	require.NoError(t, err)
	assert.Equal(t, dom.StatusCancelled, doc.Status)
	require.NotNil(t, doc.Cancellation)
	assert.Equal(t, dom.CancellationAccepted, doc.Cancellation.Status)
	assert.NotNil(t, doc.Cancellation.ResolvedAt)
	assert.NotEmpty(t, doc.Cancellation.Acuse)
}

func TestDocumentService_CancelPendienteYRechazada(t *testing.T) {
	f := newFixture(t)
	f.pac.cancelStatus = dom.CancellationPending
	doc := f.stamped(t)

	doc, err := f.svc.Cancel(context.Background(), doc.ID, sat.MotivoNoSeLlevoACabo, "")
	require.NoError(t, err)
	assert.Equal(t, dom.StatusCancellationPending, doc.Status)
	assert.Equal(t, dom.CancellationPending, doc.Cancellation.Status)

	f.sat.status = &dom.SATStatus{Estado: dom.SATEstadoVigente, EstatusCancelacion: "Solicitud rechazada"}
	doc, err = f.svc.RefreshCancellation(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusValid, doc.Status)
	assert.Equal(t, dom.CancellationRejected, doc.Cancellation.Status)
}

func TestDocumentService_CancelPendienteConfirmada(t *testing.T) {
	f := newFixture(t)
	f.pac.cancelStatus = dom.CancellationPending
	doc := f.stamped(t)

	_, err := f.svc.Cancel(context.Background(), doc.ID, sat.MotivoNoSeLlevoACabo, "")
	require.NoError(t, err)

	f.sat.status = &dom.SATStatus{Estado: dom.SATEstadoVigente, EstatusCancelacion: "En proceso"}
	doc, err = f.svc.RefreshCancellation(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusCancellationPending, doc.Status)

	f.sat.status = &dom.SATStatus{Estado: dom.SATEstadoCancelado, EstatusCancelacion: "Cancelado con aceptación"}
	doc, err = f.svc.RefreshCancellation(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusCancelled, doc.Status)
	assert.Equal(t, dom.CancellationAccepted, doc.Cancellation.Status)
}

func TestDocumentService_CancelBorrador(t *testing.T) {
	f := newFixture(t)
	doc, err := f.svc.Create(context.Background(), cfditest.Factura())
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), doc.ID, sat.MotivoErroresSinRelacion, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestDocumentService_CancelMotivoInvalido(t *testing.T) {
	f := newFixture(t)
	doc := f.stamped(t)

	_, err := f.svc.Cancel(context.Background(), doc.ID, sat.MotivoErroresConRelacion, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	guardado, err := f.svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusStamped, guardado.Status)
	assert.Empty(t, guardado.LastError)
}

func TestDocumentService_RefreshSinCancelacion(t *testing.T) {
	f := newFixture(t)
	doc := f.stamped(t)

	_, err := f.svc.RefreshCancellation(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

// ── Representación impresa ──────────────────────────────────────────────────

func TestDocumentService_Render(t *testing.T) {
	f := newFixture(t)
	doc := f.stamped(t)

	html, err := f.svc.RenderHTML(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Contains(t, string(html), doc.UUID)

	out, err := f.svc.RenderPDF(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(out[:4]))
}

func TestDocumentService_RenderSinGenerador(t *testing.T) {
	f := newFixture(t, func(d *appcfdi.Deps) { d.PDF = nil })
	doc := f.stamped(t)

	_, err := f.svc.RenderPDF(context.Background(), doc.ID)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestDocumentService_NoEncontrado(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Process(context.Background(), "no-existe")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
