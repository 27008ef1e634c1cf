package pac

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	cfdixml "github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// Datos del PAC de pruebas.
const (
	MockRfcProvCertif    = "SPR190613I52"
	MockNoCertificadoSAT = "00001000000509846663"
)

// mockNamespace espacio de nombres para derivar UUIDs deterministas.
var mockNamespace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

var _ Provider = (*MockProvider)(nil)

// MockProvider PAC simulado para desarrollo y pruebas: el mismo XML produce el mismo UUID.
type MockProvider struct {
	now func() time.Time
}

// MockOption configura el MockProvider.
type MockOption func(*MockProvider)

// WithClock reemplaza el reloj usado para FechaTimbrado.
func WithClock(now func() time.Time) MockOption {
	return func(m *MockProvider) { m.now = now }
}

// NewMockProvider crea el PAC simulado.
func NewMockProvider(opts ...MockOption) *MockProvider {
	m := &MockProvider{now: time.Now}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MockProvider) Name() string { return "mock" }

// Stamp agrega un TimbreFiscalDigital 1.1 al XML sellado.
func (m *MockProvider) Stamp(_ context.Context, xml []byte) (*StampResult, error) {
	info, err := cfdixml.ReadSealInfo(xml)
	if err != nil {
		return nil, &ProviderError{Provider: m.Name(), Code: "301", Message: err.Error(), Err: ErrStampRejected}
	}
	if info.Sello == "" || info.NoCertificado == "" {
		return nil, &ProviderError{Provider: m.Name(), Code: "302", Message: "el comprobante no está sellado", Err: ErrStampRejected}
	}

	tfd := &cfdi.TimbreFiscalDigital{
		Version:          sat.VersionTFD,
		UUID:             strings.ToUpper(uuid.NewSHA1(mockNamespace, xml).String()),
		FechaTimbrado:    m.now().Truncate(time.Second),
		RfcProvCertif:    MockRfcProvCertif,
		SelloCFD:         info.Sello,
		NoCertificadoSAT: MockNoCertificadoSAT,
	}
	cadena, err := cfdi.CadenaTimbre(tfd)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(cadena))
	tfd.SelloSAT = base64.StdEncoding.EncodeToString(sum[:])

	out, err := cfdixml.InjectTimbre(xml, tfd)
	if err != nil {
		return nil, &ProviderError{Provider: m.Name(), Code: "307", Message: err.Error(), Err: ErrStampRejected}
	}
	return &StampResult{UUID: tfd.UUID, XML: out, Timbre: tfd}, nil
}

// Cancel acepta toda solicitud válida.
func (m *MockProvider) Cancel(_ context.Context, req CancelRequest) (*CancelResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &CancelResult{
		UUID:          strings.ToUpper(req.UUID),
		Status:        cfdi.CancellationAccepted,
		CodigoEstatus: "201",
		Acuse:         fmt.Sprintf("<Acuse Fecha=%q UUID=%q EstatusUUID=\"201\"/>", cfdi.FormatFecha(m.now()), strings.ToUpper(req.UUID)),
	}, nil
}

func (m *MockProvider) Ping(context.Context) error { return nil }
