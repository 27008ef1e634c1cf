package cfdi_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi/cfditest"
)

// ──────────────────────────────────────────────────────────────────────────────
// La cadena original es la entrada del sello digital: cualquier cambio en el
// orden de los atributos, en el formato de los montos o en la omisión de
// opcionales produce un sello que el SAT rechaza. El vector se armó siguiendo
// la XSLT cadenaoriginal_4_0 atributo por atributo.
// ──────────────────────────────────────────────────────────────────────────────

const cadenaFacturaEsperada = "||4.0|A|123|2024-05-10T10:30:00|03|30001000000500003416|1000.00|MXN|1160.00|I|01|PUE|06600" +
	"|EKU9003173C9|ESCUELA KEMPER URGATE|601" +
	"|XOJI740919U48|INGRID XODAR JIMENEZ|88965|612|G03" +
	"|43232408|SKU-1|2.00|H87|Pieza|Licencia de software|500.00|1000.00|02" +
	"|1000.00|002|Tasa|0.160000|160.00" +
	"|1000.00|002|Tasa|0.160000|160.00|160.00||"

func TestCadenaOriginal_VectorExacto(t *testing.T) {
	cadena, err := cfdi.CadenaOriginal(cfditest.Factura())
	require.NoError(t, err)
	assert.Equal(t, cadenaFacturaEsperada, cadena)
}

func TestCadenaOriginal_IgnoraSelloCertificadoYTimbre(t *testing.T) {
	c := cfditest.Factura()
	c.Sello = "SELLO"
	c.Certificado = "CERT"
	c.Timbre = &cfdi.TimbreFiscalDigital{UUID: cfditest.UUIDOrigen}

	cadena, err := cfdi.CadenaOriginal(c)
	require.NoError(t, err)
	assert.Equal(t, cadenaFacturaEsperada, cadena)
}

func TestCadenaOriginal_NormalizaEspacios(t *testing.T) {
	c := cfditest.Factura()
	c.Conceptos[0].Descripcion = "  Licencia   de\tsoftware \n"

	cadena, err := cfdi.CadenaOriginal(c)
	require.NoError(t, err)
	assert.Equal(t, cadenaFacturaEsperada, cadena)
}

func TestCadenaOriginal_OpcionalesPresentes(t *testing.T) {
	c := cfditest.Factura()
	c.Moneda = "USD"
	c.TipoCambio = cfdi.Dec(decimal.RequireFromString("17.2500"))
	c.Descuento = cfdi.Dec(decimal.NewFromInt(10))
	c.CfdiRelacionados = []cfdi.CfdiRelacionados{{TipoRelacion: "04", UUIDs: []string{cfditest.UUIDOrigen}}}

	cadena, err := cfdi.CadenaOriginal(c)
	require.NoError(t, err)
	assert.Contains(t, cadena, "|1000.00|10.00|USD|17.25|1160.00|")
	assert.Contains(t, cadena, "|06600|04|"+cfditest.UUIDOrigen+"|EKU9003173C9|")
}

func TestCadenaOriginal_ComplementoPagos(t *testing.T) {
	cadena, err := cfdi.CadenaOriginal(cfditest.ComprobantePago())
	require.NoError(t, err)

	assert.Contains(t, cadena, "|0|XXX|0|P|")
	assert.Contains(t, cadena, "|84111506|1.00|ACT|Pago|0|0|01|")
	assert.Contains(t, cadena,
		"|2.0|1000.00|160.00|1160.00|2024-05-10T09:30:00|03|MXN|1|1160.00|"+
			cfditest.UUIDOrigen+"|MXN|1|1|1160.00|1160.00|0.00|01||")
}

func TestCadenaOriginal_Nil(t *testing.T) {
	_, err := cfdi.CadenaOriginal(nil)
	assert.ErrorIs(t, err, cfdi.ErrComprobanteNil)
}

func TestCadenaTimbre_Formato(t *testing.T) {
	tfd := &cfdi.TimbreFiscalDigital{
		Version:          "1.1",
		UUID:             cfditest.UUIDOrigen,
		FechaTimbrado:    time.Date(2024, 5, 10, 10, 31, 0, 0, time.UTC),
		RfcProvCertif:    "SPR190613I52",
		SelloCFD:         "abc==",
		NoCertificadoSAT: "00001000000509846663",
	}
	cadena, err := cfdi.CadenaTimbre(tfd)
	require.NoError(t, err)
	assert.Equal(t, "||1.1|"+cfditest.UUIDOrigen+"|2024-05-10T10:31:00|SPR190613I52|abc==|00001000000509846663||", cadena)
}

func TestFormatMonto_DecimalesPorMoneda(t *testing.T) {
	d := decimal.RequireFromString("1160")
	assert.Equal(t, "1160.00", cfdi.FormatMonto(d, "MXN"))
	assert.Equal(t, "1160.00", cfdi.FormatMonto(d, "USD"))
	assert.Equal(t, "0", cfdi.FormatMonto(decimal.Zero, "XXX"))
	assert.Equal(t, "", cfdi.OptMonto(nil, "XXX"))
}

func TestFormatCantidad_DecimalesMinimosYMaximos(t *testing.T) {
	casos := map[string]string{
		"1":         "1.00",
		"1.5":       "1.50",
		"2.125":     "2.125",
		"0.1234567": "0.123457",
		"10.000000": "10.00",
	}
	for in, want := range casos {
		assert.Equal(t, want, cfdi.FormatCantidad(decimal.RequireFromString(in)), in)
	}
}
