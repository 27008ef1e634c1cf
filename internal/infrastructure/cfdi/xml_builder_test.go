package cfdi_test

import (
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi/cfditest"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi"
)

func parse(t *testing.T, b []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(b))
	require.NotNil(t, doc.Root())
	return doc.Root()
}

func attrNames(el *etree.Element) []string {
	out := make([]string, 0, len(el.Attr))
	for _, a := range el.Attr {
		out = append(out, a.FullKey())
	}
	return out
}

func TestBuild_FacturaOrdenDeAtributos(t *testing.T) {
	xmlBytes, err := cfdi.NewXMLBuilderService().Build(cfditest.Factura())
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(xmlBytes), `<?xml version="1.0" encoding="UTF-8"?>`))

	root := parse(t, xmlBytes)
	assert.Equal(t, "cfdi:Comprobante", root.FullTag())
	assert.Equal(t, []string{
		"xmlns:cfdi", "xmlns:xsi", "xsi:schemaLocation",
		"Version", "Serie", "Folio", "Fecha", "FormaPago", "NoCertificado", "SubTotal", "Moneda",
		"Total", "TipoDeComprobante", "Exportacion", "MetodoPago", "LugarExpedicion",
	}, attrNames(root))
	assert.Equal(t, "2024-05-10T10:30:00", root.SelectAttrValue("Fecha", ""))
	assert.Equal(t, "1160.00", root.SelectAttrValue("Total", ""))

	children := root.ChildElements()
	require.Len(t, children, 4)
	assert.Equal(t, []string{"cfdi:Emisor", "cfdi:Receptor", "cfdi:Conceptos", "cfdi:Impuestos"},
		[]string{children[0].FullTag(), children[1].FullTag(), children[2].FullTag(), children[3].FullTag()})

	traslado := root.FindElement("./cfdi:Conceptos/cfdi:Concepto/cfdi:Impuestos/cfdi:Traslados/cfdi:Traslado")
	require.NotNil(t, traslado)
	assert.Equal(t, "0.160000", traslado.SelectAttrValue("TasaOCuota", ""))
	assert.Equal(t, "160.00", traslado.SelectAttrValue("Importe", ""))

	concepto := root.FindElement("./cfdi:Conceptos/cfdi:Concepto")
	assert.Equal(t, "2.00", concepto.SelectAttrValue("Cantidad", ""))
}

func TestBuild_ComprobantePagoDeclaraPago20(t *testing.T) {
	xmlBytes, err := cfdi.NewXMLBuilderService().Build(cfditest.ComprobantePago())
	require.NoError(t, err)

	root := parse(t, xmlBytes)
	assert.Equal(t, cfdi.NsPago20, root.SelectAttrValue("xmlns:pago20", ""))
	assert.Contains(t, root.SelectAttrValue("xsi:schemaLocation", ""), "Pagos20.xsd")
	assert.Empty(t, root.SelectAttrValue("FormaPago", ""))
	assert.Equal(t, "0", root.SelectAttrValue("SubTotal", ""))
	assert.Equal(t, "0", root.SelectAttrValue("Total", ""))
	concepto := root.FindElement("./cfdi:Conceptos/cfdi:Concepto")
	require.NotNil(t, concepto)
	assert.Equal(t, "0", concepto.SelectAttrValue("ValorUnitario", ""))
	assert.Equal(t, "0", concepto.SelectAttrValue("Importe", ""))

	dr := root.FindElement("./cfdi:Complemento/pago20:Pagos/pago20:Pago/pago20:DoctoRelacionado")
	require.NotNil(t, dr)
	assert.Equal(t, cfditest.UUIDOrigen, dr.SelectAttrValue("IdDocumento", ""))
	assert.Equal(t, "1", dr.SelectAttrValue("NumParcialidad", ""))
	totales := root.FindElement("./cfdi:Complemento/pago20:Pagos/pago20:Totales")
	require.NotNil(t, totales)
	assert.Equal(t, "1160.00", totales.SelectAttrValue("MontoTotalPagos", ""))
}

func TestBuild_EscapaCaracteresEspeciales(t *testing.T) {
	c := cfditest.Factura()
	c.Receptor.Nombre = `PEREZ & "HIJOS" <SA>`
	xmlBytes, err := cfdi.NewXMLBuilderService().Build(c)
	require.NoError(t, err)

	root := parse(t, xmlBytes)
	assert.Equal(t, `PEREZ & "HIJOS" <SA>`, root.SelectElement("cfdi:Receptor").SelectAttrValue("Nombre", ""))
}

func TestBuild_XMLYCadenaCoinciden(t *testing.T) {
	c := cfditest.Factura()
	c.Conceptos[0].Descripcion = "  Licencia   de software "
	svc := cfdi.NewXMLBuilderService()
	xmlBytes, err := svc.Build(c)
	require.NoError(t, err)
	cadena, err := svc.CadenaOriginal(c)
	require.NoError(t, err)

	desc := parse(t, xmlBytes).FindElement("./cfdi:Conceptos/cfdi:Concepto").SelectAttrValue("Descripcion", "")
	assert.Equal(t, "Licencia de software", desc)
	assert.Contains(t, cadena, "|"+desc+"|")
}

func TestInjectTimbre_YParseTimbre(t *testing.T) {
	xmlBytes, err := cfdi.NewXMLBuilderService().Build(cfditest.Factura())
	require.NoError(t, err)
	tfd := &domain.TimbreFiscalDigital{
		Version:          "1.1",
		UUID:             cfditest.UUIDOrigen,
		FechaTimbrado:    time.Date(2024, 5, 10, 10, 31, 0, 0, time.UTC),
		RfcProvCertif:    "SPR190613I52",
		SelloCFD:         "sello==",
		NoCertificadoSAT: "00001000000509846663",
		SelloSAT:         "sat==",
	}

	stamped, err := cfdi.InjectTimbre(xmlBytes, tfd)
	require.NoError(t, err)

	got, err := cfdi.ParseTimbre(stamped, nil)
	require.NoError(t, err)
	assert.Equal(t, tfd, got)

	_, err = cfdi.InjectTimbre(stamped, tfd)
	assert.Error(t, err, "no se debe timbrar dos veces")
}

func TestParseTimbre_SinTimbre(t *testing.T) {
	xmlBytes, err := cfdi.NewXMLBuilderService().Build(cfditest.Factura())
	require.NoError(t, err)
	_, err = cfdi.ParseTimbre(xmlBytes, nil)
	assert.Error(t, err)
}

func TestReadSealInfo(t *testing.T) {
	c := cfditest.Factura()
	c.Sello = "abc"
	c.Certificado = "MIIC"
	xmlBytes, err := cfdi.NewXMLBuilderService().Build(c)
	require.NoError(t, err)

	info, err := cfdi.ReadSealInfo(xmlBytes)
	require.NoError(t, err)
	assert.Equal(t, "abc", info.Sello)
	assert.Equal(t, "MIIC", info.Certificado)
	assert.Equal(t, cfditest.RFCEmisor, info.EmisorRfc)
	assert.Equal(t, cfditest.RFCReceptor, info.ReceptorRfc)
	assert.Equal(t, "1160.00", info.Total)
}

func TestCanonicalHash_IgnoraOrdenDeAtributos(t *testing.T) {
	a, err := cfdi.CanonicalHash([]byte(`<a x="1" y="2"/>`))
	require.NoError(t, err)
	b, err := cfdi.CanonicalHash([]byte(`<a y="2" x="1"></a>`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	c, err := cfdi.CanonicalHash([]byte(`<a x="1" y="3"/>`))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}
