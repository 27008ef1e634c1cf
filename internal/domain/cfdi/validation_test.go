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

var ahora = cfditest.Fecha.Add(time.Hour)

func TestValidate_FacturaValida(t *testing.T) {
	res := cfdi.Validate(cfditest.Factura(), ahora)
	require.True(t, res.Valid, "errores: %v", res.Errors)
	assert.Empty(t, res.Errors)
	assert.NoError(t, res.Err())
}

func TestValidate_ComprobantePagoValido(t *testing.T) {
	res := cfdi.Validate(cfditest.ComprobantePago(), ahora)
	assert.True(t, res.Valid, "errores: %v", res.Errors)
}

func TestValidate_Nil(t *testing.T) {
	res := cfdi.Validate(nil, ahora)
	assert.False(t, res.Valid)
	assert.ErrorIs(t, res.Err(), cfdi.ErrInvalidComprobante)
}

func TestValidate_ReglasIndividuales(t *testing.T) {
	casos := []struct {
		nombre string
		codigo string
		mutar  func(c *cfdi.Comprobante)
	}{
		{"version", "CFDI40101", func(c *cfdi.Comprobante) { c.Version = "3.3" }},
		{"fecha futura", "CFDI40103", func(c *cfdi.Comprobante) { c.Fecha = ahora.Add(time.Hour) }},
		{"fecha vencida", "CFDI40104", func(c *cfdi.Comprobante) { c.Fecha = ahora.Add(-73 * time.Hour) }},
		{"lugar expedición", "CFDI40105", func(c *cfdi.Comprobante) { c.LugarExpedicion = "66" }},
		{"moneda", "CFDI40106", func(c *cfdi.Comprobante) { c.Moneda = "ZZZ" }},
		{"tipo de cambio USD", "CFDI40107", func(c *cfdi.Comprobante) { c.Moneda = "USD" }},
		{"tipo comprobante", "CFDI40108", func(c *cfdi.Comprobante) { c.TipoDeComprobante = "X" }},
		{"exportación", "CFDI40109", func(c *cfdi.Comprobante) { c.Exportacion = "09" }},
		{"método pago", "CFDI40110", func(c *cfdi.Comprobante) { c.MetodoPago = "" }},
		{"forma pago", "CFDI40111", func(c *cfdi.Comprobante) { c.FormaPago = "77" }},
		{"PPD sin 99", "CFDI40112", func(c *cfdi.Comprobante) { c.MetodoPago = "PPD" }},
		{"serie larga", "CFDI40113", func(c *cfdi.Comprobante) { c.Serie = "ABCDEFGHIJKLMNOPQRSTUVWXYZ" }},
		{"rfc emisor", "CFDI40120", func(c *cfdi.Comprobante) { c.Emisor.Rfc = "ABC" }},
		{"régimen emisor", "CFDI40122", func(c *cfdi.Comprobante) { c.Emisor.RegimenFiscal = "612" }},
		{"rfc receptor", "CFDI40130", func(c *cfdi.Comprobante) { c.Receptor.Rfc = "XOJI741319U48" }},
		{"domicilio receptor", "CFDI40132", func(c *cfdi.Comprobante) { c.Receptor.DomicilioFiscalReceptor = "" }},
		{"régimen receptor", "CFDI40133", func(c *cfdi.Comprobante) { c.Receptor.RegimenFiscalReceptor = "601" }},
		{"uso cfdi", "CFDI40134", func(c *cfdi.Comprobante) { c.Receptor.UsoCFDI = "Z99" }},
		{"rfc genérico", "CFDI40136", func(c *cfdi.Comprobante) { c.Receptor.Rfc = "XAXX010101000" }},
		{"sin conceptos", "CFDI40140", func(c *cfdi.Comprobante) { c.Conceptos = nil }},
		{"clave prod serv", "CFDI40141", func(c *cfdi.Comprobante) { c.Conceptos[0].ClaveProdServ = "123" }},
		{"cantidad cero", "CFDI40142", func(c *cfdi.Comprobante) { c.Conceptos[0].Cantidad = decimal.Zero }},
		{"importe", "CFDI40146", func(c *cfdi.Comprobante) { c.Conceptos[0].Importe = decimal.NewFromInt(999) }},
		{"descuento mayor", "CFDI40147", func(c *cfdi.Comprobante) { c.Conceptos[0].Descuento = cfdi.Dec(decimal.NewFromInt(2000)) }},
		{"objeto imp", "CFDI40148", func(c *cfdi.Comprobante) { c.Conceptos[0].ObjetoImp = "09" }},
		{"objeto imp 01 con impuestos", "CFDI40149", func(c *cfdi.Comprobante) { c.Conceptos[0].ObjetoImp = "01" }},
		{"tasa iva", "CFDI40152", func(c *cfdi.Comprobante) {
			c.Conceptos[0].Impuestos.Traslados[0].TasaOCuota = cfdi.Dec(decimal.RequireFromString("0.15"))
		}},
		{"importe traslado", "CFDI40154", func(c *cfdi.Comprobante) {
			c.Conceptos[0].Impuestos.Traslados[0].Importe = cfdi.Dec(decimal.NewFromInt(150))
		}},
		{"subtotal", "CFDI40160", func(c *cfdi.Comprobante) { c.SubTotal = decimal.NewFromInt(900) }},
		{"total trasladados", "CFDI40163", func(c *cfdi.Comprobante) {
			c.Impuestos.TotalImpuestosTrasladados = cfdi.Dec(decimal.NewFromInt(10))
		}},
		{"total", "CFDI40165", func(c *cfdi.Comprobante) { c.Total = decimal.NewFromInt(1000) }},
		{"egreso sin relación", "CFDI40174", func(c *cfdi.Comprobante) { c.TipoDeComprobante = "E" }},
		{"uuid relacionado", "CFDI40181", func(c *cfdi.Comprobante) {
			c.CfdiRelacionados = []cfdi.CfdiRelacionados{{TipoRelacion: "04", UUIDs: []string{"no-es-uuid"}}}
		}},
	}

	for _, tc := range casos {
		t.Run(tc.nombre, func(t *testing.T) {
			c := cfditest.Factura()
			tc.mutar(c)
			res := cfdi.Validate(c, ahora)
			assert.False(t, res.Valid)
			assert.True(t, res.HasCode(tc.codigo), "se esperaba %s; errores: %v", tc.codigo, res.Errors)
			assert.ErrorIs(t, res.Err(), cfdi.ErrInvalidComprobante)
		})
	}
}

func TestValidate_ComprobantePagoReglas(t *testing.T) {
	c := cfditest.ComprobantePago()
	c.Moneda = "MXN"
	c.Total = decimal.NewFromInt(1)
	c.Pagos.Pago[0].DoctoRelacionado[0].ImpSaldoInsoluto = decimal.NewFromInt(5)
	c.Pagos.Totales.MontoTotalPagos = decimal.NewFromInt(10)

	res := cfdi.Validate(c, ahora)
	assert.False(t, res.Valid)
	for _, code := range []string{"CFDI40170", "CFDI40196", "CFDI40198"} {
		assert.True(t, res.HasCode(code), "falta %s: %v", code, res.Errors)
	}
}

func TestValidate_PagoSinComplemento(t *testing.T) {
	c := cfditest.ComprobantePago()
	c.Pagos = nil
	res := cfdi.Validate(c, ahora)
	assert.True(t, res.HasCode("CFDI40171"))
}

func TestValidate_TrasladoConTotal(t *testing.T) {
	c := cfditest.Factura()
	c.TipoDeComprobante = "T"
	c.FormaPago = ""
	c.MetodoPago = ""
	c.Receptor.UsoCFDI = "S01"
	res := cfdi.Validate(c, ahora)
	assert.True(t, res.HasCode("CFDI40173"))
}

func TestValidate_AdvertenciasNoInvalidan(t *testing.T) {
	c := cfditest.Factura()
	c.Receptor.Nombre = "Ingrid Xodar Jimenez"
	c.Conceptos[0].ClaveProdServ = "01010101"

	res := cfdi.Validate(c, ahora)
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 2)
	assert.NoError(t, res.Err())
}

func TestComputeTotals_RecalculaImportesEImpuestos(t *testing.T) {
	c := cfditest.Factura()
	c.SubTotal = decimal.Zero
	c.Total = decimal.Zero
	c.Impuestos = nil
	c.Conceptos[0].Importe = decimal.Zero
	c.Conceptos[0].Impuestos.Traslados[0].Importe = nil

	c.ComputeTotals()

	assert.Equal(t, "1000.00", cfdi.FormatImporte(c.SubTotal))
	assert.Equal(t, "1160.00", cfdi.FormatImporte(c.Total))
	require.NotNil(t, c.Impuestos)
	assert.Equal(t, "160.00", cfdi.OptImporte(c.Impuestos.TotalImpuestosTrasladados))
	assert.True(t, cfdi.Validate(c, ahora).Valid)
}

func TestComputeTotals_AgrupaPorTasaYRetenciones(t *testing.T) {
	c := cfditest.Factura()
	segunda := c.Conceptos[0]
	segunda.Impuestos = &cfdi.ConceptoImpuestos{
		Traslados: []cfdi.Traslado{{
			Base: decimal.NewFromInt(1000), Impuesto: "002", TipoFactor: "Tasa",
			TasaOCuota: cfdi.Dec(decimal.RequireFromString("0.16")),
		}},
		Retenciones: []cfdi.Retencion{{
			Base: decimal.NewFromInt(1000), Impuesto: "001", TipoFactor: "Tasa",
			TasaOCuota: decimal.RequireFromString("0.10"),
		}},
	}
	c.Conceptos = append(c.Conceptos, segunda)

	c.ComputeTotals()

	require.Len(t, c.Impuestos.Traslados, 1)
	assert.Equal(t, "2000.00", cfdi.FormatImporte(c.Impuestos.Traslados[0].Base))
	assert.Equal(t, "320.00", cfdi.OptImporte(c.Impuestos.TotalImpuestosTrasladados))
	assert.Equal(t, "100.00", cfdi.OptImporte(c.Impuestos.TotalImpuestosRetenidos))
	assert.Equal(t, "2220.00", cfdi.FormatImporte(c.Total))
	assert.True(t, cfdi.Validate(c, ahora).Valid, "%v", cfdi.Validate(c, ahora).Errors)
}
