package cfdi_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcfdi "github.com/jhoicas/integraciones-api/internal/application/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain"
	dom "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi/cfditest"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

func newFacade(t *testing.T) (*appcfdi.Facade, *fixture) {
	t.Helper()
	f := newFixture(t)
	return appcfdi.NewFacade(f.svc, appcfdi.FacadeConfig{
		Emisor: dom.Emisor{
			Rfc:           cfditest.RFCEmisor,
			Nombre:        cfditest.NombreEmisor,
			RegimenFiscal: "601",
		},
		LugarExpedicion: "06600",
		Serie:           "F",
	}), f
}

func receptor() appcfdi.ReceptorInput {
	return appcfdi.ReceptorInput{
		Rfc:             "xoji740919u48",
		Nombre:          "Ingrid Xodar Jimenez",
		DomicilioFiscal: "88965",
		RegimenFiscal:   "612",
	}
}

func licencias() []appcfdi.LineInput {
	return []appcfdi.LineInput{{
		ClaveProdServ: "43232408",
		Cantidad:      decimal.NewFromInt(2),
		ClaveUnidad:   sat.ClaveUnidadPieza,
		Descripcion:   "Licencia de software",
		ValorUnitario: decimal.NewFromInt(500),
	}}
}

func valido(t *testing.T, f *fixture, id string) {
	t.Helper()
	res, err := f.svc.Validate(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, res.Valid, "errores: %v", res.Errors)
}

func TestFacade_CreateInvoiceConIVAPorDefecto(t *testing.T) {
	fc, _ := newFacade(t)
	doc, err := fc.CreateInvoice(context.Background(), appcfdi.InvoiceInput{
		FormaPago:   sat.FormaPagoTransferencia,
		MetodoPago:  sat.MetodoPagoUnaExhibicion,
		Receptor:    receptor(),
		Lines:       licencias(),
		AutoProcess: true,
	})
	require.NoError(t, err)

	c := doc.Comprobante
	assert.Equal(t, dom.StatusStamped, doc.Status)
	assert.Equal(t, "F", c.Serie)
	assert.Equal(t, "XOJI740919U48", c.Receptor.Rfc)
	assert.Equal(t, "INGRID XODAR JIMENEZ", c.Receptor.Nombre)
	assert.Equal(t, sat.UsoGastosEnGeneral, c.Receptor.UsoCFDI)
	assert.Equal(t, ahora, c.Fecha)
	assert.Equal(t, "1000.00", dom.FormatImporte(c.SubTotal))
	assert.Equal(t, "1160.00", dom.FormatImporte(c.Total))
	require.NotNil(t, c.Conceptos[0].Impuestos)
	assert.Equal(t, sat.ObjetoImpSi, c.Conceptos[0].ObjetoImp)
	assert.Equal(t, "160.00", dom.OptImporte(c.Impuestos.TotalImpuestosTrasladados))
}

func TestFacade_CreateInvoiceDescuentoRetencionYExento(t *testing.T) {
	fc, f := newFacade(t)
	lines := licencias()
	lines[0].Descuento = decimal.NewFromInt(100)
	lines[0].Traslados = []appcfdi.TaxInput{{Impuesto: sat.ImpuestoIVA, TipoFactor: sat.TipoFactorTasa, Tasa: decimal.RequireFromString("0.16")}}
	lines[0].Retenciones = []appcfdi.TaxInput{{Impuesto: sat.ImpuestoISR, TipoFactor: sat.TipoFactorTasa, Tasa: decimal.RequireFromString("0.10")}}
	lines = append(lines, appcfdi.LineInput{
		ClaveProdServ: "86121700",
		Cantidad:      decimal.NewFromInt(1),
		ClaveUnidad:   sat.ClaveUnidadServicio,
		Descripcion:   "Curso",
		ValorUnitario: decimal.NewFromInt(200),
		Traslados:     []appcfdi.TaxInput{{Impuesto: sat.ImpuestoIVA, TipoFactor: sat.TipoFactorExento}},
	})

	doc, err := fc.CreateInvoice(context.Background(), appcfdi.InvoiceInput{
		FormaPago:  sat.FormaPagoTransferencia,
		MetodoPago: sat.MetodoPagoUnaExhibicion,
		Receptor:   receptor(),
		Lines:      lines,
	})
	require.NoError(t, err)
	assert.Equal(t, dom.StatusDraft, doc.Status)

	c := doc.Comprobante
	// 1200 - 100 + 900×0.16 - 900×0.10
	assert.Equal(t, "1200.00", dom.FormatImporte(c.SubTotal))
	assert.Equal(t, "100.00", dom.OptImporte(c.Descuento))
	assert.Equal(t, "1154.00", dom.FormatImporte(c.Total))
	assert.Nil(t, c.Conceptos[1].Impuestos.Traslados[0].TasaOCuota)
	valido(t, f, doc.ID)
}

func TestFacade_EntradaInvalida(t *testing.T) {
	fc, _ := newFacade(t)
	r := receptor()
	r.Rfc = "NO-ES-RFC"
	lines := licencias()
	lines[0].Cantidad = decimal.Zero

	_, err := fc.CreateInvoice(context.Background(), appcfdi.InvoiceInput{
		FormaPago:  sat.FormaPagoTransferencia,
		MetodoPago: "XYZ",
		Receptor:   r,
		Lines:      lines,
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "receptor.rfc: RFC inválido")
	assert.Contains(t, err.Error(), "conceptos[0].cantidad: debe ser mayor que 0")
	assert.Contains(t, err.Error(), "metodo_pago: debe ser uno de: PUE PPD")
}

func TestFacade_SinConceptos(t *testing.T) {
	fc, _ := newFacade(t)
	_, err := fc.CreateInvoice(context.Background(), appcfdi.InvoiceInput{
		FormaPago:  sat.FormaPagoTransferencia,
		MetodoPago: sat.MetodoPagoUnaExhibicion,
		Receptor:   receptor(),
	})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "conceptos: es obligatorio")
}

func TestFacade_CreateCreditNote(t *testing.T) {
	fc, f := newFacade(t)
	lines := licencias()
	lines[0].Cantidad = decimal.NewFromInt(1)

	doc, err := fc.CreateCreditNote(context.Background(), appcfdi.CreditNoteInput{
		InvoiceInput: appcfdi.InvoiceInput{
			FormaPago:  sat.FormaPagoTransferencia,
			MetodoPago: sat.MetodoPagoUnaExhibicion,
			Receptor:   receptor(),
			Lines:      lines,
		},
		OriginUUIDs: []string{"5fb2822e-396d-4725-8521-cdc4bdd20ccf"},
	})
	require.NoError(t, err)

	c := doc.Comprobante
	assert.Equal(t, sat.TipoComprobanteEgreso, c.TipoDeComprobante)
	assert.Equal(t, sat.UsoDevoluciones, c.Receptor.UsoCFDI)
	require.Len(t, c.CfdiRelacionados, 1)
	assert.Equal(t, sat.RelacionNotaCredito, c.CfdiRelacionados[0].TipoRelacion)
	assert.Equal(t, []string{cfditest.UUIDOrigen}, c.CfdiRelacionados[0].UUIDs)
	assert.Equal(t, "580.00", dom.FormatImporte(c.Total))
	valido(t, f, doc.ID)
}

func TestFacade_CreditNoteSinOrigen(t *testing.T) {
	fc, _ := newFacade(t)
	_, err := fc.CreateCreditNote(context.Background(), appcfdi.CreditNoteInput{
		InvoiceInput: appcfdi.InvoiceInput{
			FormaPago:  sat.FormaPagoTransferencia,
			MetodoPago: sat.MetodoPagoUnaExhibicion,
			Receptor:   receptor(),
			Lines:      licencias(),
		},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func pagoFactura(pagado int64) appcfdi.PaymentReceiptInput {
	tasa := decimal.RequireFromString("0.16")
	return appcfdi.PaymentReceiptInput{
		Receptor: receptor(),
		Pagos: []appcfdi.PaymentInput{{
			FechaPago:    cfditest.Fecha.Add(-time.Hour),
			FormaDePagoP: sat.FormaPagoTransferencia,
			Documentos: []appcfdi.PaidDocumentInput{{
				UUID:           cfditest.UUIDOrigen,
				NumParcialidad: 1,
				SaldoAnterior:  decimal.NewFromInt(1160),
				Pagado:         decimal.NewFromInt(pagado),
				TasaIVA:        &tasa,
			}},
		}},
	}
}

func TestFacade_CreatePaymentReceipt(t *testing.T) {
	fc, _ := newFacade(t)
	in := pagoFactura(1160)
	in.AutoProcess = true

	doc, err := fc.CreatePaymentReceipt(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, dom.StatusStamped, doc.Status)

	c := doc.Comprobante
	assert.Equal(t, sat.TipoComprobantePago, c.TipoDeComprobante)
	assert.Equal(t, sat.MonedaSinMoneda, c.Moneda)
	assert.Equal(t, sat.UsoPagos, c.Receptor.UsoCFDI)
	assert.True(t, c.Total.IsZero())
	assert.Equal(t, sat.ClaveProdServPago, c.Conceptos[0].ClaveProdServ)

	p := c.Pagos
	require.NotNil(t, p)
	assert.Equal(t, "1160.00", dom.FormatImporte(p.Totales.MontoTotalPagos))
	assert.Equal(t, "1000.00", dom.OptImporte(p.Totales.TotalTrasladosBaseIVA16))
	assert.Equal(t, "160.00", dom.OptImporte(p.Totales.TotalTrasladosImpuestoIVA16))
	dr := p.Pago[0].DoctoRelacionado[0]
	assert.Equal(t, sat.ObjetoImpSi, dr.ObjetoImpDR)
	assert.True(t, dr.ImpSaldoInsoluto.IsZero())
	require.NotNil(t, p.Pago[0].ImpuestosP)
	assert.Equal(t, "1000.00", dom.FormatImporte(p.Pago[0].ImpuestosP.TrasladosP[0].Base))
	assert.Contains(t, string(doc.XML), "pago20:TrasladoP")
}

func TestFacade_PagoParcial(t *testing.T) {
	fc, f := newFacade(t)
	doc, err := fc.CreatePaymentReceipt(context.Background(), pagoFactura(580))
	require.NoError(t, err)

	dr := doc.Comprobante.Pagos.Pago[0].DoctoRelacionado[0]
	assert.Equal(t, "580.00", dom.FormatImporte(dr.ImpSaldoInsoluto))
	assert.Equal(t, "500.00", dom.FormatImporte(dr.ImpuestosDR.TrasladosDR[0].Base))
	valido(t, f, doc.ID)
}

func TestFacade_PagoExcedeSaldo(t *testing.T) {
	fc, _ := newFacade(t)
	_, err := fc.CreatePaymentReceipt(context.Background(), pagoFactura(2000))
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "excede el saldo")
}

func TestFacade_RelacionaUUIDRecienTimbrado(t *testing.T) {
	fc, _ := newFacade(t)
	ctx := context.Background()
	factura, err := fc.CreateInvoice(ctx, appcfdi.InvoiceInput{
		FormaPago:   sat.FormaPagoPorDefinir,
		MetodoPago:  sat.MetodoPagoParcialidades,
		Receptor:    receptor(),
		Lines:       licencias(),
		AutoProcess: true,
	})
	require.NoError(t, err)
	require.Equal(t, dom.StatusStamped, factura.Status)
	require.True(t, sat.IsUUID(factura.UUID))
	assert.Equal(t, strings.ToUpper(factura.UUID), factura.UUID)

	lines := licencias()
	lines[0].Cantidad = decimal.NewFromInt(1)
	nota, err := fc.CreateCreditNote(ctx, appcfdi.CreditNoteInput{
		InvoiceInput: appcfdi.InvoiceInput{
			FormaPago:  sat.FormaPagoTransferencia,
			MetodoPago: sat.MetodoPagoUnaExhibicion,
			Receptor:   receptor(),
			Lines:      lines,
		},
		OriginUUIDs: []string{factura.UUID},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{factura.UUID}, nota.Comprobante.CfdiRelacionados[0].UUIDs)

	in := pagoFactura(1160)
	in.Pagos[0].Documentos[0].UUID = factura.UUID
	in.AutoProcess = true
	pago, err := fc.CreatePaymentReceipt(ctx, in)
	require.NoError(t, err)
	require.Equal(t, dom.StatusStamped, pago.Status)
	assert.Equal(t, factura.UUID, pago.Comprobante.Pagos.Pago[0].DoctoRelacionado[0].IdDocumento)

	xml := string(pago.XML)
	assert.Contains(t, xml, `SubTotal="0"`)
	assert.Contains(t, xml, `Total="0"`)
	assert.Contains(t, xml, `ValorUnitario="0" Importe="0"`)
}

func TestFacade_CreateTransfer(t *testing.T) {
	fc, f := newFacade(t)
	doc, err := fc.CreateTransfer(context.Background(), appcfdi.TransferInput{
		Receptor: receptor(),
		Lines:    licencias(),
	})
	require.NoError(t, err)

	c := doc.Comprobante
	assert.Equal(t, sat.TipoComprobanteTraslado, c.TipoDeComprobante)
	assert.Equal(t, sat.UsoSinEfectosFiscales, c.Receptor.UsoCFDI)
	assert.Equal(t, sat.MonedaSinMoneda, c.Moneda)
	assert.True(t, c.Total.IsZero())
	assert.Nil(t, c.Impuestos)
	assert.Empty(t, c.FormaPago)
	valido(t, f, doc.ID)
}
