// Package cfditest provee comprobantes de ejemplo para pruebas de los paquetes CFDI.
package cfditest

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// Datos de los CSD de prueba publicados por el SAT.
const (
	RFCEmisor      = "EKU9003173C9"
	NombreEmisor   = "ESCUELA KEMPER URGATE"
	RFCReceptor    = "XOJI740919U48"
	NombreReceptor = "INGRID XODAR JIMENEZ"
	NoCertificado  = "30001000000500003416"
	UUIDOrigen     = "5FB2822E-396D-4725-8521-CDC4BDD20CCF"
)

// Fecha instante fijo de emisión usado por las pruebas.
var Fecha = time.Date(2024, 5, 10, 10, 30, 0, 0, time.UTC)

// Factura devuelve un CFDI de ingreso válido: 2 piezas de 500.00 con IVA 16%.
func Factura() *cfdi.Comprobante {
	tasa := decimal.RequireFromString("0.16")
	return &cfdi.Comprobante{
		Version:           sat.VersionCFDI,
		Serie:             "A",
		Folio:             "123",
		Fecha:             Fecha,
		FormaPago:         sat.FormaPagoTransferencia,
		NoCertificado:     NoCertificado,
		SubTotal:          decimal.NewFromInt(1000),
		Moneda:            sat.MonedaMXN,
		Total:             decimal.NewFromInt(1160),
		TipoDeComprobante: sat.TipoComprobanteIngreso,
		Exportacion:       sat.ExportacionNoAplica,
		MetodoPago:        sat.MetodoPagoUnaExhibicion,
		LugarExpedicion:   "06600",
		Emisor: cfdi.Emisor{
			Rfc:           RFCEmisor,
			Nombre:        NombreEmisor,
			RegimenFiscal: "601",
		},
		Receptor: cfdi.Receptor{
			Rfc:                     RFCReceptor,
			Nombre:                  NombreReceptor,
			DomicilioFiscalReceptor: "88965",
			RegimenFiscalReceptor:   "612",
			UsoCFDI:                 sat.UsoGastosEnGeneral,
		},
		Conceptos: []cfdi.Concepto{{
			ClaveProdServ:    "43232408",
			NoIdentificacion: "SKU-1",
			Cantidad:         decimal.NewFromInt(2),
			ClaveUnidad:      sat.ClaveUnidadPieza,
			Unidad:           "Pieza",
			Descripcion:      "Licencia de software",
			ValorUnitario:    decimal.NewFromInt(500),
			Importe:          decimal.NewFromInt(1000),
			ObjetoImp:        sat.ObjetoImpSi,
			Impuestos: &cfdi.ConceptoImpuestos{
				Traslados: []cfdi.Traslado{{
					Base:       decimal.NewFromInt(1000),
					Impuesto:   sat.ImpuestoIVA,
					TipoFactor: sat.TipoFactorTasa,
					TasaOCuota: cfdi.Dec(tasa),
					Importe:    cfdi.Dec(decimal.NewFromInt(160)),
				}},
			},
		}},
		Impuestos: &cfdi.Impuestos{
			TotalImpuestosTrasladados: cfdi.Dec(decimal.NewFromInt(160)),
			Traslados: []cfdi.Traslado{{
				Base:       decimal.NewFromInt(1000),
				Impuesto:   sat.ImpuestoIVA,
				TipoFactor: sat.TipoFactorTasa,
				TasaOCuota: cfdi.Dec(tasa),
				Importe:    cfdi.Dec(decimal.NewFromInt(160)),
			}},
		},
	}
}

// ComprobantePago devuelve un CFDI de tipo P que liquida 1160.00 de la factura UUIDOrigen.
func ComprobantePago() *cfdi.Comprobante {
	c := Factura()
	c.TipoDeComprobante = sat.TipoComprobantePago
	c.FormaPago = ""
	c.MetodoPago = ""
	c.Moneda = sat.MonedaSinMoneda
	c.SubTotal = decimal.Zero
	c.Total = decimal.Zero
	c.Impuestos = nil
	c.Receptor.UsoCFDI = sat.UsoPagos
	c.Conceptos = []cfdi.Concepto{{
		ClaveProdServ: sat.ClaveProdServPago,
		Cantidad:      decimal.NewFromInt(1),
		ClaveUnidad:   sat.ClaveUnidadActividad,
		Descripcion:   "Pago",
		ValorUnitario: decimal.Zero,
		Importe:       decimal.Zero,
		ObjetoImp:     sat.ObjetoImpNo,
	}}
	monto := decimal.NewFromInt(1160)
	c.Pagos = &cfdi.Pagos{
		Version: sat.VersionPagos,
		Totales: cfdi.PagosTotales{
			TotalTrasladosBaseIVA16:     cfdi.Dec(decimal.NewFromInt(1000)),
			TotalTrasladosImpuestoIVA16: cfdi.Dec(decimal.NewFromInt(160)),
			MontoTotalPagos:             monto,
		},
		Pago: []cfdi.Pago{{
			FechaPago:    Fecha.Add(-time.Hour),
			FormaDePagoP: sat.FormaPagoTransferencia,
			MonedaP:      sat.MonedaMXN,
			TipoCambioP:  cfdi.Dec(decimal.NewFromInt(1)),
			Monto:        monto,
			DoctoRelacionado: []cfdi.DoctoRelacionado{{
				IdDocumento:      UUIDOrigen,
				MonedaDR:         sat.MonedaMXN,
				EquivalenciaDR:   cfdi.Dec(decimal.NewFromInt(1)),
				NumParcialidad:   1,
				ImpSaldoAnt:      monto,
				ImpPagado:        monto,
				ImpSaldoInsoluto: decimal.Zero,
				ObjetoImpDR:      sat.ObjetoImpNo,
			}},
		}},
	}
	return c
}
