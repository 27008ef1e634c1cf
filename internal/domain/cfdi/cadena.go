package cfdi

import (
	"errors"
	"strconv"
	"strings"
)

// ErrComprobanteNil se devuelve cuando se pide la cadena de un comprobante nulo.
var ErrComprobanteNil = errors.New("cfdi: comprobante nulo")

// cadenaBuilder acumula los valores de la cadena original en el orden de la XSLT
// cadenaoriginal_4_0. req agrega siempre; opt solo si el valor no está vacío.
type cadenaBuilder struct {
	parts []string
}

func (b *cadenaBuilder) req(v string) {
	b.parts = append(b.parts, NormalizeSpace(v))
}

func (b *cadenaBuilder) opt(v string) {
	if n := NormalizeSpace(v); n != "" {
		b.parts = append(b.parts, n)
	}
}

func (b *cadenaBuilder) String() string {
	return "||" + strings.Join(b.parts, "|") + "||"
}

// NormalizeSpace equivale a normalize-space() de XPath: recorta y colapsa espacios.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CadenaOriginal genera la cadena original del comprobante (Anexo 20, CFDI 4.0).
// Sello, Certificado y el Timbre Fiscal Digital no participan.
func CadenaOriginal(c *Comprobante) (string, error) {
	if c == nil {
		return "", ErrComprobanteNil
	}
	var b cadenaBuilder

	// ── Comprobante ──────────────────────────────────────────────────────────
	b.req(c.Version)
	b.opt(c.Serie)
	b.opt(c.Folio)
	b.req(FormatFecha(c.Fecha))
	b.opt(c.FormaPago)
	b.req(c.NoCertificado)
	b.opt(c.CondicionesDePago)
	b.req(FormatMonto(c.SubTotal, c.Moneda))
	b.opt(OptMonto(c.Descuento, c.Moneda))
	b.req(c.Moneda)
	b.opt(OptTipoCambio(c.TipoCambio))
	b.req(FormatMonto(c.Total, c.Moneda))
	b.req(c.TipoDeComprobante)
	b.req(c.Exportacion)
	b.opt(c.MetodoPago)
	b.req(c.LugarExpedicion)
	b.opt(c.Confirmacion)

	if g := c.InformacionGlobal; g != nil {
		b.req(g.Periodicidad)
		b.req(g.Meses)
		b.req(g.Anio)
	}

	for _, rel := range c.CfdiRelacionados {
		b.req(rel.TipoRelacion)
		for _, u := range rel.UUIDs {
			b.req(u)
		}
	}

	// ── Emisor / Receptor ────────────────────────────────────────────────────
	b.req(c.Emisor.Rfc)
	b.req(c.Emisor.Nombre)
	b.req(c.Emisor.RegimenFiscal)
	b.opt(c.Emisor.FacAtrAdquirente)

	b.req(c.Receptor.Rfc)
	b.req(c.Receptor.Nombre)
	b.req(c.Receptor.DomicilioFiscalReceptor)
	b.opt(c.Receptor.ResidenciaFiscal)
	b.opt(c.Receptor.NumRegIdTrib)
	b.req(c.Receptor.RegimenFiscalReceptor)
	b.req(c.Receptor.UsoCFDI)

	// ── Conceptos ────────────────────────────────────────────────────────────
	for _, con := range c.Conceptos {
		b.req(con.ClaveProdServ)
		b.opt(con.NoIdentificacion)
		b.req(FormatCantidad(con.Cantidad))
		b.req(con.ClaveUnidad)
		b.opt(con.Unidad)
		b.req(con.Descripcion)
		b.req(FormatMonto(con.ValorUnitario, c.Moneda))
		b.req(FormatMonto(con.Importe, c.Moneda))
		b.opt(OptMonto(con.Descuento, c.Moneda))
		b.req(con.ObjetoImp)
		if imp := con.Impuestos; imp != nil {
			for _, t := range imp.Traslados {
				writeTraslado(&b, t)
			}
			for _, r := range imp.Retenciones {
				b.req(FormatImporte(r.Base))
				b.req(r.Impuesto)
				b.req(r.TipoFactor)
				b.req(FormatTasa(r.TasaOCuota))
				b.req(FormatImporte(r.Importe))
			}
		}
		if t := con.ACuentaTerceros; t != nil {
			b.req(t.RfcACuentaTerceros)
			b.req(t.NombreACuentaTerceros)
			b.req(t.RegimenFiscalACuentaTerceros)
			b.req(t.DomicilioFiscalACuentaTerceros)
		}
		for _, p := range con.InformacionAduanera {
			b.req(p)
		}
		for _, n := range con.CuentaPredial {
			b.req(n)
		}
	}

	// ── Impuestos del comprobante: primero los nodos, luego los totales ─────
	if imp := c.Impuestos; imp != nil {
		for _, r := range imp.Retenciones {
			b.req(r.Impuesto)
			b.req(FormatImporte(r.Importe))
		}
		b.opt(OptImporte(imp.TotalImpuestosRetenidos))
		for _, t := range imp.Traslados {
			writeTraslado(&b, t)
		}
		b.opt(OptImporte(imp.TotalImpuestosTrasladados))
	}

	if c.Pagos != nil {
		writePagos(&b, c.Pagos)
	}

	return b.String(), nil
}

func writeTraslado(b *cadenaBuilder, t Traslado) {
	b.req(FormatImporte(t.Base))
	b.req(t.Impuesto)
	b.req(t.TipoFactor)
	b.opt(OptTasa(t.TasaOCuota))
	b.opt(OptImporte(t.Importe))
}

// writePagos agrega el complemento de pagos 2.0 (XSLT pagos20).
func writePagos(b *cadenaBuilder, p *Pagos) {
	b.req(p.Version)
	t := p.Totales
	b.opt(OptImporte(t.TotalRetencionesIVA))
	b.opt(OptImporte(t.TotalRetencionesISR))
	b.opt(OptImporte(t.TotalRetencionesIEPS))
	b.opt(OptImporte(t.TotalTrasladosBaseIVA16))
	b.opt(OptImporte(t.TotalTrasladosImpuestoIVA16))
	b.opt(OptImporte(t.TotalTrasladosBaseIVA8))
	b.opt(OptImporte(t.TotalTrasladosImpuestoIVA8))
	b.opt(OptImporte(t.TotalTrasladosBaseIVA0))
	b.opt(OptImporte(t.TotalTrasladosImpuestoIVA0))
	b.opt(OptImporte(t.TotalTrasladosBaseIVAExento))
	b.req(FormatImporte(t.MontoTotalPagos))

	for _, pago := range p.Pago {
		b.req(FormatFecha(pago.FechaPago))
		b.req(pago.FormaDePagoP)
		b.req(pago.MonedaP)
		b.opt(OptTipoCambio(pago.TipoCambioP))
		b.req(FormatImporte(pago.Monto))
		b.opt(pago.NumOperacion)
		for _, dr := range pago.DoctoRelacionado {
			b.req(dr.IdDocumento)
			b.opt(dr.Serie)
			b.opt(dr.Folio)
			b.req(dr.MonedaDR)
			b.opt(OptTipoCambio(dr.EquivalenciaDR))
			b.req(strconv.Itoa(dr.NumParcialidad))
			b.req(FormatImporte(dr.ImpSaldoAnt))
			b.req(FormatImporte(dr.ImpPagado))
			b.req(FormatImporte(dr.ImpSaldoInsoluto))
			b.req(dr.ObjetoImpDR)
			if imp := dr.ImpuestosDR; imp != nil {
				for _, r := range imp.RetencionesDR {
					writeTraslado(b, r)
				}
				for _, t := range imp.TrasladosDR {
					writeTraslado(b, t)
				}
			}
		}
		if imp := pago.ImpuestosP; imp != nil {
			for _, r := range imp.RetencionesP {
				b.req(r.Impuesto)
				b.req(FormatImporte(r.Importe))
			}
			for _, t := range imp.TrasladosP {
				writeTraslado(b, t)
			}
		}
	}
}

// CadenaTimbre genera la cadena original del complemento TimbreFiscalDigital 1.1.
func CadenaTimbre(t *TimbreFiscalDigital) (string, error) {
	if t == nil {
		return "", errors.New("cfdi: timbre nulo")
	}
	var b cadenaBuilder
	b.req(t.Version)
	b.req(t.UUID)
	b.req(FormatFecha(t.FechaTimbrado))
	b.req(t.RfcProvCertif)
	b.opt(t.Leyenda)
	b.req(t.SelloCFD)
	b.req(t.NoCertificadoSAT)
	return b.String(), nil
}
