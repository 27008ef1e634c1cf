// Package cfdi genera y procesa la representación XML del CFDI 4.0 (Anexo 20).
package cfdi

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	domain "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
)

// Namespaces y ubicaciones de esquema oficiales del SAT.
const (
	NsCfdi   = "http://www.sat.gob.mx/cfd/4"
	NsPago20 = "http://www.sat.gob.mx/Pagos20"
	NsTfd    = "http://www.sat.gob.mx/TimbreFiscalDigital"
	nsXsi    = "http://www.w3.org/2001/XMLSchema-instance"

	schemaCfdi   = "http://www.sat.gob.mx/cfd/4 http://www.sat.gob.mx/sitio_internet/cfd/4/cfdv40.xsd"
	schemaPago20 = "http://www.sat.gob.mx/Pagos20 http://www.sat.gob.mx/sitio_internet/cfd/Pagos/Pagos20.xsd"
	schemaTfd    = "http://www.sat.gob.mx/TimbreFiscalDigital http://www.sat.gob.mx/sitio_internet/cfd/TimbreFiscalDigital/TimbreFiscalDigitalv11.xsd"
)

// XMLBuilderService construye el XML del comprobante y su cadena original con los mismos
// formateadores, de modo que ambos coinciden valor por valor.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// CadenaOriginal delega en el dominio; expuesta junto a Build para los consumidores del XML.
func (s *XMLBuilderService) CadenaOriginal(c *domain.Comprobante) (string, error) {
	return domain.CadenaOriginal(c)
}

// attrs lista ordenada de atributos; el orden de inserción es el orden de salida.
type attrs []xml.Attr

func (a *attrs) req(name, value string) {
	*a = append(*a, xml.Attr{Name: xml.Name{Local: name}, Value: domain.NormalizeSpace(value)})
}

func (a *attrs) opt(name, value string) {
	if v := domain.NormalizeSpace(value); v != "" {
		*a = append(*a, xml.Attr{Name: xml.Name{Local: name}, Value: v})
	}
}

// elementWriter acumula el primer error de codificación para no verificar cada token.
type elementWriter struct {
	enc *xml.Encoder
	err error
}

func (w *elementWriter) start(name string, a attrs) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}, Attr: a})
}

func (w *elementWriter) end(name string) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

func (w *elementWriter) empty(name string, a attrs) {
	w.start(name, a)
	w.end(name)
}

// Build genera el XML del comprobante. Sello y Certificado se emiten solo si ya existen;
// el Timbre Fiscal Digital se emite si el comprobante ya fue timbrado.
func (s *XMLBuilderService) Build(c *domain.Comprobante) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("cfdi: comprobante nulo")
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	w := &elementWriter{enc: enc}

	schema := schemaCfdi
	root := attrs{
		{Name: xml.Name{Local: "xmlns:cfdi"}, Value: NsCfdi},
		{Name: xml.Name{Local: "xmlns:xsi"}, Value: nsXsi},
	}
	if c.Pagos != nil {
		root = append(root, xml.Attr{Name: xml.Name{Local: "xmlns:pago20"}, Value: NsPago20})
		schema += " " + schemaPago20
	}
	root = append(root, xml.Attr{Name: xml.Name{Local: "xsi:schemaLocation"}, Value: schema})

	root.req("Version", c.Version)
	root.opt("Serie", c.Serie)
	root.opt("Folio", c.Folio)
	root.req("Fecha", domain.FormatFecha(c.Fecha))
	root.opt("Sello", c.Sello)
	root.opt("FormaPago", c.FormaPago)
	root.req("NoCertificado", c.NoCertificado)
	root.opt("Certificado", c.Certificado)
	root.opt("CondicionesDePago", c.CondicionesDePago)
	root.req("SubTotal", domain.FormatMonto(c.SubTotal, c.Moneda))
	root.opt("Descuento", domain.OptMonto(c.Descuento, c.Moneda))
	root.req("Moneda", c.Moneda)
	root.opt("TipoCambio", domain.OptTipoCambio(c.TipoCambio))
	root.req("Total", domain.FormatMonto(c.Total, c.Moneda))
	root.req("TipoDeComprobante", c.TipoDeComprobante)
	root.req("Exportacion", c.Exportacion)
	root.opt("MetodoPago", c.MetodoPago)
	root.req("LugarExpedicion", c.LugarExpedicion)
	root.opt("Confirmacion", c.Confirmacion)
	w.start("cfdi:Comprobante", root)

	if g := c.InformacionGlobal; g != nil {
		var a attrs
		a.req("Periodicidad", g.Periodicidad)
		a.req("Meses", g.Meses)
		a.req("Año", g.Anio)
		w.empty("cfdi:InformacionGlobal", a)
	}

	for _, rel := range c.CfdiRelacionados {
		var a attrs
		a.req("TipoRelacion", rel.TipoRelacion)
		w.start("cfdi:CfdiRelacionados", a)
		for _, u := range rel.UUIDs {
			var ua attrs
			ua.req("UUID", u)
			w.empty("cfdi:CfdiRelacionado", ua)
		}
		w.end("cfdi:CfdiRelacionados")
	}

	s.writeEmisor(w, c.Emisor)
	s.writeReceptor(w, c.Receptor)
	s.writeConceptos(w, c.Conceptos, c.Moneda)
	if c.Impuestos != nil {
		s.writeImpuestos(w, c.Impuestos)
	}

	if c.Pagos != nil || c.Timbre != nil {
		w.start("cfdi:Complemento", nil)
		if c.Pagos != nil {
			s.writePagos(w, c.Pagos)
		}
		if c.Timbre != nil {
			writeTimbre(w, c.Timbre)
		}
		w.end("cfdi:Complemento")
	}

	w.end("cfdi:Comprobante")
	if w.err != nil {
		return nil, fmt.Errorf("cfdi: codificar XML: %w", w.err)
	}
	if err := enc.Flush(); err != nil {
		return nil, fmt.Errorf("cfdi: codificar XML: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *XMLBuilderService) writeEmisor(w *elementWriter, e domain.Emisor) {
	var a attrs
	a.req("Rfc", e.Rfc)
	a.req("Nombre", e.Nombre)
	a.req("RegimenFiscal", e.RegimenFiscal)
	a.opt("FacAtrAdquirente", e.FacAtrAdquirente)
	w.empty("cfdi:Emisor", a)
}

func (s *XMLBuilderService) writeReceptor(w *elementWriter, r domain.Receptor) {
	var a attrs
	a.req("Rfc", r.Rfc)
	a.req("Nombre", r.Nombre)
	a.req("DomicilioFiscalReceptor", r.DomicilioFiscalReceptor)
	a.opt("ResidenciaFiscal", r.ResidenciaFiscal)
	a.opt("NumRegIdTrib", r.NumRegIdTrib)
	a.req("RegimenFiscalReceptor", r.RegimenFiscalReceptor)
	a.req("UsoCFDI", r.UsoCFDI)
	w.empty("cfdi:Receptor", a)
}

func (s *XMLBuilderService) writeConceptos(w *elementWriter, conceptos []domain.Concepto, moneda string) {
	w.start("cfdi:Conceptos", nil)
	for _, con := range conceptos {
		var a attrs
		a.req("ClaveProdServ", con.ClaveProdServ)
		a.opt("NoIdentificacion", con.NoIdentificacion)
		a.req("Cantidad", domain.FormatCantidad(con.Cantidad))
		a.req("ClaveUnidad", con.ClaveUnidad)
		a.opt("Unidad", con.Unidad)
		a.req("Descripcion", con.Descripcion)
		a.req("ValorUnitario", domain.FormatMonto(con.ValorUnitario, moneda))
		a.req("Importe", domain.FormatMonto(con.Importe, moneda))
		a.opt("Descuento", domain.OptMonto(con.Descuento, moneda))
		a.req("ObjetoImp", con.ObjetoImp)
		w.start("cfdi:Concepto", a)

		if imp := con.Impuestos; imp != nil && (len(imp.Traslados) > 0 || len(imp.Retenciones) > 0) {
			w.start("cfdi:Impuestos", nil)
			if len(imp.Traslados) > 0 {
				w.start("cfdi:Traslados", nil)
				for _, t := range imp.Traslados {
					w.empty("cfdi:Traslado", trasladoAttrs(t, ""))
				}
				w.end("cfdi:Traslados")
			}
			if len(imp.Retenciones) > 0 {
				w.start("cfdi:Retenciones", nil)
				for _, r := range imp.Retenciones {
					var ra attrs
					ra.req("Base", domain.FormatImporte(r.Base))
					ra.req("Impuesto", r.Impuesto)
					ra.req("TipoFactor", r.TipoFactor)
					ra.req("TasaOCuota", domain.FormatTasa(r.TasaOCuota))
					ra.req("Importe", domain.FormatImporte(r.Importe))
					w.empty("cfdi:Retencion", ra)
				}
				w.end("cfdi:Retenciones")
			}
			w.end("cfdi:Impuestos")
		}
		if t := con.ACuentaTerceros; t != nil {
			var ta attrs
			ta.req("RfcACuentaTerceros", t.RfcACuentaTerceros)
			ta.req("NombreACuentaTerceros", t.NombreACuentaTerceros)
			ta.req("RegimenFiscalACuentaTerceros", t.RegimenFiscalACuentaTerceros)
			ta.req("DomicilioFiscalACuentaTerceros", t.DomicilioFiscalACuentaTerceros)
			w.empty("cfdi:ACuentaTerceros", ta)
		}
		for _, p := range con.InformacionAduanera {
			var pa attrs
			pa.req("NumeroPedimento", p)
			w.empty("cfdi:InformacionAduanera", pa)
		}
		for _, n := range con.CuentaPredial {
			var na attrs
			na.req("Numero", n)
			w.empty("cfdi:CuentaPredial", na)
		}
		w.end("cfdi:Concepto")
	}
	w.end("cfdi:Conceptos")
}

// trasladoAttrs atributos de un traslado; suffix agrega DR o P para el complemento de pagos.
func trasladoAttrs(t domain.Traslado, suffix string) attrs {
	var a attrs
	a.req("Base"+suffix, domain.FormatImporte(t.Base))
	a.req("Impuesto"+suffix, t.Impuesto)
	a.req("TipoFactor"+suffix, t.TipoFactor)
	a.opt("TasaOCuota"+suffix, domain.OptTasa(t.TasaOCuota))
	a.opt("Importe"+suffix, domain.OptImporte(t.Importe))
	return a
}

func (s *XMLBuilderService) writeImpuestos(w *elementWriter, imp *domain.Impuestos) {
	var a attrs
	a.opt("TotalImpuestosRetenidos", domain.OptImporte(imp.TotalImpuestosRetenidos))
	a.opt("TotalImpuestosTrasladados", domain.OptImporte(imp.TotalImpuestosTrasladados))
	w.start("cfdi:Impuestos", a)
	if len(imp.Retenciones) > 0 {
		w.start("cfdi:Retenciones", nil)
		for _, r := range imp.Retenciones {
			var ra attrs
			ra.req("Impuesto", r.Impuesto)
			ra.req("Importe", domain.FormatImporte(r.Importe))
			w.empty("cfdi:Retencion", ra)
		}
		w.end("cfdi:Retenciones")
	}
	if len(imp.Traslados) > 0 {
		w.start("cfdi:Traslados", nil)
		for _, t := range imp.Traslados {
			w.empty("cfdi:Traslado", trasladoAttrs(t, ""))
		}
		w.end("cfdi:Traslados")
	}
	w.end("cfdi:Impuestos")
}

// ── Complemento de pagos 2.0 ─────────────────────────────────────────────────

func (s *XMLBuilderService) writePagos(w *elementWriter, p *domain.Pagos) {
	var a attrs
	a.req("Version", p.Version)
	w.start("pago20:Pagos", a)

	t := p.Totales
	var ta attrs
	ta.opt("TotalRetencionesIVA", domain.OptImporte(t.TotalRetencionesIVA))
	ta.opt("TotalRetencionesISR", domain.OptImporte(t.TotalRetencionesISR))
	ta.opt("TotalRetencionesIEPS", domain.OptImporte(t.TotalRetencionesIEPS))
	ta.opt("TotalTrasladosBaseIVA16", domain.OptImporte(t.TotalTrasladosBaseIVA16))
	ta.opt("TotalTrasladosImpuestoIVA16", domain.OptImporte(t.TotalTrasladosImpuestoIVA16))
	ta.opt("TotalTrasladosBaseIVA8", domain.OptImporte(t.TotalTrasladosBaseIVA8))
	ta.opt("TotalTrasladosImpuestoIVA8", domain.OptImporte(t.TotalTrasladosImpuestoIVA8))
	ta.opt("TotalTrasladosBaseIVA0", domain.OptImporte(t.TotalTrasladosBaseIVA0))
	ta.opt("TotalTrasladosImpuestoIVA0", domain.OptImporte(t.TotalTrasladosImpuestoIVA0))
	ta.opt("TotalTrasladosBaseIVAExento", domain.OptImporte(t.TotalTrasladosBaseIVAExento))
	ta.req("MontoTotalPagos", domain.FormatImporte(t.MontoTotalPagos))
	w.empty("pago20:Totales", ta)

	for _, pago := range p.Pago {
		var pa attrs
		pa.req("FechaPago", domain.FormatFecha(pago.FechaPago))
		pa.req("FormaDePagoP", pago.FormaDePagoP)
		pa.req("MonedaP", pago.MonedaP)
		pa.opt("TipoCambioP", domain.OptTipoCambio(pago.TipoCambioP))
		pa.req("Monto", domain.FormatImporte(pago.Monto))
		pa.opt("NumOperacion", pago.NumOperacion)
		w.start("pago20:Pago", pa)

		for _, dr := range pago.DoctoRelacionado {
			var da attrs
			da.req("IdDocumento", dr.IdDocumento)
			da.opt("Serie", dr.Serie)
			da.opt("Folio", dr.Folio)
			da.req("MonedaDR", dr.MonedaDR)
			da.opt("EquivalenciaDR", domain.OptTipoCambio(dr.EquivalenciaDR))
			da.req("NumParcialidad", strconv.Itoa(dr.NumParcialidad))
			da.req("ImpSaldoAnt", domain.FormatImporte(dr.ImpSaldoAnt))
			da.req("ImpPagado", domain.FormatImporte(dr.ImpPagado))
			da.req("ImpSaldoInsoluto", domain.FormatImporte(dr.ImpSaldoInsoluto))
			da.req("ObjetoImpDR", dr.ObjetoImpDR)
			w.start("pago20:DoctoRelacionado", da)
			if imp := dr.ImpuestosDR; imp != nil {
				w.start("pago20:ImpuestosDR", nil)
				writeImpuestosPago(w, "pago20:RetencionesDR", "pago20:RetencionDR", imp.RetencionesDR, "DR")
				writeImpuestosPago(w, "pago20:TrasladosDR", "pago20:TrasladoDR", imp.TrasladosDR, "DR")
				w.end("pago20:ImpuestosDR")
			}
			w.end("pago20:DoctoRelacionado")
		}

		if imp := pago.ImpuestosP; imp != nil {
			w.start("pago20:ImpuestosP", nil)
			if len(imp.RetencionesP) > 0 {
				w.start("pago20:RetencionesP", nil)
				for _, r := range imp.RetencionesP {
					var ra attrs
					ra.req("ImpuestoP", r.Impuesto)
					ra.req("ImporteP", domain.FormatImporte(r.Importe))
					w.empty("pago20:RetencionP", ra)
				}
				w.end("pago20:RetencionesP")
			}
			writeImpuestosPago(w, "pago20:TrasladosP", "pago20:TrasladoP", imp.TrasladosP, "P")
			w.end("pago20:ImpuestosP")
		}
		w.end("pago20:Pago")
	}
	w.end("pago20:Pagos")
}

func writeImpuestosPago(w *elementWriter, group, item string, list []domain.Traslado, suffix string) {
	if len(list) == 0 {
		return
	}
	w.start(group, nil)
	for _, t := range list {
		w.empty(item, trasladoAttrs(t, suffix))
	}
	w.end(group)
}

// ── Timbre fiscal digital ────────────────────────────────────────────────────

// TimbreAttrs atributos del nodo tfd:TimbreFiscalDigital, en el orden del esquema.
func TimbreAttrs(t *domain.TimbreFiscalDigital) []xml.Attr {
	a := attrs{
		{Name: xml.Name{Local: "xmlns:tfd"}, Value: NsTfd},
		{Name: xml.Name{Local: "xmlns:xsi"}, Value: nsXsi},
		{Name: xml.Name{Local: "xsi:schemaLocation"}, Value: schemaTfd},
	}
	a.req("Version", t.Version)
	a.req("UUID", t.UUID)
	a.req("FechaTimbrado", domain.FormatFecha(t.FechaTimbrado))
	a.req("RfcProvCertif", t.RfcProvCertif)
	a.opt("Leyenda", t.Leyenda)
	a.req("SelloCFD", t.SelloCFD)
	a.req("NoCertificadoSAT", t.NoCertificadoSAT)
	a.req("SelloSAT", t.SelloSAT)
	return a
}

func writeTimbre(w *elementWriter, t *domain.TimbreFiscalDigital) {
	w.empty("tfd:TimbreFiscalDigital", TimbreAttrs(t))
}
