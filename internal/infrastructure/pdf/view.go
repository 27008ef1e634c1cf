package pdf

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	satws "github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi/sat"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// ── Modelo de la representación impresa ───────────────────────────────────────

// Party emisor o receptor ya formateado.
type Party struct {
	Rfc             string
	Nombre          string
	Regimen         string // "601 - General de Ley Personas Morales"
	DomicilioFiscal string
	UsoCFDI         string
}

// ConceptoView renglón de la tabla de conceptos.
type ConceptoView struct {
	ClaveProdServ    string
	NoIdentificacion string
	Cantidad         string
	ClaveUnidad      string
	Unidad           string
	Descripcion      string
	ValorUnitario    string
	Descuento        string
	Importe          string
	ObjetoImp        string
}

// DoctoView documento relacionado en un pago.
type DoctoView struct {
	IdDocumento      string
	Serie            string
	Folio            string
	NumParcialidad   int
	ImpSaldoAnt      string
	ImpPagado        string
	ImpSaldoInsoluto string
}

// PagoView pago del complemento 2.0.
type PagoView struct {
	FechaPago    string
	FormaDePagoP string
	MonedaP      string
	Monto        string
	Documentos   []DoctoView
}

// TaxView impuesto agrupado del comprobante.
type TaxView struct {
	Nombre  string // "IVA 16%", "Ret. ISR"
	Importe string
}

// View datos que consumen las plantillas HTML y PDF.
type View struct {
	Titulo          string
	Serie           string
	Folio           string
	Fecha           string
	LugarExpedicion string
	Moneda          string
	TipoCambio      string
	FormaPago       string
	MetodoPago      string
	Exportacion     string
	Relacionados    []string

	Emisor    Party
	Receptor  Party
	Conceptos []ConceptoView
	Pagos     []PagoView

	SubTotal    string
	Descuento   string
	Impuestos   []TaxView
	Total       string
	Estado      string
	Cancelado   bool
	Timbrado    bool
	UUID        string
	FechaTimbre string

	NoCertificado    string
	NoCertificadoSAT string
	RfcProvCertif    string
	SelloCFD         string
	SelloSAT         string
	CadenaTimbre     string
	QRURL            string
}

var impuestoNombre = map[string]string{
	sat.ImpuestoISR:  "ISR",
	sat.ImpuestoIVA:  "IVA",
	sat.ImpuestoIEPS: "IEPS",
}

var tituloPorTipo = map[string]string{
	sat.TipoComprobanteIngreso:  "Factura",
	sat.TipoComprobanteEgreso:   "Nota de crédito",
	sat.TipoComprobantePago:     "Recibo electrónico de pago",
	sat.TipoComprobanteTraslado: "Traslado",
}

// moneyPrinter formatea montos con separadores de miles de es-MX.
var moneyPrinter = message.NewPrinter(language.MustParse("es-MX"))

// Money formatea un importe como "$1,160.00".
func Money(d decimal.Decimal) string {
	return moneyPrinter.Sprintf("$%.2f", d.Round(2).InexactFloat64())
}

func optMoney(d *decimal.Decimal) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return Money(*d)
}

func regimen(code string) string {
	if r, ok := sat.RegimenesFiscales[code]; ok {
		return code + " - " + r.Descripcion
	}
	return code
}

// NewView arma la vista de un documento. Acepta documentos sin timbrar (vista previa).
func NewView(doc *cfdi.Document) (*View, error) {
	if doc == nil || doc.Comprobante == nil {
		return nil, cfdi.ErrComprobanteNil
	}
	c := doc.Comprobante
	v := &View{
		Titulo:          nonEmpty(tituloPorTipo[c.TipoDeComprobante], "CFDI"),
		Serie:           c.Serie,
		Folio:           c.Folio,
		Fecha:           cfdi.FormatFecha(c.Fecha),
		LugarExpedicion: c.LugarExpedicion,
		Moneda:          c.Moneda,
		TipoCambio:      cfdi.OptTipoCambio(c.TipoCambio),
		FormaPago:       c.FormaPago,
		MetodoPago:      c.MetodoPago,
		Exportacion:     c.Exportacion,
		Emisor: Party{
			Rfc:     c.Emisor.Rfc,
			Nombre:  c.Emisor.Nombre,
			Regimen: regimen(c.Emisor.RegimenFiscal),
		},
		Receptor: Party{
			Rfc:             c.Receptor.Rfc,
			Nombre:          c.Receptor.Nombre,
			Regimen:         regimen(c.Receptor.RegimenFiscalReceptor),
			DomicilioFiscal: c.Receptor.DomicilioFiscalReceptor,
			UsoCFDI:         c.Receptor.UsoCFDI,
		},
		SubTotal:      Money(c.SubTotal),
		Descuento:     optMoney(c.Descuento),
		Total:         Money(c.Total),
		Estado:        string(doc.Status),
		Cancelado:     doc.Status == cfdi.StatusCancelled,
		NoCertificado: c.NoCertificado,
		SelloCFD:      c.Sello,
	}
	for _, rel := range c.CfdiRelacionados {
		for _, u := range rel.UUIDs {
			v.Relacionados = append(v.Relacionados, rel.TipoRelacion+" "+u)
		}
	}

	for _, con := range c.Conceptos {
		v.Conceptos = append(v.Conceptos, ConceptoView{
			ClaveProdServ:    con.ClaveProdServ,
			NoIdentificacion: con.NoIdentificacion,
			Cantidad:         cfdi.FormatCantidad(con.Cantidad),
			ClaveUnidad:      con.ClaveUnidad,
			Unidad:           con.Unidad,
			Descripcion:      con.Descripcion,
			ValorUnitario:    Money(con.ValorUnitario),
			Descuento:        optMoney(con.Descuento),
			Importe:          Money(con.Importe),
			ObjetoImp:        con.ObjetoImp,
		})
	}

	if imp := c.Impuestos; imp != nil {
		for _, t := range imp.Traslados {
			if t.Importe == nil {
				continue
			}
			nombre := impuestoNombre[t.Impuesto]
			if t.TasaOCuota != nil {
				nombre += " " + t.TasaOCuota.Mul(decimal.NewFromInt(100)).String() + "%"
			}
			v.Impuestos = append(v.Impuestos, TaxView{Nombre: nombre, Importe: Money(*t.Importe)})
		}
		for _, r := range imp.Retenciones {
			v.Impuestos = append(v.Impuestos, TaxView{Nombre: "Ret. " + impuestoNombre[r.Impuesto], Importe: "-" + Money(r.Importe)})
		}
	}

	if p := c.Pagos; p != nil {
		for _, pago := range p.Pago {
			pv := PagoView{
				FechaPago:    cfdi.FormatFecha(pago.FechaPago),
				FormaDePagoP: pago.FormaDePagoP,
				MonedaP:      pago.MonedaP,
				Monto:        Money(pago.Monto),
			}
			for _, dr := range pago.DoctoRelacionado {
				pv.Documentos = append(pv.Documentos, DoctoView{
					IdDocumento:      dr.IdDocumento,
					Serie:            dr.Serie,
					Folio:            dr.Folio,
					NumParcialidad:   dr.NumParcialidad,
					ImpSaldoAnt:      Money(dr.ImpSaldoAnt),
					ImpPagado:        Money(dr.ImpPagado),
					ImpSaldoInsoluto: Money(dr.ImpSaldoInsoluto),
				})
			}
			v.Pagos = append(v.Pagos, pv)
		}
	}

	if t := c.Timbre; t != nil {
		cadena, err := cfdi.CadenaTimbre(t)
		if err != nil {
			return nil, err
		}
		v.Timbrado = true
		v.UUID = strings.ToUpper(t.UUID)
		v.FechaTimbre = cfdi.FormatFecha(t.FechaTimbrado)
		v.NoCertificadoSAT = t.NoCertificadoSAT
		v.RfcProvCertif = t.RfcProvCertif
		v.SelloSAT = t.SelloSAT
		v.CadenaTimbre = cadena
		v.QRURL = satws.VerificationURL(satws.Query{
			RfcEmisor:   c.Emisor.Rfc,
			RfcReceptor: c.Receptor.Rfc,
			Total:       c.Total,
			UUID:        t.UUID,
		}, c.Sello)
	}
	return v, nil
}

// FileName nombre sugerido del archivo: SERIE-FOLIO o el UUID.
func (v *View) FileName(ext string) string {
	name := strings.Trim(v.Serie+"-"+v.Folio, "-")
	if v.UUID != "" {
		name = v.UUID
	}
	if name == "" {
		name = fmt.Sprintf("cfdi-%d", time.Now().Unix())
	}
	return name + "." + ext
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
