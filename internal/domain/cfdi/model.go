// Package cfdi contiene el modelo de dominio del Comprobante Fiscal Digital por Internet
// versión 4.0 (Anexo 20 del SAT), la cadena original, las reglas de validación local
// y el ciclo de vida del documento.
package cfdi

import (
	"time"

	"github.com/shopspring/decimal"
)

// Comprobante nodo raíz cfdi:Comprobante. Los montos opcionales son punteros: nil = atributo ausente.
type Comprobante struct {
	Version           string
	Serie             string
	Folio             string
	Fecha             time.Time
	Sello             string
	FormaPago         string
	NoCertificado     string
	Certificado       string
	CondicionesDePago string
	SubTotal          decimal.Decimal
	Descuento         *decimal.Decimal
	Moneda            string
	TipoCambio        *decimal.Decimal
	Total             decimal.Decimal
	TipoDeComprobante string
	Exportacion       string
	MetodoPago        string
	LugarExpedicion   string
	Confirmacion      string

	InformacionGlobal *InformacionGlobal
	CfdiRelacionados  []CfdiRelacionados
	Emisor            Emisor
	Receptor          Receptor
	Conceptos         []Concepto
	Impuestos         *Impuestos

	// Complementos
	Pagos  *Pagos
	Timbre *TimbreFiscalDigital
}

// InformacionGlobal datos de la factura global a público en general.
type InformacionGlobal struct {
	Periodicidad string
	Meses        string
	Anio         string
}

// CfdiRelacionados agrupa los UUID relacionados bajo un mismo tipo de relación.
type CfdiRelacionados struct {
	TipoRelacion string
	UUIDs        []string
}

// Emisor del comprobante.
type Emisor struct {
	Rfc              string
	Nombre           string
	RegimenFiscal    string
	FacAtrAdquirente string
}

// Receptor del comprobante.
type Receptor struct {
	Rfc                     string
	Nombre                  string
	DomicilioFiscalReceptor string
	ResidenciaFiscal        string
	NumRegIdTrib            string
	RegimenFiscalReceptor   string
	UsoCFDI                 string
}

// Concepto línea del comprobante.
type Concepto struct {
	ClaveProdServ    string
	NoIdentificacion string
	Cantidad         decimal.Decimal
	ClaveUnidad      string
	Unidad           string
	Descripcion      string
	ValorUnitario    decimal.Decimal
	Importe          decimal.Decimal
	Descuento        *decimal.Decimal
	ObjetoImp        string

	Impuestos           *ConceptoImpuestos
	ACuentaTerceros     *ACuentaTerceros
	InformacionAduanera []string // NumeroPedimento
	CuentaPredial       []string // Numero
}

// ConceptoImpuestos impuestos trasladados y retenidos de un concepto.
type ConceptoImpuestos struct {
	Traslados   []Traslado
	Retenciones []Retencion
}

// Traslado impuesto trasladado. TasaOCuota e Importe son nil cuando TipoFactor es Exento.
type Traslado struct {
	Base       decimal.Decimal
	Impuesto   string
	TipoFactor string
	TasaOCuota *decimal.Decimal
	Importe    *decimal.Decimal
}

// Retencion impuesto retenido de un concepto.
type Retencion struct {
	Base       decimal.Decimal
	Impuesto   string
	TipoFactor string
	TasaOCuota decimal.Decimal
	Importe    decimal.Decimal
}

// ACuentaTerceros datos del tercero por cuya cuenta se realiza la operación.
type ACuentaTerceros struct {
	RfcACuentaTerceros             string
	NombreACuentaTerceros          string
	RegimenFiscalACuentaTerceros   string
	DomicilioFiscalACuentaTerceros string
}

// Impuestos resumen de impuestos a nivel comprobante.
type Impuestos struct {
	TotalImpuestosRetenidos   *decimal.Decimal
	TotalImpuestosTrasladados *decimal.Decimal
	Retenciones               []RetencionTotal
	Traslados                 []Traslado
}

// RetencionTotal retención agrupada por impuesto.
type RetencionTotal struct {
	Impuesto string
	Importe  decimal.Decimal
}

// ── Complemento de pagos 2.0 ─────────────────────────────────────────────────

// Pagos complemento pago20:Pagos.
type Pagos struct {
	Version string
	Totales PagosTotales
	Pago    []Pago
}

// PagosTotales nodo pago20:Totales.
type PagosTotales struct {
	TotalRetencionesIVA         *decimal.Decimal
	TotalRetencionesISR         *decimal.Decimal
	TotalRetencionesIEPS        *decimal.Decimal
	TotalTrasladosBaseIVA16     *decimal.Decimal
	TotalTrasladosImpuestoIVA16 *decimal.Decimal
	TotalTrasladosBaseIVA8      *decimal.Decimal
	TotalTrasladosImpuestoIVA8  *decimal.Decimal
	TotalTrasladosBaseIVA0      *decimal.Decimal
	TotalTrasladosImpuestoIVA0  *decimal.Decimal
	TotalTrasladosBaseIVAExento *decimal.Decimal
	MontoTotalPagos             decimal.Decimal
}

// Pago un pago recibido.
type Pago struct {
	FechaPago        time.Time
	FormaDePagoP     string
	MonedaP          string
	TipoCambioP      *decimal.Decimal
	Monto            decimal.Decimal
	NumOperacion     string
	DoctoRelacionado []DoctoRelacionado
	ImpuestosP       *ImpuestosP
}

// DoctoRelacionado factura (PPD) a la que se aplica el pago.
type DoctoRelacionado struct {
	IdDocumento      string
	Serie            string
	Folio            string
	MonedaDR         string
	EquivalenciaDR   *decimal.Decimal
	NumParcialidad   int
	ImpSaldoAnt      decimal.Decimal
	ImpPagado        decimal.Decimal
	ImpSaldoInsoluto decimal.Decimal
	ObjetoImpDR      string
	ImpuestosDR      *ImpuestosDR
}

// ImpuestosDR impuestos del documento relacionado (sufijo DR en el XML).
type ImpuestosDR struct {
	RetencionesDR []Traslado
	TrasladosDR   []Traslado
}

// ImpuestosP impuestos del pago (sufijo P en el XML).
type ImpuestosP struct {
	RetencionesP []RetencionTotal
	TrasladosP   []Traslado
}

// ── Timbre fiscal digital ────────────────────────────────────────────────────

// TimbreFiscalDigital complemento tfd:TimbreFiscalDigital 1.1 que agrega el PAC.
type TimbreFiscalDigital struct {
	Version          string
	UUID             string
	FechaTimbrado    time.Time
	RfcProvCertif    string
	Leyenda          string
	SelloCFD         string
	NoCertificadoSAT string
	SelloSAT         string
}

// Dec devuelve un puntero a d (atajo para los montos opcionales).
func Dec(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// RelatedUUIDs devuelve todos los UUID relacionados del comprobante, en orden.
func (c *Comprobante) RelatedUUIDs() []string {
	var out []string
	for _, r := range c.CfdiRelacionados {
		out = append(out, r.UUIDs...)
	}
	return out
}
