package cfdi

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// ErrInvalidComprobante agrupa errores de validación local del comprobante.
var ErrInvalidComprobante = errors.New("comprobante inválido para el SAT")

// Ventanas de tiempo aceptadas para el atributo Fecha respecto al momento de validación.
const (
	MaxFechaAntiguedad = 72 * time.Hour
	MaxFechaAdelanto   = 5 * time.Minute
)

var tolerancia = decimal.New(1, -2)

// Severity severidad de una incidencia de validación.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue incidencia con código estilo SAT (CFDI40xxx).
type ValidationIssue struct {
	Code     string   `json:"code"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (i ValidationIssue) Error() string {
	return fmt.Sprintf("%s %s: %s", i.Code, i.Field, i.Message)
}

// ValidationResult resultado agregado de la validación local.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// Err devuelve nil si no hay errores; si los hay, ErrInvalidComprobante unido a cada incidencia.
func (r *ValidationResult) Err() error {
	if r == nil || len(r.Errors) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Errors)+1)
	errs = append(errs, ErrInvalidComprobante)
	for _, e := range r.Errors {
		errs = append(errs, e)
	}
	return errors.Join(errs...)
}

// HasCode indica si el resultado contiene una incidencia (error o advertencia) con ese código.
func (r *ValidationResult) HasCode(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

type checker struct {
	res *ValidationResult
}

func (k *checker) fail(code, field, format string, args ...any) {
	k.res.Errors = append(k.res.Errors, ValidationIssue{
		Code: code, Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityError,
	})
}

func (k *checker) warn(code, field, format string, args ...any) {
	k.res.Warnings = append(k.res.Warnings, ValidationIssue{
		Code: code, Field: field, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning,
	})
}

func near(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerancia)
}

func deref(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// Validate aplica las reglas estructurales del Anexo 20 y de la matriz de errores del SAT
// que pueden verificarse sin consultar servicios externos. now es el instante de referencia
// para las reglas de fecha.
func Validate(c *Comprobante, now time.Time) *ValidationResult {
	res := &ValidationResult{}
	if c == nil {
		res.Errors = append(res.Errors, ValidationIssue{
			Code: "CFDI40100", Field: "Comprobante", Message: "comprobante nulo", Severity: SeverityError,
		})
		return res
	}
	k := &checker{res: res}

	checkComprobante(k, c, now)
	checkEmisor(k, c)
	checkReceptor(k, c)
	checkConceptos(k, c)
	checkTotales(k, c)
	checkPorTipo(k, c)
	checkRelacionados(k, c)
	if c.Pagos != nil {
		checkPagos(k, c.Pagos)
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// ── Comprobante ──────────────────────────────────────────────────────────────

func checkComprobante(k *checker, c *Comprobante, now time.Time) {
	if c.Version != sat.VersionCFDI {
		k.fail("CFDI40101", "Version", "debe ser %s, se recibió %q", sat.VersionCFDI, c.Version)
	}

	switch {
	case c.Fecha.IsZero():
		k.fail("CFDI40102", "Fecha", "es obligatoria")
	case c.Fecha.After(now.Add(MaxFechaAdelanto)):
		k.fail("CFDI40103", "Fecha", "no puede ser posterior al momento de la certificación (%s)", FormatFecha(c.Fecha))
	case now.Sub(c.Fecha) > MaxFechaAntiguedad:
		k.fail("CFDI40104", "Fecha", "excede las 72 horas permitidas para certificar (%s)", FormatFecha(c.Fecha))
	}

	if err := sat.ValidateCodigoPostal(c.LugarExpedicion); err != nil {
		k.fail("CFDI40105", "LugarExpedicion", "debe ser un código postal de 5 dígitos")
	}

	if !sat.ValidMonedas[c.Moneda] {
		k.fail("CFDI40106", "Moneda", "clave %q no existe en c_Moneda", c.Moneda)
	}
	switch c.Moneda {
	case sat.MonedaMXN:
		if c.TipoCambio != nil && !c.TipoCambio.Equal(decimal.NewFromInt(1)) {
			k.fail("CFDI40107", "TipoCambio", "para MXN debe ser 1 u omitirse")
		}
	case sat.MonedaSinMoneda:
		if c.TipoCambio != nil {
			k.fail("CFDI40107", "TipoCambio", "no debe existir cuando la moneda es XXX")
		}
	default:
		if c.TipoCambio == nil || !c.TipoCambio.IsPositive() {
			k.fail("CFDI40107", "TipoCambio", "es obligatorio y positivo para la moneda %s", c.Moneda)
		}
	}

	if !sat.ValidTiposComprobante[c.TipoDeComprobante] {
		k.fail("CFDI40108", "TipoDeComprobante", "clave %q no existe en c_TipoDeComprobante", c.TipoDeComprobante)
	}
	if !sat.ValidExportacion[c.Exportacion] {
		k.fail("CFDI40109", "Exportacion", "clave %q no existe en c_Exportacion", c.Exportacion)
	}

	sinPago := c.TipoDeComprobante == sat.TipoComprobanteTraslado || c.TipoDeComprobante == sat.TipoComprobantePago
	if sinPago {
		if c.MetodoPago != "" {
			k.fail("CFDI40110", "MetodoPago", "no debe existir en comprobantes de tipo %s", c.TipoDeComprobante)
		}
		if c.FormaPago != "" {
			k.fail("CFDI40111", "FormaPago", "no debe existir en comprobantes de tipo %s", c.TipoDeComprobante)
		}
	} else {
		switch c.MetodoPago {
		case sat.MetodoPagoUnaExhibicion, sat.MetodoPagoParcialidades:
		default:
			k.fail("CFDI40110", "MetodoPago", "debe ser PUE o PPD, se recibió %q", c.MetodoPago)
		}
		if !sat.ValidFormasPago[c.FormaPago] {
			k.fail("CFDI40111", "FormaPago", "clave %q no existe en c_FormaPago", c.FormaPago)
		}
		if c.MetodoPago == sat.MetodoPagoParcialidades && c.FormaPago != sat.FormaPagoPorDefinir {
			k.fail("CFDI40112", "FormaPago", "con MetodoPago PPD debe ser 99 (por definir)")
		}
		if c.MetodoPago == sat.MetodoPagoUnaExhibicion && c.FormaPago == sat.FormaPagoPorDefinir {
			k.fail("CFDI40112", "FormaPago", "con MetodoPago PUE no puede ser 99 (por definir)")
		}
	}

	if utf8.RuneCountInString(c.Serie) > 25 {
		k.fail("CFDI40113", "Serie", "excede 25 caracteres")
	}
	if utf8.RuneCountInString(c.Folio) > 40 {
		k.fail("CFDI40114", "Folio", "excede 40 caracteres")
	}
	if utf8.RuneCountInString(c.CondicionesDePago) > 1000 {
		k.fail("CFDI40115", "CondicionesDePago", "excede 1000 caracteres")
	}
}

// ── Emisor / Receptor ────────────────────────────────────────────────────────

func checkEmisor(k *checker, c *Comprobante) {
	e := c.Emisor
	if err := sat.ValidateRFC(e.Rfc); err != nil || sat.IsGenericRFC(sat.NormalizeRFC(e.Rfc)) {
		k.fail("CFDI40120", "Emisor.Rfc", "RFC %q inválido", e.Rfc)
	}
	if strings.TrimSpace(e.Nombre) == "" {
		k.fail("CFDI40121", "Emisor.Nombre", "es obligatorio")
	}
	if !sat.RegimenAplica(e.RegimenFiscal, e.Rfc) {
		k.fail("CFDI40122", "Emisor.RegimenFiscal", "régimen %q no existe o no aplica al tipo de persona del RFC", e.RegimenFiscal)
	}
}

func checkReceptor(k *checker, c *Comprobante) {
	r := c.Receptor
	rfc := sat.NormalizeRFC(r.Rfc)
	if err := sat.ValidateRFC(r.Rfc); err != nil {
		k.fail("CFDI40130", "Receptor.Rfc", "RFC %q inválido", r.Rfc)
	}
	if strings.TrimSpace(r.Nombre) == "" {
		k.fail("CFDI40131", "Receptor.Nombre", "es obligatorio")
	} else if r.Nombre != strings.ToUpper(r.Nombre) {
		k.warn("CFDI40131", "Receptor.Nombre", "el SAT compara el nombre en mayúsculas contra su padrón")
	}
	if err := sat.ValidateCodigoPostal(r.DomicilioFiscalReceptor); err != nil {
		k.fail("CFDI40132", "Receptor.DomicilioFiscalReceptor", "debe ser un código postal de 5 dígitos")
	}
	if !sat.RegimenAplica(r.RegimenFiscalReceptor, r.Rfc) {
		k.fail("CFDI40133", "Receptor.RegimenFiscalReceptor", "régimen %q no existe o no aplica al tipo de persona del RFC", r.RegimenFiscalReceptor)
	}
	if !sat.ValidUsosCFDI[r.UsoCFDI] {
		k.fail("CFDI40134", "Receptor.UsoCFDI", "clave %q no existe en c_UsoCFDI", r.UsoCFDI)
	}
	switch c.TipoDeComprobante {
	case sat.TipoComprobantePago:
		if r.UsoCFDI != sat.UsoPagos {
			k.fail("CFDI40135", "Receptor.UsoCFDI", "en comprobantes de pago debe ser CP01")
		}
	case sat.TipoComprobanteTraslado:
		if r.UsoCFDI != sat.UsoSinEfectosFiscales {
			k.fail("CFDI40135", "Receptor.UsoCFDI", "en comprobantes de traslado debe ser S01")
		}
	}

	switch rfc {
	case sat.RFCGenericoNacional:
		if r.UsoCFDI != sat.UsoSinEfectosFiscales && c.TipoDeComprobante != sat.TipoComprobantePago {
			k.fail("CFDI40136", "Receptor.UsoCFDI", "con RFC genérico debe ser S01")
		}
		if r.RegimenFiscalReceptor != "616" {
			k.fail("CFDI40136", "Receptor.RegimenFiscalReceptor", "con RFC genérico debe ser 616")
		}
		if r.DomicilioFiscalReceptor != c.LugarExpedicion {
			k.fail("CFDI40136", "Receptor.DomicilioFiscalReceptor", "con RFC genérico debe ser igual a LugarExpedicion")
		}
		if c.InformacionGlobal == nil && strings.EqualFold(strings.TrimSpace(r.Nombre), "PUBLICO EN GENERAL") {
			k.warn("CFDI40137", "InformacionGlobal", "la factura global a público en general requiere InformacionGlobal")
		}
	case sat.RFCGenericoExtranjero:
		if r.ResidenciaFiscal == "" {
			k.fail("CFDI40138", "Receptor.ResidenciaFiscal", "es obligatoria con RFC genérico extranjero")
		}
		if r.NumRegIdTrib == "" {
			k.warn("CFDI40138", "Receptor.NumRegIdTrib", "se recomienda el número de registro tributario extranjero")
		}
	default:
		if r.ResidenciaFiscal != "" {
			k.fail("CFDI40139", "Receptor.ResidenciaFiscal", "solo aplica a receptores extranjeros")
		}
	}
}

// ── Conceptos ────────────────────────────────────────────────────────────────

func checkConceptos(k *checker, c *Comprobante) {
	if len(c.Conceptos) == 0 {
		k.fail("CFDI40140", "Conceptos", "debe existir al menos un concepto")
		return
	}
	for i, con := range c.Conceptos {
		f := func(name string) string { return fmt.Sprintf("Conceptos[%d].%s", i, name) }

		if len(con.ClaveProdServ) != 8 || strings.Trim(con.ClaveProdServ, "0123456789") != "" {
			k.fail("CFDI40141", f("ClaveProdServ"), "debe tener 8 dígitos, se recibió %q", con.ClaveProdServ)
		} else if con.ClaveProdServ == sat.ClaveProdServNoExiste {
			k.warn("CFDI40141", f("ClaveProdServ"), "01010101 solo debe usarse si no existe una clave aplicable")
		}
		if !con.Cantidad.IsPositive() {
			k.fail("CFDI40142", f("Cantidad"), "debe ser mayor que cero")
		}
		if strings.TrimSpace(con.ClaveUnidad) == "" {
			k.fail("CFDI40143", f("ClaveUnidad"), "es obligatoria")
		}
		if strings.TrimSpace(con.Descripcion) == "" || utf8.RuneCountInString(con.Descripcion) > 1000 {
			k.fail("CFDI40144", f("Descripcion"), "es obligatoria y de máximo 1000 caracteres")
		}
		if con.ValorUnitario.IsNegative() {
			k.fail("CFDI40145", f("ValorUnitario"), "no puede ser negativo")
		}
		if esperado := con.Cantidad.Mul(con.ValorUnitario); !near(con.Importe, esperado) {
			k.fail("CFDI40146", f("Importe"), "%s no coincide con Cantidad × ValorUnitario (%s)",
				FormatImporte(con.Importe), FormatImporte(esperado))
		}
		if con.Descuento != nil && (con.Descuento.IsNegative() || con.Descuento.GreaterThan(con.Importe)) {
			k.fail("CFDI40147", f("Descuento"), "debe estar entre 0 y el Importe")
		}
		checkObjetoImp(k, con, f)
	}
}

func checkObjetoImp(k *checker, con Concepto, f func(string) string) {
	if !sat.ValidObjetoImp[con.ObjetoImp] {
		k.fail("CFDI40148", f("ObjetoImp"), "clave %q no existe en c_ObjetoImp", con.ObjetoImp)
		return
	}
	tieneImpuestos := con.Impuestos != nil && (len(con.Impuestos.Traslados) > 0 || len(con.Impuestos.Retenciones) > 0)
	switch con.ObjetoImp {
	case sat.ObjetoImpSi:
		if !tieneImpuestos {
			k.fail("CFDI40149", f("Impuestos"), "ObjetoImp 02 requiere al menos un impuesto")
		}
	case sat.ObjetoImpNo, sat.ObjetoImpSiNoObligado, sat.ObjetoImpSiNoCausa:
		if tieneImpuestos {
			k.fail("CFDI40149", f("Impuestos"), "ObjetoImp %s no admite el nodo Impuestos", con.ObjetoImp)
		}
	}
	if con.Impuestos == nil {
		return
	}

	baseMax := con.Importe.Sub(deref(con.Descuento))
	for j, t := range con.Impuestos.Traslados {
		tf := f(fmt.Sprintf("Traslados[%d]", j))
		if !sat.ValidImpuestos[t.Impuesto] {
			k.fail("CFDI40150", tf, "impuesto %q no existe en c_Impuesto", t.Impuesto)
		}
		if t.Impuesto == sat.ImpuestoISR {
			k.fail("CFDI40150", tf, "el ISR no puede trasladarse")
		}
		if !t.Base.IsPositive() || t.Base.GreaterThan(baseMax.Add(tolerancia)) {
			k.fail("CFDI40151", tf+".Base", "debe ser mayor que cero y no exceder Importe - Descuento")
		}
		if t.TipoFactor == sat.TipoFactorExento {
			if t.TasaOCuota != nil || t.Importe != nil {
				k.fail("CFDI40153", tf, "un traslado Exento no lleva TasaOCuota ni Importe")
			}
			continue
		}
		if t.TasaOCuota == nil || t.Importe == nil {
			k.fail("CFDI40153", tf, "TasaOCuota e Importe son obligatorios cuando TipoFactor es %s", t.TipoFactor)
			continue
		}
		if t.Impuesto == sat.ImpuestoIVA && t.TipoFactor == sat.TipoFactorTasa && !sat.TasasIVA[FormatTasa(*t.TasaOCuota)] {
			k.fail("CFDI40152", tf+".TasaOCuota", "tasa de IVA %s no permitida", FormatTasa(*t.TasaOCuota))
		}
		if esperado := t.Base.Mul(*t.TasaOCuota); !near(*t.Importe, esperado) {
			k.fail("CFDI40154", tf+".Importe", "%s no coincide con Base × TasaOCuota (%s)",
				FormatImporte(*t.Importe), FormatImporte(esperado))
		}
	}
	for j, r := range con.Impuestos.Retenciones {
		rf := f(fmt.Sprintf("Retenciones[%d]", j))
		if !sat.ValidImpuestos[r.Impuesto] {
			k.fail("CFDI40150", rf, "impuesto %q no existe en c_Impuesto", r.Impuesto)
		}
		if r.TipoFactor == sat.TipoFactorExento {
			k.fail("CFDI40155", rf, "una retención no puede ser Exento")
		}
		if esperado := r.Base.Mul(r.TasaOCuota); !near(r.Importe, esperado) {
			k.fail("CFDI40155", rf+".Importe", "%s no coincide con Base × TasaOCuota (%s)",
				FormatImporte(r.Importe), FormatImporte(esperado))
		}
	}
}

// ── Totales ──────────────────────────────────────────────────────────────────

func checkTotales(k *checker, c *Comprobante) {
	subTotal, descuento := decimal.Zero, decimal.Zero
	trasConceptos, retConceptos := decimal.Zero, decimal.Zero
	hayImpuestos := false
	for _, con := range c.Conceptos {
		subTotal = subTotal.Add(con.Importe)
		descuento = descuento.Add(deref(con.Descuento))
		if con.Impuestos == nil {
			continue
		}
		for _, t := range con.Impuestos.Traslados {
			hayImpuestos = true
			trasConceptos = trasConceptos.Add(deref(t.Importe))
		}
		for _, r := range con.Impuestos.Retenciones {
			hayImpuestos = true
			retConceptos = retConceptos.Add(r.Importe)
		}
	}

	if !near(c.SubTotal, subTotal) {
		k.fail("CFDI40160", "SubTotal", "%s no coincide con la suma de importes de conceptos (%s)",
			FormatImporte(c.SubTotal), FormatImporte(subTotal))
	}
	if c.Descuento != nil && !near(*c.Descuento, descuento) {
		k.fail("CFDI40161", "Descuento", "%s no coincide con la suma de descuentos de conceptos (%s)",
			FormatImporte(*c.Descuento), FormatImporte(descuento))
	}
	if c.Descuento == nil && descuento.IsPositive() {
		k.fail("CFDI40161", "Descuento", "es obligatorio cuando algún concepto tiene descuento")
	}
	if deref(c.Descuento).GreaterThan(c.SubTotal) {
		k.fail("CFDI40161", "Descuento", "no puede ser mayor que SubTotal")
	}

	totalTras, totalRet := decimal.Zero, decimal.Zero
	if c.Impuestos == nil {
		if hayImpuestos {
			k.fail("CFDI40162", "Impuestos", "es obligatorio cuando los conceptos tienen impuestos")
		}
	} else {
		sumTras, sumRet := decimal.Zero, decimal.Zero
		for _, t := range c.Impuestos.Traslados {
			sumTras = sumTras.Add(deref(t.Importe))
		}
		for _, r := range c.Impuestos.Retenciones {
			sumRet = sumRet.Add(r.Importe)
		}
		totalTras = deref(c.Impuestos.TotalImpuestosTrasladados)
		totalRet = deref(c.Impuestos.TotalImpuestosRetenidos)
		if !near(totalTras, sumTras) || !near(totalTras, trasConceptos) {
			k.fail("CFDI40163", "Impuestos.TotalImpuestosTrasladados", "%s no coincide con los traslados (%s)",
				FormatImporte(totalTras), FormatImporte(trasConceptos))
		}
		if !near(totalRet, sumRet) || !near(totalRet, retConceptos) {
			k.fail("CFDI40164", "Impuestos.TotalImpuestosRetenidos", "%s no coincide con las retenciones (%s)",
				FormatImporte(totalRet), FormatImporte(retConceptos))
		}
	}

	esperado := c.SubTotal.Sub(deref(c.Descuento)).Add(totalTras).Sub(totalRet)
	if !near(c.Total, esperado) {
		k.fail("CFDI40165", "Total", "%s no coincide con SubTotal - Descuento + Traslados - Retenciones (%s)",
			FormatImporte(c.Total), FormatImporte(esperado))
	}
}

// ── Reglas por tipo de comprobante ───────────────────────────────────────────

func checkPorTipo(k *checker, c *Comprobante) {
	switch c.TipoDeComprobante {
	case sat.TipoComprobantePago:
		if !c.SubTotal.IsZero() || !c.Total.IsZero() {
			k.fail("CFDI40170", "Total", "en comprobantes de pago SubTotal y Total deben ser 0")
		}
		if c.Moneda != sat.MonedaSinMoneda {
			k.fail("CFDI40170", "Moneda", "en comprobantes de pago debe ser XXX")
		}
		if c.Pagos == nil {
			k.fail("CFDI40171", "Complemento", "el comprobante de pago requiere el complemento Pagos 2.0")
		}
		for i, con := range c.Conceptos {
			if con.ClaveProdServ != sat.ClaveProdServPago || con.ClaveUnidad != sat.ClaveUnidadActividad {
				k.fail("CFDI40172", fmt.Sprintf("Conceptos[%d]", i), "el concepto de pago debe ser 84111506 / ACT")
			}
		}
	case sat.TipoComprobanteTraslado:
		if !c.Total.IsZero() {
			k.fail("CFDI40173", "Total", "en comprobantes de traslado debe ser 0")
		}
	case sat.TipoComprobanteEgreso:
		if len(c.CfdiRelacionados) == 0 {
			k.fail("CFDI40174", "CfdiRelacionados", "el comprobante de egreso debe relacionar el CFDI que afecta")
		}
	}
	if c.Pagos != nil && c.TipoDeComprobante != sat.TipoComprobantePago {
		k.fail("CFDI40171", "Complemento", "el complemento Pagos solo aplica a comprobantes de tipo P")
	}
}

func checkRelacionados(k *checker, c *Comprobante) {
	for i, rel := range c.CfdiRelacionados {
		f := fmt.Sprintf("CfdiRelacionados[%d]", i)
		if !sat.ValidTiposRelacion[rel.TipoRelacion] {
			k.fail("CFDI40180", f+".TipoRelacion", "clave %q no existe en c_TipoRelacion", rel.TipoRelacion)
		}
		if len(rel.UUIDs) == 0 {
			k.fail("CFDI40181", f, "debe contener al menos un UUID")
		}
		for _, u := range rel.UUIDs {
			if !sat.IsUUID(u) {
				k.fail("CFDI40181", f+".UUID", "UUID %q con formato inválido", u)
			}
		}
	}
}

// ── Complemento de pagos ─────────────────────────────────────────────────────

func checkPagos(k *checker, p *Pagos) {
	if p.Version != sat.VersionPagos {
		k.fail("CFDI40190", "Pagos.Version", "debe ser %s", sat.VersionPagos)
	}
	if len(p.Pago) == 0 {
		k.fail("CFDI40191", "Pagos.Pago", "debe existir al menos un pago")
		return
	}
	suma := decimal.Zero
	for i, pago := range p.Pago {
		f := fmt.Sprintf("Pagos.Pago[%d]", i)
		if !pago.Monto.IsPositive() {
			k.fail("CFDI40192", f+".Monto", "debe ser mayor que cero")
		}
		if !sat.ValidFormasPago[pago.FormaDePagoP] || pago.FormaDePagoP == sat.FormaPagoPorDefinir {
			k.fail("CFDI40193", f+".FormaDePagoP", "clave %q no válida para un pago", pago.FormaDePagoP)
		}
		monto := pago.Monto
		if pago.MonedaP != sat.MonedaMXN && pago.TipoCambioP != nil {
			monto = monto.Mul(*pago.TipoCambioP)
		}
		suma = suma.Add(monto)

		pagado := decimal.Zero
		for j, dr := range pago.DoctoRelacionado {
			df := fmt.Sprintf("%s.DoctoRelacionado[%d]", f, j)
			if !sat.IsUUID(dr.IdDocumento) {
				k.fail("CFDI40194", df+".IdDocumento", "UUID %q con formato inválido", dr.IdDocumento)
			}
			if dr.NumParcialidad < 1 {
				k.fail("CFDI40195", df+".NumParcialidad", "debe ser mayor o igual a 1")
			}
			if !near(dr.ImpSaldoInsoluto, dr.ImpSaldoAnt.Sub(dr.ImpPagado)) || dr.ImpSaldoInsoluto.IsNegative() {
				k.fail("CFDI40196", df+".ImpSaldoInsoluto", "debe ser ImpSaldoAnt - ImpPagado y no negativo")
			}
			if dr.MonedaDR == pago.MonedaP {
				pagado = pagado.Add(dr.ImpPagado)
			}
		}
		if pagado.GreaterThan(pago.Monto.Add(tolerancia)) {
			k.fail("CFDI40197", f+".Monto", "la suma de ImpPagado (%s) excede el Monto del pago", FormatImporte(pagado))
		}
	}
	if !near(p.Totales.MontoTotalPagos, suma.Round(2)) {
		k.fail("CFDI40198", "Pagos.Totales.MontoTotalPagos", "%s no coincide con la suma de pagos en MXN (%s)",
			FormatImporte(p.Totales.MontoTotalPagos), FormatImporte(suma))
	}
}
