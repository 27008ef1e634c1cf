package cfdi

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// FechaLayout formato de fecha del Anexo 20 (hora local del lugar de expedición, sin zona).
const FechaLayout = "2006-01-02T15:04:05"

// FormatFecha formatea una fecha para atributos Fecha, FechaPago y FechaTimbrado.
func FormatFecha(t time.Time) string {
	return t.Format(FechaLayout)
}

// ParseFecha interpreta una fecha en formato Anexo 20 en la zona indicada (UTC si loc es nil).
func ParseFecha(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(FechaLayout, s, loc)
}

// FormatImporte formatea un monto con 2 decimales.
func FormatImporte(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatMonto formatea un importe del comprobante o de sus conceptos con los decimales
// de su moneda (0 para XXX).
func FormatMonto(d decimal.Decimal, moneda string) string {
	return d.StringFixed(sat.DecimalesMoneda(moneda))
}

// OptMonto formatea un importe opcional en moneda ("" si es nil).
func OptMonto(d *decimal.Decimal, moneda string) string {
	if d == nil {
		return ""
	}
	return FormatMonto(*d, moneda)
}

// FormatTasa formatea TasaOCuota con 6 decimales.
func FormatTasa(d decimal.Decimal) string {
	return d.StringFixed(6)
}

// FormatCantidad formatea cantidades con un mínimo de 2 y un máximo de 6 decimales.
func FormatCantidad(d decimal.Decimal) string {
	s := d.StringFixed(6)
	s = strings.TrimRight(s, "0")
	if i := strings.IndexByte(s, '.'); i >= 0 && len(s)-i-1 < 2 {
		s += strings.Repeat("0", 2-(len(s)-i-1))
	}
	return s
}

// FormatTipoCambio formatea TipoCambio y EquivalenciaDR (hasta 6 decimales, sin ceros sobrantes).
func FormatTipoCambio(d decimal.Decimal) string {
	return d.Round(6).String()
}

// OptImporte formatea un monto opcional ("" si es nil).
func OptImporte(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return FormatImporte(*d)
}

// OptTasa formatea una TasaOCuota opcional ("" si es nil).
func OptTasa(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return FormatTasa(*d)
}

// OptTipoCambio formatea un tipo de cambio opcional ("" si es nil).
func OptTipoCambio(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return FormatTipoCambio(*d)
}
