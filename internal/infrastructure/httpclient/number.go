package httpclient

import (
	"github.com/shopspring/decimal"
)

// Number decimal que viaja como número JSON sin comillas (QuickBooks y NetSuite rechazan
// montos como cadena).
type Number struct {
	decimal.Decimal
}

// Num envuelve d.
func Num(d decimal.Decimal) Number { return Number{d} }

// NumPtr envuelve d en un puntero, útil con campos omitempty.
func NumPtr(d decimal.Decimal) *Number { return &Number{d} }

// MarshalJSON escribe el valor sin comillas.
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}

// UnmarshalJSON acepta número o cadena.
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		n.Decimal = decimal.Zero
		return nil
	}
	return n.Decimal.UnmarshalJSON(b)
}

// Dec devuelve el decimal o cero si n es nil.
func (n *Number) Dec() decimal.Decimal {
	if n == nil {
		return decimal.Zero
	}
	return n.Decimal
}
