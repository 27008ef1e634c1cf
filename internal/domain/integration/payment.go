package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentApplication monto del pago aplicado a una factura.
type PaymentApplication struct {
	InvoiceID string          `json:"invoice_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Payment cobro recibido de un cliente.
type Payment struct {
	ID         string               `json:"id,omitempty"`
	Source     string               `json:"source"`
	CustomerID string               `json:"customer_id"`
	Date       time.Time            `json:"date"`
	Amount     decimal.Decimal      `json:"amount"`
	Currency   string               `json:"currency,omitempty"`
	Reference  string               `json:"reference,omitempty"`
	Applied    []PaymentApplication `json:"applied,omitempty"`
	SyncToken  string               `json:"sync_token,omitempty"`
	CreatedAt  time.Time            `json:"created_at,omitempty"`
}

// Unapplied monto del pago que no se aplicó a ninguna factura.
func (p *Payment) Unapplied() decimal.Decimal {
	rest := p.Amount
	for _, a := range p.Applied {
		rest = rest.Sub(a.Amount)
	}
	return rest
}
