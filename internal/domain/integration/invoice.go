package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus estado de cobro de la factura.
type InvoiceStatus string

const (
	InvoiceOpen    InvoiceStatus = "open"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceVoided  InvoiceStatus = "voided"
)

// InvoiceLine renglón de factura.
type InvoiceLine struct {
	ProductID   string          `json:"product_id,omitempty"`
	Description string          `json:"description,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
	Taxable     bool            `json:"taxable"`
}

// Invoice factura de venta en un sistema externo.
type Invoice struct {
	ID         string          `json:"id,omitempty"`
	Source     string          `json:"source"`
	Number     string          `json:"number,omitempty"`
	CustomerID string          `json:"customer_id"`
	Date       time.Time       `json:"date"`
	DueDate    time.Time       `json:"due_date,omitempty"`
	Currency   string          `json:"currency,omitempty"`
	Lines      []InvoiceLine   `json:"lines"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	TaxTotal   decimal.Decimal `json:"tax_total"`
	Total      decimal.Decimal `json:"total"`
	Balance    decimal.Decimal `json:"balance"`
	Status     InvoiceStatus   `json:"status"`
	Memo       string          `json:"memo,omitempty"`
	FiscalUUID string          `json:"fiscal_uuid,omitempty"` // UUID del CFDI timbrado, si existe
	SyncToken  string          `json:"sync_token,omitempty"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
	UpdatedAt  time.Time       `json:"updated_at,omitempty"`
}

// ComputeTotals calcula Amount de cada línea (Quantity × UnitPrice, 2 decimales) y el Subtotal.
// Total = Subtotal + TaxTotal.
func (inv *Invoice) ComputeTotals() {
	sub := decimal.Zero
	for i := range inv.Lines {
		l := &inv.Lines[i]
		l.Amount = l.Quantity.Mul(l.UnitPrice).Round(2)
		sub = sub.Add(l.Amount)
	}
	inv.Subtotal = sub
	inv.Total = sub.Add(inv.TaxTotal)
}

// StatusFromBalance deriva el estado de cobro a partir del total y el saldo.
func StatusFromBalance(total, balance decimal.Decimal) InvoiceStatus {
	switch {
	case balance.IsZero() && total.IsPositive():
		return InvoicePaid
	case balance.LessThan(total):
		return InvoicePartial
	default:
		return InvoiceOpen
	}
}
