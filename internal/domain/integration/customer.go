// Package integration define el modelo canónico con el que los conectores (QuickBooks, NetSuite)
// intercambian clientes, productos, facturas y pagos con el resto de la plataforma.
package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Sistemas externos soportados.
const (
	SourceQuickBooks = "quickbooks"
	SourceNetSuite   = "netsuite"
)

// Address dirección postal.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// IsZero indica si la dirección no tiene ningún dato.
func (a *Address) IsZero() bool {
	return a == nil || *a == Address{}
}

// Customer cliente en un sistema externo.
type Customer struct {
	ID             string          `json:"id,omitempty"` // id en el sistema externo
	Source         string          `json:"source"`
	Name           string          `json:"name"`
	CompanyName    string          `json:"company_name,omitempty"`
	TaxID          string          `json:"tax_id,omitempty"` // RFC
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	Active         bool            `json:"active"`
	Balance        decimal.Decimal `json:"balance"`
	BillingAddress *Address        `json:"billing_address,omitempty"`
	SyncToken      string          `json:"sync_token,omitempty"` // versión para bloqueo optimista (QuickBooks)
	CreatedAt      time.Time       `json:"created_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty"`
}
