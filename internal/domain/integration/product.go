package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductType tipo de artículo.
type ProductType string

const (
	ProductInventory    ProductType = "inventory"
	ProductService      ProductType = "service"
	ProductNonInventory ProductType = "non_inventory"
)

// Product artículo o servicio vendible.
type Product struct {
	ID             string          `json:"id,omitempty"`
	Source         string          `json:"source"`
	SKU            string          `json:"sku,omitempty"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Type           ProductType     `json:"type"`
	Price          decimal.Decimal `json:"price"`
	Cost           decimal.Decimal `json:"cost"`
	Taxable        bool            `json:"taxable"`
	Active         bool            `json:"active"`
	QuantityOnHand decimal.Decimal `json:"quantity_on_hand"`
	SyncToken      string          `json:"sync_token,omitempty"`
	CreatedAt      time.Time       `json:"created_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty"`
}
