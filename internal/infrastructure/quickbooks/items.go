package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

type itemEnvelope struct {
	Item qboItem `json:"Item"`
}

// CreateItem da de alta un producto o servicio. Los productos de inventario llevan existencia
// inicial y requieren las cuentas de ingresos, costo y activo configuradas.
func (c *Client) CreateItem(ctx context.Context, p integration.Product) (*integration.Product, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("quickbooks: el producto requiere nombre: %w", domain.ErrInvalidInput)
	}
	if p.Type == "" {
		p.Type = integration.ProductService
	}
	typ, ok := itemTypes[p.Type]
	if !ok {
		return nil, fmt.Errorf("quickbooks: tipo de producto %q: %w", p.Type, domain.ErrInvalidInput)
	}
	if c.cfg.IncomeAccountID == "" {
		return nil, fmt.Errorf("quickbooks: cuenta de ingresos no configurada: %w", domain.ErrNotConfigured)
	}

	body := qboItem{
		Name:             p.Name,
		Sku:              p.SKU,
		Description:      p.Description,
		Type:             typ,
		UnitPrice:        httpclient.NumPtr(p.Price),
		Taxable:          boolPtr(p.Taxable),
		IncomeAccountRef: &ref{Value: c.cfg.IncomeAccountID},
	}
	if !p.Cost.IsZero() {
		body.PurchaseCost = httpclient.NumPtr(p.Cost)
	}
	if p.Type == integration.ProductInventory {
		if c.cfg.ExpenseAccountID == "" || c.cfg.AssetAccountID == "" {
			return nil, fmt.Errorf("quickbooks: inventario requiere cuentas de costo y activo: %w", domain.ErrNotConfigured)
		}
		body.TrackQtyOnHand = true
		body.QtyOnHand = httpclient.NumPtr(p.QuantityOnHand)
		body.InvStartDate = formatDate(c.now())
		body.ExpenseAccountRef = &ref{Value: c.cfg.ExpenseAccountID}
		body.AssetAccountRef = &ref{Value: c.cfg.AssetAccountID}
	}

	var out itemEnvelope
	if err := c.call(ctx, "item.create", http.MethodPost, "item", nil, body, &out); err != nil {
		return nil, err
	}
	res := itemFromQBO(out.Item)
	return &res, nil
}

// GetItem lee un producto por id.
func (c *Client) GetItem(ctx context.Context, id string) (*integration.Product, error) {
	var out itemEnvelope
	if err := c.call(ctx, "item.get", http.MethodGet, "item/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	res := itemFromQBO(out.Item)
	return &res, nil
}

// QueryItems lista productos.
func (c *Client) QueryItems(ctx context.Context, opts integration.ListOptions) ([]integration.Product, error) {
	resp, err := c.query(ctx, "Item", nil, opts)
	if err != nil {
		return nil, err
	}
	out := make([]integration.Product, 0, len(resp.QueryResponse.Item))
	for _, q := range resp.QueryResponse.Item {
		out = append(out, itemFromQBO(q))
	}
	return out, nil
}
