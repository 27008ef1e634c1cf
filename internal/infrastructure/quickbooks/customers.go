package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
)

type customerEnvelope struct {
	Customer qboCustomer `json:"Customer"`
}

// CreateCustomer da de alta el cliente (activo). DisplayName debe ser único en la empresa.
func (c *Client) CreateCustomer(ctx context.Context, cust integration.Customer) (*integration.Customer, error) {
	if cust.Name == "" {
		return nil, fmt.Errorf("quickbooks: el cliente requiere nombre: %w", domain.ErrInvalidInput)
	}
	cust.ID, cust.SyncToken, cust.Active = "", "", true
	var out customerEnvelope
	if err := c.call(ctx, "customer.create", http.MethodPost, "customer", nil, customerToQBO(cust), &out); err != nil {
		return nil, err
	}
	res := customerFromQBO(out.Customer)
	c.log.Info().Str("customer_id", res.ID).Msg("quickbooks: cliente creado")
	return &res, nil
}

// GetCustomer lee un cliente por id.
func (c *Client) GetCustomer(ctx context.Context, id string) (*integration.Customer, error) {
	var out customerEnvelope
	if err := c.call(ctx, "customer.get", http.MethodGet, "customer/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	res := customerFromQBO(out.Customer)
	return &res, nil
}

// UpdateCustomer actualización parcial (sparse). Requiere ID y el SyncToken vigente; un token
// desactualizado devuelve domain.ErrConflict.
func (c *Client) UpdateCustomer(ctx context.Context, cust integration.Customer) (*integration.Customer, error) {
	if cust.ID == "" || cust.SyncToken == "" {
		return nil, fmt.Errorf("quickbooks: actualizar cliente requiere Id y SyncToken: %w", domain.ErrInvalidInput)
	}
	body := customerToQBO(cust)
	body.Sparse = true
	var out customerEnvelope
	if err := c.call(ctx, "customer.update", http.MethodPost, "customer", nil, body, &out); err != nil {
		return nil, err
	}
	res := customerFromQBO(out.Customer)
	return &res, nil
}

// QueryCustomers lista clientes, opcionalmente modificados desde opts.ModifiedSince.
func (c *Client) QueryCustomers(ctx context.Context, opts integration.ListOptions) ([]integration.Customer, error) {
	resp, err := c.query(ctx, "Customer", nil, opts)
	if err != nil {
		return nil, err
	}
	out := make([]integration.Customer, 0, len(resp.QueryResponse.Customer))
	for _, q := range resp.QueryResponse.Customer {
		out = append(out, customerFromQBO(q))
	}
	return out, nil
}

// FindCustomerByName busca por DisplayName exacto.
func (c *Client) FindCustomerByName(ctx context.Context, name string) (*integration.Customer, error) {
	resp, err := c.query(ctx, "Customer", []string{"DisplayName = " + quote(name)}, integration.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.QueryResponse.Customer) == 0 {
		return nil, fmt.Errorf("quickbooks: cliente %q: %w", name, domain.ErrNotFound)
	}
	res := customerFromQBO(resp.QueryResponse.Customer[0])
	return &res, nil
}
