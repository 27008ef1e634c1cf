package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
)

type invoiceEnvelope struct {
	Invoice qboInvoice `json:"Invoice"`
}

func checkInvoice(inv integration.Invoice) error {
	if inv.CustomerID == "" {
		return fmt.Errorf("quickbooks: la factura requiere cliente: %w", domain.ErrInvalidInput)
	}
	if len(inv.Lines) == 0 {
		return fmt.Errorf("quickbooks: la factura requiere al menos una línea: %w", domain.ErrInvalidInput)
	}
	for i, l := range inv.Lines {
		if l.ProductID == "" {
			return fmt.Errorf("quickbooks: línea %d sin producto: %w", i+1, domain.ErrInvalidInput)
		}
	}
	return nil
}

// CreateInvoice crea la factura. QuickBooks calcula impuestos y totales.
func (c *Client) CreateInvoice(ctx context.Context, inv integration.Invoice) (*integration.Invoice, error) {
	if err := checkInvoice(inv); err != nil {
		return nil, err
	}
	inv.ID, inv.SyncToken = "", ""
	var out invoiceEnvelope
	if err := c.call(ctx, "invoice.create", http.MethodPost, "invoice", nil, invoiceToQBO(inv), &out); err != nil {
		return nil, err
	}
	res := invoiceFromQBO(out.Invoice)
	c.log.Info().Str("invoice_id", res.ID).Str("doc_number", res.Number).Msg("quickbooks: factura creada")
	return &res, nil
}

// GetInvoice lee una factura por id.
func (c *Client) GetInvoice(ctx context.Context, id string) (*integration.Invoice, error) {
	var out invoiceEnvelope
	if err := c.call(ctx, "invoice.get", http.MethodGet, "invoice/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	res := invoiceFromQBO(out.Invoice)
	return &res, nil
}

// UpdateInvoice reemplaza la factura completa (las líneas omitidas se eliminan).
func (c *Client) UpdateInvoice(ctx context.Context, inv integration.Invoice) (*integration.Invoice, error) {
	if inv.ID == "" || inv.SyncToken == "" {
		return nil, fmt.Errorf("quickbooks: actualizar factura requiere Id y SyncToken: %w", domain.ErrInvalidInput)
	}
	if err := checkInvoice(inv); err != nil {
		return nil, err
	}
	var out invoiceEnvelope
	if err := c.call(ctx, "invoice.update", http.MethodPost, "invoice", nil, invoiceToQBO(inv), &out); err != nil {
		return nil, err
	}
	res := invoiceFromQBO(out.Invoice)
	return &res, nil
}

// DeleteInvoice elimina la factura.
func (c *Client) DeleteInvoice(ctx context.Context, id, syncToken string) error {
	if id == "" || syncToken == "" {
		return fmt.Errorf("quickbooks: eliminar factura requiere Id y SyncToken: %w", domain.ErrInvalidInput)
	}
	body := qboInvoice{ID: id, SyncToken: syncToken}
	q := url.Values{"operation": {"delete"}}
	if err := c.call(ctx, "invoice.delete", http.MethodPost, "invoice", q, body, nil); err != nil {
		return err
	}
	c.log.Info().Str("invoice_id", id).Msg("quickbooks: factura eliminada")
	return nil
}

// QueryInvoices lista facturas; customerID vacío no filtra.
func (c *Client) QueryInvoices(ctx context.Context, customerID string, opts integration.ListOptions) ([]integration.Invoice, error) {
	var where []string
	if customerID != "" {
		where = append(where, "CustomerRef = "+quote(customerID))
	}
	resp, err := c.query(ctx, "Invoice", where, opts)
	if err != nil {
		return nil, err
	}
	out := make([]integration.Invoice, 0, len(resp.QueryResponse.Invoice))
	for _, q := range resp.QueryResponse.Invoice {
		out = append(out, invoiceFromQBO(q))
	}
	return out, nil
}
