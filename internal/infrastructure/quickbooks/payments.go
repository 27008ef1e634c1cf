package quickbooks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
)

type paymentEnvelope struct {
	Payment qboPayment `json:"Payment"`
}

// CreatePayment registra un cobro y lo aplica a las facturas indicadas. El monto no aplicado
// queda como saldo a favor del cliente.
func (c *Client) CreatePayment(ctx context.Context, p integration.Payment) (*integration.Payment, error) {
	if p.CustomerID == "" || !p.Amount.IsPositive() {
		return nil, fmt.Errorf("quickbooks: el pago requiere cliente y monto positivo: %w", domain.ErrInvalidInput)
	}
	if p.Unapplied().IsNegative() {
		return nil, fmt.Errorf("quickbooks: lo aplicado excede el monto del pago: %w", domain.ErrInvalidInput)
	}
	p.ID, p.SyncToken = "", ""
	var out paymentEnvelope
	if err := c.call(ctx, "payment.create", http.MethodPost, "payment", nil, paymentToQBO(p), &out); err != nil {
		return nil, err
	}
	res := paymentFromQBO(out.Payment)
	return &res, nil
}

// GetPayment lee un pago por id.
func (c *Client) GetPayment(ctx context.Context, id string) (*integration.Payment, error) {
	var out paymentEnvelope
	if err := c.call(ctx, "payment.get", http.MethodGet, "payment/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, err
	}
	res := paymentFromQBO(out.Payment)
	return &res, nil
}
