package billing

import (
	"context"

	appcfdi "github.com/jhoicas/integraciones-api/internal/application/cfdi"
	dom "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
)

// InvoiceSource ERP del que se leen la factura y su cliente.
// Lo implementan *quickbooks.Client y *netsuite.Client.
type InvoiceSource interface {
	Name() string
	GetInvoice(ctx context.Context, id string) (*integration.Invoice, error)
	GetCustomer(ctx context.Context, id string) (*integration.Customer, error)
}

// FiscalUUIDWriter ERP que guarda el folio fiscal en la factura (NetSuite).
type FiscalUUIDWriter interface {
	SetFiscalUUID(ctx context.Context, invoiceID, uuid string) error
}

// Stamper arma y timbra la factura de ingreso. Lo implementa *cfdi.Facade.
type Stamper interface {
	CreateInvoice(ctx context.Context, in appcfdi.InvoiceInput) (*dom.Document, error)
}
