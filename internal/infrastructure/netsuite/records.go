package netsuite

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

// ── Clientes ────────────────────────────────────────────────────────────────

// CreateCustomer da de alta el cliente (activo, persona moral) y lo devuelve leído de NetSuite.
func (c *Client) CreateCustomer(ctx context.Context, cust integration.Customer) (*integration.Customer, error) {
	if cust.Name == "" && cust.CompanyName == "" {
		return nil, fmt.Errorf("netsuite: el cliente requiere nombre: %w", domain.ErrInvalidInput)
	}
	cust.Active = true
	id, err := c.createRecord(ctx, recordCustomer, customerToNS(cust))
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("customer_id", id).Msg("netsuite: cliente creado")
	return c.GetCustomer(ctx, id)
}

// GetCustomer lee un cliente con su libreta de direcciones.
func (c *Client) GetCustomer(ctx context.Context, id string) (*integration.Customer, error) {
	var n nsCustomer
	if err := c.getRecord(ctx, recordCustomer, id, &n); err != nil {
		return nil, err
	}
	res := customerFromNS(n)
	return &res, nil
}

// UpdateCustomer actualiza los campos enviados (PATCH).
func (c *Client) UpdateCustomer(ctx context.Context, cust integration.Customer) (*integration.Customer, error) {
	if cust.ID == "" {
		return nil, fmt.Errorf("netsuite: actualizar cliente requiere id: %w", domain.ErrInvalidInput)
	}
	if err := c.updateRecord(ctx, recordCustomer, cust.ID, customerToNS(cust)); err != nil {
		return nil, err
	}
	return c.GetCustomer(ctx, cust.ID)
}

// DeleteCustomer elimina el cliente.
func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	return c.deleteRecord(ctx, recordCustomer, id)
}

type customerRow struct {
	ID           string `json:"id"`
	EntityID     string `json:"entityid"`
	CompanyName  string `json:"companyname"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	IsInactive   string `json:"isinactive"`
	RFC          string `json:"custentity_mx_rfc"`
	LastModified string `json:"lastmodified"`
}

func (r customerRow) toCanonical() integration.Customer {
	name := r.CompanyName
	if name == "" {
		name = r.EntityID
	}
	return integration.Customer{
		ID:          r.ID,
		Source:      integration.SourceNetSuite,
		Name:        name,
		CompanyName: r.CompanyName,
		TaxID:       r.RFC,
		Email:       r.Email,
		Phone:       r.Phone,
		Active:      r.IsInactive != "T",
		UpdatedAt:   parseTimestamp(r.LastModified),
	}
}

const customerColumns = "SELECT id, entityid, companyname, email, phone, isinactive, custentity_mx_rfc, " +
	"TO_CHAR(lastmodifieddate, 'YYYY-MM-DD HH24:MI:SS') AS lastmodified FROM customer"

func (c *Client) queryCustomers(ctx context.Context, conds []string, opts integration.ListOptions) ([]integration.Customer, error) {
	if !opts.ModifiedSince.IsZero() {
		conds = append(conds, modifiedSince("lastmodifieddate", opts.ModifiedSince))
	}
	page, err := c.SuiteQL(ctx, customerColumns+where(conds)+" ORDER BY id", opts)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[customerRow](page)
	if err != nil {
		return nil, fmt.Errorf("netsuite: decodificar clientes: %w", err)
	}
	out := make([]integration.Customer, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toCanonical())
	}
	return out, nil
}

// QueryCustomers lista clientes vía SuiteQL.
func (c *Client) QueryCustomers(ctx context.Context, opts integration.ListOptions) ([]integration.Customer, error) {
	return c.queryCustomers(ctx, nil, opts)
}

// FindCustomerByRFC busca el cliente por el RFC de la localización mexicana.
func (c *Client) FindCustomerByRFC(ctx context.Context, rfc string) (*integration.Customer, error) {
	rfc = strings.ToUpper(strings.TrimSpace(rfc))
	res, err := c.queryCustomers(ctx, []string{"custentity_mx_rfc = " + quote(rfc)}, integration.ListOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("netsuite: cliente con RFC %s: %w", rfc, domain.ErrNotFound)
	}
	return &res[0], nil
}

// ── Productos ───────────────────────────────────────────────────────────────

func itemRecordType(t integration.ProductType) (string, error) {
	if t == "" {
		t = integration.ProductService
	}
	rt, ok := itemRecordTypes[t]
	if !ok {
		return "", fmt.Errorf("netsuite: tipo de producto %q: %w", t, domain.ErrInvalidInput)
	}
	return rt, nil
}

// CreateItem da de alta el artículo en el registro que corresponde a su tipo.
func (c *Client) CreateItem(ctx context.Context, p integration.Product) (*integration.Product, error) {
	if p.SKU == "" && p.Name == "" {
		return nil, fmt.Errorf("netsuite: el producto requiere SKU o nombre: %w", domain.ErrInvalidInput)
	}
	if p.Type == "" {
		p.Type = integration.ProductService
	}
	rt, err := itemRecordType(p.Type)
	if err != nil {
		return nil, err
	}
	if p.SKU == "" {
		p.SKU = p.Name
	}
	p.Active = true
	id, err := c.createRecord(ctx, rt, itemToNS(p))
	if err != nil {
		return nil, err
	}
	return c.GetItem(ctx, p.Type, id)
}

// GetItem lee un artículo; el tipo determina el registro.
func (c *Client) GetItem(ctx context.Context, typ integration.ProductType, id string) (*integration.Product, error) {
	rt, err := itemRecordType(typ)
	if err != nil {
		return nil, err
	}
	var n nsItem
	if err := c.getRecord(ctx, rt, id, &n); err != nil {
		return nil, err
	}
	if typ == "" {
		typ = integration.ProductService
	}
	res := itemFromNS(n, typ)
	return &res, nil
}

type itemRow struct {
	ID          string             `json:"id"`
	ItemID      string             `json:"itemid"`
	DisplayName string             `json:"displayname"`
	ItemType    string             `json:"itemtype"`
	Description string             `json:"salesdescription"`
	IsInactive  string             `json:"isinactive"`
	OnHand      *httpclient.Number `json:"totalquantityonhand"`
}

var itemTypesByCode = map[string]integration.ProductType{
	"InvtPart":    integration.ProductInventory,
	"Service":     integration.ProductService,
	"NonInvtPart": integration.ProductNonInventory,
}

// QueryItems lista artículos de los tipos soportados.
func (c *Client) QueryItems(ctx context.Context, opts integration.ListOptions) ([]integration.Product, error) {
	conds := []string{"itemtype IN ('InvtPart', 'Service', 'NonInvtPart')"}
	if !opts.ModifiedSince.IsZero() {
		conds = append(conds, modifiedSince("lastmodifieddate", opts.ModifiedSince))
	}
	q := "SELECT id, itemid, displayname, itemtype, salesdescription, isinactive, totalquantityonhand FROM item" +
		where(conds) + " ORDER BY id"
	page, err := c.SuiteQL(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[itemRow](page)
	if err != nil {
		return nil, fmt.Errorf("netsuite: decodificar productos: %w", err)
	}
	out := make([]integration.Product, 0, len(rows))
	for _, r := range rows {
		name := r.DisplayName
		if name == "" {
			name = r.ItemID
		}
		out = append(out, integration.Product{
			ID:             r.ID,
			Source:         integration.SourceNetSuite,
			SKU:            r.ItemID,
			Name:           name,
			Description:    r.Description,
			Type:           itemTypesByCode[r.ItemType],
			Active:         r.IsInactive != "T",
			QuantityOnHand: r.OnHand.Dec(),
		})
	}
	return out, nil
}

// ── Facturas ────────────────────────────────────────────────────────────────

func checkInvoice(inv integration.Invoice) error {
	if inv.CustomerID == "" || len(inv.Lines) == 0 {
		return fmt.Errorf("netsuite: la factura requiere cliente y al menos una línea: %w", domain.ErrInvalidInput)
	}
	for i, l := range inv.Lines {
		if l.ProductID == "" || !l.Quantity.IsPositive() {
			return fmt.Errorf("netsuite: línea %d sin artículo o cantidad: %w", i+1, domain.ErrInvalidInput)
		}
	}
	return nil
}

// CreateInvoice crea la factura; NetSuite calcula impuestos y totales.
func (c *Client) CreateInvoice(ctx context.Context, inv integration.Invoice) (*integration.Invoice, error) {
	if err := checkInvoice(inv); err != nil {
		return nil, err
	}
	id, err := c.createRecord(ctx, recordInvoice, invoiceToNS(inv))
	if err != nil {
		return nil, err
	}
	c.log.Info().Str("invoice_id", id).Msg("netsuite: factura creada")
	return c.GetInvoice(ctx, id)
}

// GetInvoice lee la factura con sus líneas.
func (c *Client) GetInvoice(ctx context.Context, id string) (*integration.Invoice, error) {
	var n nsInvoice
	if err := c.getRecord(ctx, recordInvoice, id, &n); err != nil {
		return nil, err
	}
	res := invoiceFromNS(n)
	return &res, nil
}

// UpdateInvoice actualiza la factura; si trae líneas reemplazan a las existentes.
func (c *Client) UpdateInvoice(ctx context.Context, inv integration.Invoice) (*integration.Invoice, error) {
	if inv.ID == "" {
		return nil, fmt.Errorf("netsuite: actualizar factura requiere id: %w", domain.ErrInvalidInput)
	}
	r := request{
		op:     recordInvoice + ".update",
		method: http.MethodPatch,
		path:   recordURL(recordInvoice, inv.ID),
		body:   invoiceToNS(inv),
	}
	if len(inv.Lines) > 0 {
		r.query = url.Values{"replace": {"item"}}
	}
	if _, err := c.call(ctx, r, nil); err != nil {
		return nil, err
	}
	return c.GetInvoice(ctx, inv.ID)
}

// SetFiscalUUID registra en la factura el folio fiscal del CFDI timbrado.
func (c *Client) SetFiscalUUID(ctx context.Context, invoiceID, uuid string) error {
	if invoiceID == "" || uuid == "" {
		return fmt.Errorf("netsuite: factura y UUID son obligatorios: %w", domain.ErrInvalidInput)
	}
	return c.updateRecord(ctx, recordInvoice, invoiceID, map[string]string{FieldCFDIUUID: strings.ToUpper(uuid)})
}

// DeleteInvoice elimina la factura.
func (c *Client) DeleteInvoice(ctx context.Context, id string) error {
	return c.deleteRecord(ctx, recordInvoice, id)
}

type invoiceRow struct {
	ID        string             `json:"id"`
	TranID    string             `json:"tranid"`
	Entity    string             `json:"entity"`
	TranDate  string             `json:"trandate"`
	Total     *httpclient.Number `json:"foreigntotal"`
	Remaining *httpclient.Number `json:"foreignamountremaining"`
	CFDIUUID  string             `json:"custbody_mx_cfdi_uuid"`
}

// QueryInvoices lista facturas de cliente; customerID vacío no filtra.
func (c *Client) QueryInvoices(ctx context.Context, customerID string, opts integration.ListOptions) ([]integration.Invoice, error) {
	conds := []string{"type = 'CustInvc'"}
	if customerID != "" {
		conds = append(conds, "entity = "+quote(customerID))
	}
	if !opts.ModifiedSince.IsZero() {
		conds = append(conds, modifiedSince("lastmodifieddate", opts.ModifiedSince))
	}
	q := "SELECT id, tranid, entity, TO_CHAR(trandate, 'YYYY-MM-DD') AS trandate, foreigntotal, " +
		"foreignamountremaining, custbody_mx_cfdi_uuid FROM transaction" + where(conds) + " ORDER BY id"
	page, err := c.SuiteQL(ctx, q, opts)
	if err != nil {
		return nil, err
	}
	rows, err := decodeRows[invoiceRow](page)
	if err != nil {
		return nil, fmt.Errorf("netsuite: decodificar facturas: %w", err)
	}
	out := make([]integration.Invoice, 0, len(rows))
	for _, r := range rows {
		inv := integration.Invoice{
			ID:         r.ID,
			Source:     integration.SourceNetSuite,
			Number:     r.TranID,
			CustomerID: r.Entity,
			Date:       parseDate(r.TranDate),
			Total:      r.Total.Dec(),
			Balance:    r.Remaining.Dec(),
			FiscalUUID: r.CFDIUUID,
		}
		inv.Status = integration.StatusFromBalance(inv.Total, inv.Balance)
		out = append(out, inv)
	}
	return out, nil
}

// ── Pagos ───────────────────────────────────────────────────────────────────

// CreatePayment registra el cobro aplicado a las facturas indicadas.
func (c *Client) CreatePayment(ctx context.Context, p integration.Payment) (*integration.Payment, error) {
	if p.CustomerID == "" || !p.Amount.IsPositive() {
		return nil, fmt.Errorf("netsuite: el pago requiere cliente y monto positivo: %w", domain.ErrInvalidInput)
	}
	if p.Unapplied().IsNegative() {
		return nil, fmt.Errorf("netsuite: lo aplicado excede el monto del pago: %w", domain.ErrInvalidInput)
	}
	id, err := c.createRecord(ctx, recordPayment, paymentToNS(p))
	if err != nil {
		return nil, err
	}
	return c.GetPayment(ctx, id)
}

// GetPayment lee el pago con sus aplicaciones.
func (c *Client) GetPayment(ctx context.Context, id string) (*integration.Payment, error) {
	var n nsPayment
	if err := c.getRecord(ctx, recordPayment, id, &n); err != nil {
		return nil, err
	}
	res := paymentFromNS(n)
	return &res, nil
}
