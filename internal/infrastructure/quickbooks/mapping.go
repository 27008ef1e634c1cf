package quickbooks

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

func boolPtr(b bool) *bool { return &b }

func refOrNil(v string) *ref {
	if v == "" {
		return nil
	}
	return &ref{Value: v}
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func applyMeta(m *metaData, created, updated *time.Time) {
	if m == nil {
		return
	}
	*created, *updated = m.CreateTime, m.LastUpdatedTime
}

// ── Clientes ────────────────────────────────────────────────────────────────

func customerToQBO(c integration.Customer) qboCustomer {
	q := qboCustomer{
		ID:                   c.ID,
		SyncToken:            c.SyncToken,
		DisplayName:          c.Name,
		CompanyName:          c.CompanyName,
		PrimaryTaxIdentifier: c.TaxID,
		CurrencyRef:          refOrNil(c.Currency),
		Active:               boolPtr(c.Active),
	}
	if c.Email != "" {
		q.PrimaryEmailAddr = &emailAddress{Address: c.Email}
	}
	if c.Phone != "" {
		q.PrimaryPhone = &telephone{FreeFormNumber: c.Phone}
	}
	if a := c.BillingAddress; !a.IsZero() {
		q.BillAddr = &physicalAddress{
			Line1:                  a.Line1,
			Line2:                  a.Line2,
			City:                   a.City,
			CountrySubDivisionCode: a.State,
			PostalCode:             a.PostalCode,
			Country:                a.Country,
		}
	}
	return q
}

func customerFromQBO(q qboCustomer) integration.Customer {
	c := integration.Customer{
		ID:          q.ID,
		Source:      integration.SourceQuickBooks,
		Name:        q.DisplayName,
		CompanyName: q.CompanyName,
		TaxID:       q.PrimaryTaxIdentifier,
		Active:      q.Active == nil || *q.Active,
		Balance:     q.Balance.Dec(),
		SyncToken:   q.SyncToken,
	}
	if q.PrimaryEmailAddr != nil {
		c.Email = q.PrimaryEmailAddr.Address
	}
	if q.PrimaryPhone != nil {
		c.Phone = q.PrimaryPhone.FreeFormNumber
	}
	if q.CurrencyRef != nil {
		c.Currency = q.CurrencyRef.Value
	}
	if a := q.BillAddr; a != nil {
		c.BillingAddress = &integration.Address{
			Line1:      a.Line1,
			Line2:      a.Line2,
			City:       a.City,
			State:      a.CountrySubDivisionCode,
			PostalCode: a.PostalCode,
			Country:    a.Country,
		}
	}
	applyMeta(q.MetaData, &c.CreatedAt, &c.UpdatedAt)
	return c
}

// ── Productos ───────────────────────────────────────────────────────────────

var itemTypes = map[integration.ProductType]string{
	integration.ProductInventory:    "Inventory",
	integration.ProductService:      "Service",
	integration.ProductNonInventory: "NonInventory",
}

func itemFromQBO(q qboItem) integration.Product {
	p := integration.Product{
		ID:             q.ID,
		Source:         integration.SourceQuickBooks,
		SKU:            q.Sku,
		Name:           q.Name,
		Description:    q.Description,
		Type:           integration.ProductService,
		Price:          q.UnitPrice.Dec(),
		Cost:           q.PurchaseCost.Dec(),
		Taxable:        q.Taxable != nil && *q.Taxable,
		Active:         q.Active == nil || *q.Active,
		QuantityOnHand: q.QtyOnHand.Dec(),
		SyncToken:      q.SyncToken,
	}
	for k, v := range itemTypes {
		if v == q.Type {
			p.Type = k
		}
	}
	applyMeta(q.MetaData, &p.CreatedAt, &p.UpdatedAt)
	return p
}

// ── Facturas ────────────────────────────────────────────────────────────────

func invoiceToQBO(inv integration.Invoice) qboInvoice {
	q := qboInvoice{
		ID:          inv.ID,
		SyncToken:   inv.SyncToken,
		DocNumber:   inv.Number,
		TxnDate:     formatDate(inv.Date),
		DueDate:     formatDate(inv.DueDate),
		CustomerRef: refOrNil(inv.CustomerID),
		CurrencyRef: refOrNil(inv.Currency),
		PrivateNote: inv.Memo,
	}
	for i, l := range inv.Lines {
		taxCode := taxCodeExempt
		if l.Taxable {
			taxCode = taxCodeTaxable
		}
		amount := l.Amount
		if amount.IsZero() {
			amount = l.Quantity.Mul(l.UnitPrice).Round(2)
		}
		q.Line = append(q.Line, qboLine{
			LineNum:     i + 1,
			Description: l.Description,
			Amount:      httpclient.Num(amount),
			DetailType:  detailSalesItem,
			SalesItemLineDetail: &salesItemLineDetail{
				ItemRef:    refOrNil(l.ProductID),
				Qty:        httpclient.NumPtr(l.Quantity),
				UnitPrice:  httpclient.NumPtr(l.UnitPrice),
				TaxCodeRef: &ref{Value: taxCode},
			},
		})
	}
	if !inv.TaxTotal.IsZero() {
		q.TxnTaxDetail = &txnTaxDetail{TotalTax: httpclient.NumPtr(inv.TaxTotal)}
	}
	return q
}

func invoiceFromQBO(q qboInvoice) integration.Invoice {
	inv := integration.Invoice{
		ID:        q.ID,
		Source:    integration.SourceQuickBooks,
		Number:    q.DocNumber,
		Date:      parseDate(q.TxnDate),
		DueDate:   parseDate(q.DueDate),
		Total:     q.TotalAmt.Dec(),
		Balance:   q.Balance.Dec(),
		Memo:      q.PrivateNote,
		SyncToken: q.SyncToken,
	}
	if q.CustomerRef != nil {
		inv.CustomerID = q.CustomerRef.Value
	}
	if q.CurrencyRef != nil {
		inv.Currency = q.CurrencyRef.Value
	}
	if q.TxnTaxDetail != nil {
		inv.TaxTotal = q.TxnTaxDetail.TotalTax.Dec()
	}
	sub := decimal.Zero
	for _, l := range q.Line {
		if l.DetailType != detailSalesItem || l.SalesItemLineDetail == nil {
			continue
		}
		d := l.SalesItemLineDetail
		line := integration.InvoiceLine{
			Description: l.Description,
			Quantity:    d.Qty.Dec(),
			UnitPrice:   d.UnitPrice.Dec(),
			Amount:      l.Amount.Decimal,
			Taxable:     d.TaxCodeRef != nil && d.TaxCodeRef.Value != taxCodeExempt,
		}
		if d.ItemRef != nil {
			line.ProductID = d.ItemRef.Value
		}
		sub = sub.Add(line.Amount)
		inv.Lines = append(inv.Lines, line)
	}
	inv.Subtotal = sub
	inv.Status = integration.StatusFromBalance(inv.Total, inv.Balance)
	applyMeta(q.MetaData, &inv.CreatedAt, &inv.UpdatedAt)
	return inv
}

// ── Pagos ───────────────────────────────────────────────────────────────────

func paymentToQBO(p integration.Payment) qboPayment {
	q := qboPayment{
		ID:            p.ID,
		SyncToken:     p.SyncToken,
		TxnDate:       formatDate(p.Date),
		CustomerRef:   refOrNil(p.CustomerID),
		CurrencyRef:   refOrNil(p.Currency),
		TotalAmt:      httpclient.Num(p.Amount),
		PaymentRefNum: p.Reference,
	}
	for _, a := range p.Applied {
		q.Line = append(q.Line, qboLine{
			Amount:    httpclient.Num(a.Amount),
			LinkedTxn: []linkedTxn{{TxnID: a.InvoiceID, TxnType: txnTypeInvoice}},
		})
	}
	return q
}

func paymentFromQBO(q qboPayment) integration.Payment {
	p := integration.Payment{
		ID:        q.ID,
		Source:    integration.SourceQuickBooks,
		Date:      parseDate(q.TxnDate),
		Amount:    q.TotalAmt.Decimal,
		Reference: q.PaymentRefNum,
		SyncToken: q.SyncToken,
	}
	if q.CustomerRef != nil {
		p.CustomerID = q.CustomerRef.Value
	}
	if q.CurrencyRef != nil {
		p.Currency = q.CurrencyRef.Value
	}
	for _, l := range q.Line {
		for _, t := range l.LinkedTxn {
			if t.TxnType == txnTypeInvoice {
				p.Applied = append(p.Applied, integration.PaymentApplication{InvoiceID: t.TxnID, Amount: l.Amount.Decimal})
			}
		}
	}
	if q.MetaData != nil {
		p.CreatedAt = q.MetaData.CreateTime
	}
	return p
}
