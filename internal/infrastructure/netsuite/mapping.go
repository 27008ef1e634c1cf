package netsuite

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

func boolPtr(b bool) *bool { return &b }

func refOrNil(id string) *nsRef {
	if id == "" {
		return nil
	}
	return &nsRef{ID: id}
}

func refID(r *nsRef) string {
	if r == nil {
		return ""
	}
	return r.ID
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

func timeOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func numOrNil(d decimal.Decimal) *httpclient.Number {
	if d.IsZero() {
		return nil
	}
	return httpclient.NumPtr(d)
}

// ── Clientes ────────────────────────────────────────────────────────────────

func customerToNS(c integration.Customer) nsCustomer {
	name := c.CompanyName
	if name == "" {
		name = c.Name
	}
	n := nsCustomer{
		CompanyName: name,
		IsPerson:    boolPtr(false),
		Email:       c.Email,
		Phone:       c.Phone,
		Currency:    refOrNil(c.Currency),
		IsInactive:  boolPtr(!c.Active),
		RFC:         c.TaxID,
	}
	if a := c.BillingAddress; !a.IsZero() {
		n.AddressBook = &nsAddressBook{Items: []nsAddressBookEntry{{
			DefaultBilling: true,
			AddressBookAddress: nsAddress{
				Addr1:   a.Line1,
				Addr2:   a.Line2,
				City:    a.City,
				State:   a.State,
				Zip:     a.PostalCode,
				Country: refOrNil(a.Country),
			},
		}}}
	}
	return n
}

func customerFromNS(n nsCustomer) integration.Customer {
	c := integration.Customer{
		ID:          n.ID,
		Source:      integration.SourceNetSuite,
		Name:        n.CompanyName,
		CompanyName: n.CompanyName,
		TaxID:       n.RFC,
		Email:       n.Email,
		Phone:       n.Phone,
		Currency:    refID(n.Currency),
		Active:      n.IsInactive == nil || !*n.IsInactive,
		Balance:     n.Balance.Dec(),
		CreatedAt:   timeOf(n.DateCreated),
		UpdatedAt:   timeOf(n.LastModifiedDate),
	}
	if c.Name == "" {
		c.Name = n.EntityID
	}
	if n.AddressBook != nil {
		for _, e := range n.AddressBook.Items {
			if !e.DefaultBilling {
				continue
			}
			a := e.AddressBookAddress
			c.BillingAddress = &integration.Address{
				Line1:      a.Addr1,
				Line2:      a.Addr2,
				City:       a.City,
				State:      a.State,
				PostalCode: a.Zip,
				Country:    refID(a.Country),
			}
			break
		}
	}
	return c
}

// ── Productos ───────────────────────────────────────────────────────────────

var itemRecordTypes = map[integration.ProductType]string{
	integration.ProductInventory:    "inventoryItem",
	integration.ProductService:      "serviceSaleItem",
	integration.ProductNonInventory: "nonInventorySaleItem",
}

func itemToNS(p integration.Product) nsItem {
	return nsItem{
		ItemID:           p.SKU,
		DisplayName:      p.Name,
		SalesDescription: p.Description,
		BasePrice:        httpclient.NumPtr(p.Price),
		Cost:             numOrNil(p.Cost),
		IsInactive:       boolPtr(!p.Active),
	}
}

func itemFromNS(n nsItem, typ integration.ProductType) integration.Product {
	p := integration.Product{
		ID:             n.ID,
		Source:         integration.SourceNetSuite,
		SKU:            n.ItemID,
		Name:           n.DisplayName,
		Description:    n.SalesDescription,
		Type:           typ,
		Price:          n.BasePrice.Dec(),
		Cost:           n.Cost.Dec(),
		Active:         n.IsInactive == nil || !*n.IsInactive,
		QuantityOnHand: n.TotalQuantityOnHand.Dec(),
		CreatedAt:      timeOf(n.DateCreated),
		UpdatedAt:      timeOf(n.LastModifiedDate),
	}
	if p.Name == "" {
		p.Name = n.ItemID
	}
	return p
}

// ── Facturas ────────────────────────────────────────────────────────────────

func invoiceToNS(inv integration.Invoice) nsInvoice {
	n := nsInvoice{
		TranID:   inv.Number,
		Entity:   refOrNil(inv.CustomerID),
		TranDate: formatDate(inv.Date),
		DueDate:  formatDate(inv.DueDate),
		Currency: refOrNil(inv.Currency),
		Memo:     inv.Memo,
		CFDIUUID: inv.FiscalUUID,
	}
	if len(inv.Lines) > 0 {
		n.Item = &nsInvoiceLines{}
		for _, l := range inv.Lines {
			n.Item.Items = append(n.Item.Items, nsInvoiceLine{
				Item:        refOrNil(l.ProductID),
				Description: l.Description,
				Quantity:    httpclient.NumPtr(l.Quantity),
				Rate:        httpclient.NumPtr(l.UnitPrice),
			})
		}
	}
	return n
}

func invoiceFromNS(n nsInvoice) integration.Invoice {
	inv := integration.Invoice{
		ID:         n.ID,
		Source:     integration.SourceNetSuite,
		Number:     n.TranID,
		CustomerID: refID(n.Entity),
		Date:       parseDate(n.TranDate),
		DueDate:    parseDate(n.DueDate),
		Currency:   refID(n.Currency),
		Subtotal:   n.Subtotal.Dec(),
		TaxTotal:   n.TaxTotal.Dec(),
		Total:      n.Total.Dec(),
		Balance:    n.AmountRemaining.Dec(),
		Memo:       n.Memo,
		FiscalUUID: n.CFDIUUID,
		CreatedAt:  timeOf(n.DateCreated),
		UpdatedAt:  timeOf(n.LastModifiedDate),
	}
	if n.Item != nil {
		for _, l := range n.Item.Items {
			inv.Lines = append(inv.Lines, integration.InvoiceLine{
				ProductID:   refID(l.Item),
				Description: l.Description,
				Quantity:    l.Quantity.Dec(),
				UnitPrice:   l.Rate.Dec(),
				Amount:      l.Amount.Dec(),
				Taxable:     l.Tax1Amt.Dec().IsPositive(),
			})
		}
	}
	inv.Status = integration.StatusFromBalance(inv.Total, inv.Balance)
	return inv
}

// ── Pagos ───────────────────────────────────────────────────────────────────

func paymentToNS(p integration.Payment) nsPayment {
	n := nsPayment{
		Customer: refOrNil(p.CustomerID),
		TranDate: formatDate(p.Date),
		Currency: refOrNil(p.Currency),
		Payment:  httpclient.NumPtr(p.Amount),
		Memo:     p.Reference,
	}
	if len(p.Applied) > 0 {
		n.Apply = &nsApply{}
		for _, a := range p.Applied {
			n.Apply.Items = append(n.Apply.Items, nsApplyLine{
				Doc:    refOrNil(a.InvoiceID),
				Apply:  true,
				Amount: httpclient.NumPtr(a.Amount),
			})
		}
	}
	return n
}

func paymentFromNS(n nsPayment) integration.Payment {
	p := integration.Payment{
		ID:         n.ID,
		Source:     integration.SourceNetSuite,
		CustomerID: refID(n.Customer),
		Date:       parseDate(n.TranDate),
		Amount:     n.Payment.Dec(),
		Currency:   refID(n.Currency),
		Reference:  n.Memo,
		CreatedAt:  timeOf(n.DateCreated),
	}
	if n.Apply != nil {
		for _, l := range n.Apply.Items {
			if l.Apply {
				p.Applied = append(p.Applied, integration.PaymentApplication{InvoiceID: refID(l.Doc), Amount: l.Amount.Dec()})
			}
		}
	}
	return p
}
