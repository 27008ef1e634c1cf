package integration_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/integraciones-api/internal/domain/integration"
)

func TestInvoice_ComputeTotals(t *testing.T) {
	inv := &integration.Invoice{
		Lines: []integration.InvoiceLine{
			{Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("10.333")},
			{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(69)},
		},
		TaxTotal: decimal.NewFromInt(16),
	}
	inv.ComputeTotals()

	assert.Equal(t, "31", inv.Lines[0].Amount.String())
	assert.Equal(t, "100", inv.Subtotal.String())
	assert.Equal(t, "116", inv.Total.String())
}

func TestStatusFromBalance(t *testing.T) {
	total := decimal.NewFromInt(100)
	assert.Equal(t, integration.InvoicePaid, integration.StatusFromBalance(total, decimal.Zero))
	assert.Equal(t, integration.InvoicePartial, integration.StatusFromBalance(total, decimal.NewFromInt(40)))
	assert.Equal(t, integration.InvoiceOpen, integration.StatusFromBalance(total, total))
}

func TestPayment_Unapplied(t *testing.T) {
	p := &integration.Payment{
		Amount:  decimal.NewFromInt(500),
		Applied: []integration.PaymentApplication{{InvoiceID: "1", Amount: decimal.NewFromInt(320)}},
	}
	assert.Equal(t, "180", p.Unapplied().String())
}

func TestNewSyncResult(t *testing.T) {
	at := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	ok := integration.NewSyncResult("quickbooks", "customer", "create", "c-1", "58", nil, at)
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)

	fail := integration.NewSyncResult("netsuite", "invoice", "update", "f-1", "", errors.New("boom"), at)
	assert.False(t, fail.Success)
	assert.Equal(t, "boom", fail.Error)
}

func TestAddress_IsZero(t *testing.T) {
	var nilAddr *integration.Address
	assert.True(t, nilAddr.IsZero())
	assert.True(t, (&integration.Address{}).IsZero())
	assert.False(t, (&integration.Address{City: "CDMX"}).IsZero())
}

func TestListOptions_PageSize(t *testing.T) {
	assert.Equal(t, integration.DefaultPageSize, integration.ListOptions{}.PageSize())
	assert.Equal(t, 25, integration.ListOptions{Limit: 25}.PageSize())
}
