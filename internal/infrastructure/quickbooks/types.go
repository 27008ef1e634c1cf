package quickbooks

import (
	"time"

	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

// Estructuras de la API v3. Los nombres de campo siguen el JSON de Intuit.

type ref struct {
	Value string `json:"value"`
	Name  string `json:"name,omitempty"`
}

type emailAddress struct {
	Address string `json:"Address,omitempty"`
}

type telephone struct {
	FreeFormNumber string `json:"FreeFormNumber,omitempty"`
}

type physicalAddress struct {
	Line1                  string `json:"Line1,omitempty"`
	Line2                  string `json:"Line2,omitempty"`
	City                   string `json:"City,omitempty"`
	CountrySubDivisionCode string `json:"CountrySubDivisionCode,omitempty"`
	PostalCode             string `json:"PostalCode,omitempty"`
	Country                string `json:"Country,omitempty"`
}

type metaData struct {
	CreateTime      time.Time `json:"CreateTime"`
	LastUpdatedTime time.Time `json:"LastUpdatedTime"`
}

type qboCustomer struct {
	ID                   string             `json:"Id,omitempty"`
	SyncToken            string             `json:"SyncToken,omitempty"`
	Sparse               bool               `json:"sparse,omitempty"`
	DisplayName          string             `json:"DisplayName,omitempty"`
	CompanyName          string             `json:"CompanyName,omitempty"`
	PrimaryTaxIdentifier string             `json:"PrimaryTaxIdentifier,omitempty"`
	PrimaryEmailAddr     *emailAddress      `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone         *telephone         `json:"PrimaryPhone,omitempty"`
	BillAddr             *physicalAddress   `json:"BillAddr,omitempty"`
	CurrencyRef          *ref               `json:"CurrencyRef,omitempty"`
	Active               *bool              `json:"Active,omitempty"`
	Balance              *httpclient.Number `json:"Balance,omitempty"`
	MetaData             *metaData          `json:"MetaData,omitempty"`
}

type qboItem struct {
	ID                string             `json:"Id,omitempty"`
	SyncToken         string             `json:"SyncToken,omitempty"`
	Sparse            bool               `json:"sparse,omitempty"`
	Name              string             `json:"Name,omitempty"`
	Sku               string             `json:"Sku,omitempty"`
	Description       string             `json:"Description,omitempty"`
	Type              string             `json:"Type,omitempty"`
	UnitPrice         *httpclient.Number `json:"UnitPrice,omitempty"`
	PurchaseCost      *httpclient.Number `json:"PurchaseCost,omitempty"`
	Taxable           *bool              `json:"Taxable,omitempty"`
	Active            *bool              `json:"Active,omitempty"`
	TrackQtyOnHand    bool               `json:"TrackQtyOnHand,omitempty"`
	QtyOnHand         *httpclient.Number `json:"QtyOnHand,omitempty"`
	InvStartDate      string             `json:"InvStartDate,omitempty"`
	IncomeAccountRef  *ref               `json:"IncomeAccountRef,omitempty"`
	ExpenseAccountRef *ref               `json:"ExpenseAccountRef,omitempty"`
	AssetAccountRef   *ref               `json:"AssetAccountRef,omitempty"`
	MetaData          *metaData          `json:"MetaData,omitempty"`
}

const (
	detailSalesItem = "SalesItemLineDetail"
	detailSubTotal  = "SubTotalLineDetail"
	txnTypeInvoice  = "Invoice"
	taxCodeTaxable  = "TAX"
	taxCodeExempt   = "NON"
	dateLayout      = "2006-01-02"
)

type salesItemLineDetail struct {
	ItemRef    *ref               `json:"ItemRef,omitempty"`
	Qty        *httpclient.Number `json:"Qty,omitempty"`
	UnitPrice  *httpclient.Number `json:"UnitPrice,omitempty"`
	TaxCodeRef *ref               `json:"TaxCodeRef,omitempty"`
}

type linkedTxn struct {
	TxnID   string `json:"TxnId"`
	TxnType string `json:"TxnType"`
}

type qboLine struct {
	ID                  string               `json:"Id,omitempty"`
	LineNum             int                  `json:"LineNum,omitempty"`
	Description         string               `json:"Description,omitempty"`
	Amount              httpclient.Number    `json:"Amount"`
	DetailType          string               `json:"DetailType,omitempty"`
	SalesItemLineDetail *salesItemLineDetail `json:"SalesItemLineDetail,omitempty"`
	LinkedTxn           []linkedTxn          `json:"LinkedTxn,omitempty"`
}

type txnTaxDetail struct {
	TotalTax *httpclient.Number `json:"TotalTax,omitempty"`
}

type qboInvoice struct {
	ID           string             `json:"Id,omitempty"`
	SyncToken    string             `json:"SyncToken,omitempty"`
	Sparse       bool               `json:"sparse,omitempty"`
	DocNumber    string             `json:"DocNumber,omitempty"`
	TxnDate      string             `json:"TxnDate,omitempty"`
	DueDate      string             `json:"DueDate,omitempty"`
	CustomerRef  *ref               `json:"CustomerRef,omitempty"`
	CurrencyRef  *ref               `json:"CurrencyRef,omitempty"`
	Line         []qboLine          `json:"Line,omitempty"`
	TxnTaxDetail *txnTaxDetail      `json:"TxnTaxDetail,omitempty"`
	TotalAmt     *httpclient.Number `json:"TotalAmt,omitempty"`
	Balance      *httpclient.Number `json:"Balance,omitempty"`
	PrivateNote  string             `json:"PrivateNote,omitempty"`
	MetaData     *metaData          `json:"MetaData,omitempty"`
}

type qboPayment struct {
	ID            string             `json:"Id,omitempty"`
	SyncToken     string             `json:"SyncToken,omitempty"`
	TxnDate       string             `json:"TxnDate,omitempty"`
	CustomerRef   *ref               `json:"CustomerRef,omitempty"`
	CurrencyRef   *ref               `json:"CurrencyRef,omitempty"`
	TotalAmt      httpclient.Number  `json:"TotalAmt"`
	PaymentRefNum string             `json:"PaymentRefNum,omitempty"`
	UnappliedAmt  *httpclient.Number `json:"UnappliedAmt,omitempty"`
	Line          []qboLine          `json:"Line,omitempty"`
	MetaData      *metaData          `json:"MetaData,omitempty"`
}

// queryResponse respuesta de /query; solo se llena la lista de la entidad consultada.
type queryResponse struct {
	QueryResponse struct {
		Customer      []qboCustomer `json:"Customer"`
		Item          []qboItem     `json:"Item"`
		Invoice       []qboInvoice  `json:"Invoice"`
		Payment       []qboPayment  `json:"Payment"`
		StartPosition int           `json:"startPosition"`
		MaxResults    int           `json:"maxResults"`
	} `json:"QueryResponse"`
}
