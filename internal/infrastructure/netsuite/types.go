package netsuite

import (
	"time"

	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

// Registros de la REST Record API. Los campos de solo lectura se omiten al escribir.

const (
	recordCustomer = "customer"
	recordInvoice  = "invoice"
	recordPayment  = "customerPayment"
	dateLayout     = "2006-01-02"

	// FieldCFDIUUID campo personalizado de transacción con el folio fiscal del CFDI timbrado.
	FieldCFDIUUID = "custbody_mx_cfdi_uuid"
)

type nsRef struct {
	ID      string `json:"id,omitempty"`
	RefName string `json:"refName,omitempty"`
}

type nsAddress struct {
	Addr1   string `json:"addr1,omitempty"`
	Addr2   string `json:"addr2,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country *nsRef `json:"country,omitempty"`
}

type nsAddressBookEntry struct {
	DefaultBilling     bool      `json:"defaultBilling"`
	DefaultShipping    bool      `json:"defaultShipping"`
	AddressBookAddress nsAddress `json:"addressBookAddress"`
}

type nsAddressBook struct {
	Items []nsAddressBookEntry `json:"items"`
}

type nsCustomer struct {
	ID               string             `json:"id,omitempty"`
	EntityID         string             `json:"entityId,omitempty"`
	CompanyName      string             `json:"companyName,omitempty"`
	IsPerson         *bool              `json:"isPerson,omitempty"`
	Email            string             `json:"email,omitempty"`
	Phone            string             `json:"phone,omitempty"`
	Currency         *nsRef             `json:"currency,omitempty"`
	IsInactive       *bool              `json:"isInactive,omitempty"`
	Balance          *httpclient.Number `json:"balance,omitempty"`
	RFC              string             `json:"custentity_mx_rfc,omitempty"`
	AddressBook      *nsAddressBook     `json:"addressBook,omitempty"`
	DateCreated      *time.Time         `json:"dateCreated,omitempty"`
	LastModifiedDate *time.Time         `json:"lastModifiedDate,omitempty"`
}

type nsItem struct {
	ID                  string             `json:"id,omitempty"`
	ItemID              string             `json:"itemId,omitempty"`
	DisplayName         string             `json:"displayName,omitempty"`
	SalesDescription    string             `json:"salesDescription,omitempty"`
	BasePrice           *httpclient.Number `json:"basePrice,omitempty"`
	Cost                *httpclient.Number `json:"cost,omitempty"`
	IsInactive          *bool              `json:"isInactive,omitempty"`
	TotalQuantityOnHand *httpclient.Number `json:"totalQuantityOnHand,omitempty"`
	DateCreated         *time.Time         `json:"createdDate,omitempty"`
	LastModifiedDate    *time.Time         `json:"lastModifiedDate,omitempty"`
}

type nsInvoiceLine struct {
	Item        *nsRef             `json:"item,omitempty"`
	Description string             `json:"description,omitempty"`
	Quantity    *httpclient.Number `json:"quantity,omitempty"`
	Rate        *httpclient.Number `json:"rate,omitempty"`
	Amount      *httpclient.Number `json:"amount,omitempty"`
	Tax1Amt     *httpclient.Number `json:"tax1Amt,omitempty"`
}

type nsInvoiceLines struct {
	Items []nsInvoiceLine `json:"items"`
}

type nsInvoice struct {
	ID               string             `json:"id,omitempty"`
	TranID           string             `json:"tranId,omitempty"`
	Entity           *nsRef             `json:"entity,omitempty"`
	TranDate         string             `json:"tranDate,omitempty"`
	DueDate          string             `json:"dueDate,omitempty"`
	Currency         *nsRef             `json:"currency,omitempty"`
	Memo             string             `json:"memo,omitempty"`
	Item             *nsInvoiceLines    `json:"item,omitempty"`
	Subtotal         *httpclient.Number `json:"subtotal,omitempty"`
	TaxTotal         *httpclient.Number `json:"taxTotal,omitempty"`
	Total            *httpclient.Number `json:"total,omitempty"`
	AmountRemaining  *httpclient.Number `json:"amountRemaining,omitempty"`
	Status           *nsRef             `json:"status,omitempty"`
	CFDIUUID         string             `json:"custbody_mx_cfdi_uuid,omitempty"`
	DateCreated      *time.Time         `json:"createdDate,omitempty"`
	LastModifiedDate *time.Time         `json:"lastModifiedDate,omitempty"`
}

type nsApplyLine struct {
	Doc    *nsRef             `json:"doc,omitempty"`
	Apply  bool               `json:"apply"`
	Amount *httpclient.Number `json:"amount,omitempty"`
}

type nsApply struct {
	Items []nsApplyLine `json:"items"`
}

type nsPayment struct {
	ID          string             `json:"id,omitempty"`
	TranID      string             `json:"tranId,omitempty"`
	Customer    *nsRef             `json:"customer,omitempty"`
	TranDate    string             `json:"tranDate,omitempty"`
	Currency    *nsRef             `json:"currency,omitempty"`
	Payment     *httpclient.Number `json:"payment,omitempty"`
	Memo        string             `json:"memo,omitempty"`
	Apply       *nsApply           `json:"apply,omitempty"`
	Unapplied   *httpclient.Number `json:"unapplied,omitempty"`
	DateCreated *time.Time         `json:"createdDate,omitempty"`
}
