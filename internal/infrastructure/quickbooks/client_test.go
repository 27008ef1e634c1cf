package quickbooks_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/quickbooks"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/tokencache"
)

const realm = "123"

// fakeIntuit simula el endpoint de tokens y la API v3 de una empresa.
type fakeIntuit struct {
	t          *testing.T
	srv        *httptest.Server
	api        http.HandlerFunc
	tokenCalls int32
}

func newFakeIntuit(t *testing.T, api http.HandlerFunc) *fakeIntuit {
	t.Helper()
	f := &fakeIntuit{t: t, api: api}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", f.token)
	mux.HandleFunc("/v3/company/"+realm+"/", func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer at-"), "falta el access token")
		assert.Equal(t, "70", r.URL.Query().Get("minorversion"))
		if f.api == nil {
			http.NotFound(w, r)
			return
		}
		f.api(w, r)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIntuit) token(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.tokenCalls, 1)
	id, secret, ok := r.BasicAuth()
	if !ok || id != "cid" || secret != "secreto" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	require.NoError(f.t, r.ParseForm())
	var access, refresh string
	switch {
	case r.PostForm.Get("grant_type") == "authorization_code" && r.PostForm.Get("code") == "code-ok":
		access, refresh = "at-0", "rt-1"
	case r.PostForm.Get("refresh_token") == "rt-1":
		access, refresh = "at-1", "rt-2"
	default:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"token_type":    "bearer",
		"expires_in":    3600,
	})
}

func (f *fakeIntuit) config(refresh string) quickbooks.Config {
	return quickbooks.Config{
		ClientID:         "cid",
		ClientSecret:     "secreto",
		RedirectURL:      "https://app.example.com/callback",
		RealmID:          realm,
		RefreshToken:     refresh,
		BaseURL:          f.srv.URL,
		TokenURL:         f.srv.URL + "/oauth2/token",
		MinorVersion:     70,
		IncomeAccountID:  "79",
		ExpenseAccountID: "80",
		AssetAccountID:   "81",
	}
}

func newTestClient(t *testing.T, api http.HandlerFunc) (*quickbooks.Client, *fakeIntuit, tokencache.Store) {
	t.Helper()
	f := newFakeIntuit(t, api)
	store := tokencache.NewMemoryStore()
	c, err := quickbooks.NewClient(f.config("rt-1"), store,
		quickbooks.WithHTTPClient(f.srv.Client()),
		quickbooks.WithRetry(0, time.Millisecond),
	)
	require.NoError(t, err)
	return c, f, store
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func fault(typ, code, msg string) string {
	return `{"Fault":{"Error":[{"Message":"` + msg + `","Detail":"` + msg + `","code":"` + code + `"}],"type":"` + typ + `"},"time":"2024-05-10T10:30:00.000-07:00"}`
}

func companyInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/v3/company/"+realm+"/companyinfo/"+realm {
		writeJSON(w, http.StatusOK, `{"CompanyInfo":{"CompanyName":"Demo SA","Country":"MX"}}`)
		return
	}
	http.NotFound(w, r)
}

// ── OAuth2 ──────────────────────────────────────────────────────────────────

func TestNewClient_SinCredenciales(t *testing.T) {
	_, err := quickbooks.NewClient(quickbooks.Config{ClientID: "cid"}, nil)
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}

func TestClient_RenuevaYPersisteTokenRotado(t *testing.T) {
	c, f, store := newTestClient(t, companyInfo)
	ctx := context.Background()

	info, err := c.CompanyInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Demo SA", info.CompanyName)

	tok, err := store.Get(ctx, "quickbooks:"+realm)
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
	assert.Equal(t, "rt-2", tok.RefreshToken, "el refresh token rotado debe guardarse")

	require.NoError(t, c.Ping(ctx))
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.tokenCalls), "el token vigente se reutiliza")
}

func TestClient_SinTokenNoAutorizado(t *testing.T) {
	f := newFakeIntuit(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no debe llegar a la API sin token")
	})
	c, err := quickbooks.NewClient(f.config(""), nil, quickbooks.WithHTTPClient(f.srv.Client()))
	require.NoError(t, err)

	err = c.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestClient_RefreshTokenRevocado(t *testing.T) {
	f := newFakeIntuit(t, companyInfo)
	c, err := quickbooks.NewClient(f.config("rt-revocado"), nil,
		quickbooks.WithHTTPClient(f.srv.Client()), quickbooks.WithRetry(3, time.Millisecond))
	require.NoError(t, err)

	err = c.Ping(context.Background())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.tokenCalls), "sin reintentos ante un token inválido")
}

func TestClient_AutorizacionPorCodigo(t *testing.T) {
	f := newFakeIntuit(t, companyInfo)
	store := tokencache.NewMemoryStore()
	c, err := quickbooks.NewClient(f.config(""), store, quickbooks.WithHTTPClient(f.srv.Client()))
	require.NoError(t, err)

	u := c.AuthCodeURL("estado-1")
	assert.Contains(t, u, "client_id=cid")
	assert.Contains(t, u, "state=estado-1")
	assert.Contains(t, u, "com.intuit.quickbooks.accounting")

	ctx := context.Background()
	require.NoError(t, c.Exchange(ctx, "code-ok"))
	tok, err := store.Get(ctx, "quickbooks:"+realm)
	require.NoError(t, err)
	assert.Equal(t, "at-0", tok.AccessToken)

	require.NoError(t, c.Ping(ctx))

	assert.ErrorIs(t, c.Exchange(ctx, "code-malo"), domain.ErrUnauthorized)
}

// conteoTransport cuenta las peticiones que pasan por el cliente HTTP inyectado.
type conteoTransport struct {
	n int32
}

func (c *conteoTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if err := r.Context().Err(); err != nil {
		return nil, err
	}
	atomic.AddInt32(&c.n, 1)
	return http.DefaultTransport.RoundTrip(r)
}

func TestClient_ExchangeUsaContextoYClienteDeLaLlamada(t *testing.T) {
	f := newFakeIntuit(t, companyInfo)
	rt := &conteoTransport{}
	c, err := quickbooks.NewClient(f.config(""), nil, quickbooks.WithHTTPClient(&http.Client{Transport: rt}))
	require.NoError(t, err)

	cancelado, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Exchange(cancelado, "code-ok"), domain.ErrUnauthorized)
	assert.EqualValues(t, 0, atomic.LoadInt32(&f.tokenCalls))

	ctx := context.Background()
	require.NoError(t, c.Exchange(ctx, "code-ok"))
	require.NoError(t, c.Ping(ctx))
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.tokenCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&rt.n), "token y API usan el cliente inyectado")
}

// ── Clientes ────────────────────────────────────────────────────────────────

func TestCreateCustomer_MapeaCampos(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v3/company/"+realm+"/customer", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ingrid Xodar", body["DisplayName"])
		assert.Equal(t, "XOJI740919U48", body["PrimaryTaxIdentifier"])
		assert.Equal(t, true, body["Active"])
		assert.NotContains(t, body, "Id")
		writeJSON(w, http.StatusOK, `{"Customer":{"Id":"58","SyncToken":"0","DisplayName":"Ingrid Xodar",
			"PrimaryTaxIdentifier":"XOJI740919U48","PrimaryEmailAddr":{"Address":"ingrid@example.com"},
			"BillAddr":{"City":"Monterrey","PostalCode":"88965"},"Balance":0,"Active":true,
			"MetaData":{"CreateTime":"2024-05-10T10:30:00-07:00","LastUpdatedTime":"2024-05-10T10:30:00-07:00"}}}`)
	})

	got, err := c.CreateCustomer(context.Background(), integration.Customer{
		ID:    "local-1",
		Name:  "Ingrid Xodar",
		TaxID: "XOJI740919U48",
		Email: "ingrid@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "58", got.ID)
	assert.Equal(t, integration.SourceQuickBooks, got.Source)
	assert.Equal(t, "ingrid@example.com", got.Email)
	require.NotNil(t, got.BillingAddress)
	assert.Equal(t, "Monterrey", got.BillingAddress.City)
	assert.True(t, got.Active)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateCustomer_NombreDuplicado(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, fault("ValidationFault", "6240", "Duplicate Name Exists Error"))
	})

	_, err := c.CreateCustomer(context.Background(), integration.Customer{Name: "Ingrid Xodar"})
	require.ErrorIs(t, err, domain.ErrDuplicate)
	var apiErr *quickbooks.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "6240", apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestUpdateCustomer_SyncTokenDesactualizado(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["sparse"])
		assert.Equal(t, "58", body["Id"])
		writeJSON(w, http.StatusBadRequest, fault("ValidationFault", "5010", "Stale Object Error"))
	})

	_, err := c.UpdateCustomer(context.Background(), integration.Customer{ID: "58", SyncToken: "0", Name: "Nuevo", Active: true})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdateCustomer_RequiereSyncToken(t *testing.T) {
	c, _, _ := newTestClient(t, nil)
	_, err := c.UpdateCustomer(context.Background(), integration.Customer{ID: "58"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFindCustomerByName_EscapaComillas(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v3/company/"+realm+"/query", r.URL.Path)
		q := r.URL.Query().Get("query")
		if strings.Contains(q, "Nadie") {
			writeJSON(w, http.StatusOK, `{"QueryResponse":{}}`)
			return
		}
		assert.Equal(t, `SELECT * FROM Customer WHERE DisplayName = 'O\'Brien' STARTPOSITION 1 MAXRESULTS 1`, q)
		writeJSON(w, http.StatusOK, `{"QueryResponse":{"Customer":[{"Id":"7","SyncToken":"3","DisplayName":"O'Brien"}],"startPosition":1,"maxResults":1}}`)
	})
	ctx := context.Background()

	got, err := c.FindCustomerByName(ctx, "O'Brien")
	require.NoError(t, err)
	assert.Equal(t, "7", got.ID)
	assert.Equal(t, "3", got.SyncToken)

	_, err = c.FindCustomerByName(ctx, "Nadie")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestQueryCustomers_PaginaYFiltraPorFecha(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t,
			`SELECT * FROM Customer WHERE MetaData.LastUpdatedTime >= '2024-05-01T00:00:00Z' STARTPOSITION 11 MAXRESULTS 5`,
			r.URL.Query().Get("query"))
		writeJSON(w, http.StatusOK, `{"QueryResponse":{"Customer":[{"Id":"1","DisplayName":"A"},{"Id":"2","DisplayName":"B","Active":false}]}}`)
	})

	got, err := c.QueryCustomers(context.Background(), integration.ListOptions{
		Limit:         5,
		Offset:        10,
		ModifiedSince: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Active)
	assert.False(t, got[1].Active)
}

func TestQuery_LimiteMaximo(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Query().Get("query"), "MAXRESULTS 1000"))
		writeJSON(w, http.StatusOK, `{"QueryResponse":{}}`)
	})
	got, err := c.QueryItems(context.Background(), integration.ListOptions{Limit: 5000})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_LimiteDePeticiones(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, fault("SERVICE", "003001", "ThrottleExceeded"))
	})
	_, err := c.GetCustomer(context.Background(), "58")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGetCustomer_NoEncontrado(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/company/"+realm+"/customer/999", r.URL.Path)
		writeJSON(w, http.StatusBadRequest, fault("ValidationFault", "610", "Object Not Found"))
	})
	_, err := c.GetCustomer(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ── Productos ───────────────────────────────────────────────────────────────

func TestCreateItem_Inventario(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Inventory", body["Type"])
		assert.Equal(t, true, body["TrackQtyOnHand"])
		assert.EqualValues(t, 25, body["QtyOnHand"])
		assert.NotEmpty(t, body["InvStartDate"])
		assert.Equal(t, map[string]any{"value": "80"}, body["ExpenseAccountRef"])
		assert.Equal(t, map[string]any{"value": "81"}, body["AssetAccountRef"])
		writeJSON(w, http.StatusOK, `{"Item":{"Id":"19","Name":"Licencia","Sku":"SKU-1","Type":"Inventory","UnitPrice":500,"QtyOnHand":25,"Taxable":true}}`)
	})

	got, err := c.CreateItem(context.Background(), integration.Product{
		Name:           "Licencia",
		SKU:            "SKU-1",
		Type:           integration.ProductInventory,
		Price:          decimal.NewFromInt(500),
		Taxable:        true,
		QuantityOnHand: decimal.NewFromInt(25),
	})
	require.NoError(t, err)
	assert.Equal(t, "19", got.ID)
	assert.Equal(t, integration.ProductInventory, got.Type)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(25)))
}

func TestCreateItem_InventarioSinCuentas(t *testing.T) {
	f := newFakeIntuit(t, nil)
	cfg := f.config("rt-1")
	cfg.AssetAccountID = ""
	c, err := quickbooks.NewClient(cfg, nil, quickbooks.WithHTTPClient(f.srv.Client()))
	require.NoError(t, err)

	_, err = c.CreateItem(context.Background(), integration.Product{Name: "X", Type: integration.ProductInventory})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)

	_, err = c.CreateItem(context.Background(), integration.Product{Name: "X", Type: "kit"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ── Facturas y pagos ────────────────────────────────────────────────────────

func TestCreateInvoice_NumerosSinComillas(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		body := string(raw)
		assert.Contains(t, body, `"Amount":1000`)
		assert.Contains(t, body, `"Qty":2`)
		assert.Contains(t, body, `"UnitPrice":500`)
		assert.Contains(t, body, `"TaxCodeRef":{"value":"TAX"}`)
		assert.Contains(t, body, `"TxnDate":"2024-05-10"`)
		writeJSON(w, http.StatusOK, `{"Invoice":{"Id":"130","SyncToken":"0","DocNumber":"1037","TxnDate":"2024-05-10",
			"CustomerRef":{"value":"58"},"TotalAmt":1160,"Balance":1160,"TxnTaxDetail":{"TotalTax":160},
			"Line":[{"Id":"1","LineNum":1,"Amount":1000,"DetailType":"SalesItemLineDetail",
			"SalesItemLineDetail":{"ItemRef":{"value":"19"},"Qty":2,"UnitPrice":500,"TaxCodeRef":{"value":"TAX"}}},
			{"Amount":1000,"DetailType":"SubTotalLineDetail","SubTotalLineDetail":{}}]}}`)
	})

	got, err := c.CreateInvoice(context.Background(), integration.Invoice{
		CustomerID: "58",
		Date:       time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Lines: []integration.InvoiceLine{{
			ProductID: "19",
			Quantity:  decimal.NewFromInt(2),
			UnitPrice: decimal.NewFromInt(500),
			Taxable:   true,
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1037", got.Number)
	require.Len(t, got.Lines, 1, "la línea de subtotal se descarta")
	assert.True(t, got.Subtotal.Equal(decimal.NewFromInt(1000)))
	assert.True(t, got.TaxTotal.Equal(decimal.NewFromInt(160)))
	assert.Equal(t, integration.InvoiceOpen, got.Status)
}

func TestCreateInvoice_SinLineas(t *testing.T) {
	c, _, _ := newTestClient(t, nil)
	_, err := c.CreateInvoice(context.Background(), integration.Invoice{CustomerID: "58"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDeleteInvoice_Operacion(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "delete", r.URL.Query().Get("operation"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "130", body["Id"])
		assert.Equal(t, "2", body["SyncToken"])
		writeJSON(w, http.StatusOK, `{"Invoice":{"Id":"130","status":"Deleted","domain":"QBO"}}`)
	})

	require.NoError(t, c.DeleteInvoice(context.Background(), "130", "2"))
	assert.ErrorIs(t, c.DeleteInvoice(context.Background(), "130", ""), domain.ErrInvalidInput)
}

func TestGetInvoice_PagadaParcialmente(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"Invoice":{"Id":"130","TotalAmt":1160,"Balance":580}}`)
	})
	got, err := c.GetInvoice(context.Background(), "130")
	require.NoError(t, err)
	assert.Equal(t, integration.InvoicePartial, got.Status)
}

func TestCreatePayment_VinculaFacturas(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TotalAmt json.Number `json:"TotalAmt"`
			Line     []struct {
				Amount    json.Number `json:"Amount"`
				LinkedTxn []struct {
					TxnID   string `json:"TxnId"`
					TxnType string `json:"TxnType"`
				} `json:"LinkedTxn"`
			} `json:"Line"`
		}
		d := json.NewDecoder(r.Body)
		d.UseNumber()
		require.NoError(t, d.Decode(&body))
		assert.Equal(t, "580", body.TotalAmt.String())
		require.Len(t, body.Line, 1)
		assert.Equal(t, "130", body.Line[0].LinkedTxn[0].TxnID)
		assert.Equal(t, "Invoice", body.Line[0].LinkedTxn[0].TxnType)
		writeJSON(w, http.StatusOK, `{"Payment":{"Id":"200","TxnDate":"2024-05-11","CustomerRef":{"value":"58"},"TotalAmt":580,
			"Line":[{"Amount":580,"LinkedTxn":[{"TxnId":"130","TxnType":"Invoice"}]}]}}`)
	})

	got, err := c.CreatePayment(context.Background(), integration.Payment{
		CustomerID: "58",
		Amount:     decimal.NewFromInt(580),
		Applied:    []integration.PaymentApplication{{InvoiceID: "130", Amount: decimal.NewFromInt(580)}},
	})
	require.NoError(t, err)
	assert.Equal(t, "200", got.ID)
	require.Len(t, got.Applied, 1)
	assert.True(t, got.Unapplied().IsZero())
}

func TestCreatePayment_AplicadoExcedeMonto(t *testing.T) {
	c, _, _ := newTestClient(t, nil)
	_, err := c.CreatePayment(context.Background(), integration.Payment{
		CustomerID: "58",
		Amount:     decimal.NewFromInt(100),
		Applied:    []integration.PaymentApplication{{InvoiceID: "130", Amount: decimal.NewFromInt(150)}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
