// Package billing orquesta la facturación fiscal de facturas que nacen en un ERP externo.
package billing

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	appcfdi "github.com/jhoicas/integraciones-api/internal/application/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain"
	dom "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	"github.com/jhoicas/integraciones-api/internal/domain/monitoring"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// FiscalConfig claves SAT por defecto para facturas del ERP, que no traen catálogos fiscales.
type FiscalConfig struct {
	ClaveProdServ string // por omisión 01010101
	ClaveUnidad   string // por omisión E48
	FormaPago     string // por omisión 99
	MetodoPago    string // por omisión PPD
	RegimenMoral  string // receptor con RFC de 12 caracteres; por omisión 601
	RegimenFisica string // receptor con RFC de 13 caracteres; por omisión 612
	UsoCFDI       string
	Timeout       time.Duration // procesamiento asíncrono; por omisión 30 s
}

func (c FiscalConfig) withDefaults() FiscalConfig {
	if c.ClaveProdServ == "" {
		c.ClaveProdServ = "01010101"
	}
	if c.ClaveUnidad == "" {
		c.ClaveUnidad = sat.ClaveUnidadServicio
	}
	if c.FormaPago == "" {
		c.FormaPago = sat.FormaPagoPorDefinir
	}
	if c.MetodoPago == "" {
		c.MetodoPago = sat.MetodoPagoParcialidades
	}
	if c.RegimenMoral == "" {
		c.RegimenMoral = "601"
	}
	if c.RegimenFisica == "" {
		c.RegimenFisica = "612"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// FiscalOrchestrator timbra facturas de un ERP:
//
//	factura ERP → cliente → CFDI de ingreso → sello → timbre PAC → UUID de vuelta al ERP
//
// Cada intento queda como integration.SyncResult.
type FiscalOrchestrator struct {
	stamper Stamper
	cfg     FiscalConfig
	log     zerolog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	results []integration.SyncResult
}

// NewFiscalOrchestrator construye el orquestador.
func NewFiscalOrchestrator(stamper Stamper, cfg FiscalConfig, log zerolog.Logger) *FiscalOrchestrator {
	return &FiscalOrchestrator{stamper: stamper, cfg: cfg.withDefaults(), log: log, now: time.Now}
}

// StampAsync timbra en una goroutine con su propio contexto y timeout, desacoplado de quien
// lo invoca. El canal recibe el resultado y se cierra.
func (o *FiscalOrchestrator) StampAsync(src InvoiceSource, invoiceID string) <-chan integration.SyncResult {
	out := make(chan integration.SyncResult, 1)
	go func() {
		defer close(out)
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.Timeout)
		defer cancel()
		res, _, _ := o.Stamp(ctx, src, invoiceID)
		out <- res
	}()
	return out
}

// Stamp genera y timbra el CFDI de la factura invoiceID de src. El documento se devuelve
// aun cuando falle la escritura del UUID en el ERP.
func (o *FiscalOrchestrator) Stamp(ctx context.Context, src InvoiceSource, invoiceID string) (integration.SyncResult, *dom.Document, error) {
	doc, err := o.stamp(ctx, src, invoiceID)
	localID := ""
	if doc != nil {
		localID = doc.ID
	}
	res := integration.NewSyncResult(src.Name(), "invoice", "stamp", localID, invoiceID, err, o.now())
	o.mu.Lock()
	o.results = append(o.results, res)
	o.mu.Unlock()

	ev := o.log.Info()
	if err != nil {
		ev = o.log.Error().Err(err)
	}
	ev.Str("integration", src.Name()).
		Str("invoice_id", invoiceID).
		Str("document_id", localID).
		Msg("billing: timbrado de factura ERP")
	return res, doc, err
}

func (o *FiscalOrchestrator) stamp(ctx context.Context, src InvoiceSource, invoiceID string) (*dom.Document, error) {
	inv, err := src.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("billing: leer factura %s: %w", invoiceID, err)
	}
	switch {
	case inv.FiscalUUID != "":
		return nil, fmt.Errorf("billing: la factura %s ya tiene UUID %s: %w", invoiceID, inv.FiscalUUID, domain.ErrDuplicate)
	case inv.Status == integration.InvoiceVoided:
		return nil, fmt.Errorf("billing: la factura %s está anulada: %w", invoiceID, domain.ErrInvalidTransition)
	}

	cust, err := src.GetCustomer(ctx, inv.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("billing: leer cliente %s: %w", inv.CustomerID, err)
	}
	receptor, err := o.receptor(cust)
	if err != nil {
		return nil, err
	}
	lines, err := o.lines(inv)
	if err != nil {
		return nil, err
	}

	doc, err := o.stamper.CreateInvoice(ctx, appcfdi.InvoiceInput{
		Folio:       inv.Number,
		FormaPago:   o.cfg.FormaPago,
		MetodoPago:  o.cfg.MetodoPago,
		Moneda:      strings.ToUpper(inv.Currency),
		Receptor:    receptor,
		Lines:       lines,
		AutoProcess: true,
	})
	if err != nil {
		return doc, err
	}
	if doc.Status != dom.StatusStamped {
		return doc, fmt.Errorf("billing: documento %s en estado %s: %w", doc.ID, doc.Status, domain.ErrUpstream)
	}

	if w, ok := src.(FiscalUUIDWriter); ok {
		if err := w.SetFiscalUUID(ctx, inv.ID, doc.UUID); err != nil {
			return doc, fmt.Errorf("billing: registrar UUID en %s: %w", src.Name(), err)
		}
	}
	return doc, nil
}

func (o *FiscalOrchestrator) receptor(c *integration.Customer) (appcfdi.ReceptorInput, error) {
	rfc := strings.ToUpper(strings.TrimSpace(c.TaxID))
	if rfc == "" {
		return appcfdi.ReceptorInput{}, fmt.Errorf("billing: el cliente %s no tiene RFC: %w", c.ID, domain.ErrInvalidInput)
	}
	if c.BillingAddress.IsZero() || c.BillingAddress.PostalCode == "" {
		return appcfdi.ReceptorInput{}, fmt.Errorf("billing: el cliente %s no tiene código postal: %w", c.ID, domain.ErrInvalidInput)
	}
	nombre := c.CompanyName
	if nombre == "" {
		nombre = c.Name
	}
	regimen := o.cfg.RegimenFisica
	if len(rfc) == 12 {
		regimen = o.cfg.RegimenMoral
	}
	return appcfdi.ReceptorInput{
		Rfc:             rfc,
		Nombre:          nombre,
		DomicilioFiscal: c.BillingAddress.PostalCode,
		RegimenFiscal:   regimen,
		UsoCFDI:         o.cfg.UsoCFDI,
	}, nil
}

// lines convierte los renglones del ERP; los no gravables quedan como no objeto de impuesto.
func (o *FiscalOrchestrator) lines(inv *integration.Invoice) ([]appcfdi.LineInput, error) {
	out := make([]appcfdi.LineInput, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		if !l.Quantity.IsPositive() {
			continue
		}
		desc := strings.TrimSpace(l.Description)
		if desc == "" {
			desc = "Producto " + l.ProductID
		}
		li := appcfdi.LineInput{
			ClaveProdServ:    o.cfg.ClaveProdServ,
			NoIdentificacion: l.ProductID,
			Cantidad:         l.Quantity,
			ClaveUnidad:      o.cfg.ClaveUnidad,
			Descripcion:      desc,
			ValorUnitario:    l.UnitPrice,
		}
		if !l.Taxable {
			li.ObjetoImp = sat.ObjetoImpNo
		}
		out = append(out, li)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("billing: la factura %s no tiene renglones facturables: %w", inv.ID, domain.ErrInvalidInput)
	}
	return out, nil
}

// Results historial de intentos, más reciente al final.
func (o *FiscalOrchestrator) Results() []integration.SyncResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]integration.SyncResult(nil), o.results...)
}

// Prune aplica la retención al historial; MaxEntries se aplica por integración.
func (o *FiscalOrchestrator) Prune(policy monitoring.RetentionPolicy, now time.Time) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	byIntegration := map[string][]integration.SyncResult{}
	for _, r := range o.results {
		byIntegration[r.Integration] = append(byIntegration[r.Integration], r)
	}
	drop := map[string]int{}
	for name, rs := range byIntegration {
		drop[name] = len(rs) - len(monitoring.Keep(rs, policy, now, func(r integration.SyncResult) time.Time { return r.At }))
	}
	kept := make([]integration.SyncResult, 0, len(o.results))
	for _, r := range o.results {
		if drop[r.Integration] > 0 {
			drop[r.Integration]--
			continue
		}
		kept = append(kept, r)
	}
	removed := len(o.results) - len(kept)
	o.results = kept
	return removed
}
