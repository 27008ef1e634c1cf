package cfdi

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/integraciones-api/internal/domain"
	dom "github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/pkg/sat"
)

// ── Entradas ─────────────────────────────────────────────────────────────────

// ReceptorInput datos fiscales del receptor.
type ReceptorInput struct {
	Rfc             string `json:"rfc" validate:"required,rfc"`
	Nombre          string `json:"nombre" validate:"required,max=300"`
	DomicilioFiscal string `json:"domicilio_fiscal" validate:"required,cp"`
	RegimenFiscal   string `json:"regimen_fiscal" validate:"required,len=3,numeric"`
	UsoCFDI         string `json:"uso_cfdi" validate:"omitempty,max=4"`
}

// TaxInput impuesto de una línea. Tasa se omite con TipoFactor Exento.
type TaxInput struct {
	Impuesto   string          `json:"impuesto" validate:"required,oneof=001 002 003"`
	TipoFactor string          `json:"tipo_factor" validate:"required,oneof=Tasa Cuota Exento"`
	Tasa       decimal.Decimal `json:"tasa" validate:"gte=0"`
}

// LineInput concepto a facturar. Sin impuestos explícitos se aplica IVA 16%.
type LineInput struct {
	ClaveProdServ    string          `json:"clave_prod_serv" validate:"required,len=8,numeric"`
	NoIdentificacion string          `json:"no_identificacion" validate:"max=100"`
	Cantidad         decimal.Decimal `json:"cantidad" validate:"gt=0"`
	ClaveUnidad      string          `json:"clave_unidad" validate:"required,max=3"`
	Unidad           string          `json:"unidad" validate:"max=20"`
	Descripcion      string          `json:"descripcion" validate:"required,max=1000"`
	ValorUnitario    decimal.Decimal `json:"valor_unitario" validate:"gte=0"`
	Descuento        decimal.Decimal `json:"descuento" validate:"gte=0"`
	ObjetoImp        string          `json:"objeto_imp" validate:"omitempty,oneof=01 02 03 04"`
	Traslados        []TaxInput      `json:"traslados" validate:"dive"`
	Retenciones      []TaxInput      `json:"retenciones" validate:"dive"`
}

// InvoiceInput factura de ingreso (tipo I).
type InvoiceInput struct {
	Serie             string           `json:"serie" validate:"max=25"`
	Folio             string           `json:"folio" validate:"max=40"`
	Fecha             time.Time        `json:"fecha"`
	FormaPago         string           `json:"forma_pago" validate:"required,len=2,numeric"`
	MetodoPago        string           `json:"metodo_pago" validate:"required,oneof=PUE PPD"`
	CondicionesDePago string           `json:"condiciones_de_pago" validate:"max=1000"`
	Moneda            string           `json:"moneda" validate:"omitempty,len=3"`
	TipoCambio        *decimal.Decimal `json:"tipo_cambio"`
	LugarExpedicion   string           `json:"lugar_expedicion" validate:"omitempty,cp"`
	Receptor          ReceptorInput    `json:"receptor"`
	Lines             []LineInput      `json:"conceptos" validate:"required,min=1,dive"`
	AutoProcess       bool             `json:"auto_process"`
}

// CreditNoteInput nota de crédito (tipo E) relacionada con las facturas de origen.
type CreditNoteInput struct {
	InvoiceInput
	OriginUUIDs  []string `json:"uuids_origen" validate:"required,min=1,dive,satuuid"`
	TipoRelacion string   `json:"tipo_relacion" validate:"omitempty,oneof=01 02 03 07"`
}

// PaidDocumentInput factura liquidada total o parcialmente por un pago.
type PaidDocumentInput struct {
	UUID           string           `json:"uuid" validate:"required,satuuid"`
	Serie          string           `json:"serie"`
	Folio          string           `json:"folio"`
	Moneda         string           `json:"moneda" validate:"omitempty,len=3"`
	Equivalencia   *decimal.Decimal `json:"equivalencia"`
	NumParcialidad int              `json:"num_parcialidad" validate:"min=1"`
	SaldoAnterior  decimal.Decimal  `json:"saldo_anterior" validate:"gt=0"`
	Pagado         decimal.Decimal  `json:"pagado" validate:"gt=0"`
	TasaIVA        *decimal.Decimal `json:"tasa_iva"` // nil = no objeto de impuesto
}

// PaymentInput un pago recibido.
type PaymentInput struct {
	FechaPago    time.Time           `json:"fecha_pago" validate:"required"`
	FormaDePagoP string              `json:"forma_pago" validate:"required,len=2,numeric"`
	Moneda       string              `json:"moneda" validate:"omitempty,len=3"`
	TipoCambio   *decimal.Decimal    `json:"tipo_cambio"`
	NumOperacion string              `json:"num_operacion" validate:"max=100"`
	Documentos   []PaidDocumentInput `json:"documentos" validate:"required,min=1,dive"`
}

// PaymentReceiptInput recibo electrónico de pago (tipo P con complemento Pagos 2.0).
type PaymentReceiptInput struct {
	Serie           string         `json:"serie" validate:"max=25"`
	Folio           string         `json:"folio" validate:"max=40"`
	Fecha           time.Time      `json:"fecha"`
	LugarExpedicion string         `json:"lugar_expedicion" validate:"omitempty,cp"`
	Receptor        ReceptorInput  `json:"receptor"`
	Pagos           []PaymentInput `json:"pagos" validate:"required,min=1,dive"`
	AutoProcess     bool           `json:"auto_process"`
}

// TransferInput CFDI de traslado (tipo T): ampara el transporte de mercancías, Total 0.
type TransferInput struct {
	Serie           string        `json:"serie" validate:"max=25"`
	Folio           string        `json:"folio" validate:"max=40"`
	Fecha           time.Time     `json:"fecha"`
	LugarExpedicion string        `json:"lugar_expedicion" validate:"omitempty,cp"`
	Receptor        ReceptorInput `json:"receptor"`
	Lines           []LineInput   `json:"conceptos" validate:"required,min=1,dive"`
	AutoProcess     bool          `json:"auto_process"`
}

// ── Fachada ──────────────────────────────────────────────────────────────────

// FacadeConfig datos del emisor y valores por defecto.
type FacadeConfig struct {
	Emisor          dom.Emisor
	LugarExpedicion string
	Serie           string
}

// Facade arma comprobantes completos a partir de entradas simples y los entrega al
// DocumentService.
type Facade struct {
	svc      *DocumentService
	cfg      FacadeConfig
	validate *validator.Validate
}

// NewFacade construye la fachada.
func NewFacade(svc *DocumentService, cfg FacadeConfig) *Facade {
	return &Facade{svc: svc, cfg: cfg, validate: newValidator()}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(f reflect.Value) any {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("rfc", func(fl validator.FieldLevel) bool {
		return sat.ValidateRFC(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("cp", func(fl validator.FieldLevel) bool {
		return sat.ValidateCodigoPostal(fl.Field().String()) == nil
	})
	// El tag uuid del validador solo acepta minúsculas; el SAT emite el folio en mayúsculas.
	_ = v.RegisterValidation("satuuid", func(fl validator.FieldLevel) bool {
		return sat.IsUUID(fl.Field().String())
	})
	return v
}

// check valida la entrada y traduce los errores del validador a domain.ErrInvalidInput.
func (f *Facade) check(in any) error {
	err := f.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("cfdi: %v: %w", err, domain.ErrInvalidInput)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldPath(e)+": "+validationMessage(e))
	}
	return fmt.Errorf("cfdi: %s: %w", strings.Join(msgs, "; "), domain.ErrInvalidInput)
}

// fieldPath ruta del campo sin el nombre del struct raíz.
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "es obligatorio"
	case "min":
		return "mínimo " + e.Param()
	case "max":
		return "máximo " + e.Param()
	case "len":
		return "debe tener " + e.Param() + " caracteres"
	case "oneof":
		return "debe ser uno de: " + e.Param()
	case "numeric":
		return "debe ser numérico"
	case "uuid", "satuuid":
		return "UUID inválido"
	case "gt":
		return "debe ser mayor que " + e.Param()
	case "gte":
		return "debe ser mayor o igual que " + e.Param()
	case "rfc":
		return "RFC inválido"
	case "cp":
		return "código postal inválido"
	default:
		return "valor inválido"
	}
}

// ── Operaciones ──────────────────────────────────────────────────────────────

// CreateInvoice crea una factura de ingreso.
func (f *Facade) CreateInvoice(ctx context.Context, in InvoiceInput) (*dom.Document, error) {
	if err := f.check(in); err != nil {
		return nil, err
	}
	c := f.base(sat.TipoComprobanteIngreso, in.Serie, in.Folio, in.Fecha, in.LugarExpedicion, in.Receptor, sat.UsoGastosEnGeneral)
	f.applyPago(c, in)
	c.Conceptos = buildConceptos(in.Lines, true)
	c.ComputeTotals()
	return f.submit(ctx, c, in.AutoProcess)
}

// CreateCreditNote crea una nota de crédito relacionada (01 por defecto) con las facturas de origen.
func (f *Facade) CreateCreditNote(ctx context.Context, in CreditNoteInput) (*dom.Document, error) {
	if err := f.check(in); err != nil {
		return nil, err
	}
	c := f.base(sat.TipoComprobanteEgreso, in.Serie, in.Folio, in.Fecha, in.LugarExpedicion, in.Receptor, sat.UsoDevoluciones)
	f.applyPago(c, in.InvoiceInput)
	rel := dom.CfdiRelacionados{TipoRelacion: nonEmpty(in.TipoRelacion, sat.RelacionNotaCredito)}
	for _, u := range in.OriginUUIDs {
		rel.UUIDs = append(rel.UUIDs, strings.ToUpper(u))
	}
	c.CfdiRelacionados = []dom.CfdiRelacionados{rel}
	c.Conceptos = buildConceptos(in.Lines, true)
	c.ComputeTotals()
	return f.submit(ctx, c, in.AutoProcess)
}

// CreatePaymentReceipt crea un recibo electrónico de pago: montos en 0, moneda XXX, un concepto
// 84111506/ACT y el complemento Pagos 2.0 con sus totales.
func (f *Facade) CreatePaymentReceipt(ctx context.Context, in PaymentReceiptInput) (*dom.Document, error) {
	if err := f.check(in); err != nil {
		return nil, err
	}
	c := f.base(sat.TipoComprobantePago, in.Serie, in.Folio, in.Fecha, in.LugarExpedicion, in.Receptor, sat.UsoPagos)
	c.Receptor.UsoCFDI = sat.UsoPagos
	c.Moneda = sat.MonedaSinMoneda
	c.Conceptos = []dom.Concepto{{
		ClaveProdServ: sat.ClaveProdServPago,
		Cantidad:      decimal.NewFromInt(1),
		ClaveUnidad:   sat.ClaveUnidadActividad,
		Descripcion:   "Pago",
		ValorUnitario: decimal.Zero,
		Importe:       decimal.Zero,
		ObjetoImp:     sat.ObjetoImpNo,
	}}
	pagos, err := buildPagos(in.Pagos)
	if err != nil {
		return nil, err
	}
	c.Pagos = pagos
	c.SubTotal = decimal.Zero
	c.Total = decimal.Zero
	return f.submit(ctx, c, in.AutoProcess)
}

// CreateTransfer crea un CFDI de traslado: moneda XXX, conceptos sin valor ni impuestos y Total 0.
func (f *Facade) CreateTransfer(ctx context.Context, in TransferInput) (*dom.Document, error) {
	if err := f.check(in); err != nil {
		return nil, err
	}
	c := f.base(sat.TipoComprobanteTraslado, in.Serie, in.Folio, in.Fecha, in.LugarExpedicion, in.Receptor, sat.UsoSinEfectosFiscales)
	c.Receptor.UsoCFDI = sat.UsoSinEfectosFiscales
	c.Moneda = sat.MonedaSinMoneda
	c.Conceptos = buildConceptos(in.Lines, false)
	for i := range c.Conceptos {
		c.Conceptos[i].ValorUnitario = decimal.Zero
		c.Conceptos[i].Descuento = nil
	}
	c.ComputeTotals()
	return f.submit(ctx, c, in.AutoProcess)
}

func (f *Facade) submit(ctx context.Context, c *dom.Comprobante, autoProcess bool) (*dom.Document, error) {
	doc, err := f.svc.Create(ctx, c)
	if err != nil {
		return nil, err
	}
	if !autoProcess {
		return doc, nil
	}
	return f.svc.Process(ctx, doc.ID)
}

// ── Armado ───────────────────────────────────────────────────────────────────

func (f *Facade) base(tipo, serie, folio string, fecha time.Time, lugar string, r ReceptorInput, usoDefault string) *dom.Comprobante {
	if fecha.IsZero() {
		fecha = f.svc.now().In(f.svc.loc)
	}
	return &dom.Comprobante{
		Version:           sat.VersionCFDI,
		Serie:             nonEmpty(serie, f.cfg.Serie),
		Folio:             folio,
		Fecha:             fecha.Truncate(time.Second),
		Moneda:            sat.MonedaMXN,
		TipoDeComprobante: tipo,
		Exportacion:       sat.ExportacionNoAplica,
		LugarExpedicion:   nonEmpty(lugar, f.cfg.LugarExpedicion),
		Emisor:            f.cfg.Emisor,
		Receptor: dom.Receptor{
			Rfc:                     sat.NormalizeRFC(r.Rfc),
			Nombre:                  strings.ToUpper(strings.TrimSpace(r.Nombre)),
			DomicilioFiscalReceptor: r.DomicilioFiscal,
			RegimenFiscalReceptor:   r.RegimenFiscal,
			UsoCFDI:                 nonEmpty(r.UsoCFDI, usoDefault),
		},
	}
}

func (f *Facade) applyPago(c *dom.Comprobante, in InvoiceInput) {
	c.FormaPago = in.FormaPago
	c.MetodoPago = in.MetodoPago
	c.CondicionesDePago = in.CondicionesDePago
	if in.Moneda != "" {
		c.Moneda = strings.ToUpper(in.Moneda)
	}
	if c.Moneda != sat.MonedaMXN {
		c.TipoCambio = in.TipoCambio
	}
}

// buildConceptos arma conceptos con Importe y base de impuestos; withTaxes=false los deja
// como no objeto de impuesto.
func buildConceptos(lines []LineInput, withTaxes bool) []dom.Concepto {
	out := make([]dom.Concepto, 0, len(lines))
	for _, l := range lines {
		con := dom.Concepto{
			ClaveProdServ:    l.ClaveProdServ,
			NoIdentificacion: l.NoIdentificacion,
			Cantidad:         l.Cantidad,
			ClaveUnidad:      l.ClaveUnidad,
			Unidad:           l.Unidad,
			Descripcion:      l.Descripcion,
			ValorUnitario:    l.ValorUnitario,
			Importe:          l.Cantidad.Mul(l.ValorUnitario).Round(2),
			ObjetoImp:        l.ObjetoImp,
		}
		if l.Descuento.IsPositive() {
			con.Descuento = dom.Dec(l.Descuento.Round(2))
		}
		if !withTaxes {
			con.ObjetoImp = sat.ObjetoImpNo
			out = append(out, con)
			continue
		}
		if con.ObjetoImp == "" {
			con.ObjetoImp = sat.ObjetoImpSi
		}
		if con.ObjetoImp != sat.ObjetoImpSi {
			out = append(out, con)
			continue
		}

		base := con.Importe
		if con.Descuento != nil {
			base = base.Sub(*con.Descuento)
		}
		traslados := l.Traslados
		if len(traslados) == 0 && len(l.Retenciones) == 0 {
			traslados = []TaxInput{{Impuesto: sat.ImpuestoIVA, TipoFactor: sat.TipoFactorTasa, Tasa: iva16}}
		}
		imp := &dom.ConceptoImpuestos{}
		for _, t := range traslados {
			tr := dom.Traslado{Base: base, Impuesto: t.Impuesto, TipoFactor: t.TipoFactor}
			if t.TipoFactor != sat.TipoFactorExento {
				tr.TasaOCuota = dom.Dec(t.Tasa)
			}
			imp.Traslados = append(imp.Traslados, tr)
		}
		for _, r := range l.Retenciones {
			imp.Retenciones = append(imp.Retenciones, dom.Retencion{
				Base: base, Impuesto: r.Impuesto, TipoFactor: r.TipoFactor, TasaOCuota: r.Tasa,
			})
		}
		con.Impuestos = imp
		out = append(out, con)
	}
	return out
}

var (
	iva16 = decimal.RequireFromString("0.16")
	iva8  = decimal.RequireFromString("0.08")
)

// buildPagos arma el complemento Pagos 2.0: desglosa el IVA de cada documento pagado,
// acumula ImpuestosP por pago y calcula los totales en MXN.
func buildPagos(in []PaymentInput) (*dom.Pagos, error) {
	p := &dom.Pagos{Version: sat.VersionPagos}
	total := decimal.Zero
	var base16, iva16Total, base8, iva8Total, base0, iva0Total decimal.Decimal
	var has16, has8, has0 bool

	for i, pin := range in {
		moneda := nonEmpty(strings.ToUpper(pin.Moneda), sat.MonedaMXN)
		pago := dom.Pago{
			FechaPago:    pin.FechaPago.Truncate(time.Second),
			FormaDePagoP: pin.FormaDePagoP,
			MonedaP:      moneda,
			NumOperacion: pin.NumOperacion,
		}
		tipoCambio := decimal.NewFromInt(1)
		if moneda == sat.MonedaMXN {
			pago.TipoCambioP = dom.Dec(tipoCambio)
		} else {
			if pin.TipoCambio == nil || !pin.TipoCambio.IsPositive() {
				return nil, fmt.Errorf("cfdi: pagos[%d]: tipo de cambio obligatorio para %s: %w", i, moneda, domain.ErrInvalidInput)
			}
			tipoCambio = *pin.TipoCambio
			pago.TipoCambioP = dom.Dec(tipoCambio)
		}

		monto := decimal.Zero
		trasP := map[string]*dom.Traslado{}
		var trasOrder []string
		for j, d := range pin.Documentos {
			if d.Pagado.GreaterThan(d.SaldoAnterior) {
				return nil, fmt.Errorf("cfdi: pagos[%d].documentos[%d]: el pago excede el saldo: %w", i, j, domain.ErrInvalidInput)
			}
			dr := dom.DoctoRelacionado{
				IdDocumento:      strings.ToUpper(d.UUID),
				Serie:            d.Serie,
				Folio:            d.Folio,
				MonedaDR:         nonEmpty(strings.ToUpper(d.Moneda), moneda),
				EquivalenciaDR:   dom.Dec(decimal.NewFromInt(1)),
				NumParcialidad:   d.NumParcialidad,
				ImpSaldoAnt:      d.SaldoAnterior.Round(2),
				ImpPagado:        d.Pagado.Round(2),
				ImpSaldoInsoluto: d.SaldoAnterior.Sub(d.Pagado).Round(2),
				ObjetoImpDR:      sat.ObjetoImpNo,
			}
			equiv := decimal.NewFromInt(1)
			if d.Equivalencia != nil && d.Equivalencia.IsPositive() {
				equiv = *d.Equivalencia
				dr.EquivalenciaDR = dom.Dec(equiv)
			}
			monto = monto.Add(dr.ImpPagado.Div(equiv))

			if d.TasaIVA != nil {
				tasa := *d.TasaIVA
				base := dr.ImpPagado.Div(decimal.NewFromInt(1).Add(tasa)).Round(2)
				t := dom.Traslado{
					Base: base, Impuesto: sat.ImpuestoIVA, TipoFactor: sat.TipoFactorTasa,
					TasaOCuota: dom.Dec(tasa), Importe: dom.Dec(dom.TrasladoImporte(base, tasa)),
				}
				dr.ObjetoImpDR = sat.ObjetoImpSi
				dr.ImpuestosDR = &dom.ImpuestosDR{TrasladosDR: []dom.Traslado{t}}

				key := dom.FormatTasa(tasa)
				acc, ok := trasP[key]
				if !ok {
					acc = &dom.Traslado{Impuesto: sat.ImpuestoIVA, TipoFactor: sat.TipoFactorTasa, TasaOCuota: dom.Dec(tasa), Importe: dom.Dec(decimal.Zero)}
					trasP[key] = acc
					trasOrder = append(trasOrder, key)
				}
				acc.Base = acc.Base.Add(base.Div(equiv))
				acc.Importe = dom.Dec(acc.Importe.Add(t.Importe.Div(equiv)))
			}
			pago.DoctoRelacionado = append(pago.DoctoRelacionado, dr)
		}
		pago.Monto = monto.Round(2)

		if len(trasOrder) > 0 {
			pago.ImpuestosP = &dom.ImpuestosP{}
			for _, k := range trasOrder {
				acc := trasP[k]
				acc.Base = acc.Base.Round(2)
				acc.Importe = dom.Dec(acc.Importe.Round(2))
				pago.ImpuestosP.TrasladosP = append(pago.ImpuestosP.TrasladosP, *acc)

				baseMXN := acc.Base.Mul(tipoCambio)
				impMXN := acc.Importe.Mul(tipoCambio)
				switch {
				case acc.TasaOCuota.Equal(iva16):
					has16 = true
					base16, iva16Total = base16.Add(baseMXN), iva16Total.Add(impMXN)
				case acc.TasaOCuota.Equal(iva8):
					has8 = true
					base8, iva8Total = base8.Add(baseMXN), iva8Total.Add(impMXN)
				case acc.TasaOCuota.IsZero():
					has0 = true
					base0, iva0Total = base0.Add(baseMXN), iva0Total.Add(impMXN)
				}
			}
		}
		total = total.Add(pago.Monto.Mul(tipoCambio))
		p.Pago = append(p.Pago, pago)
	}

	p.Totales.MontoTotalPagos = total.Round(2)
	if has16 {
		p.Totales.TotalTrasladosBaseIVA16 = dom.Dec(base16.Round(2))
		p.Totales.TotalTrasladosImpuestoIVA16 = dom.Dec(iva16Total.Round(2))
	}
	if has8 {
		p.Totales.TotalTrasladosBaseIVA8 = dom.Dec(base8.Round(2))
		p.Totales.TotalTrasladosImpuestoIVA8 = dom.Dec(iva8Total.Round(2))
	}
	if has0 {
		p.Totales.TotalTrasladosBaseIVA0 = dom.Dec(base0.Round(2))
		p.Totales.TotalTrasladosImpuestoIVA0 = dom.Dec(iva0Total.Round(2))
	}
	return p, nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
