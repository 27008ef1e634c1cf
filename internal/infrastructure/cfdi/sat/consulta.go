// Package sat consulta el estado de un CFDI en el servicio ConsultaCFDIService del SAT.
package sat

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

// ── Constantes ──────────────────────────────────────────────────────────────

const (
	// DefaultConsultaURL endpoint público de consulta.
	DefaultConsultaURL = "https://consultaqr.facturaelectronica.sat.gob.mx/ConsultaCFDIService.svc"

	soapNS     = "http://schemas.xmlsoap.org/soap/envelope/"
	tempuriNS  = "http://tempuri.org/"
	soapAction = "http://tempuri.org/IConsultaCFDIService/Consulta"
)

// ── Puerto ──────────────────────────────────────────────────────────────────

// Query datos que identifican al CFDI ante el SAT.
type Query struct {
	RfcEmisor   string
	RfcReceptor string
	Total       decimal.Decimal
	UUID        string
}

// StatusChecker consulta el estado de un CFDI.
type StatusChecker interface {
	Consulta(ctx context.Context, q Query) (*cfdi.SATStatus, error)
}

// ExpresionImpresa arma la expresión "?re=&rr=&tt=&id=" que espera el servicio.
func ExpresionImpresa(q Query) string {
	return fmt.Sprintf("?re=%s&rr=%s&tt=%s&id=%s",
		q.RfcEmisor, q.RfcReceptor, cfdi.FormatImporte(q.Total), strings.ToUpper(q.UUID))
}

// ── Cliente SOAP ────────────────────────────────────────────────────────────

// Client implementa StatusChecker con el WS SOAP del SAT.
type Client struct {
	http *httpclient.Client
	now  func() time.Time
}

// NewClient crea el cliente. hc debe tener como BaseURL el endpoint del servicio.
func NewClient(hc *httpclient.Client) *Client {
	return &Client{http: hc, now: time.Now}
}

var _ StatusChecker = (*Client)(nil)

type consultaEnvelope struct {
	XMLName xml.Name     `xml:"soapenv:Envelope"`
	XmlnsS  string       `xml:"xmlns:soapenv,attr"`
	XmlnsT  string       `xml:"xmlns:tem,attr"`
	Header  struct{}     `xml:"soapenv:Header"`
	Body    consultaBody `xml:"soapenv:Body"`
}

type consultaBody struct {
	Consulta struct {
		Expresion string `xml:"tem:expresionImpresa"`
	} `xml:"tem:Consulta"`
}

type consultaResponseEnvelope struct {
	Body struct {
		Response *struct {
			Result struct {
				CodigoEstatus      string `xml:"CodigoEstatus"`
				EsCancelable       string `xml:"EsCancelable"`
				Estado             string `xml:"Estado"`
				EstatusCancelacion string `xml:"EstatusCancelacion"`
				ValidacionEFOS     string `xml:"ValidacionEFOS"`
			} `xml:"ConsultaResult"`
		} `xml:"ConsultaResponse"`
		Fault *struct {
			FaultCode   string `xml:"faultcode"`
			FaultString string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// Consulta obtiene el estado vigente/cancelado, la cancelabilidad y la validación EFOS.
func (c *Client) Consulta(ctx context.Context, q Query) (*cfdi.SATStatus, error) {
	if q.UUID == "" || q.RfcEmisor == "" || q.RfcReceptor == "" {
		return nil, fmt.Errorf("sat: consulta incompleta (UUID y RFCs son obligatorios): %w", domain.ErrInvalidInput)
	}
	env := consultaEnvelope{XmlnsS: soapNS, XmlnsT: tempuriNS}
	env.Body.Consulta.Expresion = ExpresionImpresa(q)
	payload, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("sat: serializar envelope: %w", err)
	}

	hdr := http.Header{}
	hdr.Set("Content-Type", "text/xml; charset=utf-8")
	hdr.Set("Accept", "text/xml")
	hdr.Set("SOAPAction", soapAction)
	resp, err := c.http.Do(ctx, httpclient.Request{
		Operation: "consulta",
		Method:    http.MethodPost,
		Header:    hdr,
		Body:      append([]byte(xml.Header), payload...),
	})
	if err != nil && (resp == nil || resp.StatusCode != http.StatusInternalServerError) {
		return nil, err
	}

	var out consultaResponseEnvelope
	if uerr := xml.Unmarshal(resp.Body, &out); uerr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("sat: parsear respuesta SOAP: %w", uerr)
	}
	if f := out.Body.Fault; f != nil {
		return nil, fmt.Errorf("sat: %s: %s: %w", f.FaultCode, f.FaultString, domain.ErrUpstream)
	}
	if out.Body.Response == nil {
		return nil, fmt.Errorf("sat: respuesta sin ConsultaResult: %w", domain.ErrUpstream)
	}
	r := out.Body.Response.Result
	return &cfdi.SATStatus{
		CodigoEstatus:      strings.TrimSpace(r.CodigoEstatus),
		Estado:             strings.TrimSpace(r.Estado),
		EsCancelable:       strings.TrimSpace(r.EsCancelable),
		EstatusCancelacion: strings.TrimSpace(r.EstatusCancelacion),
		ValidacionEFOS:     strings.TrimSpace(r.ValidacionEFOS),
		CheckedAt:          c.now(),
	}, nil
}

// VerificationURL URL del código QR de la representación impresa (verificacfdi).
// fe son los últimos 8 caracteres del sello del emisor.
func VerificationURL(q Query, sello string) string {
	fe := sello
	if len(fe) > 8 {
		fe = fe[len(fe)-8:]
	}
	return "https://verificacfdi.facturaelectronica.sat.gob.mx/default.aspx" +
		"?id=" + strings.ToUpper(q.UUID) +
		"&re=" + url.QueryEscape(q.RfcEmisor) +
		"&rr=" + url.QueryEscape(q.RfcReceptor) +
		"&tt=" + cfdi.FormatImporte(q.Total) +
		"&fe=" + url.QueryEscape(fe)
}
