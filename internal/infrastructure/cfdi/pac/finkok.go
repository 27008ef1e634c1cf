package pac

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	cfdixml "github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
)

// ── Finkok (SOAP) ───────────────────────────────────────────────────────────

const (
	finkokURLTest = "https://demo-facturacion.finkok.com"
	finkokURLProd = "https://facturacion.finkok.com"

	finkokPathStamp  = "/servicios/soap/stamp"
	finkokPathCancel = "/servicios/soap/cancel"

	finkokNSStamp  = "http://facturacion.finkok.com/stamp"
	finkokNSCancel = "http://facturacion.finkok.com/cancel"
	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
)

// FinkokConfig credenciales del PAC Finkok.
type FinkokConfig struct {
	User     string
	Password string
	Env      string
	BaseURL  string
}

// FinkokBaseURL URL base según ambiente.
func FinkokBaseURL(cfg FinkokConfig) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	if cfg.Env == "prod" {
		return finkokURLProd
	}
	return finkokURLTest
}

var _ Provider = (*FinkokProvider)(nil)

// FinkokProvider timbra y cancela con el WS SOAP de Finkok.
type FinkokProvider struct {
	cfg    FinkokConfig
	client *httpclient.Client
	loc    *time.Location
}

// NewFinkokProvider crea el adaptador SOAP.
func NewFinkokProvider(cfg FinkokConfig, client *httpclient.Client) *FinkokProvider {
	return &FinkokProvider{cfg: cfg, client: client, loc: time.UTC}
}

func (p *FinkokProvider) Name() string { return "finkok" }

// ── Estructuras SOAP ────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	XmlnsS  string   `xml:"xmlns:soapenv,attr"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content any
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type finkokStampBody struct {
	XMLName  xml.Name `xml:"stamp"`
	Xmlns    string   `xml:"xmlns,attr"`
	XML      string   `xml:"xml"` // base64
	Username string   `xml:"username"`
	Password string   `xml:"password"`
}

type finkokCancelUUID struct {
	UUID             string `xml:"UUID,attr"`
	Motivo           string `xml:"Motivo,attr"`
	FolioSustitucion string `xml:"FolioSustitucion,attr"`
}

type finkokCancelBody struct {
	XMLName    xml.Name           `xml:"cancel"`
	Xmlns      string             `xml:"xmlns,attr"`
	UUIDs      []finkokCancelUUID `xml:"UUIDS>UUID"`
	Username   string             `xml:"username"`
	Password   string             `xml:"password"`
	TaxpayerID string             `xml:"taxpayer_id"`
}

type finkokIncidencia struct {
	CodigoError       string `xml:"CodigoError"`
	MensajeIncidencia string `xml:"MensajeIncidencia"`
}

type finkokStampResult struct {
	XML         string             `xml:"xml"`
	UUID        string             `xml:"UUID"`
	CodEstatus  string             `xml:"CodEstatus"`
	Incidencias []finkokIncidencia `xml:"Incidencias>Incidencia"`
}

type finkokFolio struct {
	UUID               string `xml:"UUID"`
	EstatusUUID        string `xml:"EstatusUUID"`
	EstatusCancelacion string `xml:"EstatusCancelacion"`
}

type finkokCancelResult struct {
	Folios     []finkokFolio `xml:"Folios>Folio"`
	Acuse      string        `xml:"Acuse"`
	CodEstatus string        `xml:"CodEstatus"`
}

type finkokResponseEnvelope struct {
	Body struct {
		StampResponse *struct {
			Result finkokStampResult `xml:"stampResult"`
		} `xml:"stampResponse"`
		CancelResponse *struct {
			Result finkokCancelResult `xml:"cancelResult"`
		} `xml:"cancelResponse"`
		Fault *struct {
			FaultCode   string `xml:"faultcode"`
			FaultString string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// ── Operaciones ─────────────────────────────────────────────────────────────

func (p *FinkokProvider) post(ctx context.Context, op, path, action string, content any) (*finkokResponseEnvelope, error) {
	payload, err := xml.Marshal(soapEnvelope{XmlnsS: soapNS, Body: soapBody{Content: content}})
	if err != nil {
		return nil, fmt.Errorf("pac finkok: serializar envelope: %w", err)
	}
	hdr := http.Header{}
	hdr.Set("Content-Type", "text/xml; charset=utf-8")
	hdr.Set("Accept", "text/xml")
	hdr.Set("SOAPAction", action)

	resp, err := p.client.Do(ctx, httpclient.Request{
		Operation: op,
		Method:    http.MethodPost,
		Path:      path,
		Header:    hdr,
		Body:      append([]byte(xml.Header), payload...),
		NoRetry:   op == "stamp",
	})
	if err != nil && (resp == nil || resp.StatusCode != http.StatusInternalServerError) {
		return nil, err
	}
	var env finkokResponseEnvelope
	if uerr := xml.Unmarshal(resp.Body, &env); uerr != nil {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("pac finkok: parsear respuesta SOAP: %w", uerr)
	}
	if f := env.Body.Fault; f != nil {
		return nil, &ProviderError{Provider: p.Name(), Code: f.FaultCode, Message: f.FaultString, Err: domain.ErrUpstream}
	}
	return &env, nil
}

// Stamp envía el XML sellado en base64 a la operación stamp.
func (p *FinkokProvider) Stamp(ctx context.Context, xmlBytes []byte) (*StampResult, error) {
	env, err := p.post(ctx, "stamp", finkokPathStamp, finkokNSStamp+"/stamp", &finkokStampBody{
		Xmlns:    finkokNSStamp,
		XML:      base64.StdEncoding.EncodeToString(xmlBytes),
		Username: p.cfg.User,
		Password: p.cfg.Password,
	})
	if err != nil {
		return nil, err
	}
	if env.Body.StampResponse == nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "respuesta sin stampResult", Err: domain.ErrUpstream}
	}
	res := env.Body.StampResponse.Result
	if len(res.Incidencias) > 0 || res.XML == "" {
		pe := &ProviderError{Provider: p.Name(), Message: "timbrado sin XML", Err: ErrStampRejected}
		if len(res.Incidencias) > 0 {
			pe.Code = res.Incidencias[0].CodigoError
			pe.Message = res.Incidencias[0].MensajeIncidencia
		}
		return nil, pe
	}
	stamped := []byte(res.XML)
	tfd, err := cfdixml.ParseTimbre(stamped, p.loc)
	if err != nil {
		return nil, fmt.Errorf("pac finkok: %w", err)
	}
	return &StampResult{UUID: strings.ToUpper(tfd.UUID), XML: stamped, Timbre: tfd}, nil
}

// Cancel solicita la cancelación con el CSD almacenado en la cuenta de Finkok.
func (p *FinkokProvider) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	env, err := p.post(ctx, "cancel", finkokPathCancel, finkokNSCancel+"/cancel", &finkokCancelBody{
		Xmlns:      finkokNSCancel,
		UUIDs:      []finkokCancelUUID{{UUID: req.UUID, Motivo: req.Motivo, FolioSustitucion: req.FolioSustitucion}},
		Username:   p.cfg.User,
		Password:   p.cfg.Password,
		TaxpayerID: req.RfcEmisor,
	})
	if err != nil {
		return nil, err
	}
	if env.Body.CancelResponse == nil {
		return nil, &ProviderError{Provider: p.Name(), Message: "respuesta sin cancelResult", Err: domain.ErrUpstream}
	}
	res := env.Body.CancelResponse.Result
	for _, f := range res.Folios {
		if !strings.EqualFold(f.UUID, req.UUID) {
			continue
		}
		out, err := cancelResultFromCode(p.Name(), strings.ToUpper(req.UUID), f.EstatusUUID, res.Acuse)
		if err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(f.EstatusCancelacion), "proceso") {
			out.Status = cfdi.CancellationPending
		}
		return out, nil
	}
	return nil, &ProviderError{Provider: p.Name(), Code: res.CodEstatus, Message: "el UUID no aparece en la respuesta", Err: ErrCancelRejected}
}

// Ping descarga el WSDL del servicio de timbrado.
func (p *FinkokProvider) Ping(ctx context.Context) error {
	hdr := http.Header{}
	hdr.Set("Accept", "text/xml")
	_, err := p.client.Do(ctx, httpclient.Request{
		Operation: "ping",
		Method:    http.MethodGet,
		Path:      finkokPathStamp + ".wsdl",
		Header:    hdr,
	})
	return err
}
