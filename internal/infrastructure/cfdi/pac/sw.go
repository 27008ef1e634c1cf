package pac

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/cfdi"
	cfdixml "github.com/jhoicas/integraciones-api/internal/infrastructure/cfdi"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/tokencache"
)

// ── SW Sapien (REST) ────────────────────────────────────────────────────────

const (
	swURLTest = "https://services.test.sw.com.mx"
	swURLProd = "https://services.sw.com.mx"

	swDefaultTokenTTL = 2 * time.Hour
)

// SWConfig credenciales del PAC SW Sapien.
type SWConfig struct {
	User     string
	Password string
	Env      string // test o prod
	BaseURL  string // sobreescribe la URL del ambiente
}

var _ Provider = (*SWProvider)(nil)

// SWProvider timbra con la API REST de SW Sapien. El token de sesión se guarda en el token cache.
type SWProvider struct {
	cfg    SWConfig
	client *httpclient.Client
	tokens tokencache.Store
	loc    *time.Location
}

// NewSWProvider crea el adaptador. client debe apuntar a la URL de SW (ver SWBaseURL).
func NewSWProvider(cfg SWConfig, client *httpclient.Client, tokens tokencache.Store) *SWProvider {
	if tokens == nil {
		tokens = tokencache.NewMemoryStore()
	}
	return &SWProvider{cfg: cfg, client: client, tokens: tokens, loc: time.UTC}
}

// SWBaseURL URL base según ambiente.
func SWBaseURL(cfg SWConfig) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	if cfg.Env == "prod" {
		return swURLProd
	}
	return swURLTest
}

func (p *SWProvider) Name() string { return "sw" }

type swEnvelope struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	MessageDetail string          `json:"messageDetail"`
	Data          json.RawMessage `json:"data"`
}

type swAuthData struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

type swStampData struct {
	CFDI             string `json:"cfdi"`
	UUID             string `json:"uuid"`
	FechaTimbrado    string `json:"fechaTimbrado"`
	NoCertificadoSAT string `json:"noCertificadoSAT"`
	SelloSAT         string `json:"selloSAT"`
}

type swCancelData struct {
	Acuse string            `json:"acuse"`
	UUID  map[string]string `json:"uuid"`
}

func (p *SWProvider) tokenKey() string { return "pac_sw:" + p.cfg.User }

// token devuelve el token vigente o se autentica de nuevo.
func (p *SWProvider) token(ctx context.Context) (string, error) {
	if tok, err := p.tokens.Get(ctx, p.tokenKey()); err == nil && tok.Valid() {
		return tok.AccessToken, nil
	}
	hdr := http.Header{}
	hdr.Set("user", p.cfg.User)
	hdr.Set("password", p.cfg.Password)
	resp, err := p.client.Do(ctx, httpclient.Request{
		Operation: "authenticate",
		Method:    http.MethodPost,
		Path:      "/security/authenticate",
		Header:    hdr,
	})
	if err != nil {
		return "", p.wrap(resp, err)
	}
	var data swAuthData
	if err := p.decode(resp.Body, &data, domain.ErrUnauthorized); err != nil {
		return "", err
	}
	if data.Token == "" {
		return "", fmt.Errorf("pac sw: autenticación sin token: %w", domain.ErrUnauthorized)
	}
	ttl := swDefaultTokenTTL
	if data.ExpiresIn > 0 && data.ExpiresIn < int64((24*time.Hour).Seconds()) {
		ttl = time.Duration(data.ExpiresIn) * time.Second
	}
	tok := &oauth2.Token{AccessToken: data.Token, TokenType: "Bearer", Expiry: time.Now().Add(ttl)}
	if err := p.tokens.Set(ctx, p.tokenKey(), tok); err != nil {
		return "", err
	}
	return data.Token, nil
}

// call ejecuta una petición autenticada; ante 401 descarta el token y reintenta una vez.
func (p *SWProvider) call(ctx context.Context, req httpclient.Request) (*httpclient.Response, error) {
	for attempt := 0; ; attempt++ {
		tok, err := p.token(ctx)
		if err != nil {
			return nil, err
		}
		if req.Header == nil {
			req.Header = http.Header{}
		}
		req.Header.Set("Authorization", "bearer "+tok)
		resp, err := p.client.Do(ctx, req)
		if err != nil && errors.Is(err, domain.ErrUnauthorized) && attempt == 0 {
			_ = p.tokens.Delete(ctx, p.tokenKey())
			continue
		}
		return resp, err
	}
}

// Stamp envía el XML con multipart/form-data a /cfdi33/stamp/v4.
func (p *SWProvider) Stamp(ctx context.Context, xml []byte) (*StampResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("xml", "cfdi.xml")
	if err != nil {
		return nil, fmt.Errorf("pac sw: armar multipart: %w", err)
	}
	if _, err := fw.Write(xml); err != nil {
		return nil, fmt.Errorf("pac sw: armar multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("pac sw: armar multipart: %w", err)
	}
	hdr := http.Header{}
	hdr.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.call(ctx, httpclient.Request{
		Operation: "stamp",
		Method:    http.MethodPost,
		Path:      "/cfdi33/stamp/v4",
		Header:    hdr,
		Body:      body.Bytes(),
		NoRetry:   true,
	})
	if err != nil {
		return nil, p.wrap(resp, err)
	}
	var data swStampData
	if err := p.decode(resp.Body, &data, ErrStampRejected); err != nil {
		return nil, err
	}
	if data.CFDI == "" {
		return nil, &ProviderError{Provider: p.Name(), Message: "respuesta sin cfdi", Err: domain.ErrUpstream}
	}
	stamped := []byte(data.CFDI)
	tfd, err := cfdixml.ParseTimbre(stamped, p.loc)
	if err != nil {
		return nil, fmt.Errorf("pac sw: %w", err)
	}
	return &StampResult{UUID: strings.ToUpper(tfd.UUID), XML: stamped, Timbre: tfd}, nil
}

// Cancel cancela por UUID con el CSD registrado en la cuenta de SW.
func (p *SWProvider) Cancel(ctx context.Context, req CancelRequest) (*CancelResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	path := "/cfdi33/cancel/" + url.PathEscape(req.RfcEmisor) + "/" + url.PathEscape(req.UUID) + "/" + req.Motivo
	if req.FolioSustitucion != "" {
		path += "/" + url.PathEscape(req.FolioSustitucion)
	}
	resp, err := p.call(ctx, httpclient.Request{Operation: "cancel", Method: http.MethodPost, Path: path})
	if err != nil {
		return nil, p.wrapCancel(resp, err)
	}
	var data swCancelData
	if err := p.decode(resp.Body, &data, ErrCancelRejected); err != nil {
		return nil, err
	}
	code := ""
	for k, v := range data.UUID {
		if strings.EqualFold(k, req.UUID) {
			code = v
		}
	}
	return cancelResultFromCode(p.Name(), strings.ToUpper(req.UUID), code, data.Acuse)
}

// Ping se autentica de nuevo contra SW.
func (p *SWProvider) Ping(ctx context.Context) error {
	_ = p.tokens.Delete(ctx, p.tokenKey())
	_, err := p.token(ctx)
	return err
}

func (p *SWProvider) decode(body []byte, data any, rejected error) error {
	var env swEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("pac sw: decodificar respuesta: %w", err)
	}
	if env.Status != "success" {
		return &ProviderError{Provider: p.Name(), Code: swCode(env.Message), Message: env.Message, Err: rejected}
	}
	if err := json.Unmarshal(env.Data, data); err != nil {
		return fmt.Errorf("pac sw: decodificar data: %w", err)
	}
	return nil
}

// wrap convierte una respuesta de error de SW en ProviderError conservando el error de dominio.
func (p *SWProvider) wrap(resp *httpclient.Response, err error) error {
	return p.wrapAs(resp, err, ErrStampRejected)
}

func (p *SWProvider) wrapCancel(resp *httpclient.Response, err error) error {
	return p.wrapAs(resp, err, ErrCancelRejected)
}

func (p *SWProvider) wrapAs(resp *httpclient.Response, err, rejected error) error {
	var pe *ProviderError
	if errors.As(err, &pe) || resp == nil {
		return err
	}
	var env swEnvelope
	if json.Unmarshal(resp.Body, &env) != nil || env.Message == "" {
		return err
	}
	sentinel := httpclient.StatusSentinel(resp.StatusCode)
	if resp.StatusCode == http.StatusBadRequest {
		sentinel = rejected
	}
	return &ProviderError{Provider: p.Name(), Code: swCode(env.Message), Message: env.Message, Err: sentinel}
}

// swCode extrae el código numérico con el que SW prefija sus mensajes ("307. El comprobante...").
func swCode(msg string) string {
	if i := strings.Index(msg, "."); i > 0 && !strings.ContainsRune(msg[:i], ' ') {
		return msg[:i]
	}
	return ""
}

// cancelResultFromCode interpreta el código de estatus de cancelación del SAT.
func cancelResultFromCode(provider, uuid, code, acuse string) (*CancelResult, error) {
	res := &CancelResult{UUID: uuid, CodigoEstatus: code, Acuse: acuse}
	switch code {
	case "201", "202":
		res.Status = cfdi.CancellationAccepted
	case "":
		res.Status = cfdi.CancellationPending
	default:
		return nil, &ProviderError{Provider: provider, Message: "estatus de cancelación " + code, Code: code, Err: ErrCancelRejected}
	}
	return res, nil
}
