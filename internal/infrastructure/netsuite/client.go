// Package netsuite conector con NetSuite: OAuth2 client credentials (M2M) con client assertion
// PS256, REST Record API y SuiteQL, con mapeo al modelo canónico.
package netsuite

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/tokencache"
	"github.com/jhoicas/integraciones-api/pkg/config"
	"github.com/jhoicas/integraciones-api/pkg/jwt"
)

const (
	integrationName = integration.SourceNetSuite
	tokenPath       = "/services/rest/auth/oauth2/v1/token"
	recordPath      = "/services/rest/record/v1/"
	suiteQLPath     = "/services/rest/query/v1/suiteql"
)

// Config parámetros del conector.
type Config struct {
	AccountID     string // 1234567 o 1234567_SB1
	ClientID      string
	CertificateID string
	PrivateKey    *rsa.PrivateKey
	Scopes        []string
	BaseURL       string // sobreescribe https://{account}.suitetalk.api.netsuite.com
}

// ConfigFrom adapta la configuración de la aplicación y carga la llave privada.
func ConfigFrom(c config.NetSuiteConfig) (Config, error) {
	cfg := Config{
		AccountID:     c.AccountID,
		ClientID:      c.ClientID,
		CertificateID: c.CertificateID,
		Scopes:        c.Scopes,
		BaseURL:       c.BaseURL,
	}
	if c.PrivateKeyPath == "" {
		return cfg, fmt.Errorf("netsuite: falta la llave privada: %w", domain.ErrNotConfigured)
	}
	key, err := jwt.LoadPrivateKey(c.PrivateKeyPath)
	if err != nil {
		return cfg, fmt.Errorf("netsuite: %w", err)
	}
	cfg.PrivateKey = key
	return cfg, nil
}

// AccountHost convierte el id de cuenta al subdominio: 1234567_SB1 -> 1234567-sb1.
func AccountHost(accountID string) string {
	return strings.ToLower(strings.ReplaceAll(accountID, "_", "-"))
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return "https://" + AccountHost(c.AccountID) + ".suitetalk.api.netsuite.com"
}

func (c Config) scopes() []string {
	if len(c.Scopes) == 0 {
		return []string{"rest_webservices"}
	}
	return c.Scopes
}

// Option configura el cliente.
type Option func(*options)

type options struct {
	http       *http.Client
	recorder   httpclient.Recorder
	logger     zerolog.Logger
	maxRetries uint64
	interval   time.Duration
}

// WithHTTPClient cliente base para la API y el endpoint de tokens.
func WithHTTPClient(h *http.Client) Option { return func(o *options) { o.http = h } }

// WithRecorder registra métricas por operación.
func WithRecorder(r httpclient.Recorder) Option { return func(o *options) { o.recorder = r } }

// WithLogger asigna el logger.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.logger = l } }

// WithRetry reintentos ante 429/5xx.
func WithRetry(max uint64, initial time.Duration) Option {
	return func(o *options) { o.maxRetries, o.interval = max, initial }
}

// Client conector de NetSuite. Implementa oauth2.TokenSource: cada token se obtiene con una
// assertion nueva y se guarda en el token cache hasta su expiración.
type Client struct {
	cfg    Config
	signer *jwt.Signer
	store  tokencache.Store
	api    *httpclient.Client
	log    zerolog.Logger
	hc     *http.Client // cliente base del endpoint de tokens
	mu     sync.Mutex
	last   *oauth2.Token
	now    func() time.Time
}

// NewClient crea el conector. Si store es nil los tokens se guardan en memoria.
func NewClient(cfg Config, store tokencache.Store, opts ...Option) (*Client, error) {
	if cfg.AccountID == "" || cfg.ClientID == "" || cfg.CertificateID == "" || cfg.PrivateKey == nil {
		return nil, fmt.Errorf("netsuite: cuenta, client id, certificado y llave son obligatorios: %w", domain.ErrNotConfigured)
	}
	signer, err := jwt.NewSigner(cfg.PrivateKey, cfg.ClientID, cfg.baseURL()+tokenPath, cfg.CertificateID, cfg.scopes())
	if err != nil {
		return nil, fmt.Errorf("netsuite: %w", err)
	}
	o := options{logger: zerolog.Nop(), maxRetries: 3, interval: 500 * time.Millisecond}
	for _, fn := range opts {
		fn(&o)
	}
	base := o.http
	if base == nil {
		base = &http.Client{Timeout: 30 * time.Second}
	}
	if store == nil {
		store = tokencache.NewMemoryStore()
	}

	c := &Client{
		cfg:    cfg,
		signer: signer,
		store:  store,
		log:    o.logger,
		hc:     base,
		now:    time.Now,
	}
	authed := &http.Client{
		Timeout:   base.Timeout,
		Transport: &oauth2.Transport{Source: c, Base: base.Transport},
	}
	c.api = httpclient.New(httpclient.Config{
		Integration:     integrationName,
		BaseURL:         cfg.baseURL(),
		MaxRetries:      o.maxRetries,
		InitialInterval: o.interval,
	},
		httpclient.WithHTTPClient(authed),
		httpclient.WithRecorder(o.recorder),
		httpclient.WithLogger(o.logger),
	)
	return c, nil
}

// Name nombre de la integración.
func (c *Client) Name() string { return integrationName }

// ── OAuth2 ──────────────────────────────────────────────────────────────────

func (c *Client) tokenKey() string {
	return "netsuite:" + c.cfg.AccountID + ":" + c.cfg.ClientID
}

// Token devuelve un access token vigente (memoria, luego token cache, luego endpoint).
func (c *Client) Token() (*oauth2.Token, error) {
	return c.token(context.Background())
}

func (c *Client) token(ctx context.Context) (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last.Valid() {
		return c.last, nil
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)
	if tok, err := c.store.Get(ctx, c.tokenKey()); err == nil && tok.Valid() {
		c.last = tok
		return tok, nil
	} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.log.Warn().Err(err).Msg("netsuite: token cache no disponible")
	}

	assertion, err := c.signer.Sign(c.now())
	if err != nil {
		return nil, fmt.Errorf("netsuite: %w", err)
	}
	cc := clientcredentials.Config{
		TokenURL:  c.cfg.baseURL() + tokenPath,
		AuthStyle: oauth2.AuthStyleInParams,
		EndpointParams: url.Values{
			"client_assertion_type": {jwt.AssertionType},
			"client_assertion":      {assertion},
		},
	}
	tok, err := cc.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("netsuite: obtener token: %v: %w", err, domain.ErrUnauthorized)
	}
	if err := c.store.Set(ctx, c.tokenKey(), tok); err != nil {
		c.log.Warn().Err(err).Msg("netsuite: no se pudo guardar el token")
	}
	c.last = tok
	c.log.Debug().Time("expiry", tok.Expiry).Msg("netsuite: token obtenido")
	return tok, nil
}

// ── Llamadas ────────────────────────────────────────────────────────────────

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	header http.Header
	body   any
}

func (c *Client) call(ctx context.Context, r request, out any) (*httpclient.Response, error) {
	resp, err := c.api.Do(ctx, httpclient.Request{
		Operation: r.op,
		Method:    r.method,
		Path:      r.path,
		Query:     r.query,
		Header:    r.header,
		JSON:      r.body,
	})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			return resp, parseError(resp.StatusCode, resp.Body)
		}
		return resp, err
	}
	if out != nil && len(resp.Body) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("netsuite: %s: decodificar respuesta: %w", r.op, err)
		}
	}
	return resp, nil
}

// idFromLocation extrae el id del header Location de un POST a la Record API.
func idFromLocation(resp *httpclient.Response) (string, error) {
	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", fmt.Errorf("netsuite: respuesta sin Location: %w", domain.ErrUpstream)
	}
	return path.Base(strings.TrimRight(loc, "/")), nil
}

func recordURL(recordType, id string) string {
	if id == "" {
		return recordPath + recordType
	}
	return recordPath + recordType + "/" + url.PathEscape(id)
}

// getRecord lee un registro con sus sublistas expandidas.
func (c *Client) getRecord(ctx context.Context, recordType, id string, out any) error {
	_, err := c.call(ctx, request{
		op:     recordType + ".get",
		method: http.MethodGet,
		path:   recordURL(recordType, id),
		query:  url.Values{"expandSubResources": {"true"}},
	}, out)
	return err
}

// createRecord crea el registro y devuelve su id.
func (c *Client) createRecord(ctx context.Context, recordType string, body any) (string, error) {
	resp, err := c.call(ctx, request{
		op:     recordType + ".create",
		method: http.MethodPost,
		path:   recordURL(recordType, ""),
		body:   body,
	}, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(resp)
}

func (c *Client) updateRecord(ctx context.Context, recordType, id string, body any) error {
	_, err := c.call(ctx, request{
		op:     recordType + ".update",
		method: http.MethodPatch,
		path:   recordURL(recordType, id),
		body:   body,
	}, nil)
	return err
}

func (c *Client) deleteRecord(ctx context.Context, recordType, id string) error {
	_, err := c.call(ctx, request{
		op:     recordType + ".delete",
		method: http.MethodDelete,
		path:   recordURL(recordType, id),
	}, nil)
	return err
}

// Ping ejecuta una consulta SuiteQL mínima.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.SuiteQL(ctx, "SELECT 1 AS ok FROM dual", integration.ListOptions{Limit: 1})
	return err
}
