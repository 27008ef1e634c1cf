// Package quickbooks conector con QuickBooks Online (API v3): OAuth2 con rotación del refresh
// token, CRUD de clientes, productos, facturas y pagos, y mapeo al modelo canónico.
package quickbooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/jhoicas/integraciones-api/internal/domain"
	"github.com/jhoicas/integraciones-api/internal/domain/integration"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/httpclient"
	"github.com/jhoicas/integraciones-api/internal/infrastructure/tokencache"
	"github.com/jhoicas/integraciones-api/pkg/config"
)

// Endpoints de Intuit.
const (
	SandboxBaseURL    = "https://sandbox-quickbooks.api.intuit.com"
	ProductionBaseURL = "https://quickbooks.api.intuit.com"
	AuthURL           = "https://appcenter.intuit.com/connect/oauth2"
	TokenURL          = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"
	ScopeAccounting   = "com.intuit.quickbooks.accounting"
)

const integrationName = integration.SourceQuickBooks

// Config parámetros del conector.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RealmID      string
	RefreshToken string // semilla si el token cache está vacío
	Environment  string // sandbox, production
	BaseURL      string // sobreescribe la URL según Environment
	TokenURL     string // sobreescribe TokenURL
	MinorVersion int

	IncomeAccountID  string
	ExpenseAccountID string
	AssetAccountID   string
}

// ConfigFrom adapta la configuración de la aplicación.
func ConfigFrom(c config.QuickBooksConfig) Config {
	return Config{
		ClientID:         c.ClientID,
		ClientSecret:     c.ClientSecret,
		RedirectURL:      c.RedirectURL,
		RealmID:          c.RealmID,
		RefreshToken:     c.RefreshToken,
		Environment:      c.Environment,
		BaseURL:          c.BaseURL,
		MinorVersion:     c.MinorVersion,
		IncomeAccountID:  c.IncomeAccountID,
		ExpenseAccountID: c.ExpenseAccountID,
		AssetAccountID:   c.AssetAccountID,
	}
}

func (c Config) apiBaseURL() string {
	switch {
	case c.BaseURL != "":
		return c.BaseURL
	case c.Environment == "production":
		return ProductionBaseURL
	default:
		return SandboxBaseURL
	}
}

func (c Config) oauth() *oauth2.Config {
	tokenURL := c.TokenURL
	if tokenURL == "" {
		tokenURL = TokenURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.RedirectURL,
		Scopes:       []string{ScopeAccounting},
		Endpoint: oauth2.Endpoint{
			AuthURL:   AuthURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
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

// Client conector de QuickBooks Online. Implementa oauth2.TokenSource sobre el token cache.
type Client struct {
	cfg   Config
	oauth *oauth2.Config
	store tokencache.Store
	api   *httpclient.Client
	log   zerolog.Logger
	hc    *http.Client // cliente base del endpoint de tokens
	mu    sync.Mutex
	src   oauth2.TokenSource
	last  *oauth2.Token
	now   func() time.Time
}

// NewClient crea el conector. Si store es nil los tokens se guardan en memoria.
func NewClient(cfg Config, store tokencache.Store, opts ...Option) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RealmID == "" {
		return nil, fmt.Errorf("quickbooks: client id, secret y realm son obligatorios: %w", domain.ErrNotConfigured)
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
		cfg:   cfg,
		oauth: cfg.oauth(),
		store: store,
		log:   o.logger,
		hc:    base,
		now:   time.Now,
	}
	authed := &http.Client{
		Timeout:   base.Timeout,
		Transport: &oauth2.Transport{Source: c, Base: base.Transport},
	}
	c.api = httpclient.New(httpclient.Config{
		Integration:     integrationName,
		BaseURL:         cfg.apiBaseURL() + "/v3/company/" + url.PathEscape(cfg.RealmID),
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

func (c *Client) tokenKey() string { return "quickbooks:" + c.cfg.RealmID }

// oauthContext deriva de ctx el contexto con el que oauth2 llama al endpoint de tokens.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.hc)
}

// AuthCodeURL URL de consentimiento de Intuit.
func (c *Client) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange canjea el código de autorización y guarda el token.
func (c *Client) Exchange(ctx context.Context, code string) error {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return fmt.Errorf("quickbooks: canjear código: %v: %w", err, domain.ErrUnauthorized)
	}
	if err := c.store.Set(ctx, c.tokenKey(), tok); err != nil {
		return err
	}
	c.mu.Lock()
	c.last = tok
	// La fuente sobrevive a la petición: las renovaciones no dependen de ctx.
	c.src = c.oauth.TokenSource(c.oauthContext(context.Background()), tok)
	c.mu.Unlock()
	c.log.Info().Str("realm_id", c.cfg.RealmID).Msg("quickbooks: aplicación autorizada")
	return nil
}

// Token devuelve un access token vigente. Intuit rota el refresh token en cada renovación, por
// lo que cualquier token nuevo se persiste de inmediato.
func (c *Client) Token() (*oauth2.Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx := c.oauthContext(context.Background())
	if c.src == nil {
		tok, err := c.store.Get(ctx, c.tokenKey())
		switch {
		case err == nil:
		case !errors.Is(err, domain.ErrNotFound):
			return nil, err
		case c.cfg.RefreshToken != "":
			tok = &oauth2.Token{RefreshToken: c.cfg.RefreshToken}
		default:
			return nil, fmt.Errorf("quickbooks: sin token, autorice la aplicación: %w", domain.ErrUnauthorized)
		}
		c.last = tok
		c.src = c.oauth.TokenSource(ctx, tok)
	}

	tok, err := c.src.Token()
	if err != nil {
		c.src = nil
		return nil, fmt.Errorf("quickbooks: renovar token: %v: %w", err, domain.ErrUnauthorized)
	}
	if c.last == nil || tok.AccessToken != c.last.AccessToken || tok.RefreshToken != c.last.RefreshToken {
		if err := c.store.Set(ctx, c.tokenKey(), tok); err != nil {
			c.log.Warn().Err(err).Msg("quickbooks: no se pudo guardar el token renovado")
		}
		c.last = tok
		c.log.Debug().Time("expiry", tok.Expiry).Msg("quickbooks: token renovado")
	}
	return tok, nil
}

// ── Llamadas ────────────────────────────────────────────────────────────────

func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	if c.cfg.MinorVersion > 0 {
		q.Set("minorversion", strconv.Itoa(c.cfg.MinorVersion))
	}
	resp, err := c.api.Do(ctx, httpclient.Request{
		Operation: op,
		Method:    method,
		Path:      path,
		Query:     q,
		JSON:      body,
	})
	if resp != nil {
		if apiErr := parseFault(resp.StatusCode, resp.Body); apiErr != nil {
			return apiErr
		}
	}
	if err != nil {
		return err
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return fmt.Errorf("quickbooks: %s: decodificar respuesta: %w", op, err)
		}
	}
	return nil
}

// ── Salud ───────────────────────────────────────────────────────────────────

// CompanyInfo datos de la empresa conectada.
type CompanyInfo struct {
	CompanyName string `json:"CompanyName"`
	LegalName   string `json:"LegalName"`
	Country     string `json:"Country"`
}

// CompanyInfo consulta la empresa del realm.
func (c *Client) CompanyInfo(ctx context.Context) (*CompanyInfo, error) {
	var out struct {
		CompanyInfo CompanyInfo `json:"CompanyInfo"`
	}
	if err := c.call(ctx, "companyinfo.get", http.MethodGet, "companyinfo/"+url.PathEscape(c.cfg.RealmID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out.CompanyInfo, nil
}

// Ping verifica token y conectividad con una lectura de CompanyInfo.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.CompanyInfo(ctx)
	return err
}
