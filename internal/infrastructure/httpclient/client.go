// Package httpclient cliente HTTP compartido por los conectores: reintentos con backoff
// exponencial ante 429/5xx y errores de red, registro de métricas por llamada y logging.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/jhoicas/integraciones-api/internal/domain"
)

// Recorder recibe una medición por operación (incluidos todos sus reintentos).
type Recorder interface {
	Record(integration, operation string, duration time.Duration, err error)
}

// Config parámetros del cliente.
type Config struct {
	Integration     string // etiqueta de métricas y logs (quickbooks, netsuite, pac_sw...)
	BaseURL         string
	Timeout         time.Duration
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	UserAgent       string
}

func (c Config) withDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.InitialInterval == 0 {
		c.InitialInterval = 200 * time.Millisecond
	}
	if c.MaxInterval == 0 {
		c.MaxInterval = 5 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "integraciones-api/1.0"
	}
	return c
}

// Client cliente con reintentos.
type Client struct {
	cfg  Config
	http *http.Client
	rec  Recorder
	log  zerolog.Logger
}

// Option configura el cliente.
type Option func(*Client)

// WithHTTPClient reemplaza el *http.Client (p. ej. el transporte autenticado de oauth2).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRecorder registra la duración y el resultado de cada operación.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.rec = r }
}

// WithLogger asigna el logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New crea el cliente.
func New(cfg Config, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	c := &Client{cfg: cfg, log: zerolog.Nop()}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	return c
}

// BaseURL URL base configurada.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Integration etiqueta de la integración.
func (c *Client) Integration() string { return c.cfg.Integration }

// Request petición a enviar. Body tiene prioridad sobre JSON.
type Request struct {
	Operation string // nombre de la operación para métricas (customer.create, stamp...)
	Method    string
	Path      string // relativo a BaseURL o URL absoluta
	Query     url.Values
	Header    http.Header
	Body      []byte
	JSON      any
	NoRetry   bool // un solo intento: operaciones no idempotentes como el timbrado
}

// Response respuesta ya leída.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StatusError respuesta HTTP no exitosa. Unwrap la asocia al error de dominio correspondiente.
type StatusError struct {
	Integration string
	StatusCode  int
	Body        []byte
}

func (e *StatusError) Error() string {
	body := string(e.Body)
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Integration, e.StatusCode, strings.TrimSpace(body))
}

func (e *StatusError) Unwrap() error {
	return StatusSentinel(e.StatusCode)
}

// StatusSentinel traduce un código HTTP a un error de dominio.
func StatusSentinel(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return domain.ErrUnauthorized
	case code == http.StatusNotFound:
		return domain.ErrNotFound
	case code == http.StatusConflict:
		return domain.ErrConflict
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return domain.ErrInvalidInput
	default:
		return domain.ErrUpstream
	}
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func (c *Client) resolve(path string, q url.Values) (string, error) {
	raw := path
	switch {
	case path == "":
		raw = c.cfg.BaseURL
	case !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://"):
		raw = strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%s: URL inválida %q: %w", c.cfg.Integration, raw, err)
	}
	if len(q) > 0 {
		merged := u.Query()
		for k, vs := range q {
			for _, v := range vs {
				merged.Add(k, v)
			}
		}
		u.RawQuery = merged.Encode()
	}
	return u.String(), nil
}

// Do envía la petición con reintentos. Cualquier respuesta 2xx/3xx se devuelve sin error;
// las demás se devuelven junto con un *StatusError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	if c.rec != nil {
		c.rec.Record(c.cfg.Integration, req.Operation, time.Since(start), err)
	}
	return resp, err
}

func (c *Client) do(ctx context.Context, req Request) (*Response, error) {
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}
	body := req.Body
	if body == nil && req.JSON != nil {
		if body, err = json.Marshal(req.JSON); err != nil {
			return nil, fmt.Errorf("%s: serializar JSON: %w", c.cfg.Integration, err)
		}
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var last *Response
	attempt := 0
	op := func() error {
		attempt++
		var rdr io.Reader
		if body != nil {
			rdr = bytes.NewReader(body)
		}
		httpReq, err := http.NewRequestWithContext(ctx, method, target, rdr)
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, vs := range req.Header {
			for _, v := range vs {
				httpReq.Header.Add(k, v)
			}
		}
		if req.JSON != nil && req.Body == nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if httpReq.Header.Get("Accept") == "" {
			httpReq.Header.Set("Accept", "application/json")
		}
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)

		res, err := c.http.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			err = fmt.Errorf("%s: %s %s: %w", c.cfg.Integration, method, target, err)
			// El transporte OAuth2 falla antes de enviar si no puede obtener el token.
			if errors.Is(err, domain.ErrUnauthorized) {
				return backoff.Permanent(err)
			}
			return err
		}
		defer res.Body.Close()
		data, err := io.ReadAll(res.Body)
		if err != nil {
			return fmt.Errorf("%s: leer respuesta: %w", c.cfg.Integration, err)
		}
		last = &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}
		c.log.Debug().
			Str("integration", c.cfg.Integration).
			Str("operation", req.Operation).
			Str("method", method).
			Int("status", res.StatusCode).
			Int("attempt", attempt).
			Msg("http: respuesta recibida")

		if res.StatusCode < 400 {
			return nil
		}
		statusErr := &StatusError{Integration: c.cfg.Integration, StatusCode: res.StatusCode, Body: data}
		if retryable(res.StatusCode) {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialInterval
	exp.MaxInterval = c.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	retries := c.cfg.MaxRetries
	if req.NoRetry {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, retries), ctx)

	err = backoff.RetryNotify(op, policy, func(err error, wait time.Duration) {
		c.log.Warn().Err(err).
			Str("integration", c.cfg.Integration).
			Str("operation", req.Operation).
			Dur("wait", wait).
			Msg("http: reintentando")
	})
	if err != nil {
		return last, err
	}
	return last, nil
}

// DoJSON envía la petición y decodifica el cuerpo de una respuesta exitosa en out (si no es nil).
func (c *Client) DoJSON(ctx context.Context, req Request, out any) (*Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return resp, err
	}
	if out != nil && len(bytes.TrimSpace(resp.Body)) > 0 {
		if err := json.Unmarshal(resp.Body, out); err != nil {
			return resp, fmt.Errorf("%s: decodificar respuesta: %w", c.cfg.Integration, err)
		}
	}
	return resp, nil
}
