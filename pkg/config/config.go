package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración de la aplicación (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App        AppConfig
	HTTP       HTTPConfig
	CFDI       CFDIConfig
	SAT        SATConfig
	QuickBooks QuickBooksConfig
	NetSuite   NetSuiteConfig
	Redis      RedisConfig
	Monitoring MonitoringConfig
	Telemetry  TelemetryConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// HTTPConfig configuración del servidor HTTP operativo (health y métricas).
type HTTPConfig struct {
	Host     string
	Port     int
	OpsToken string // Bearer para /api/monitoring; vacío = sin autenticación
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CFDIConfig configuración de facturación electrónica CFDI 4.0 (México).
type CFDIConfig struct {
	PACProvider     string // mock, sw, finkok
	PACEnvironment  string // test, prod
	PACUser         string
	PACPassword     string
	PACURL          string // opcional: sobreescribe la URL base del proveedor
	CertPath        string // .cer (DER/PEM) o .pfx
	KeyPath         string // .key (PKCS#8 cifrado) si CertPath es .cer
	KeyPassword     string // contraseña de la llave privada o del .pfx
	LugarExpedicion string // código postal por defecto
	Serie           string // serie por defecto
	RegimenFiscal   string // régimen fiscal del emisor
}

// SATConfig configuración del servicio de consulta de estado del SAT.
type SATConfig struct {
	ConsultaURL string
	Timeout     time.Duration
}

// QuickBooksConfig credenciales OAuth2 de QuickBooks Online.
type QuickBooksConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	RealmID      string
	RefreshToken string // token inicial; luego se rota en el token cache
	Environment  string // sandbox, production
	BaseURL      string // opcional: sobreescribe la URL de la API
	MinorVersion int
	// Cuentas contables por defecto para dar de alta productos.
	IncomeAccountID  string
	ExpenseAccountID string
	AssetAccountID   string
}

// NetSuiteConfig credenciales OAuth2 M2M de NetSuite.
type NetSuiteConfig struct {
	AccountID      string // ej. 1234567_SB1
	ClientID       string
	CertificateID  string // kid del JWT
	PrivateKeyPath string // PEM RSA
	Scopes         []string
	BaseURL        string // opcional: sobreescribe https://{account}.suitetalk.api.netsuite.com
}

// RedisConfig conexión del token cache compartido. Host vacío = cache en memoria.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr devuelve host:port.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MonitoringConfig parámetros de health checks, métricas y retención.
type MonitoringConfig struct {
	CheckInterval     time.Duration
	FailureThreshold  int
	RecoveryThreshold int
	LatencyThreshold  time.Duration
	MetricsWindow     time.Duration
	RetentionMaxAge   time.Duration
	RetentionMaxItems int
	RetentionInterval time.Duration
}

// TelemetryConfig exportación OTLP de métricas.
type TelemetryConfig struct {
	Enabled        bool
	Endpoint       string // host:port del colector
	Insecure       bool
	ExportInterval time.Duration
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, CFDI_PAC_PROVIDER, QBO_CLIENT_ID, etc.
func Load() (*Config, error) {
	v := viper.New()

	// Opcional: archivo de configuración (.env o config.env)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "integraciones-api"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		HTTP: HTTPConfig{
			Host:     getString(v, "HTTP_HOST", "0.0.0.0"),
			Port:     getInt(v, "HTTP_PORT", 8080),
			OpsToken: getString(v, "HTTP_OPS_TOKEN", ""),
		},
		CFDI: CFDIConfig{
			PACProvider:     getString(v, "CFDI_PAC_PROVIDER", "mock"),
			PACEnvironment:  getString(v, "CFDI_PAC_ENV", "test"),
			PACUser:         getString(v, "CFDI_PAC_USER", ""),
			PACPassword:     getString(v, "CFDI_PAC_PASSWORD", ""),
			PACURL:          getString(v, "CFDI_PAC_URL", ""),
			CertPath:        getString(v, "CFDI_CERT_PATH", ""),
			KeyPath:         getString(v, "CFDI_KEY_PATH", ""),
			KeyPassword:     getString(v, "CFDI_KEY_PASSWORD", ""),
			LugarExpedicion: getString(v, "CFDI_LUGAR_EXPEDICION", ""),
			Serie:           getString(v, "CFDI_SERIE", "A"),
			RegimenFiscal:   getString(v, "CFDI_REGIMEN_FISCAL", "601"),
		},
		SAT: SATConfig{
			ConsultaURL: getString(v, "SAT_CONSULTA_URL", "https://consultaqr.facturaelectronica.sat.gob.mx/ConsultaCFDIService.svc"),
			Timeout:     getDuration(v, "SAT_TIMEOUT", 30*time.Second),
		},
		QuickBooks: QuickBooksConfig{
			ClientID:     getString(v, "QBO_CLIENT_ID", ""),
			ClientSecret: getString(v, "QBO_CLIENT_SECRET", ""),
			RedirectURL:  getString(v, "QBO_REDIRECT_URL", ""),
			RealmID:      getString(v, "QBO_REALM_ID", ""),
			RefreshToken: getString(v, "QBO_REFRESH_TOKEN", ""),
			Environment:  getString(v, "QBO_ENV", "sandbox"),
			BaseURL:      getString(v, "QBO_BASE_URL", ""),
			MinorVersion: getInt(v, "QBO_MINOR_VERSION", 75),

			IncomeAccountID:  getString(v, "QBO_INCOME_ACCOUNT_ID", ""),
			ExpenseAccountID: getString(v, "QBO_EXPENSE_ACCOUNT_ID", ""),
			AssetAccountID:   getString(v, "QBO_ASSET_ACCOUNT_ID", ""),
		},
		NetSuite: NetSuiteConfig{
			AccountID:      getString(v, "NETSUITE_ACCOUNT_ID", ""),
			ClientID:       getString(v, "NETSUITE_CLIENT_ID", ""),
			CertificateID:  getString(v, "NETSUITE_CERTIFICATE_ID", ""),
			PrivateKeyPath: getString(v, "NETSUITE_PRIVATE_KEY_PATH", ""),
			Scopes:         strings.Fields(strings.ReplaceAll(getString(v, "NETSUITE_SCOPES", "rest_webservices"), ",", " ")),
			BaseURL:        getString(v, "NETSUITE_BASE_URL", ""),
		},
		Redis: RedisConfig{
			Host:     getString(v, "REDIS_HOST", ""),
			Port:     getInt(v, "REDIS_PORT", 6379),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
		},
		Monitoring: MonitoringConfig{
			CheckInterval:     getDuration(v, "MONITORING_CHECK_INTERVAL", time.Minute),
			FailureThreshold:  getInt(v, "MONITORING_FAILURE_THRESHOLD", 3),
			RecoveryThreshold: getInt(v, "MONITORING_RECOVERY_THRESHOLD", 2),
			LatencyThreshold:  getDuration(v, "MONITORING_LATENCY_THRESHOLD", 5*time.Second),
			MetricsWindow:     getDuration(v, "MONITORING_METRICS_WINDOW", time.Hour),
			RetentionMaxAge:   getDuration(v, "MONITORING_RETENTION_MAX_AGE", 7*24*time.Hour),
			RetentionMaxItems: getInt(v, "MONITORING_RETENTION_MAX_ITEMS", 10000),
			RetentionInterval: getDuration(v, "MONITORING_RETENTION_INTERVAL", time.Hour),
		},
		Telemetry: TelemetryConfig{
			Enabled:        getBool(v, "OTEL_METRICS_ENABLED", false),
			Endpoint:       getString(v, "OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:       getBool(v, "OTEL_EXPORTER_OTLP_INSECURE", true),
			ExportInterval: getDuration(v, "OTEL_METRIC_EXPORT_INTERVAL", 60*time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CFDI.PACProvider {
	case "mock", "sw", "finkok":
	default:
		return fmt.Errorf("config: CFDI_PAC_PROVIDER desconocido %q (usar mock|sw|finkok)", c.CFDI.PACProvider)
	}
	if c.CFDI.PACProvider != "mock" && (c.CFDI.PACUser == "" || c.CFDI.PACPassword == "") {
		return fmt.Errorf("config: CFDI_PAC_USER y CFDI_PAC_PASSWORD son obligatorios para %s", c.CFDI.PACProvider)
	}
	if c.Monitoring.FailureThreshold < 1 || c.Monitoring.RecoveryThreshold < 1 {
		return fmt.Errorf("config: los umbrales de monitoreo deben ser >= 1")
	}
	return nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(v.GetString(key))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}

// getDuration acepta "30s", "5m" o un entero en segundos.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
