// Package config provides configuration management for the certificate
// login server.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/vyrodovalexey/certlogin/internal/auth"
)

// Default configuration values.
const (
	DefaultServerPort            = 8080
	DefaultLogLevel              = "info"
	DefaultShutdownTimeout       = 30 * time.Second
	DefaultMetricsEnabled        = true
	DefaultSiteURL               = "http://localhost:8080"
	DefaultTLSClientAuth         = ClientAuthRequest
	DefaultClientCertSource      = CertSourceTLS
	DefaultClientCertCNHeader    = "X-SSL-Client-S-DN-CN"
	DefaultClientCertDNHeader    = "X-SSL-Client-S-DN"
	DefaultAllowPasswordFallback = true
	DefaultAutoCreateUser        = true
	DefaultLoginURI              = "%base%/login"
	DefaultLogoutURI             = "%site%"
	DefaultAuthLabel             = "X.509 client certificate"
	DefaultStoreBackend          = StoreMemory
	DefaultRedisPrefix           = "certlogin:"
)

// TLS client authentication modes.
const (
	ClientAuthNone    = "none"
	ClientAuthRequest = "request"
	ClientAuthRequire = "require"
)

// Client certificate sources.
const (
	CertSourceTLS    = "tls"
	CertSourceHeader = "header"
)

// Account store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// envPrefix is shared by every environment variable below.
const envPrefix = "APP"

// Environment variable names.
const (
	EnvConfigFile            = "APP_CONFIG_FILE"
	EnvServerPort            = "APP_SERVER_PORT"
	EnvLogLevel              = "APP_LOG_LEVEL"
	EnvShutdownTimeout       = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled        = "APP_METRICS_ENABLED"
	EnvSiteURL               = "APP_SITE_URL"
	EnvTLSEnabled            = "APP_TLS_ENABLED"
	EnvTLSCertPath           = "APP_TLS_CERT_PATH"
	EnvTLSKeyPath            = "APP_TLS_KEY_PATH"
	EnvTLSCAPath             = "APP_TLS_CA_PATH"
	EnvTLSClientAuth         = "APP_TLS_CLIENT_AUTH"
	EnvClientCertSource      = "APP_CLIENT_CERT_SOURCE"
	EnvClientCertCNHeader    = "APP_CLIENT_CERT_CN_HEADER"
	EnvClientCertDNHeader    = "APP_CLIENT_CERT_DN_HEADER"
	EnvAllowPasswordFallback = "APP_ALLOW_PASSWORD_FALLBACK" //nolint:gosec // env var name, not a credential
	EnvAutoCreateUser        = "APP_AUTO_CREATE_USER"
	EnvLoginURI              = "APP_LOGIN_URI"
	EnvLogoutURI             = "APP_LOGOUT_URI"
	EnvAuthLabel             = "APP_AUTH_LABEL"
	EnvStoreBackend          = "APP_STORE_BACKEND"
	EnvRedisAddr             = "APP_REDIS_ADDR"
	EnvRedisPassword         = "APP_REDIS_PASSWORD" //nolint:gosec // env var name, not a credential
	EnvRedisDB               = "APP_REDIS_DB"
	EnvRedisPrefix           = "APP_REDIS_PREFIX"
	EnvPostgresDSN           = "APP_POSTGRES_DSN"
	EnvAccountCacheTTL       = "APP_ACCOUNT_CACHE_TTL"
	EnvSeedAccounts          = "APP_SEED_ACCOUNTS"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool
	SiteURL         string

	// TLS settings.
	TLSEnabled    bool
	TLSCertPath   string
	TLSKeyPath    string
	TLSCAPath     string
	TLSClientAuth string

	// Client certificate subject source: tls or header.
	ClientCertSource   string
	ClientCertCNHeader string
	ClientCertDNHeader string

	// Authentication policy.
	AllowPasswordFallback bool
	AutoCreateUser        bool
	LoginURI              string
	LogoutURI             string
	AuthLabel             string

	// Account store settings.
	StoreBackend    string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisPrefix     string
	PostgresDSN     string
	AccountCacheTTL time.Duration

	// Accounts created at startup (format: "login1:bcrypt_hash,login2:bcrypt_hash").
	SeedAccounts string
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidSiteURL         = errors.New("site URL must be an absolute http or https URL")
	ErrInvalidTLSClientAuth   = errors.New(
		"TLS client auth must be one of: none, request, require",
	)
	ErrInvalidTLSCertRequired = errors.New(
		"TLS cert path and key path must be set when TLS is enabled",
	)
	ErrInvalidTLSCARequired = errors.New(
		"TLS CA path must be set when TLS client auth is request or require",
	)
	ErrInvalidCertSource = errors.New("client cert source must be one of: tls, header")
	ErrInvalidHeaderName = errors.New(
		"client cert header names must be set when the cert source is header",
	)
	ErrInvalidStoreBackend = errors.New("store backend must be one of: memory, redis, postgres")
	ErrInvalidRedisConfig  = errors.New("redis address must be set when the store backend is redis")
	ErrInvalidPostgresDSN  = errors.New("postgres DSN must be set when the store backend is postgres")
	ErrInvalidRedisDB      = errors.New("redis database must not be negative")
	ErrInvalidCacheTTL     = errors.New("account cache TTL must not be negative")
)

// Load reads configuration from defaults, an optional YAML file named by
// APP_CONFIG_FILE and environment variables, in increasing priority.
func Load() (*Config, error) {
	v := newViper()

	if path := os.Getenv(EnvConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := cfg.loadFrom(v); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// key returns the viper key for an environment variable name, which is
// also the key used in the config file.
func key(env string) string {
	return strings.ToLower(strings.TrimPrefix(env, envPrefix+"_"))
}

// newViper creates a viper instance with defaults and environment binding.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AllowEmptyEnv(false)
	v.AutomaticEnv()

	defaults := map[string]any{
		EnvServerPort:            DefaultServerPort,
		EnvLogLevel:              DefaultLogLevel,
		EnvShutdownTimeout:       DefaultShutdownTimeout,
		EnvMetricsEnabled:        DefaultMetricsEnabled,
		EnvSiteURL:               DefaultSiteURL,
		EnvTLSEnabled:            false,
		EnvTLSCertPath:           "",
		EnvTLSKeyPath:            "",
		EnvTLSCAPath:             "",
		EnvTLSClientAuth:         DefaultTLSClientAuth,
		EnvClientCertSource:      DefaultClientCertSource,
		EnvClientCertCNHeader:    DefaultClientCertCNHeader,
		EnvClientCertDNHeader:    DefaultClientCertDNHeader,
		EnvAllowPasswordFallback: DefaultAllowPasswordFallback,
		EnvAutoCreateUser:        DefaultAutoCreateUser,
		EnvLoginURI:              DefaultLoginURI,
		EnvLogoutURI:             DefaultLogoutURI,
		EnvAuthLabel:             DefaultAuthLabel,
		EnvStoreBackend:          DefaultStoreBackend,
		EnvRedisAddr:             "",
		EnvRedisPassword:         "",
		EnvRedisDB:               0,
		EnvRedisPrefix:           DefaultRedisPrefix,
		EnvPostgresDSN:           "",
		EnvAccountCacheTTL:       time.Duration(0),
		EnvSeedAccounts:          "",
	}
	for env, value := range defaults {
		v.SetDefault(key(env), value)
	}

	return v
}

// loadFrom copies the resolved settings into c.
func (c *Config) loadFrom(v *viper.Viper) error {
	if err := c.loadServer(v); err != nil {
		return err
	}

	if err := c.loadTLS(v); err != nil {
		return err
	}

	if err := c.loadAuth(v); err != nil {
		return err
	}

	return c.loadStore(v)
}

// loadServer loads server-related settings.
func (c *Config) loadServer(v *viper.Viper) error {
	var err error

	if c.ServerPort, err = getInt(v, EnvServerPort); err != nil {
		return err
	}
	if c.ShutdownTimeout, err = getDuration(v, EnvShutdownTimeout); err != nil {
		return err
	}
	if c.MetricsEnabled, err = getBool(v, EnvMetricsEnabled); err != nil {
		return err
	}

	c.LogLevel = v.GetString(key(EnvLogLevel))
	c.SiteURL = v.GetString(key(EnvSiteURL))

	return nil
}

// loadTLS loads TLS and client certificate settings.
func (c *Config) loadTLS(v *viper.Viper) error {
	var err error

	if c.TLSEnabled, err = getBool(v, EnvTLSEnabled); err != nil {
		return err
	}

	c.TLSCertPath = v.GetString(key(EnvTLSCertPath))
	c.TLSKeyPath = v.GetString(key(EnvTLSKeyPath))
	c.TLSCAPath = v.GetString(key(EnvTLSCAPath))
	c.TLSClientAuth = v.GetString(key(EnvTLSClientAuth))
	c.ClientCertSource = v.GetString(key(EnvClientCertSource))
	c.ClientCertCNHeader = v.GetString(key(EnvClientCertCNHeader))
	c.ClientCertDNHeader = v.GetString(key(EnvClientCertDNHeader))

	return nil
}

// loadAuth loads the authentication policy.
func (c *Config) loadAuth(v *viper.Viper) error {
	var err error

	if c.AllowPasswordFallback, err = getBool(v, EnvAllowPasswordFallback); err != nil {
		return err
	}
	if c.AutoCreateUser, err = getBool(v, EnvAutoCreateUser); err != nil {
		return err
	}

	c.LoginURI = v.GetString(key(EnvLoginURI))
	c.LogoutURI = v.GetString(key(EnvLogoutURI))
	c.AuthLabel = v.GetString(key(EnvAuthLabel))

	return nil
}

// loadStore loads account store settings.
func (c *Config) loadStore(v *viper.Viper) error {
	var err error

	if c.RedisDB, err = getInt(v, EnvRedisDB); err != nil {
		return err
	}
	if c.AccountCacheTTL, err = getDuration(v, EnvAccountCacheTTL); err != nil {
		return err
	}

	c.StoreBackend = v.GetString(key(EnvStoreBackend))
	c.RedisAddr = v.GetString(key(EnvRedisAddr))
	c.RedisPassword = v.GetString(key(EnvRedisPassword))
	c.RedisPrefix = v.GetString(key(EnvRedisPrefix))
	c.PostgresDSN = v.GetString(key(EnvPostgresDSN))
	c.SeedAccounts = v.GetString(key(EnvSeedAccounts))

	return nil
}

func getInt(v *viper.Viper, env string) (int, error) {
	n, err := cast.ToIntE(v.Get(key(env)))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", env, err)
	}
	return n, nil
}

func getBool(v *viper.Viper, env string) (bool, error) {
	b, err := cast.ToBoolE(v.Get(key(env)))
	if err != nil {
		return false, fmt.Errorf("parsing %s: %w", env, err)
	}
	return b, nil
}

func getDuration(v *viper.Viper, env string) (time.Duration, error) {
	d, err := cast.ToDurationE(v.Get(key(env)))
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", env, err)
	}
	return d, nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateTLS(); err != nil {
		return err
	}

	if err := c.validateCertSource(); err != nil {
		return err
	}

	return c.validateStore()
}

// validateServer validates server-related configuration.
func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	u, err := url.Parse(c.SiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidSiteURL
	}

	return nil
}

// tlsClientAuthOrDefault returns the TLS client auth, defaulting to request if empty.
func (c *Config) tlsClientAuthOrDefault() string {
	if c.TLSClientAuth == "" {
		return DefaultTLSClientAuth
	}
	return c.TLSClientAuth
}

// validateTLS validates TLS-related configuration.
func (c *Config) validateTLS() error {
	clientAuth := c.tlsClientAuthOrDefault()

	validClientAuth := map[string]bool{
		ClientAuthNone:    true,
		ClientAuthRequest: true,
		ClientAuthRequire: true,
	}
	if !validClientAuth[clientAuth] {
		return ErrInvalidTLSClientAuth
	}

	if !c.TLSEnabled {
		return nil
	}

	if c.TLSCertPath == "" || c.TLSKeyPath == "" {
		return ErrInvalidTLSCertRequired
	}

	if clientAuth != ClientAuthNone && c.TLSCAPath == "" {
		return ErrInvalidTLSCARequired
	}

	return nil
}

// validateCertSource validates where certificate subjects come from.
func (c *Config) validateCertSource() error {
	switch c.ClientCertSource {
	case CertSourceTLS:
		return nil
	case CertSourceHeader:
		if c.ClientCertCNHeader == "" || c.ClientCertDNHeader == "" {
			return ErrInvalidHeaderName
		}
		return nil
	default:
		return ErrInvalidCertSource
	}
}

// validateStore validates the account store configuration.
func (c *Config) validateStore() error {
	if c.AccountCacheTTL < 0 {
		return ErrInvalidCacheTTL
	}

	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if c.RedisAddr == "" {
			return ErrInvalidRedisConfig
		}
		if c.RedisDB < 0 {
			return ErrInvalidRedisDB
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return ErrInvalidPostgresDSN
		}
	default:
		return ErrInvalidStoreBackend
	}

	return nil
}

// CertificateLoginAvailable reports whether client certificate subjects can
// reach the server at all. With the tls source that needs TLS enabled and a
// client auth mode other than none; a proxy header source always can.
func (c *Config) CertificateLoginAvailable() bool {
	if c.ClientCertSource == CertSourceHeader {
		return true
	}
	return c.TLSEnabled && c.tlsClientAuthOrDefault() != ClientAuthNone
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// AuthPolicy returns the authentication policy part of the configuration.
func (c *Config) AuthPolicy() auth.Config {
	return auth.Config{
		AllowPasswordFallback: c.AllowPasswordFallback,
		AutoCreateUser:        c.AutoCreateUser,
		LoginURITemplate:      c.LoginURI,
		LogoutURITemplate:     c.LogoutURI,
		AuthLabel:             c.AuthLabel,
	}
}

// AuthConfig implements auth.ConfigSource. The policy is fixed for the
// lifetime of the process.
func (c *Config) AuthConfig(_ context.Context) (auth.Config, error) {
	return c.AuthPolicy(), nil
}
