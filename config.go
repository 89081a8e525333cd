// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// KeyType selects how an API token is presented to EMS.
type KeyType string

const (
	// KeyTypeBearer is a user API token, sent as "Bearer <token>".
	KeyTypeBearer KeyType = "BEARER"
	// KeyTypeAppKey is an application key, sent as "AppKey <token>".
	KeyTypeAppKey KeyType = "APP_KEY"
	// KeyTypeUserKey is the deprecated spelling of KeyTypeBearer.
	KeyTypeUserKey KeyType = "USER_KEY"
)

// ParseKeyType parses a key type name, case-insensitive.
func ParseKeyType(s string) (KeyType, error) {
	switch KeyType(strings.ToUpper(strings.TrimSpace(s))) {
	case "", KeyTypeBearer:
		return KeyTypeBearer, nil
	case KeyTypeAppKey:
		return KeyTypeAppKey, nil
	case KeyTypeUserKey:
		logger.Warn("key type USER_KEY is deprecated, use BEARER")
		return KeyTypeUserKey, nil
	default:
		return "", newConfigurationError(ErrCodeInvalidKeyType, errMsgInvalidKeyType, s)
	}
}

func (k KeyType) authPrefix() string {
	if k == KeyTypeAppKey {
		return "AppKey"
	}
	return "Bearer"
}

const (
	defaultMaxRetries     = 3
	maxRetriesLimit       = 10
	defaultRetryDelay     = time.Second
	defaultMaxRetryDelay  = 16 * time.Second
	defaultRequestTimeout = 60 * time.Second
	defaultPollInterval   = time.Second
	defaultUserAgent      = "gopql/" + PQLGoClientVersion
)

const (
	envURL                   = "EMS_URL"
	envAPIToken              = "EMS_API_TOKEN"
	envKeyType               = "EMS_KEY_TYPE"
	envHome                  = "EMS_HOME"
	envDefaultConnectionName = "EMS_DEFAULT_CONNECTION_NAME"
	envSkipPermissionCheck   = "EMS_SKIP_FILE_PERMISSIONS_VERIFICATION"
)

// Config is the set of parameters needed to open a Session.
type Config struct {
	// BaseURL is the team URL, e.g. https://team.eu-1.example.cloud
	BaseURL string

	APIToken string
	KeyType  KeyType

	// OAuth client credentials, used when APIToken is empty.
	OAuthClientID     string
	OAuthClientSecret string
	OAuthScopes       []string
	// ClientStoreTemporaryCredential caches OAuth tokens in the OS keyring.
	ClientStoreTemporaryCredential bool

	// PoolID and DataModelID are defaults for queries and schema lookups that name none.
	PoolID      string
	DataModelID string

	MaxRetries     int
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
	RequestTimeout time.Duration
	PollInterval   time.Duration
	// RequestsPerSecond limits outgoing requests; 0 disables the limit.
	RequestsPerSecond float64

	UserAgent          string
	InsecureSkipVerify bool
	// TLSConfigName selects a config added with RegisterTLSConfig.
	TLSConfigName string
	// ClientConfigFile names a JSON file with log settings, see ClientConfig.
	ClientConfigFile string
	// Transporter replaces the HTTP round tripper, mostly for tests and proxies.
	Transporter http.RoundTripper
}

// fillMissingConfigParameters sets defaults for unset fields.
func fillMissingConfigParameters(cfg *Config) {
	if cfg.KeyType == "" {
		cfg.KeyType = KeyTypeBearer
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = defaultMaxRetryDelay
	}
	if cfg.MaxRetryDelay < cfg.RetryDelay {
		cfg.MaxRetryDelay = cfg.RetryDelay
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
}

// Validate reports the first invalid parameter. Defaults are applied first.
func (cfg *Config) Validate() error {
	fillMissingConfigParameters(cfg)
	if cfg.BaseURL == "" {
		return newConfigurationError(ErrCodeEmptyURL, errMsgEmptyURL)
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
		return newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "BaseURL", cfg.BaseURL)
	}
	if cfg.APIToken == "" && (cfg.OAuthClientID == "" || cfg.OAuthClientSecret == "") {
		return newConfigurationError(ErrCodeEmptyCredentials, errMsgEmptyCredentials)
	}
	if _, err := ParseKeyType(string(cfg.KeyType)); err != nil {
		return err
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > maxRetriesLimit {
		return newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "MaxRetries", cfg.MaxRetries)
	}
	if cfg.RetryDelay < 0 {
		return newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "RetryDelay", cfg.RetryDelay)
	}
	if cfg.RequestsPerSecond < 0 {
		return newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "RequestsPerSecond", cfg.RequestsPerSecond)
	}
	return nil
}

// ConfigFromEnv builds a Config from EMS_URL, EMS_API_TOKEN and EMS_KEY_TYPE.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		BaseURL:  os.Getenv(envURL),
		APIToken: os.Getenv(envAPIToken),
	}
	if kt := os.Getenv(envKeyType); kt != "" {
		keyType, err := ParseKeyType(kt)
		if err != nil {
			return nil, err
		}
		cfg.KeyType = keyType
	}
	return cfg, nil
}

// applyEnvOverrides replaces file values with non-empty environment values.
func applyEnvOverrides(cfg *Config) error {
	env, err := ConfigFromEnv()
	if err != nil {
		return err
	}
	if env.BaseURL != "" {
		cfg.BaseURL = env.BaseURL
	}
	if env.APIToken != "" {
		cfg.APIToken = env.APIToken
	}
	if env.KeyType != "" {
		cfg.KeyType = env.KeyType
	}
	return nil
}
