package gopql

import (
	"testing"
	"time"
)

func TestValidateAppliesDefaults(t *testing.T) {
	cfg := &Config{BaseURL: " https://team.example.cloud/ ", APIToken: "tok"}
	assertNilF(t, cfg.Validate())
	assertEqualE(t, cfg.BaseURL, "https://team.example.cloud")
	assertEqualE(t, cfg.KeyType, KeyTypeBearer)
	assertEqualE(t, cfg.MaxRetries, defaultMaxRetries)
	assertEqualE(t, cfg.RetryDelay, defaultRetryDelay)
	assertEqualE(t, cfg.MaxRetryDelay, defaultMaxRetryDelay)
	assertEqualE(t, cfg.RequestTimeout, defaultRequestTimeout)
	assertEqualE(t, cfg.PollInterval, defaultPollInterval)
	assertEqualE(t, cfg.UserAgent, defaultUserAgent)
}

func TestValidateMaxRetryDelayNotBelowRetryDelay(t *testing.T) {
	cfg := &Config{BaseURL: "https://team.example.cloud", APIToken: "tok", RetryDelay: time.Minute, MaxRetryDelay: time.Second}
	assertNilF(t, cfg.Validate())
	assertEqualE(t, cfg.MaxRetryDelay, time.Minute)
}

func TestValidateErrors(t *testing.T) {
	testcases := []struct {
		name   string
		cfg    Config
		number int
	}{
		{name: "empty url", cfg: Config{APIToken: "t"}, number: ErrCodeEmptyURL},
		{name: "no scheme", cfg: Config{BaseURL: "team.example.cloud", APIToken: "t"}, number: ErrCodeInvalidConfigValue},
		{name: "bad scheme", cfg: Config{BaseURL: "ftp://team.example.cloud", APIToken: "t"}, number: ErrCodeInvalidConfigValue},
		{name: "no credentials", cfg: Config{BaseURL: "https://team.example.cloud"}, number: ErrCodeEmptyCredentials},
		{name: "half oauth", cfg: Config{BaseURL: "https://team.example.cloud", OAuthClientID: "id"}, number: ErrCodeEmptyCredentials},
		{name: "key type", cfg: Config{BaseURL: "https://team.example.cloud", APIToken: "t", KeyType: "PASSWORD"}, number: ErrCodeInvalidKeyType},
		{name: "negative retries", cfg: Config{BaseURL: "https://team.example.cloud", APIToken: "t", MaxRetries: -1}, number: ErrCodeInvalidConfigValue},
		{name: "too many retries", cfg: Config{BaseURL: "https://team.example.cloud", APIToken: "t", MaxRetries: maxRetriesLimit + 1}, number: ErrCodeInvalidConfigValue},
		{name: "negative delay", cfg: Config{BaseURL: "https://team.example.cloud", APIToken: "t", RetryDelay: -time.Second}, number: ErrCodeInvalidConfigValue},
		{name: "negative rate", cfg: Config{BaseURL: "https://team.example.cloud", APIToken: "t", RequestsPerSecond: -1}, number: ErrCodeInvalidConfigValue},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			assertErrIsE(t, err, ErrConfiguration)
			assertErrIsE(t, err, &QueryError{Number: tc.number})
		})
	}
}

func TestValidateOAuth(t *testing.T) {
	cfg := &Config{BaseURL: "http://localhost:8080", OAuthClientID: "id", OAuthClientSecret: "secret"}
	assertNilE(t, cfg.Validate())
}

func TestParseKeyType(t *testing.T) {
	testcases := []struct {
		in  string
		out KeyType
	}{
		{in: "", out: KeyTypeBearer},
		{in: "bearer", out: KeyTypeBearer},
		{in: " APP_KEY ", out: KeyTypeAppKey},
		{in: "user_key", out: KeyTypeUserKey},
	}
	for _, tc := range testcases {
		kt, err := ParseKeyType(tc.in)
		assertNilE(t, err)
		assertEqualE(t, kt, tc.out)
	}
	_, err := ParseKeyType("basic")
	assertErrIsE(t, err, &QueryError{Number: ErrCodeInvalidKeyType})

	assertEqualE(t, KeyTypeAppKey.authPrefix(), "AppKey")
	assertEqualE(t, KeyTypeBearer.authPrefix(), "Bearer")
	assertEqualE(t, KeyTypeUserKey.authPrefix(), "Bearer")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv(envURL, "https://env.example.cloud")
	t.Setenv(envAPIToken, "env-token")
	t.Setenv(envKeyType, "app_key")
	cfg, err := ConfigFromEnv()
	assertNilF(t, err)
	assertEqualE(t, cfg.BaseURL, "https://env.example.cloud")
	assertEqualE(t, cfg.APIToken, "env-token")
	assertEqualE(t, cfg.KeyType, KeyTypeAppKey)

	t.Setenv(envKeyType, "nope")
	_, err = ConfigFromEnv()
	assertErrIsE(t, err, &QueryError{Number: ErrCodeInvalidKeyType})
}

func TestNewSessionDoesNotModifyConfig(t *testing.T) {
	cfg := &Config{BaseURL: "https://team.example.cloud/", APIToken: "tok"}
	s, err := NewSession(cfg)
	assertNilF(t, err)
	defer s.Close()
	assertEqualE(t, cfg.BaseURL, "https://team.example.cloud/")
	assertEqualE(t, cfg.MaxRetries, 0)
	got := s.Config()
	assertEqualE(t, got.BaseURL, "https://team.example.cloud")
	assertEqualE(t, got.MaxRetries, defaultMaxRetries)
	assertNotEqualE(t, s.ID(), "")

	_, err = NewSession(nil)
	assertErrIsE(t, err, &QueryError{Number: ErrCodeEmptyURL})
	_, err = NewSession(&Config{BaseURL: "https://team.example.cloud"})
	assertErrIsE(t, err, &QueryError{Number: ErrCodeEmptyCredentials})
}
