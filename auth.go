// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
)

const (
	oauthTokenPath     = "/oidc/oauth2/token"
	tokenRefreshMargin = 60 * time.Second
)

// authenticator produces the value of the authorization header.
type authenticator interface {
	authorizationHeader(ctx context.Context) (string, error)
	// invalidate drops a cached credential after the server rejected it.
	invalidate()
}

func newAuthenticator(cfg *Config, client *http.Client) (authenticator, error) {
	if cfg.APIToken != "" {
		return newStaticTokenAuth(cfg.APIToken, cfg.KeyType, time.Now)
	}
	storage := secureStorageManager(newNoopSecureStorageManager())
	if cfg.ClientStoreTemporaryCredential {
		storage = newSecureStorageManager()
	}
	return newOAuthAuth(cfg, client, storage), nil
}

type staticTokenAuth struct {
	header string
	expiry time.Time
	now    func() time.Time
}

// newStaticTokenAuth fails fast when the token is a JWT whose exp claim has passed.
func newStaticTokenAuth(token string, keyType KeyType, now func() time.Time) (*staticTokenAuth, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, newConfigurationError(ErrCodeEmptyCredentials, errMsgEmptyCredentials)
	}
	a := &staticTokenAuth{
		header: keyType.authPrefix() + " " + token,
		now:    now,
	}
	if exp, ok := tokenExpiry(token); ok {
		a.expiry = exp
		if err := a.checkExpiry(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *staticTokenAuth) checkExpiry() error {
	if !a.expiry.IsZero() && !a.now().Before(a.expiry) {
		return newConfigurationError(ErrCodeExpiredToken, errMsgExpiredToken, a.expiry.UTC().Format(time.RFC3339))
	}
	return nil
}

func (a *staticTokenAuth) authorizationHeader(context.Context) (string, error) {
	if err := a.checkExpiry(); err != nil {
		return "", err
	}
	return a.header, nil
}

func (a *staticTokenAuth) invalidate() {}

// tokenExpiry returns the exp claim of a JWT without verifying its signature.
// Opaque tokens report false.
func tokenExpiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		logger.Debugf("API token is not a JWT: %v", err)
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// oauthAuth fetches client credentials tokens and refreshes them shortly
// before they expire. Concurrent refreshes share one token request.
type oauthAuth struct {
	cfg     *clientcredentials.Config
	client  *http.Client
	storage secureStorageManager
	spec    *secureTokenSpec
	now     func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	token *oauth2.Token
}

func newOAuthAuth(cfg *Config, client *http.Client, storage secureStorageManager) *oauthAuth {
	a := &oauthAuth{
		cfg:     buildClientCredentialsConfig(cfg),
		client:  client,
		storage: storage,
		spec:    newOAuthTokenSpec(cfg.BaseURL, cfg.OAuthClientID),
		now:     time.Now,
	}
	if cached := storage.getCredential(a.spec); cached != "" {
		var tok oauth2.Token
		if err := json.Unmarshal([]byte(cached), &tok); err != nil {
			logger.Debugf("ignoring unreadable cached OAuth token: %v", err)
		} else {
			a.token = &tok
		}
	}
	return a
}

func buildClientCredentialsConfig(cfg *Config) *clientcredentials.Config {
	return &clientcredentials.Config{
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		TokenURL:     cfg.BaseURL + oauthTokenPath,
		Scopes:       cfg.OAuthScopes,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
}

func (a *oauthAuth) valid(tok *oauth2.Token) bool {
	if tok == nil || tok.AccessToken == "" {
		return false
	}
	return tok.Expiry.IsZero() || a.now().Add(tokenRefreshMargin).Before(tok.Expiry)
}

func (a *oauthAuth) cached() *oauth2.Token {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.valid(a.token) {
		return a.token
	}
	return nil
}

func (a *oauthAuth) authorizationHeader(ctx context.Context) (string, error) {
	if tok := a.cached(); tok != nil {
		return "Bearer " + tok.AccessToken, nil
	}
	v, err, shared := a.group.Do("token", func() (interface{}, error) {
		if tok := a.cached(); tok != nil {
			return tok, nil
		}
		return a.fetch(ctx)
	})
	if err != nil {
		return "", err
	}
	if shared {
		logger.WithContext(ctx).Debug("shared OAuth token refresh")
	}
	return "Bearer " + v.(*oauth2.Token).AccessToken, nil
}

func (a *oauthAuth) fetch(ctx context.Context) (*oauth2.Token, error) {
	logger.WithContext(ctx).Debugf("requesting OAuth token from %v", a.cfg.TokenURL)
	tok, err := a.cfg.Token(context.WithValue(ctx, oauth2.HTTPClient, a.client))
	if err != nil {
		return nil, a.tokenError(err)
	}
	a.mu.Lock()
	a.token = tok
	a.mu.Unlock()
	if data, err := json.Marshal(tok); err == nil {
		a.storage.setCredential(a.spec, string(data))
	}
	return tok, nil
}

func (a *oauthAuth) tokenError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		qe := NewRemoteQueryError(re.Response.StatusCode, string(re.Body))
		if re.Response.StatusCode == http.StatusUnauthorized || re.Response.StatusCode == http.StatusForbidden {
			qe.Number = ErrCodePermissionDenied
			qe.Message = errMsgPermissionDenied
			qe.MessageArgs = []interface{}{a.cfg.TokenURL}
		}
		return qe
	}
	return normalizeError(fmt.Errorf("OAuth token request failed: %w", err))
}

func (a *oauthAuth) invalidate() {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
	a.storage.deleteCredential(a.spec)
}
