package gopql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

func signedJWT(t *testing.T, exp time.Time) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user@example.com",
		"exp": exp.Unix(),
	}).SignedString([]byte("not-verified"))
	assertNilF(t, err)
	return token
}

func TestStaticTokenAuth(t *testing.T) {
	a, err := newStaticTokenAuth("  opaque-token ", KeyTypeBearer, time.Now)
	assertNilF(t, err)
	header, err := a.authorizationHeader(context.Background())
	assertNilF(t, err)
	assertEqualE(t, header, "Bearer opaque-token")

	a, err = newStaticTokenAuth("app-key", KeyTypeAppKey, time.Now)
	assertNilF(t, err)
	header, _ = a.authorizationHeader(context.Background())
	assertEqualE(t, header, "AppKey app-key")

	a, err = newStaticTokenAuth("user-key", KeyTypeUserKey, time.Now)
	assertNilF(t, err)
	header, _ = a.authorizationHeader(context.Background())
	assertEqualE(t, header, "Bearer user-key")

	_, err = newStaticTokenAuth(" ", KeyTypeBearer, time.Now)
	assertErrIsE(t, err, &QueryError{Number: ErrCodeEmptyCredentials})
}

func TestStaticTokenAuthExpiredJWT(t *testing.T) {
	_, err := newStaticTokenAuth(signedJWT(t, time.Now().Add(-time.Hour)), KeyTypeBearer, time.Now)
	assertErrIsE(t, err, ErrConfiguration)
	assertErrIsE(t, err, &QueryError{Number: ErrCodeExpiredToken})
}

func TestStaticTokenAuthExpiresLater(t *testing.T) {
	now := time.Now()
	exp := now.Add(time.Hour)
	clock := now
	a, err := newStaticTokenAuth(signedJWT(t, exp), KeyTypeBearer, func() time.Time { return clock })
	assertNilF(t, err)
	_, err = a.authorizationHeader(context.Background())
	assertNilE(t, err)

	clock = exp.Add(time.Second)
	_, err = a.authorizationHeader(context.Background())
	assertErrIsE(t, err, &QueryError{Number: ErrCodeExpiredToken})
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := tokenExpiry(signedJWT(t, exp))
	assertTrueF(t, ok)
	assertTrueE(t, got.Equal(exp))

	_, ok = tokenExpiry("opaque")
	assertFalseE(t, ok)
	_, ok = tokenExpiry("a.b.c")
	assertFalseE(t, ok)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"}).SignedString([]byte("k"))
	assertNilF(t, err)
	_, ok = tokenExpiry(noExp)
	assertFalseE(t, ok)
}

// oauthServer issues numbered access tokens.
type oauthServer struct {
	requests  atomic.Int32
	expiresIn int
	status    int
	delay     time.Duration
	forms     chan map[string]string
}

func (o *oauthServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := o.requests.Add(1)
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	if err := r.ParseForm(); err == nil && o.forms != nil {
		select {
		case o.forms <- map[string]string{
			"grant_type":    r.PostForm.Get("grant_type"),
			"client_id":     r.PostForm.Get("client_id"),
			"client_secret": r.PostForm.Get("client_secret"),
			"scope":         r.PostForm.Get("scope"),
		}:
		default:
		}
	}
	if o.status != 0 {
		w.Header().Set(headerContentType, headerContentTypeApplicationJSON)
		w.WriteHeader(o.status)
		_, _ = w.Write([]byte(`{"error":"invalid_client"}`))
		return
	}
	w.Header().Set(headerContentType, headerContentTypeApplicationJSON)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": fmt.Sprintf("tok-%d", n),
		"token_type":   "Bearer",
		"expires_in":   o.expiresIn,
	})
}

func newOAuthTestAuth(t *testing.T, o *oauthServer, storage secureStorageManager) *oauthAuth {
	mux := http.NewServeMux()
	mux.Handle(oauthTokenPath, o)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	cfg := &Config{BaseURL: srv.URL, OAuthClientID: "client", OAuthClientSecret: "secret", OAuthScopes: []string{"studio", "integration.data-pools"}}
	return newOAuthAuth(cfg, srv.Client(), storage)
}

func TestOAuthClientCredentials(t *testing.T) {
	o := &oauthServer{expiresIn: 3600, forms: make(chan map[string]string, 1)}
	a := newOAuthTestAuth(t, o, newNoopSecureStorageManager())

	header, err := a.authorizationHeader(context.Background())
	assertNilF(t, err)
	assertEqualE(t, header, "Bearer tok-1")
	header, err = a.authorizationHeader(context.Background())
	assertNilF(t, err)
	assertEqualE(t, header, "Bearer tok-1", "a valid token is reused")
	assertEqualE(t, o.requests.Load(), int32(1))

	form := <-o.forms
	assertEqualE(t, form["grant_type"], "client_credentials")
	assertEqualE(t, form["client_id"], "client")
	assertEqualE(t, form["client_secret"], "secret")
	assertEqualE(t, form["scope"], "studio integration.data-pools")
}

func TestOAuthRefreshBeforeExpiry(t *testing.T) {
	o := &oauthServer{expiresIn: 30}
	a := newOAuthTestAuth(t, o, newNoopSecureStorageManager())
	first, err := a.authorizationHeader(context.Background())
	assertNilF(t, err)
	second, err := a.authorizationHeader(context.Background())
	assertNilF(t, err)
	assertNotEqualE(t, first, second, "tokens inside the refresh margin are renewed")
	assertEqualE(t, o.requests.Load(), int32(2))
}

func TestOAuthConcurrentRefreshIsShared(t *testing.T) {
	o := &oauthServer{expiresIn: 3600, delay: 50 * time.Millisecond}
	a := newOAuthTestAuth(t, o, newNoopSecureStorageManager())
	var wg sync.WaitGroup
	headers := make([]string, 10)
	for i := range headers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := a.authorizationHeader(context.Background())
			assertNilE(t, err)
			headers[i] = h
		}(i)
	}
	wg.Wait()
	assertEqualE(t, o.requests.Load(), int32(1))
	for _, h := range headers {
		assertEqualE(t, h, "Bearer tok-1")
	}
}

func TestOAuthInvalidate(t *testing.T) {
	o := &oauthServer{expiresIn: 3600}
	storage, err := newFileBasedSecureStorageManager(t.TempDir())
	assertNilF(t, err)
	a := newOAuthTestAuth(t, o, storage)
	_, err = a.authorizationHeader(context.Background())
	assertNilF(t, err)
	assertNotEqualE(t, storage.getCredential(a.spec), "")

	a.invalidate()
	assertEqualE(t, storage.getCredential(a.spec), "", "cached token is dropped")
	header, err := a.authorizationHeader(context.Background())
	assertNilF(t, err)
	assertEqualE(t, header, "Bearer tok-2")
}

func TestOAuthCachedToken(t *testing.T) {
	storage, err := newFileBasedSecureStorageManager(t.TempDir())
	assertNilF(t, err)
	o := &oauthServer{expiresIn: 3600}
	mux := http.NewServeMux()
	mux.Handle(oauthTokenPath, o)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	cfg := &Config{BaseURL: srv.URL, OAuthClientID: "client", OAuthClientSecret: "secret"}

	data, err := json.Marshal(&oauth2.Token{AccessToken: "cached", TokenType: "Bearer", Expiry: time.Now().Add(time.Hour)})
	assertNilF(t, err)
	storage.setCredential(newOAuthTokenSpec(cfg.BaseURL, cfg.OAuthClientID), string(data))

	a := newOAuthAuth(cfg, srv.Client(), storage)
	header, err := a.authorizationHeader(context.Background())
	assertNilF(t, err)
	assertEqualE(t, header, "Bearer cached")
	assertEqualE(t, o.requests.Load(), int32(0))
}

func TestOAuthTokenRejected(t *testing.T) {
	o := &oauthServer{status: http.StatusUnauthorized}
	a := newOAuthTestAuth(t, o, newNoopSecureStorageManager())
	_, err := a.authorizationHeader(context.Background())
	assertErrIsE(t, err, ErrRemoteQuery)
	var qe *QueryError
	assertErrorsAsF(t, err, &qe)
	assertEqualE(t, qe.Number, ErrCodePermissionDenied)
	assertEqualE(t, qe.StatusCode, http.StatusUnauthorized)
	assertStringContainsE(t, qe.Payload, "invalid_client")
}

func TestOAuthSessionRetriesRejectedToken(t *testing.T) {
	o := &oauthServer{expiresIn: 3600}
	var apiCalls atomic.Int32
	mux := http.NewServeMux()
	mux.Handle(oauthTokenPath, o)
	mux.HandleFunc("GET /integration/api/pools/{pool}/data-models", func(w http.ResponseWriter, r *http.Request) {
		apiCalls.Add(1)
		if r.Header.Get(headerAuthorization) != "Bearer tok-2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, []DataModel{{ID: "dm"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, err := NewSession(&Config{
		BaseURL:           srv.URL,
		OAuthClientID:     "client",
		OAuthClientSecret: "secret",
		PoolID:            "pool",
		RetryDelay:        time.Millisecond,
	})
	assertNilF(t, err)
	defer s.Close()
	models, err := s.DataModels(context.Background(), "")
	assertNilF(t, err)
	assertEqualE(t, len(models), 1)
	assertEqualE(t, apiCalls.Load(), int32(2))
	assertEqualE(t, o.requests.Load(), int32(2))
}

func TestStaticTokenSessionDoesNotRetryUnauthorized(t *testing.T) {
	var apiCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /integration/api/pools/{pool}/data-models", func(w http.ResponseWriter, _ *http.Request) {
		apiCalls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, err := NewSession(newTestConfig(srv.URL))
	assertNilF(t, err)
	defer s.Close()
	_, err = s.DataModels(context.Background(), "")
	assertErrIsE(t, err, &QueryError{Number: ErrCodePermissionDenied})
	assertEqualE(t, apiCalls.Load(), int32(1))
}
