// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// Pagination selects one page of a result.
type Pagination struct {
	// PageToken is empty for the first page and otherwise the NextPageToken of the previous page.
	PageToken string
	// PageSize is a hint for the number of rows per page; 0 leaves it to the transport.
	PageSize int
}

// Page is one response from a Transport.
type Page struct {
	Columns []Column
	Rows    [][]any
	// NextPageToken is empty on the last page.
	NextPageToken string
}

// Transport sends a compiled query to the engine and returns one page of the
// result. Retrying transient failures is the transport's job; the Executor
// never retries. Implementations must be safe for concurrent use.
//
// A Transport reports non-success responses with NewRemoteQueryError and
// exceeded deadlines with NewTimeoutError.
type Transport interface {
	Send(ctx context.Context, q CompiledQuery, p Pagination) (*Page, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, q CompiledQuery, p Pagination) (*Page, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, q CompiledQuery, p Pagination) (*Page, error) {
	return f(ctx, q, p)
}

// transportConfig holds the configuration for creating HTTP transports
type transportConfig struct {
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	DialTimeout     time.Duration
	KeepAlive       time.Duration
}

func defaultTransportConfig() *transportConfig {
	return &transportConfig{
		MaxIdleConns:    10,
		IdleConnTimeout: 30 * time.Minute,
		DialTimeout:     30 * time.Second,
		KeepAlive:       30 * time.Second,
	}
}

// createRoundTripper returns cfg.Transporter when set, otherwise a proxy aware
// http.Transport using the registered TLS config and honouring
// cfg.InsecureSkipVerify.
func createRoundTripper(cfg *Config) (http.RoundTripper, error) {
	if cfg.Transporter != nil {
		return cfg.Transporter, nil
	}
	tc := defaultTransportConfig()
	dialer := &net.Dialer{
		Timeout:   tc.DialTimeout,
		KeepAlive: tc.KeepAlive,
	}
	var tlsConfig *tls.Config
	if cfg.TLSConfigName != "" {
		var ok bool
		if tlsConfig, ok = getTLSConfigClone(cfg.TLSConfigName); !ok {
			return nil, newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, "TLSConfigName", cfg.TLSConfigName)
		}
	}
	if cfg.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled")
		if tlsConfig == nil {
			tlsConfig = &tls.Config{}
		}
		tlsConfig.InsecureSkipVerify = true //nolint:gosec
	}
	return &http.Transport{
		TLSClientConfig: tlsConfig,
		MaxIdleConns:    tc.MaxIdleConns,
		IdleConnTimeout: tc.IdleConnTimeout,
		Proxy:           http.ProxyFromEnvironment,
		DialContext:     dialer.DialContext,
	}, nil
}
