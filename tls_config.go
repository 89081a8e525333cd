// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"crypto/tls"
	"errors"
	"sync"
)

var (
	tlsConfigLock     sync.RWMutex
	tlsConfigRegistry = make(map[string]*tls.Config)
)

// RegisterTLSConfig registers a custom tls.Config, e.g. with a corporate root
// CA, under key. Sessions use it when Config.TLSConfigName or the
// connection file's tls_config_name is key.
//
//	rootCertPool := x509.NewCertPool()
//	pem, err := os.ReadFile("/path/ca-cert.pem")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rootCertPool.AppendCertsFromPEM(pem)
//	gopql.RegisterTLSConfig("corp", &tls.Config{RootCAs: rootCertPool})
//
// The registry keeps config; do not modify it afterwards.
func RegisterTLSConfig(key string, config *tls.Config) error {
	if config == nil {
		return errors.New("config is nil")
	}
	tlsConfigLock.Lock()
	tlsConfigRegistry[key] = config
	tlsConfigLock.Unlock()
	return nil
}

// DeregisterTLSConfig removes the tls.Config associated with key.
func DeregisterTLSConfig(key string) {
	tlsConfigLock.Lock()
	delete(tlsConfigRegistry, key)
	tlsConfigLock.Unlock()
}

// getTLSConfigClone returns a copy of a registered config so sessions never
// modify the caller's value.
func getTLSConfigClone(key string) (*tls.Config, bool) {
	tlsConfigLock.RLock()
	tlsConfig, ok := tlsConfigRegistry[key]
	tlsConfigLock.RUnlock()
	if !ok {
		return nil, false
	}
	return tlsConfig.Clone(), true
}
