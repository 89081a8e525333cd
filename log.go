// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"context"

	loggerinternal "github.com/pqlclient/gopql/internal/logger"
	"github.com/pqlclient/gopql/loginterface"
)

type contextKey string

// PQLSessionIDKey is context key of the session id
const PQLSessionIDKey contextKey = "LOG_SESSION_ID"

// PQLDataModelIDKey is context key of the data model a query runs against
const PQLDataModelIDKey contextKey = "LOG_DATA_MODEL_ID"

// PQLExecutionIDKey is context key of a single Execute, Stream or IterChunks call
const PQLExecutionIDKey contextKey = "LOG_EXECUTION_ID"

func init() {
	SetLogKeys(PQLSessionIDKey, PQLDataModelIDKey, PQLExecutionIDKey)
	_ = logger.SetLogLevel("error")
}

type (
	// ClientLogContextHook is a client-defined hook that can be used to insert log
	// fields based on the Context.
	ClientLogContextHook = loginterface.ClientLogContextHook

	// LogEntry allows for logging using a snapshot of field values.
	LogEntry = loginterface.LogEntry

	// Logger is the gopql logger interface.
	Logger = loginterface.Logger
)

// SetLogKeys sets the context keys to be written to logs when logger.WithContext is used.
func SetLogKeys(keys ...contextKey) {
	ikeys := make([]interface{}, len(keys))
	for i, k := range keys {
		ikeys[i] = k
	}
	loggerinternal.SetLogKeys(ikeys)
}

// GetLogKeys returns the currently configured context keys.
func GetLogKeys() []contextKey {
	ikeys := loggerinternal.GetLogKeys()
	keys := make([]contextKey, 0, len(ikeys))
	for _, k := range ikeys {
		if ck, ok := k.(contextKey); ok {
			keys = append(keys, ck)
		}
	}
	return keys
}

// RegisterLogContextHook registers a hook that can be used to extract fields
// from the Context and associated with log messages using the provided key.
func RegisterLogContextHook(contextKey string, ctxExtractor ClientLogContextHook) {
	loggerinternal.RegisterLogContextHook(contextKey, ctxExtractor)
}

// logger delegates to the internal global logger.
var logger Logger = loggerinternal.NewProxy()

// SetLogger replaces the gopql logger. Secret masking is applied on top of it.
func SetLogger(inLogger Logger) error {
	return loggerinternal.SetLogger(inLogger)
}

// GetLogger returns the gopql logger.
func GetLogger() Logger {
	return logger
}

// CreateDefaultLogger creates a new logrus backed logger with secret masking.
// It does not change the global logger.
func CreateDefaultLogger() Logger {
	return loggerinternal.CreateDefaultLogger()
}

func withLogValue(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func maskSecrets(text string) string {
	return loggerinternal.MaskSecrets(text)
}
