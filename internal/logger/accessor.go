package logger

import (
	"errors"
	"sync"
)

var (
	loggerAccessorMu sync.Mutex
	// globalLogger always carries the secret masking layer.
	globalLogger Logger
)

// GetLogger returns the global logger for use by internal packages
func GetLogger() Logger {
	loggerAccessorMu.Lock()
	defer loggerAccessorMu.Unlock()

	return globalLogger
}

// SetLogger installs providedLogger as the global logger, wrapped with secret masking.
// A logger that is already wrapped is unwrapped first so masking is never applied twice.
// A Proxy is rejected because it would delegate back to itself.
func SetLogger(providedLogger Logger) error {
	if providedLogger == nil {
		return errors.New("logger cannot be nil")
	}
	if _, isProxy := providedLogger.(*Proxy); isProxy {
		return errors.New("cannot set Proxy as raw logger - it would create infinite recursion")
	}

	raw := providedLogger
	if masking, ok := raw.(*secretMaskingLogger); ok {
		raw = masking.inner
	}

	loggerAccessorMu.Lock()
	defer loggerAccessorMu.Unlock()
	globalLogger = newSecretMaskingLogger(raw)
	return nil
}

func init() {
	globalLogger = newSecretMaskingLogger(newRawLogger())
}

// CreateDefaultLogger creates a new logrus backed logger with secret masking applied.
func CreateDefaultLogger() Logger {
	return newSecretMaskingLogger(newRawLogger())
}
