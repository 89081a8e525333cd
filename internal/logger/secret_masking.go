package logger

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/pqlclient/gopql/pqllog"
)

// secretMaskingLogger wraps any logger implementation and ensures all
// messages have secrets masked before being passed to the inner logger.
// Disabled levels are dropped before formatting.
type secretMaskingLogger struct {
	inner Logger
}

var _ Logger = (*secretMaskingLogger)(nil)

func newSecretMaskingLogger(inner Logger) *secretMaskingLogger {
	return &secretMaskingLogger{inner: inner}
}

var sensitiveFieldRegexp = regexp.MustCompile(`(?i)(password|secret|token|authorization|api[_-]?key|app[_-]?key)`)

// maskField hides the whole value of fields whose name marks them as credentials.
func maskField(key string, value interface{}) interface{} {
	if sensitiveFieldRegexp.MatchString(key) {
		return "****"
	}
	return maskValue(value)
}

func maskValue(value interface{}) interface{} {
	if str, ok := value.(string); ok {
		return MaskSecrets(str)
	}
	strVal := fmt.Sprint(value)
	if masked := MaskSecrets(strVal); masked != strVal {
		return masked
	}
	return value
}

func (l *secretMaskingLogger) logf(level pqllog.Level, emit func(string, ...interface{}), format string, args []interface{}) {
	if !isEnabled(l.inner, level) {
		return
	}
	emit("%s", MaskSecrets(fmt.Sprintf(format, args...)))
}

func (l *secretMaskingLogger) log(level pqllog.Level, emit func(string), msg string) {
	if !isEnabled(l.inner, level) {
		return
	}
	emit(MaskSecrets(msg))
}

func (l *secretMaskingLogger) Tracef(format string, args ...interface{}) {
	l.logf(pqllog.LevelTrace, l.inner.Tracef, format, args)
}

func (l *secretMaskingLogger) Debugf(format string, args ...interface{}) {
	l.logf(pqllog.LevelDebug, l.inner.Debugf, format, args)
}

func (l *secretMaskingLogger) Infof(format string, args ...interface{}) {
	l.logf(pqllog.LevelInfo, l.inner.Infof, format, args)
}

func (l *secretMaskingLogger) Warnf(format string, args ...interface{}) {
	l.logf(pqllog.LevelWarn, l.inner.Warnf, format, args)
}

func (l *secretMaskingLogger) Errorf(format string, args ...interface{}) {
	l.logf(pqllog.LevelError, l.inner.Errorf, format, args)
}

// Fatalf always reaches the inner logger so that it can terminate the process.
func (l *secretMaskingLogger) Fatalf(format string, args ...interface{}) {
	l.inner.Fatalf("%s", MaskSecrets(fmt.Sprintf(format, args...)))
}

func (l *secretMaskingLogger) Trace(msg string) { l.log(pqllog.LevelTrace, l.inner.Trace, msg) }
func (l *secretMaskingLogger) Debug(msg string) { l.log(pqllog.LevelDebug, l.inner.Debug, msg) }
func (l *secretMaskingLogger) Info(msg string)  { l.log(pqllog.LevelInfo, l.inner.Info, msg) }
func (l *secretMaskingLogger) Warn(msg string)  { l.log(pqllog.LevelWarn, l.inner.Warn, msg) }
func (l *secretMaskingLogger) Error(msg string) { l.log(pqllog.LevelError, l.inner.Error, msg) }
func (l *secretMaskingLogger) Fatal(msg string) { l.inner.Fatal(MaskSecrets(msg)) }

func (l *secretMaskingLogger) WithField(key string, value interface{}) LogEntry {
	return &secretMaskingEntry{inner: l.inner.WithField(key, maskField(key, value)), parent: l}
}

func (l *secretMaskingLogger) WithFields(fields map[string]any) LogEntry {
	masked := make(map[string]any, len(fields))
	for k, v := range fields {
		masked[k] = maskField(k, v)
	}
	return &secretMaskingEntry{inner: l.inner.WithFields(masked), parent: l}
}

func (l *secretMaskingLogger) WithContext(ctx context.Context) LogEntry {
	return &secretMaskingEntry{inner: l.inner.WithContext(ctx), parent: l}
}

func (l *secretMaskingLogger) SetLogLevel(level string) error {
	return l.inner.SetLogLevel(level)
}

func (l *secretMaskingLogger) GetLogLevel() string {
	return l.inner.GetLogLevel()
}

func (l *secretMaskingLogger) SetOutput(output io.Writer) {
	l.inner.SetOutput(output)
}

// secretMaskingEntry wraps a log entry and masks all secrets.
type secretMaskingEntry struct {
	inner  LogEntry
	parent *secretMaskingLogger
}

var _ LogEntry = (*secretMaskingEntry)(nil)

func (e *secretMaskingEntry) enabled(level pqllog.Level) bool {
	return isEnabled(e.parent.inner, level)
}

func (e *secretMaskingEntry) Tracef(format string, args ...interface{}) {
	if e.enabled(pqllog.LevelTrace) {
		e.inner.Tracef("%s", MaskSecrets(fmt.Sprintf(format, args...)))
	}
}

func (e *secretMaskingEntry) Debugf(format string, args ...interface{}) {
	if e.enabled(pqllog.LevelDebug) {
		e.inner.Debugf("%s", MaskSecrets(fmt.Sprintf(format, args...)))
	}
}

func (e *secretMaskingEntry) Infof(format string, args ...interface{}) {
	if e.enabled(pqllog.LevelInfo) {
		e.inner.Infof("%s", MaskSecrets(fmt.Sprintf(format, args...)))
	}
}

func (e *secretMaskingEntry) Warnf(format string, args ...interface{}) {
	if e.enabled(pqllog.LevelWarn) {
		e.inner.Warnf("%s", MaskSecrets(fmt.Sprintf(format, args...)))
	}
}

func (e *secretMaskingEntry) Errorf(format string, args ...interface{}) {
	if e.enabled(pqllog.LevelError) {
		e.inner.Errorf("%s", MaskSecrets(fmt.Sprintf(format, args...)))
	}
}

func (e *secretMaskingEntry) Fatalf(format string, args ...interface{}) {
	e.inner.Fatalf("%s", MaskSecrets(fmt.Sprintf(format, args...)))
}

func (e *secretMaskingEntry) Trace(msg string) {
	if e.enabled(pqllog.LevelTrace) {
		e.inner.Trace(MaskSecrets(msg))
	}
}

func (e *secretMaskingEntry) Debug(msg string) {
	if e.enabled(pqllog.LevelDebug) {
		e.inner.Debug(MaskSecrets(msg))
	}
}

func (e *secretMaskingEntry) Info(msg string) {
	if e.enabled(pqllog.LevelInfo) {
		e.inner.Info(MaskSecrets(msg))
	}
}

func (e *secretMaskingEntry) Warn(msg string) {
	if e.enabled(pqllog.LevelWarn) {
		e.inner.Warn(MaskSecrets(msg))
	}
}

func (e *secretMaskingEntry) Error(msg string) {
	if e.enabled(pqllog.LevelError) {
		e.inner.Error(MaskSecrets(msg))
	}
}

func (e *secretMaskingEntry) Fatal(msg string) {
	e.inner.Fatal(MaskSecrets(msg))
}
