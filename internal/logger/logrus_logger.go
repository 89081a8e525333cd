package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pqlclient/gopql/pqllog"
	"github.com/sirupsen/logrus"
)

// rawLogger is the default logrus backed logger. It does no masking on its own.
type rawLogger struct {
	mu    sync.RWMutex
	inner *logrus.Logger
	level pqllog.Level
}

var _ Logger = (*rawLogger)(nil)

func newRawLogger() *rawLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	raw := &rawLogger{inner: l}
	raw.applyLevel(pqllog.LevelInfo)
	return raw
}

func toLogrusLevel(level pqllog.Level) logrus.Level {
	switch level {
	case pqllog.LevelTrace:
		return logrus.TraceLevel
	case pqllog.LevelDebug:
		return logrus.DebugLevel
	case pqllog.LevelWarn:
		return logrus.WarnLevel
	case pqllog.LevelError:
		return logrus.ErrorLevel
	case pqllog.LevelFatal:
		return logrus.FatalLevel
	case pqllog.LevelOff:
		// nothing in gopql logs at panic level, so this silences output
		return logrus.PanicLevel
	default:
		return logrus.InfoLevel
	}
}

func (log *rawLogger) applyLevel(level pqllog.Level) {
	log.mu.Lock()
	defer log.mu.Unlock()
	log.level = level
	log.inner.SetLevel(toLogrusLevel(level))
}

// IsEnabled reports whether a message at level would be written.
func (log *rawLogger) IsEnabled(level pqllog.Level) bool {
	log.mu.RLock()
	defer log.mu.RUnlock()
	return pqllog.Enabled(log.level, level)
}

func (log *rawLogger) SetLogLevel(level string) error {
	parsed, err := pqllog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("error while setting log level. %v", err)
	}
	log.applyLevel(parsed)
	return nil
}

func (log *rawLogger) GetLogLevel() string {
	log.mu.RLock()
	defer log.mu.RUnlock()
	s, err := pqllog.LevelToString(log.level)
	if err != nil {
		return "INFO"
	}
	return s
}

func (log *rawLogger) SetOutput(output io.Writer) {
	log.inner.SetOutput(output)
}

func (log *rawLogger) entry() *logrusEntry {
	return &logrusEntry{inner: logrus.NewEntry(log.inner)}
}

func (log *rawLogger) WithField(key string, value interface{}) LogEntry {
	return &logrusEntry{inner: log.inner.WithField(key, value)}
}

func (log *rawLogger) WithFields(fields map[string]any) LogEntry {
	return &logrusEntry{inner: log.inner.WithFields(logrus.Fields(fields))}
}

func (log *rawLogger) WithContext(ctx context.Context) LogEntry {
	e := log.inner.WithContext(ctx)
	if fields := extractContextFields(ctx); len(fields) > 0 {
		e = e.WithFields(fields)
	}
	return &logrusEntry{inner: e}
}

func (log *rawLogger) Tracef(format string, args ...interface{}) { log.entry().Tracef(format, args...) }
func (log *rawLogger) Debugf(format string, args ...interface{}) { log.entry().Debugf(format, args...) }
func (log *rawLogger) Infof(format string, args ...interface{})  { log.entry().Infof(format, args...) }
func (log *rawLogger) Warnf(format string, args ...interface{})  { log.entry().Warnf(format, args...) }
func (log *rawLogger) Errorf(format string, args ...interface{}) { log.entry().Errorf(format, args...) }
func (log *rawLogger) Fatalf(format string, args ...interface{}) { log.entry().Fatalf(format, args...) }

func (log *rawLogger) Trace(msg string) { log.entry().Trace(msg) }
func (log *rawLogger) Debug(msg string) { log.entry().Debug(msg) }
func (log *rawLogger) Info(msg string)  { log.entry().Info(msg) }
func (log *rawLogger) Warn(msg string)  { log.entry().Warn(msg) }
func (log *rawLogger) Error(msg string) { log.entry().Error(msg) }
func (log *rawLogger) Fatal(msg string) { log.entry().Fatal(msg) }

// logrusEntry narrows *logrus.Entry to LogEntry; logrus takes variadic args for the unformatted calls.
type logrusEntry struct {
	inner *logrus.Entry
}

var _ LogEntry = (*logrusEntry)(nil)

func (e *logrusEntry) Tracef(format string, args ...interface{}) { e.inner.Tracef(format, args...) }
func (e *logrusEntry) Debugf(format string, args ...interface{}) { e.inner.Debugf(format, args...) }
func (e *logrusEntry) Infof(format string, args ...interface{})  { e.inner.Infof(format, args...) }
func (e *logrusEntry) Warnf(format string, args ...interface{})  { e.inner.Warnf(format, args...) }
func (e *logrusEntry) Errorf(format string, args ...interface{}) { e.inner.Errorf(format, args...) }
func (e *logrusEntry) Fatalf(format string, args ...interface{}) { e.inner.Fatalf(format, args...) }

func (e *logrusEntry) Trace(msg string) { e.inner.Trace(msg) }
func (e *logrusEntry) Debug(msg string) { e.inner.Debug(msg) }
func (e *logrusEntry) Info(msg string)  { e.inner.Info(msg) }
func (e *logrusEntry) Warn(msg string)  { e.inner.Warn(msg) }
func (e *logrusEntry) Error(msg string) { e.inner.Error(msg) }
func (e *logrusEntry) Fatal(msg string) { e.inner.Fatal(msg) }
