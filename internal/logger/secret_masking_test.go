package logger

import (
	"context"
	"io"
	"testing"
)

type mockLogger struct {
	level       string
	lastMessage string
	fields      map[string]any
}

func (m *mockLogger) Tracef(format string, args ...interface{}) {}
func (m *mockLogger) Debugf(format string, args ...interface{}) {}
func (m *mockLogger) Infof(format string, args ...interface{}) {
	if format != "%s" {
		panic("masking logger must pre-format messages")
	}
	m.lastMessage = args[0].(string)
}
func (m *mockLogger) Warnf(format string, args ...interface{})  {}
func (m *mockLogger) Errorf(format string, args ...interface{}) {}
func (m *mockLogger) Fatalf(format string, args ...interface{}) {}

func (m *mockLogger) Trace(msg string) {}
func (m *mockLogger) Debug(msg string) { m.lastMessage = msg }
func (m *mockLogger) Info(msg string)  { m.lastMessage = msg }
func (m *mockLogger) Warn(msg string)  {}
func (m *mockLogger) Error(msg string) {}
func (m *mockLogger) Fatal(msg string) {}

func (m *mockLogger) WithField(key string, value interface{}) LogEntry {
	m.fields = map[string]any{key: value}
	return m
}
func (m *mockLogger) WithFields(fields map[string]any) LogEntry { m.fields = fields; return m }
func (m *mockLogger) WithContext(ctx context.Context) LogEntry  { return m }
func (m *mockLogger) SetLogLevel(level string) error            { m.level = level; return nil }
func (m *mockLogger) GetLogLevel() string                       { return m.level }
func (m *mockLogger) SetOutput(output io.Writer)                {}

var _ Logger = (*mockLogger)(nil)

func TestSecretMaskingLogger(t *testing.T) {
	mock := &mockLogger{level: "INFO"}
	l := newSecretMaskingLogger(mock)

	l.Infof("test message with %s", "password:secret123")
	if mock.lastMessage != "test message with password:****" {
		t.Errorf("unexpected message: %s", mock.lastMessage)
	}

	l.WithFields(map[string]any{"header": "Bearer abcdefghijk", "rows": 3}).Info("sent")
	if mock.fields["header"] == "Bearer abcdefghijk" {
		t.Errorf("field value not masked: %v", mock.fields["header"])
	}
	if mock.fields["rows"] != 3 {
		t.Errorf("non secret field changed: %v", mock.fields["rows"])
	}
}

func TestSecretMaskingLoggerSkipsDisabledLevels(t *testing.T) {
	mock := &mockLogger{level: "INFO"}
	l := newSecretMaskingLogger(mock)

	l.Debug("should not pass")
	if mock.lastMessage != "" {
		t.Errorf("debug reached inner logger: %s", mock.lastMessage)
	}
	_ = l.SetLogLevel("DEBUG")
	l.Debug("should pass")
	if mock.lastMessage != "should pass" {
		t.Errorf("debug did not reach inner logger: %s", mock.lastMessage)
	}
}
