// Package logger holds the process-wide logger used by gopql and its internal packages.
package logger

import (
	"github.com/pqlclient/gopql/loginterface"
	"github.com/pqlclient/gopql/pqllog"
)

// Logger is re-exported so internal packages do not need to import loginterface.
type Logger = loginterface.Logger

// LogEntry is re-exported so internal packages do not need to import loginterface.
type LogEntry = loginterface.LogEntry

// ClientLogContextHook is re-exported so internal packages do not need to import loginterface.
type ClientLogContextHook = loginterface.ClientLogContextHook

// levelReporter is implemented by loggers that can answer level checks without string parsing.
type levelReporter interface {
	IsEnabled(level pqllog.Level) bool
}

func isEnabled(l Logger, level pqllog.Level) bool {
	if lr, ok := l.(levelReporter); ok {
		return lr.IsEnabled(level)
	}
	current, err := pqllog.ParseLevel(l.GetLogLevel())
	if err != nil {
		return true
	}
	return pqllog.Enabled(current, level)
}
