// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/pqlclient/gopql/pqllog"
)

const (
	clientConfigFileName = "ems_client_config.json"
	envClientConfigFile  = "EMS_CLIENT_CONFIG_FILE"
	clientLogFileName    = "gopql.log"
)

// ClientConfig is the content of a client config file:
//
//	{"common": {"log_level": "DEBUG", "log_path": "/var/log/pql"}}
type ClientConfig struct {
	Common *ClientConfigCommonProps `json:"common"`
}

// ClientConfigCommonProps is the "common" section of a client config file.
type ClientConfigCommonProps struct {
	LogLevel string `json:"log_level"`
	LogPath  string `json:"log_path"`
}

// clientLogging remembers the first client config file applied. Later
// sessions naming another file do not reconfigure the process wide logger.
type clientLogging struct {
	mu        sync.Mutex
	tried     bool
	fileInput string
	file      *os.File
}

var clientLoggingState clientLogging

func (c *clientLogging) allowed(fileInput string) bool {
	if !c.tried || (c.fileInput == "" && fileInput != "") {
		return true
	}
	if c.fileInput != fileInput {
		logger.Warnf("client logging is not configured for %v because it was configured from %v", fileInput, c.fileInput)
	}
	return false
}

func (c *clientLogging) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file != nil {
		_ = c.file.Close()
	}
	c.tried, c.fileInput, c.file = false, "", nil
}

// initClientLogging applies the log level and path of the client config file
// named by fileInput, EMS_CLIENT_CONFIG_FILE or found in the working, home or
// temp directory. A missing file is not an error.
func initClientLogging(fileInput string) error {
	c := &clientLoggingState
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.allowed(fileInput) {
		return nil
	}
	config, err := findClientConfig(fileInput)
	if err != nil {
		return clientConfigError(err)
	}
	c.tried, c.fileInput = true, fileInput
	if config == nil {
		return nil
	}
	level, err := pqllog.ParseLevel(config.Common.LogLevel)
	if config.Common.LogLevel == "" {
		logger.Warn("log_level not found in client config, logging is switched off")
		level, err = pqllog.LevelOff, nil
	}
	if err != nil {
		return clientConfigError(err)
	}
	logDir, err := clientLogDir(config.Common.LogPath)
	if err != nil {
		return clientConfigError(err)
	}
	levelName, err := pqllog.LevelToString(level)
	if err != nil {
		return clientConfigError(err)
	}
	if err = logger.SetLogLevel(levelName); err != nil {
		return clientConfigError(err)
	}
	output, file, err := createLogWriter(logDir)
	if err != nil {
		return clientConfigError(err)
	}
	logger.SetOutput(output)
	if c.file != nil {
		_ = c.file.Close()
	}
	c.file = file
	return nil
}

func clientConfigError(err error) error {
	qe := newConfigurationError(ErrCodeClientConfigFailed, errMsgClientConfigFailed, err.Error())
	qe.Err = err
	return qe
}

func createLogWriter(logDir string) (io.Writer, *os.File, error) {
	if logDir == "STDOUT" {
		return os.Stdout, nil, nil
	}
	file, err := os.OpenFile(path.Join(logDir, clientLogFileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return io.MultiWriter(file, os.Stderr), file, nil
}

// clientLogDir returns logPath/go, created when missing. An empty logPath
// means the temp directory; "STDOUT" logs to standard output only.
func clientLogDir(logPath string) (string, error) {
	if logPath == "STDOUT" || logPath == "stdout" {
		return "STDOUT", nil
	}
	if logPath == "" {
		logPath = os.TempDir()
		logger.Warnf("log_path not found in client config, using %v", logPath)
	}
	dir := path.Join(logPath, "go")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

func findClientConfig(fileInput string) (*ClientConfig, error) {
	filePath := fileInput
	if filePath == "" {
		filePath = os.Getenv(envClientConfigFile)
	}
	if filePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		for _, dir := range []string{".", homeDir, os.TempDir()} {
			candidate := path.Join(dir, clientConfigFileName)
			if _, err = os.Stat(candidate); err == nil {
				filePath = candidate
				break
			} else if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}
	if filePath == "" {
		return nil, nil
	}
	return parseClientConfig(filePath)
}

func parseClientConfig(filePath string) (*ClientConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("parsing client config failed: %w", err)
	}
	var config ClientConfig
	if err = json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing client config failed: %w", err)
	}
	if config.Common == nil {
		return nil, errors.New("common section in client config not found")
	}
	if config.Common.LogLevel != "" {
		if _, err = pqllog.ParseLevel(config.Common.LogLevel); err != nil {
			return nil, err
		}
	}
	return &config, nil
}
