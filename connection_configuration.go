// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"errors"
	"fmt"
	"os"
	path "path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var connectionFileNames = []string{"connections.toml", "connections.yaml", "connections.yml"}

// LoadConnectionConfig returns the connection named by
// EMS_DEFAULT_CONNECTION_NAME (default "default") from connections.toml, or
// connections.yaml, in EMS_HOME (default ~/.ems). EMS_URL, EMS_API_TOKEN and
// EMS_KEY_TYPE override values from the file.
func LoadConnectionConfig() (*Config, error) {
	return LoadNamedConnectionConfig(getConnectionName(os.Getenv(envDefaultConnectionName)))
}

// LoadNamedConnectionConfig is LoadConnectionConfig for an explicit connection name.
func LoadNamedConnectionConfig(name string) (*Config, error) {
	dir, err := getConfigDir(os.Getenv(envHome))
	if err != nil {
		return nil, err
	}
	filePath, err := findConnectionFile(dir)
	if err != nil {
		return nil, err
	}
	cfg, err := loadConnectionFile(filePath, getConnectionName(name))
	if err != nil {
		return nil, err
	}
	if err = applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConnectionConfigDir returns EMS_HOME, or ~/.ems when it is unset.
func ConnectionConfigDir() (string, error) {
	return getConfigDir(os.Getenv(envHome))
}

// WriteConnectionConfig stores cfg as connection name in connections.toml
// below ConnectionConfigDir, keeping the other connections of the file. The
// file is written with mode 0600. It returns the file path.
func WriteConnectionConfig(name string, cfg *Config) (string, error) {
	dir, err := ConnectionConfigDir()
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return "", wrapConfigFileError(dir, err)
	}
	filePath := path.Join(dir, connectionFileNames[0])
	connections := make(map[string]interface{})
	if _, err = os.Stat(filePath); err == nil {
		if err = validateFilePermission(filePath); err != nil {
			return "", err
		}
		if _, err = toml.DecodeFile(filePath, &connections); err != nil {
			return "", wrapConfigFileError(filePath, err)
		}
	}
	connections[getConnectionName(name)] = connectionSection(cfg)

	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", wrapConfigFileError(filePath, err)
	}
	if err = toml.NewEncoder(f).Encode(connections); err != nil {
		_ = f.Close()
		return "", wrapConfigFileError(filePath, err)
	}
	if err = f.Close(); err != nil {
		return "", wrapConfigFileError(filePath, err)
	}
	// an existing file keeps its mode on truncate
	if err = os.Chmod(filePath, 0o600); err != nil {
		return "", wrapConfigFileError(filePath, err)
	}
	return filePath, nil
}

// connectionSection is the inverse of parseConnection for the persisted keys.
func connectionSection(cfg *Config) map[string]interface{} {
	section := map[string]interface{}{"url": cfg.BaseURL}
	set := func(key, value string) {
		if value != "" {
			section[key] = value
		}
	}
	set("api_token", cfg.APIToken)
	set("key_type", string(cfg.KeyType))
	set("oauth_client_id", cfg.OAuthClientID)
	set("oauth_client_secret", cfg.OAuthClientSecret)
	set("pool_id", cfg.PoolID)
	set("data_model_id", cfg.DataModelID)
	if len(cfg.OAuthScopes) > 0 {
		section["oauth_scopes"] = cfg.OAuthScopes
	}
	return section
}

func findConnectionFile(dir string) (string, error) {
	for _, name := range connectionFileNames {
		p := path.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", newConfigurationError(ErrCodeNoConnectionFile, errMsgNoConnectionFile,
		strings.Join(connectionFileNames, " or "), dir)
}

// loadConnectionFile decodes a TOML or YAML connection file and returns the named section.
func loadConnectionFile(filePath, name string) (*Config, error) {
	if err := validateFilePermission(filePath); err != nil {
		return nil, err
	}
	connections := make(map[string]interface{})
	switch strings.ToLower(path.Ext(filePath)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, wrapConfigFileError(filePath, err)
		}
		if err = yaml.Unmarshal(data, &connections); err != nil {
			return nil, wrapConfigFileError(filePath, err)
		}
	default:
		if _, err := toml.DecodeFile(filePath, &connections); err != nil {
			return nil, wrapConfigFileError(filePath, err)
		}
	}
	section, ok := connections[name]
	if !ok {
		return nil, newConfigurationError(ErrCodeConnectionNotFound, errMsgConnectionNotFound, name)
	}
	connection, ok := section.(map[string]interface{})
	if !ok {
		return nil, newConfigurationError(ErrCodeInvalidConfigFile, errMsgInvalidConfigFile,
			fmt.Sprintf("%s: connection %s is not a table", filePath, name))
	}
	cfg := &Config{}
	if err := parseConnection(cfg, connection); err != nil {
		return nil, err
	}
	return cfg, nil
}

func wrapConfigFileError(filePath string, err error) error {
	qe := newConfigurationError(ErrCodeInvalidConfigFile, errMsgInvalidConfigFile, filePath)
	qe.Err = err
	return qe
}

func parseConnection(cfg *Config, connection map[string]interface{}) error {
	var parsingErr error
	for key, value := range connection {
		switch strings.ToLower(key) {
		case "url", "base_url", "baseurl":
			cfg.BaseURL, parsingErr = parseString(value)
		case "api_token", "apitoken", "token":
			cfg.APIToken, parsingErr = parseString(value)
		case "token_file_path":
			var tokenPath string
			if tokenPath, parsingErr = parseString(value); parsingErr == nil {
				cfg.APIToken, parsingErr = readToken(tokenPath)
			}
		case "key_type", "keytype":
			var v string
			if v, parsingErr = parseString(value); parsingErr == nil {
				cfg.KeyType, parsingErr = ParseKeyType(v)
			}
		case "oauth_client_id", "client_id":
			cfg.OAuthClientID, parsingErr = parseString(value)
		case "oauth_client_secret", "client_secret":
			cfg.OAuthClientSecret, parsingErr = parseString(value)
		case "oauth_scopes", "scopes", "scope":
			cfg.OAuthScopes, parsingErr = parseStrings(value)
		case "client_store_temporary_credential":
			cfg.ClientStoreTemporaryCredential, parsingErr = parseBool(value)
		case "pool_id":
			cfg.PoolID, parsingErr = parseString(value)
		case "data_model_id":
			cfg.DataModelID, parsingErr = parseString(value)
		case "max_retries", "retries":
			cfg.MaxRetries, parsingErr = parseInt(value)
		case "retry_delay", "delay":
			cfg.RetryDelay, parsingErr = parseDuration(value)
		case "max_retry_delay":
			cfg.MaxRetryDelay, parsingErr = parseDuration(value)
		case "request_timeout", "timeout":
			cfg.RequestTimeout, parsingErr = parseDuration(value)
		case "poll_interval":
			cfg.PollInterval, parsingErr = parseDuration(value)
		case "requests_per_second":
			cfg.RequestsPerSecond, parsingErr = parseFloat(value)
		case "user_agent":
			cfg.UserAgent, parsingErr = parseString(value)
		case "insecure_skip_verify":
			cfg.InsecureSkipVerify, parsingErr = parseBool(value)
		case "tls_config_name":
			cfg.TLSConfigName, parsingErr = parseString(value)
		case "client_config_file":
			cfg.ClientConfigFile, parsingErr = parseString(value)
		default:
			logger.Warnf("unknown connection parameter %v ignored", key)
		}
		if parsingErr != nil {
			var qe *QueryError
			if errors.As(parsingErr, &qe) {
				return qe
			}
			return newConfigurationError(ErrCodeInvalidConfigValue, errMsgInvalidConfigValue, key, value)
		}
	}
	return nil
}

func parseString(i interface{}) (string, error) {
	v, ok := i.(string)
	if !ok {
		return "", errors.New("failed to convert the value to string")
	}
	return v, nil
}

func parseStrings(i interface{}) ([]string, error) {
	switch v := i.(type) {
	case string:
		return strings.Fields(strings.ReplaceAll(v, ",", " ")), nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			s, err := parseString(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.New("failed to convert the value to a string list")
	}
}

// parseInt accepts TOML int64, YAML int and numeric strings.
func parseInt(i interface{}) (int, error) {
	switch v := i.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		return strconv.Atoi(v)
	default:
		return 0, errors.New("failed to parse the value to integer")
	}
}

func parseFloat(i interface{}) (float64, error) {
	switch v := i.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, errors.New("failed to parse the value to float")
	}
}

func parseBool(i interface{}) (bool, error) {
	switch v := i.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(v)
	default:
		return false, errors.New("failed to parse the value to boolean")
	}
}

// parseDuration accepts Go duration strings ("500ms") or a number of seconds.
func parseDuration(i interface{}) (time.Duration, error) {
	if s, ok := i.(string); ok {
		if d, err := time.ParseDuration(s); err == nil {
			return d, nil
		}
	}
	f, err := parseFloat(i)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

func readToken(tokenPath string) (string, error) {
	if !path.IsAbs(tokenPath) {
		dir, err := getConfigDir(os.Getenv(envHome))
		if err != nil {
			return "", err
		}
		tokenPath = path.Join(dir, tokenPath)
	}
	if err := validateFilePermission(tokenPath); err != nil {
		return "", err
	}
	token, err := os.ReadFile(tokenPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(token)), nil
}

func getConfigDir(dir string) (string, error) {
	if len(dir) != 0 {
		if path.IsAbs(dir) {
			return dir, nil
		}
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = path.Join(homeDir, ".ems")
	}
	return path.Abs(dir)
}

func getConnectionName(name string) string {
	if len(name) != 0 {
		return name
	}
	return "default"
}

func skipFilePermissionCheck() bool {
	v, err := strconv.ParseBool(os.Getenv(envSkipPermissionCheck))
	return err == nil && v
}
