// Copyright (c) 2026 The gopql Authors. All rights reserved.

package gopql

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/99designs/keyring"
)

const (
	keyringServiceName = "GOPQL-CLIENT"
	credCacheDirEnv    = "EMS_TEMPORARY_CREDENTIAL_CACHE_DIR"
	credCacheFileName  = "credential_cache_v1.json"
)

type tokenType string

const oauthAccessToken tokenType = "OAUTH_ACCESS_TOKEN"

type secureTokenSpec struct {
	host, clientID string
	tokenType      tokenType
}

func newOAuthTokenSpec(host, clientID string) *secureTokenSpec {
	return &secureTokenSpec{host: host, clientID: clientID, tokenType: oauthAccessToken}
}

func (t *secureTokenSpec) buildKey() (string, error) {
	if t.host == "" || t.clientID == "" {
		return "", errors.New("host and client id are required for a credential key")
	}
	return strings.ToUpper(fmt.Sprintf("%s:%s:%s", t.host, t.clientID, t.tokenType)), nil
}

type secureStorageManager interface {
	setCredential(tokenSpec *secureTokenSpec, value string)
	getCredential(tokenSpec *secureTokenSpec) string
	deleteCredential(tokenSpec *secureTokenSpec)
}

func newSecureStorageManager() secureStorageManager {
	switch runtime.GOOS {
	case "darwin", "windows":
		logger.Debugf("OS is %v, using keyring based credentials cache", runtime.GOOS)
		return &threadSafeSecureStorageManager{mu: &sync.Mutex{}, inner: &keyringSecureStorageManager{open: keyring.Open}}
	case "linux":
		ssm, err := newFileBasedSecureStorageManager(defaultCredCacheDir())
		if err != nil {
			logger.Debugf("failed to create credentials cache dir. %v", err)
			return newNoopSecureStorageManager()
		}
		return &threadSafeSecureStorageManager{mu: &sync.Mutex{}, inner: ssm}
	default:
		logger.Debugf("OS %v does not support credentials cache", runtime.GOOS)
		return newNoopSecureStorageManager()
	}
}

type keyringSecureStorageManager struct {
	open func(keyring.Config) (keyring.Keyring, error)
}

func (ssm *keyringSecureStorageManager) ring(tokenSpec *secureTokenSpec) (keyring.Keyring, error) {
	return ssm.open(keyring.Config{
		ServiceName:   keyringServiceName,
		WinCredPrefix: strings.ToUpper(tokenSpec.host),
	})
}

func (ssm *keyringSecureStorageManager) setCredential(tokenSpec *secureTokenSpec, value string) {
	if value == "" {
		logger.Debug("no token provided")
		return
	}
	key, err := tokenSpec.buildKey()
	if err != nil {
		logger.Warnf("cannot build credential key: %v", err)
		return
	}
	ring, err := ssm.ring(tokenSpec)
	if err != nil {
		logger.Debugf("failed to open keyring. %v", err)
		return
	}
	if err = ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		logger.Debugf("failed to write to keyring. %v", err)
	}
}

func (ssm *keyringSecureStorageManager) getCredential(tokenSpec *secureTokenSpec) string {
	key, err := tokenSpec.buildKey()
	if err != nil {
		logger.Warnf("cannot build credential key: %v", err)
		return ""
	}
	ring, err := ssm.ring(tokenSpec)
	if err != nil {
		logger.Debugf("failed to open keyring. %v", err)
		return ""
	}
	item, err := ring.Get(key)
	if err != nil {
		logger.Debugf("failed to find the item in keyring or item does not exist. %v", err)
		return ""
	}
	return string(item.Data)
}

func (ssm *keyringSecureStorageManager) deleteCredential(tokenSpec *secureTokenSpec) {
	key, err := tokenSpec.buildKey()
	if err != nil {
		logger.Warnf("cannot build credential key: %v", err)
		return
	}
	ring, err := ssm.ring(tokenSpec)
	if err != nil {
		logger.Debugf("failed to open keyring. %v", err)
		return
	}
	if err = ring.Remove(key); err != nil {
		logger.Debugf("failed to delete credential in keyring. %v", err)
	}
}

func defaultCredCacheDir() string {
	if dir := os.Getenv(credCacheDirEnv); dir != "" {
		return dir
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "gopql")
	}
	if home := os.Getenv("HOME"); home != "" {
		return filepath.Join(home, ".cache", "gopql")
	}
	return ""
}

// fileBasedSecureStorageManager keeps tokens in a 0600 JSON file. A lock
// directory next to the file serialises writers across processes.
type fileBasedSecureStorageManager struct {
	credDirPath string
}

func newFileBasedSecureStorageManager(dir string) (*fileBasedSecureStorageManager, error) {
	if dir == "" {
		return nil, errors.New("no credentials cache directory found")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %v: %w", dir, err)
	}
	return &fileBasedSecureStorageManager{credDirPath: dir}, nil
}

func (ssm *fileBasedSecureStorageManager) credFilePath() string {
	return filepath.Join(ssm.credDirPath, credCacheFileName)
}

func (ssm *fileBasedSecureStorageManager) lockPath() string {
	return ssm.credFilePath() + ".lck"
}

func (ssm *fileBasedSecureStorageManager) lock() error {
	const numRetries = 10
	const retryInterval = 100 * time.Millisecond
	lockPath := ssm.lockPath()
	if fi, err := os.Stat(lockPath); err == nil && time.Since(fi.ModTime()) > time.Second {
		logger.Debugf("removing stale credentials cache lock %v", lockPath)
		if err = os.Remove(lockPath); err != nil {
			return fmt.Errorf("failed to remove stale lock %v: %w", lockPath, err)
		}
	}
	for i := 0; i < numRetries; i++ {
		err := os.Mkdir(lockPath, 0o700)
		if err == nil {
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("failed to create cache lock %v: %w", lockPath, err)
		}
		time.Sleep(retryInterval)
	}
	return fmt.Errorf("failed to lock cache. lockPath: %v", lockPath)
}

func (ssm *fileBasedSecureStorageManager) unlock() {
	if err := os.Remove(ssm.lockPath()); err != nil {
		logger.Warnf("failed to unlock cache lock: %v. %v", ssm.lockPath(), err)
	}
}

func (ssm *fileBasedSecureStorageManager) withLock(action func(tokens map[string]string) bool) {
	if err := ssm.lock(); err != nil {
		logger.Warnf("unable to lock cache. %v", err)
		return
	}
	defer ssm.unlock()
	tokens, err := ssm.readCacheFile()
	if err != nil {
		logger.Warnf("error while reading cache file. %v", err)
		return
	}
	if !action(tokens) {
		return
	}
	if err = ssm.writeCacheFile(tokens); err != nil {
		logger.Warnf("unable to write cache. %v", err)
	}
}

func (ssm *fileBasedSecureStorageManager) readCacheFile() (map[string]string, error) {
	tokens := map[string]string{}
	data, err := os.ReadFile(ssm.credFilePath())
	if errors.Is(err, os.ErrNotExist) {
		return tokens, nil
	}
	if err != nil {
		return nil, err
	}
	if err = validateFilePermission(ssm.credFilePath()); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return tokens, nil
	}
	if err = json.Unmarshal(data, &tokens); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential cache file. %w", err)
	}
	return tokens, nil
}

func (ssm *fileBasedSecureStorageManager) writeCacheFile(tokens map[string]string) error {
	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal credential cache map. %w", err)
	}
	return os.WriteFile(ssm.credFilePath(), data, 0o600)
}

func (ssm *fileBasedSecureStorageManager) setCredential(tokenSpec *secureTokenSpec, value string) {
	if value == "" {
		logger.Debug("no token provided")
		return
	}
	key, err := tokenSpec.buildKey()
	if err != nil {
		logger.Warn(err.Error())
		return
	}
	ssm.withLock(func(tokens map[string]string) bool {
		tokens[key] = value
		return true
	})
}

func (ssm *fileBasedSecureStorageManager) getCredential(tokenSpec *secureTokenSpec) string {
	key, err := tokenSpec.buildKey()
	if err != nil {
		logger.Warn(err.Error())
		return ""
	}
	var cred string
	ssm.withLock(func(tokens map[string]string) bool {
		cred = tokens[key]
		return false
	})
	return cred
}

func (ssm *fileBasedSecureStorageManager) deleteCredential(tokenSpec *secureTokenSpec) {
	key, err := tokenSpec.buildKey()
	if err != nil {
		logger.Warn(err.Error())
		return
	}
	ssm.withLock(func(tokens map[string]string) bool {
		if _, ok := tokens[key]; !ok {
			return false
		}
		delete(tokens, key)
		return true
	})
}

type noopSecureStorageManager struct{}

func newNoopSecureStorageManager() *noopSecureStorageManager {
	return &noopSecureStorageManager{}
}

func (ssm *noopSecureStorageManager) setCredential(*secureTokenSpec, string) {}

func (ssm *noopSecureStorageManager) getCredential(*secureTokenSpec) string {
	return ""
}

func (ssm *noopSecureStorageManager) deleteCredential(*secureTokenSpec) {}

type threadSafeSecureStorageManager struct {
	mu    *sync.Mutex
	inner secureStorageManager
}

func (ssm *threadSafeSecureStorageManager) setCredential(tokenSpec *secureTokenSpec, value string) {
	ssm.mu.Lock()
	defer ssm.mu.Unlock()
	ssm.inner.setCredential(tokenSpec, value)
}

func (ssm *threadSafeSecureStorageManager) getCredential(tokenSpec *secureTokenSpec) string {
	ssm.mu.Lock()
	defer ssm.mu.Unlock()
	return ssm.inner.getCredential(tokenSpec)
}

func (ssm *threadSafeSecureStorageManager) deleteCredential(tokenSpec *secureTokenSpec) {
	ssm.mu.Lock()
	defer ssm.mu.Unlock()
	ssm.inner.deleteCredential(tokenSpec)
}
