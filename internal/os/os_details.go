// Package os describes the host platform for the user agent.
package os

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
)

const osReleasePath = "/etc/os-release"

var (
	platform     string
	platformOnce sync.Once
)

// Platform returns a user agent comment such as
// "linux amd64; Ubuntu 22.04.3 LTS; go1.22.1". The result is computed once.
func Platform() string {
	platformOnce.Do(func() {
		platform = describe(runtime.GOOS, runtime.GOARCH, runtime.Version(), distribution())
	})
	return platform
}

func describe(goos, goarch, goVersion, distro string) string {
	parts := []string{goos + " " + goarch}
	if distro != "" {
		parts = append(parts, distro)
	}
	parts = append(parts, goVersion)
	return strings.Join(parts, "; ")
}

func distribution() string {
	if runtime.GOOS != "linux" {
		return ""
	}
	f, err := os.Open(osReleasePath)
	if err != nil {
		return ""
	}
	defer func() {
		_ = f.Close()
	}()
	release := parseOsRelease(f)
	if name := release["PRETTY_NAME"]; name != "" {
		return name
	}
	if release["NAME"] != "" {
		return strings.TrimSpace(fmt.Sprintf("%s %s", release["NAME"], release["VERSION_ID"]))
	}
	return ""
}

// parseOsRelease reads the KEY=VALUE lines of an os-release file. Comments
// and malformed lines are skipped.
func parseOsRelease(r io.Reader) map[string]string {
	result := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		result[strings.TrimSpace(key)] = unquote(strings.TrimSpace(value))
	}
	return result
}

// unquote strips matching single or double quotes and anything after the
// closing one.
func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') {
		if end := strings.IndexByte(s[1:], s[0]); end >= 0 {
			return s[1 : 1+end]
		}
	}
	return s
}
