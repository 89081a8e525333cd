// Copyright (c) 2026 The gopql Authors. All rights reserved.

//go:build !unix

package gopql

// validateFilePermission is a no-op where POSIX ownership does not apply.
func validateFilePermission(string) error {
	return nil
}
