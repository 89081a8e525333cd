// Copyright (c) 2026 The gopql Authors. All rights reserved.

//go:build unix

package gopql

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// validateFilePermission rejects credential files that other users can read
// or write, or that belong to someone else.
func validateFilePermission(filePath string) error {
	if skipFilePermissionCheck() {
		return nil
	}
	var st unix.Stat_t
	if err := unix.Stat(filePath, &st); err != nil {
		return wrapConfigFileError(filePath, err)
	}
	if uid := uint32(unix.Getuid()); st.Uid != uid {
		return newConfigurationError(ErrCodeInvalidConfigFile, errMsgInvalidConfigFile,
			fmt.Sprintf("%s: owned by uid %d, not %d", filePath, st.Uid, uid))
	}
	if perm := uint32(st.Mode) & 0o077; perm != 0 {
		return newConfigurationError(ErrCodeInvalidConfigFile, errMsgInvalidConfigFile,
			fmt.Sprintf("%s: permissions %#o are too open, use 0600", filePath, uint32(st.Mode)&0o777))
	}
	return nil
}
