//go:build windows

package fs

import (
	"path/filepath"
	"strings"
	"syscall"
)

func isHidden(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return true
	}
	p, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return false
	}
	attrs, err := syscall.GetFileAttributes(p)
	if err != nil {
		return false
	}
	return attrs&syscall.FILE_ATTRIBUTE_HIDDEN != 0
}
