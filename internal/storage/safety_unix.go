//go:build !windows

package storage

import (
	"errors"
	"fmt"
	"syscall"
)

// GetDiskSpace reports the space available to this user on the filesystem
// holding path.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	path = existingAncestor(path)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, fmt.Errorf("failed to get disk space: %w", err)
	}

	bsize := uint64(stat.Bsize)
	info := &DiskSpaceInfo{
		Path:       path,
		TotalBytes: uint64(stat.Blocks) * bsize,
		FreeBytes:  uint64(stat.Bavail) * bsize,
	}
	info.UsedBytes = info.TotalBytes - info.FreeBytes
	return info, nil
}

// isDiskFullError reports whether err wraps ENOSPC.
func isDiskFullError(err error) bool {
	var errno syscall.Errno
	return errors.As(err, &errno) && errno == syscall.ENOSPC
}
