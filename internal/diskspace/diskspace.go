// Package diskspace reports capacity and filesystem type for a disk mount
// point using the same statvfs-family syscall the daemon's predecessor used,
// via golang.org/x/sys/unix rather than cgo.
package diskspace

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// Usage is a disk space measurement in bytes.
type Usage struct {
	TotalBytes int64
	UsedBytes  int64
	FreeBytes  int64
}

// Stat reports the total/used/free bytes for the filesystem mounted at
// mountPath.
func Stat(mountPath string) (Usage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(mountPath, &st); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", mountPath, err)
	}

	blockSize := int64(st.Bsize)
	total := int64(st.Blocks) * blockSize
	free := int64(st.Bfree) * blockSize
	used := total - free
	if used < 0 {
		used = 0
	}

	return Usage{TotalBytes: total, UsedBytes: used, FreeBytes: free}, nil
}

// mountsPath is overridden in tests to point at a fixture file.
var mountsPath = "/proc/mounts"

// Filesystem returns the filesystem type (e.g. "xfs", "btrfs", "zfs")
// reported by /proc/mounts for the longest mount entry covering mountPath
// (mountPath itself or a path below it). The root entry "/" matches only
// mountPath "/". Returns "" if no entry matches.
func Filesystem(mountPath string) (string, error) {
	f, err := os.Open(mountsPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", mountsPath, err)
	}
	defer f.Close()

	var bestMatch, bestFS string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mnt, fsType := fields[1], fields[2]
		if mountPath != mnt && !strings.HasPrefix(mountPath, mnt+"/") {
			continue
		}
		if len(mnt) > len(bestMatch) {
			bestMatch, bestFS = mnt, fsType
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan /proc/mounts: %w", err)
	}
	return bestFS, nil
}
