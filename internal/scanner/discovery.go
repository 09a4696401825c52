package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DiscoveredDisk is a candidate array member found under the configured
// mount base before it has been cataloged.
type DiscoveredDisk struct {
	Name      string
	MountPath string
}

// isArrayDiskName reports whether name matches "disk<digits>".
func isArrayDiskName(name string) bool {
	if !strings.HasPrefix(name, "disk") || len(name) <= 4 {
		return false
	}
	return allDigits(name[4:])
}

// isCacheName reports whether name is "cache" or "cache<digits>".
func isCacheName(name string) bool {
	if name == "cache" {
		return true
	}
	if !strings.HasPrefix(name, "cache") || len(name) <= 5 {
		return false
	}
	return allDigits(name[5:])
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// DiscoverDisks lists mntBase's entries and returns those matching the
// disk<N>/cache[<N>] naming convention and confirmed to be directories,
// sorted by name.
func DiscoverDisks(mntBase string) ([]DiscoveredDisk, error) {
	if _, err := os.Stat(mntBase); err != nil {
		return nil, fmt.Errorf("discover disks: mount base %s: %w", mntBase, err)
	}

	entries, err := os.ReadDir(mntBase)
	if err != nil {
		return nil, fmt.Errorf("discover disks: %w", err)
	}

	var disks []DiscoveredDisk
	for _, entry := range entries {
		name := entry.Name()
		if !isArrayDiskName(name) && !isCacheName(name) {
			continue
		}

		mountPath := filepath.Join(mntBase, name)
		info, err := os.Stat(mountPath)
		if err != nil || !info.IsDir() {
			continue
		}
		disks = append(disks, DiscoveredDisk{Name: name, MountPath: mountPath})
	}

	sort.Slice(disks, func(i, j int) bool { return disks[i].Name < disks[j].Name })
	return disks, nil
}
