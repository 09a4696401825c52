// Package pathsafety enforces the one hard safety invariant the daemon
// relies on: it must never read or write through the Unraid FUSE union-mount
// paths, only through each disk's own physical mount point. A file moved
// through /mnt/user would silently operate on whatever disk the union
// filesystem happens to route to, breaking every size/placement guarantee
// the planner computed.
package pathsafety

import (
	"fmt"
	"strings"
)

var forbiddenSubstrings = []string{
	"/mnt/user/",
	"/mnt/user0/",
}

// Check returns an error if path contains a forbidden union-mount substring
// anywhere, not just as a leading prefix — a reconfigured disk mount or a
// bind-mounted subtree can place the union path mid-string. It is applied
// twice in the daemon's lifecycle: once when the scanner accepts a disk's
// mount path, and again immediately before the executor spawns rsync for a
// move, in case a disk's configuration changed between scan and execute.
func Check(path string) error {
	for _, substr := range forbiddenSubstrings {
		if strings.Contains(path, substr) {
			return fmt.Errorf("path %q contains forbidden union-mount path %q: operate on the physical disk mount instead", path, substr)
		}
	}
	return nil
}

// IsSafe reports whether path passes Check without constructing an error.
func IsSafe(path string) bool {
	return Check(path) == nil
}
