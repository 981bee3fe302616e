package fileio

import (
	"path/filepath"
	"strings"
)

// Pseudo file systems and bookkeeping directories never hold samples.
var (
	skippedRoots = []string{"/dev", "/proc", "/sys"}
	skippedNames = []string{"lost+found", "$RECYCLE.BIN", "System Volume Information"}
)

func doScanDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	abs = filepath.ToSlash(abs)

	for _, root := range skippedRoots {
		if abs == root || strings.HasPrefix(abs, root+"/") {
			return false
		}
	}
	name := filepath.Base(abs)
	for _, skipped := range skippedNames {
		if name == skipped {
			return false
		}
	}
	return true
}
