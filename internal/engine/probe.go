package engine

import (
	"fmt"
	"os"
	"path/filepath"
)

// FilesPresent reports whether every named file exists and is a regular
// file. Probing only inspects the filesystem; it never opens model weights.
func FilesPresent(paths ...string) bool {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			return false
		}
	}
	return true
}

// FirstExistingDir returns the first candidate directory that exists.
// Backend families whose legacy weights ship under more than one installed
// name probe each candidate in order; the first one present wins.
func FirstExistingDir(candidates ...string) (string, bool) {
	for _, dir := range candidates {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// DescribeMissing builds the ProbeError text for a family with no usable
// variant, naming what was looked for so operators can fix the install.
func DescribeMissing(family string, looked ...string) string {
	return fmt.Sprintf("%s: no usable model installation (looked in %v)", family, looked)
}

// ModelPath joins a model directory with a weight file name.
func ModelPath(dir string, name string) string {
	return filepath.Join(dir, name)
}
