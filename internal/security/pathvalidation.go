// Package security validates user-supplied names before they become paths.
package security

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsafeName is returned for names that could escape their directory.
var ErrUnsafeName = errors.New("unsafe file name")

// SafeJoin joins dir and name, rejecting names that are empty, absolute,
// contain a separator or a parent reference, or start with a dot.
func SafeJoin(dir, name string) (string, error) {
	switch {
	case name == "", name == ".", name == "..":
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	case strings.ContainsAny(name, `/\`), strings.HasPrefix(name, "."):
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	case filepath.IsAbs(name), filepath.VolumeName(name) != "":
		return "", fmt.Errorf("%w: %q", ErrUnsafeName, name)
	}
	p := filepath.Join(dir, name)
	if err := ValidatePathWithinDirectory(p, dir); err != nil {
		return "", err
	}
	return p, nil
}

// ValidatePathWithinDirectory reports an error when path, once cleaned and
// made absolute, lies outside dir. Symlinks are not resolved.
func ValidatePathWithinDirectory(path, dir string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", dir, err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return fmt.Errorf("%s is outside %s: %w", path, dir, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("path traversal detected: %s escapes %s", path, dir)
	}
	return nil
}
