package files

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrOutsideBase is returned for paths that escape the base directory.
var ErrOutsideBase = errors.New("path escapes the data directory")

// Resolver maps request paths onto a base directory.
type Resolver struct {
	base string
}

// NewResolver creates a resolver rooted at base, which is made absolute.
func NewResolver(base string) (*Resolver, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory %s: %w", base, err)
	}
	return &Resolver{base: filepath.Clean(abs)}, nil
}

// Base returns the absolute base directory.
func (r *Resolver) Base() string {
	return r.base
}

// Resolve returns the absolute location of path. Relative paths are joined to
// the base; absolute paths must already lie inside it.
func (r *Resolver) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}

	full := path
	if !filepath.IsAbs(path) {
		full = filepath.Join(r.base, path)
	}
	full = filepath.Clean(full)

	rel, err := filepath.Rel(r.base, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, path)
	}
	if rel == "." {
		return "", fmt.Errorf("path names the data directory itself: %s", path)
	}
	return full, nil
}

// Rel returns full relative to the base, for display.
func (r *Resolver) Rel(full string) string {
	rel, err := filepath.Rel(r.base, full)
	if err != nil {
		return full
	}
	return rel
}
