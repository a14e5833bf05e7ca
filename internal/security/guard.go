// Package security implements the filesystem allow-list consulted by
// path-touching tools before any read, write, list, or create operation.
package security

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DeniedError indicates a path resolved outside every allowed root.
type DeniedError struct {
	Path string
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied to %s", e.Path)
}

// Guard checks candidate paths against a fixed set of allowed root
// directories. The root set is immutable after construction, so Guard is
// safe for concurrent use without locking.
type Guard struct {
	roots []string
}

// NewGuard creates a Guard for the given root directories.
//
// Roots are cleaned and made absolute once at construction. Relative roots
// are resolved against the current working directory.
func NewGuard(roots []string) (*Guard, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one allowed root is required")
	}

	resolved := make([]string, 0, len(roots))

	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("resolve root %q: %w", root, err)
		}

		resolved = append(resolved, filepath.Clean(abs))
	}

	return &Guard{roots: resolved}, nil
}

// Roots returns a copy of the allowed root directories.
func (g *Guard) Roots() []string {
	out := make([]string, len(g.roots))
	copy(out, g.roots)

	return out
}

// Allowed reports whether path resolves inside one of the allowed roots.
//
// The check is purely lexical on the resolved absolute path: a path is
// allowed when it equals a root or sits below it. A bare prefix match is
// not enough ("/data-evil" must not pass for root "/data"), so the
// comparison requires a path separator after the root.
func (g *Guard) Allowed(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}

	abs = filepath.Clean(abs)

	for _, root := range g.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

// Check returns a *DeniedError when path is not allowed, nil otherwise.
// The error carries the offending path so tools can surface it verbatim.
func (g *Guard) Check(path string) error {
	if g.Allowed(path) {
		return nil
	}

	return &DeniedError{Path: path}
}
