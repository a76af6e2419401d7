// Package pathguard protects filesystem endpoints from path traversal, the
// same absolute-path-plus-Rel check the desktop client used to keep
// downloads inside its cache directory.
package pathguard

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Within reports an error if candidate, once symlinks are resolved, would
// resolve outside root. candidate need not exist yet — if it (or any of its
// ancestors) is missing, the check falls back to the lexical path.
func Within(root, candidate string) error {
	if root == "" || candidate == "" {
		return fmt.Errorf("pathguard: root or candidate path is empty")
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("pathguard: resolving root: %w", err)
	}
	absCandidate, err := filepath.Abs(candidate)
	if err != nil {
		return fmt.Errorf("pathguard: resolving candidate: %w", err)
	}

	resolvedRoot, err := resolveExistingSymlinks(absRoot)
	if err != nil {
		return fmt.Errorf("pathguard: resolving root symlinks: %w", err)
	}
	resolvedCandidate, err := resolveExistingSymlinks(absCandidate)
	if err != nil {
		return fmt.Errorf("pathguard: resolving candidate symlinks: %w", err)
	}

	rel, err := filepath.Rel(resolvedRoot, resolvedCandidate)
	if err != nil {
		return fmt.Errorf("pathguard: computing relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("pathguard: %s escapes %s", candidate, root)
	}
	return nil
}

// resolveExistingSymlinks walks up from path until it finds a segment that
// exists, resolves symlinks on that prefix, then reattaches the remaining
// (not-yet-created) suffix lexically.
func resolveExistingSymlinks(path string) (string, error) {
	suffix := ""
	cur := path
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			return filepath.Join(resolved, suffix), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			// Reached the filesystem root without finding an existing segment.
			return path, nil
		}
		suffix = filepath.Join(filepath.Base(cur), suffix)
		cur = parent
	}
}
