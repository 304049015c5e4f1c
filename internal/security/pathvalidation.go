// Package security guards file paths taken from flags and requests.
package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPathEscape is returned when a path resolves outside every allowed root.
var ErrPathEscape = errors.New("path escapes allowed directories")

// maxFilenameLen bounds SanitizeFilename output.
const maxFilenameLen = 96

// canonical resolves symlinks in path, or in its nearest existing parent when
// the path itself has not been created yet.
func canonical(path string) (string, error) {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	for dir := filepath.Dir(abs); ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			rel, err := filepath.Rel(dir, abs)
			if err != nil {
				return "", err
			}
			return filepath.Join(resolved, rel), nil
		}
		if dir == filepath.Dir(dir) {
			return abs, nil
		}
	}
}

// WithinDirectory reports an error unless path, after resolving symlinks,
// stays inside root.
func WithinDirectory(path, root string) error {
	p, err := canonical(path)
	if err != nil {
		return err
	}
	r, err := canonical(root)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(r, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return fmt.Errorf("%w: %s is outside %s", ErrPathEscape, path, root)
	}
	return nil
}

// WithinAny accepts path if it lies inside at least one of roots.
func WithinAny(path string, roots []string) error {
	if len(roots) == 0 {
		return errors.New("no allowed directories specified")
	}
	for _, root := range roots {
		if WithinDirectory(path, root) == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: %s must be within one of %v", ErrPathEscape, path, roots)
}

// ValidateOutputPath accepts generated files under the working directory or
// the system temp directory.
func ValidateOutputPath(path string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	return WithinAny(path, []string{cwd, os.TempDir()})
}

// SanitizeFilename turns an identifier into a file name made of ASCII
// letters, digits, dot, underscore and dash. Runs of other characters become
// one underscore. An empty result becomes "track".
func SanitizeFilename(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
			underscore = false
		case !underscore:
			b.WriteByte('_')
			underscore = true
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "track"
	}
	return out
}
