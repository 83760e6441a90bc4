package model

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SafeJoin joins a user-supplied relative path onto a project root, rejecting
// traversal sequences, absolute paths and shell metacharacters. The returned
// path is always confined to root.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("path is empty: %w", ErrNotValid)
	}
	if strings.Contains(rel, "..") {
		return "", fmt.Errorf("path contains traversal sequence: %w", ErrNotValid)
	}
	if filepath.IsAbs(rel) || (len(rel) > 1 && rel[1] == ':') {
		return "", fmt.Errorf("absolute paths are not allowed: %w", ErrNotValid)
	}
	if strings.ContainsAny(rel, ";&|`$<>") {
		return "", fmt.Errorf("path contains disallowed characters: %w", ErrNotValid)
	}

	joined := filepath.Join(root, filepath.Clean(rel))
	cleanRoot := filepath.Clean(root)
	// A root like "/" already ends with the separator.
	prefix := cleanRoot
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if joined != cleanRoot && !strings.HasPrefix(joined, prefix) {
		return "", fmt.Errorf("path escapes project root: %w", ErrNotValid)
	}
	return joined, nil
}
