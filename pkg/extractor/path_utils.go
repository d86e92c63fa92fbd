package extractor

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// entryTarget maps a ZIP entry name to a path under base. Names must be
// relative, use forward slashes and never climb above the archive root.
// Backslashes are treated as separators since some writers emit them.
func entryTarget(base, name string) (string, error) {
	if name == "" {
		return "", wrapInvalidEntry(name, "empty name")
	}
	if strings.ContainsRune(name, 0) {
		return "", wrapInvalidEntry(name, "contains NUL")
	}

	normalized := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(normalized, "/") || filepath.VolumeName(normalized) != "" {
		return "", wrapInvalidEntry(name, "absolute path")
	}

	for _, part := range strings.Split(normalized, "/") {
		if part == ".." {
			return "", wrapPathTraversal(name)
		}
	}

	cleaned := path.Clean(normalized)
	if cleaned == "." {
		return "", wrapInvalidEntry(name, "no path components")
	}

	target := filepath.Join(base, filepath.FromSlash(cleaned))
	if !isSubPath(target, base) {
		return "", wrapPathTraversal(name)
	}
	return target, nil
}

func isSubPath(path, base string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}

	absPath = filepath.Clean(absPath)
	absBase = filepath.Clean(absBase)

	return absPath == absBase || strings.HasPrefix(absPath, absBase+string(filepath.Separator))
}

// ensureNoSymlinkInPath rejects targets reached through a symlink below base,
// which would let a crafted archive write outside the destination.
func ensureNoSymlinkInPath(base, target string) error {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return wrapPathTraversal(target)
	}
	if rel == "." {
		return nil
	}

	current := base
	parts := strings.Split(rel, string(filepath.Separator))
	for _, part := range parts[:len(parts)-1] {
		current = filepath.Join(current, part)
		info, err := os.Lstat(current)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return wrapOp("stat", current, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return wrapPathTraversal(current)
		}
	}

	return nil
}
