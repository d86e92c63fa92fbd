package extractor

import (
	"os"
	"path/filepath"
)

// prepareTarget clears the way for a new file at path. An existing entry is
// an error unless overwrite is set, in which case it is removed; an existing
// directory is never replaced by a file.
func prepareTarget(path string, overwrite bool) error {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return createParentDirectories(path)
	}
	if err != nil {
		return wrapOp("stat", path, err)
	}

	if !overwrite {
		return wrapExists(path)
	}
	if info.IsDir() {
		return wrapOp("extract", path, errIsDirectory)
	}
	if err := os.Remove(path); err != nil {
		return wrapOp("remove", path, err)
	}
	return nil
}

// createNewFile fails if path already exists, so a concurrent writer is
// never silently clobbered.
func createNewFile(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_EXCL|os.O_CREATE|os.O_WRONLY, filePermissions)
	if err != nil {
		return nil, wrapOp("create", path, err)
	}
	return f, nil
}

func createParentDirectories(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return wrapOp("mkdir", dir, err)
	}
	return nil
}
