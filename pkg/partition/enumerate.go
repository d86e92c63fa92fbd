package partition

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/tragoedia0722/partition/pkg/helper"
)

// Enumerate lists every regular file under root in lexical walk order.
// Directories listed in exclude (and everything under them) are skipped, which
// keeps a destination nested inside the source out of its own input.
// Symlinks and other irregular entries are ignored.
func Enumerate(ctx context.Context, root string, exclude ...string) ([]FileRecord, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, wrapAccess("resolve", root, err)
	}

	skip := make(map[string]bool, len(exclude))
	for _, p := range exclude {
		if abs, e := filepath.Abs(p); e == nil && abs != absRoot {
			skip[abs] = true
		}
	}

	var files []FileRecord
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if walkErr != nil {
			return wrapAccess("enumerate", path, walkErr)
		}

		if d.IsDir() {
			if skip[path] {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return wrapAccess("stat", path, err)
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return wrapAccess("resolve", path, err)
		}

		files = append(files, FileRecord{
			Path:    path,
			RelPath: helper.EntryName(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
