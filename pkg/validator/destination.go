package validator

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tragoedia0722/partition/pkg/helper"
	"github.com/tragoedia0722/partition/pkg/partition"
)

// ignoredNames are bookkeeping files a job may leave in its destination.
var ignoredNames = map[string]bool{
	".partition.lock":  true,
	"._check_writable": true,
}

// ResultFromDestination rebuilds a Result by scanning a destination directory:
// top-level ZIP files are archives, every other regular file is taken as a
// verbatim copy. Skipped files cannot be recovered this way.
func ResultFromDestination(destination string) (*partition.Result, error) {
	root, err := filepath.Abs(destination)
	if err != nil {
		return nil, err
	}

	result := &partition.Result{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() || ignoredNames[d.Name()] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if !strings.ContainsRune(rel, filepath.Separator) && helper.HasArchiveExt(d.Name()) {
			result.Archives = append(result.Archives, path)
			return nil
		}

		result.SpecialHandling = append(result.SpecialHandling, partition.SpecialHandling{
			RelPath: helper.EntryName(rel),
			Policy:  partition.PolicyCopyUncompressed,
			Output:  path,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(result.Archives)
	return result, nil
}
