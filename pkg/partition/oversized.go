package partition

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/tragoedia0722/partition/pkg/helper"
)

// handleOversized applies the configured policy to one file above the
// threshold. Every policy except Fail advances the job counter by the file's
// full size and records a SpecialHandling entry.
func (j *job) handleOversized(ctx context.Context, file FileRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	reason := fmt.Sprintf("size %s exceeds the limit of %s",
		datasize.ByteSize(file.Size).HR(), datasize.ByteSize(j.threshold).HR())

	var output string
	switch j.cfg.OversizedPolicy {
	case PolicyFail:
		return &OversizedFileError{Path: file.Path, Size: file.Size, Limit: j.threshold}

	case PolicyIsolate:
		path, err := j.isolate(ctx, file)
		if err != nil {
			return err
		}
		output = path
		reason += "; stored in its own archive"

	case PolicySkip:
		j.progress.add(file.Size)
		j.progress.emit(j.archiveIndex(), "skipping "+file.RelPath)
		reason += "; skipped"

	case PolicyCopyUncompressed:
		path, err := j.copyVerbatim(ctx, file)
		if err != nil {
			return err
		}
		output = path
		reason += "; copied without compression"

	default:
		return &ConfigError{Field: "OversizedPolicy", Value: j.cfg.OversizedPolicy, Reason: "unknown policy"}
	}

	j.logger.Warn("oversized file handled", "path", file.Path, "size", file.Size, "policy", j.cfg.OversizedPolicy, "output", output)

	j.result.SpecialHandling = append(j.result.SpecialHandling, SpecialHandling{
		Path:    file.Path,
		RelPath: file.RelPath,
		Size:    file.Size,
		Policy:  j.cfg.OversizedPolicy,
		Output:  output,
		Reason:  reason,
	})
	return nil
}

// isolate writes file as the only entry of large_file_<basename>.zip. It does
// not take a slot in the archive sequence.
func (j *job) isolate(ctx context.Context, file FileRecord) (path string, err error) {
	path = filepath.Join(j.destination, j.uniqueName(helper.IsolatedArchiveName(file.Path)))

	aw, ordinal, err := j.openArchive(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if closeErr := aw.Close(); closeErr != nil && err == nil {
			err = wrapAccess("close archive", path, closeErr)
		}
	}()

	if err := j.writeEntry(ctx, file, aw, ordinal); err != nil {
		return "", err
	}

	return path, nil
}

// copyVerbatim mirrors file under the destination at its relative path,
// overwriting whatever is there.
func (j *job) copyVerbatim(ctx context.Context, file FileRecord) (target string, err error) {
	target = filepath.Join(j.destination, filepath.FromSlash(file.RelPath))

	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return "", wrapAccess("mkdir", filepath.Dir(target), err)
	}

	src, err := os.Open(file.Path)
	if err != nil {
		return "", wrapAccess("open", file.Path, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return "", wrapAccess("create", target, err)
	}
	j.created = append(j.created, target)

	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = wrapAccess("close", target, closeErr)
		}
	}()

	copied, err := j.copyChunks(ctx, dst, src, target, j.archiveIndex(), file.RelPath)
	if err != nil {
		return "", err
	}
	j.settle(file, copied, j.archiveIndex())

	if err := os.Chtimes(target, file.ModTime, file.ModTime); err != nil {
		j.logger.Debug("could not preserve modification time", "path", target, "error", err)
	}

	return target, nil
}

// checkCopyTargets rejects verbatim copies whose top-level path component is an
// archive name or the lock file, before anything is written to the destination.
func (j *job) checkCopyTargets(files []FileRecord) error {
	for _, file := range files {
		top, _, _ := strings.Cut(file.RelPath, "/")
		if helper.IsArchiveName(top) || strings.EqualFold(top, lockFileName) {
			return wrapAccess("copy", filepath.Join(j.destination, top), ErrReservedName)
		}
	}
	return nil
}

// uniqueName keeps isolated archive names distinct within one job.
func (j *job) uniqueName(name string) string {
	candidate := name
	for n := 2; j.usedNames[candidate]; n++ {
		candidate = helper.DedupName(name, n)
	}
	j.usedNames[candidate] = true
	return candidate
}
