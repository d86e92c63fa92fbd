package partition

import (
	"context"
	"errors"
	"io"
	"os"
)

// writeEntry streams one source file into a new entry of aw in fixed-size
// chunks. Any failure to open or read the source, or to write the entry, is a
// *FileAccessError; cancellation returns ctx.Err().
func (j *job) writeEntry(ctx context.Context, file FileRecord, aw ArchiveWriter, archiveIndex int) error {
	src, err := os.Open(file.Path)
	if err != nil {
		return wrapAccess("open", file.Path, err)
	}
	defer src.Close()

	w, err := aw.CreateEntry(file.RelPath, file.ModTime)
	if err != nil {
		return wrapAccess("create entry", file.Path, err)
	}

	copied, err := j.copyChunks(ctx, w, src, file.Path, archiveIndex, file.RelPath)
	if err != nil {
		return err
	}

	j.settle(file, copied, archiveIndex)
	return nil
}

// copyChunks copies src to dst one chunk at a time, advancing the job counter
// and emitting an event after every chunk. ctx is checked before each read.
func (j *job) copyChunks(ctx context.Context, dst io.Writer, src io.Reader, path string, archiveIndex int, name string) (int64, error) {
	var copied int64
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}

		n, readErr := io.ReadFull(src, j.buf)
		if n > 0 {
			if _, err := dst.Write(j.buf[:n]); err != nil {
				return copied, wrapAccess("write", path, err)
			}
			copied += int64(n)
			j.progress.add(int64(n))
			j.progress.emit(archiveIndex, "processing "+name)
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			return copied, nil
		}
		if readErr != nil {
			return copied, wrapAccess("read", path, readErr)
		}
	}
}

// settle tops the counter up to the size recorded at enumeration time when a
// file shrank while it was being read, so every handled file accounts for
// exactly its classified size.
func (j *job) settle(file FileRecord, copied int64, archiveIndex int) {
	if copied >= file.Size {
		return
	}

	j.progress.add(file.Size - copied)
	j.progress.emit(archiveIndex, "processing "+file.RelPath)
}
