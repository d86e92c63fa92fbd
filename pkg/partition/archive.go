package partition

import (
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ArchiveWriter is the write side of one archive file.
type ArchiveWriter interface {
	// CreateEntry starts a new compressed entry; the returned writer is valid
	// until the next CreateEntry or Close.
	CreateEntry(name string, modified time.Time) (io.Writer, error)
	// Close flushes the central directory and releases the file handle.
	Close() error
}

// ArchiveOpener creates a new, empty archive at path.
type ArchiveOpener func(path string, level int) (ArchiveWriter, error)

type zipArchive struct {
	file *os.File
	zw   *zip.Writer
}

// OpenZipArchive creates (or truncates) a ZIP file at path whose entries are
// DEFLATE-compressed at the given flate level.
func OpenZipArchive(path string, level int) (ArchiveWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return nil, err
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, level)
	})

	return &zipArchive{file: f, zw: zw}, nil
}

func (a *zipArchive) CreateEntry(name string, modified time.Time) (io.Writer, error) {
	return a.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: modified,
	})
}

func (a *zipArchive) Close() error {
	err := a.zw.Close()
	if closeErr := a.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
