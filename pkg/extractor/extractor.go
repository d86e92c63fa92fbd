// Package extractor restores the contents of ZIP archives produced by a
// partition job into a directory tree.
package extractor

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/klauspost/compress/zip"
)

type Extractor struct {
	archives    []string
	destination string
	progress    ProgressFunc
	logger      hclog.Logger
	bufferPool  sync.Pool
}

func NewExtractor(archives []string, destination string) *Extractor {
	return &Extractor{
		archives:    archives,
		destination: filepath.Clean(destination),
		logger:      hclog.NewNullLogger(),
		bufferPool: sync.Pool{
			New: func() interface{} {
				b := make([]byte, copyBufferSize)
				return &b
			},
		},
	}
}

func (e *Extractor) WithProgress(fn ProgressFunc) *Extractor {
	e.progress = fn
	return e
}

func (e *Extractor) WithLogger(logger hclog.Logger) *Extractor {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Extract writes every entry of every archive, in order, under the
// destination. Without overwrite an existing file aborts the extraction with
// ErrPathExistsOverwrite. Entry modification times are restored.
func (e *Extractor) Extract(ctx context.Context, overwrite bool) error {
	if len(e.archives) == 0 {
		return ErrNoArchives
	}

	base, err := filepath.Abs(e.destination)
	if err != nil {
		return wrapOp("resolve", e.destination, err)
	}
	if err := os.MkdirAll(base, dirPermissions); err != nil {
		return wrapOp("mkdir", base, err)
	}

	readers := make([]*zip.ReadCloser, 0, len(e.archives))
	defer func() {
		for _, r := range readers {
			_ = r.Close()
		}
	}()

	var total int64
	for _, archive := range e.archives {
		// A reader may come back together with an insecure-path warning;
		// entry names are checked again before anything is written.
		r, err := zip.OpenReader(archive)
		if r == nil {
			return wrapOp("open", archive, err)
		}
		readers = append(readers, r)

		for _, f := range r.File {
			total += int64(f.UncompressedSize64)
		}
	}

	tracker := newProgressTracker(total, e.progress)

	for i, r := range readers {
		e.logger.Debug("extracting archive", "archive", e.archives[i], "entries", len(r.File))

		for _, f := range r.File {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := e.extractEntry(ctx, base, f, overwrite, tracker); err != nil {
				return err
			}
		}
	}

	e.logger.Info("extraction completed", "archives", len(e.archives), "bytes", tracker.getCompleted())
	return nil
}

func (e *Extractor) extractEntry(ctx context.Context, base string, f *zip.File, overwrite bool, tracker *progressTracker) error {
	target, err := entryTarget(base, f.Name)
	if err != nil {
		return err
	}
	if err := ensureNoSymlinkInPath(base, target); err != nil {
		return err
	}

	if strings.HasSuffix(f.Name, "/") || f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, dirPermissions); err != nil {
			return wrapOp("mkdir", target, err)
		}
		return nil
	}

	if err := prepareTarget(target, overwrite); err != nil {
		return err
	}

	if err := e.writeFile(ctx, f, target, tracker); err != nil {
		return err
	}

	if !f.Modified.IsZero() {
		if err := os.Chtimes(target, f.Modified, f.Modified); err != nil {
			e.logger.Debug("could not restore modification time", "path", target, "error", err)
		}
	}
	return nil
}

func (e *Extractor) writeFile(ctx context.Context, f *zip.File, target string, tracker *progressTracker) (err error) {
	rc, err := f.Open()
	if err != nil {
		return wrapOp("open entry", f.Name, err)
	}
	defer rc.Close()

	out, err := createNewFile(target)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = wrapOp("close", target, closeErr)
		}
	}()

	bufp := e.bufferPool.Get().(*[]byte)
	defer e.bufferPool.Put(bufp)
	buf := *bufp

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := rc.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return wrapOp("write", target, err)
			}
			tracker.update(int64(n), f.Name)
		}

		if errors.Is(readErr, io.EOF) {
			tracker.flush(f.Name)
			return nil
		}
		if readErr != nil {
			return wrapOp("read entry", f.Name, readErr)
		}
	}
}
