package partition

import (
	"context"
	"path/filepath"
)

// archiveInFlight is the archive currently receiving entries.
type archiveInFlight struct {
	index    int // sequence index, starts at 1
	ordinal  int // creation ordinal across the whole job
	path     string
	rawBytes int64
	writer   ArchiveWriter
}

// sequencer packs files, in order, into a rolling series of archives. It owns
// the open archive exclusively and closes it on every exit path.
type sequencer struct {
	job       *job
	threshold int64
	name      func(index int) string
	index     int
	current   *archiveInFlight
}

func newSequencer(j *job, threshold int64, name func(index int) string) *sequencer {
	return &sequencer{
		job:       j,
		threshold: threshold,
		name:      name,
	}
}

// run consumes files strictly in order. A file rolls the sequence over when it
// would push a non-empty archive past the threshold; a file larger than the
// threshold is still admitted into an empty archive.
func (s *sequencer) run(ctx context.Context, files []FileRecord) (err error) {
	defer func() {
		if closeErr := s.closeCurrent(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.current != nil && s.current.rawBytes > 0 && s.current.rawBytes+file.Size > s.threshold {
			if err := s.closeCurrent(); err != nil {
				return err
			}
		}

		if s.current == nil {
			if err := s.open(); err != nil {
				return err
			}
		}

		s.job.logger.Debug("adding entry", "archive", s.current.path, "entry", file.RelPath, "size", file.Size)

		if err := s.job.writeEntry(ctx, file, s.current.writer, s.current.ordinal); err != nil {
			return err
		}
		s.current.rawBytes += file.Size
	}

	return nil
}

func (s *sequencer) open() error {
	s.index++
	path := filepath.Join(s.job.destination, s.name(s.index))

	aw, ordinal, err := s.job.openArchive(path)
	if err != nil {
		return err
	}

	s.current = &archiveInFlight{
		index:   s.index,
		ordinal: ordinal,
		path:    path,
		writer:  aw,
	}

	s.job.logger.Info("archive opened", "path", path, "index", s.index)
	return nil
}

// closeCurrent is idempotent; the handle is released even when Close fails.
func (s *sequencer) closeCurrent() error {
	if s.current == nil {
		return nil
	}

	current := s.current
	s.current = nil

	if err := current.writer.Close(); err != nil {
		return wrapAccess("close archive", current.path, err)
	}

	s.job.logger.Info("archive closed", "path", current.path, "raw_bytes", current.rawBytes)
	return nil
}
