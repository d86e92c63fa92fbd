// Package partition splits a directory tree into size-bounded ZIP archives,
// or packs it into a single archive, streaming every file in fixed-size chunks.
//
// A job runs in four sequential stages:
//
//   - enumerate every regular file under the source root
//   - classify files against the effective raw-byte threshold
//   - apply the oversized policy (fail, isolate, skip, copy) to files above it
//   - pack the remaining files, in order, into archive001.zip, archive002.zip, ...
//
// Progress is reported for the whole job, not per archive: the percentage is
// cumulative bytes processed over the sum of all enumerated file sizes.
//
// Example usage:
//
//	cfg := partition.DefaultConfig()
//	cfg.MaxSizeBytes = 25 << 20
//	cfg.OversizedPolicy = partition.PolicyIsolate
//
//	result, err := partition.New("/data/export", "/data/out", cfg).
//	    WithProgress(func(ev partition.Event) {
//	        fmt.Printf("%5.1f%% %s\n", ev.Percent, ev.Description)
//	    }).
//	    Run(ctx)
//
// Thread Safety:
//
// A Partitioner runs one job on the calling goroutine. Jobs writing to
// different destinations can run concurrently; jobs sharing a destination are
// serialised by a lock file in that destination.
package partition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/go-homedir"
	"github.com/rogpeppe/go-internal/lockedfile"
	"github.com/tragoedia0722/partition/internal/storage"
	"github.com/tragoedia0722/partition/pkg/helper"
)

type Partitioner struct {
	source      string
	destination string
	cfg         Config
	progress    ProgressFunc
	logger      hclog.Logger
	opener      ArchiveOpener
}

// New creates a Partitioner for one source tree and destination directory.
// Both paths may start with "~".
func New(source, destination string, cfg Config) *Partitioner {
	return &Partitioner{
		source:      source,
		destination: destination,
		cfg:         cfg,
		logger:      hclog.NewNullLogger(),
		opener:      OpenZipArchive,
	}
}

// WithProgress sets the sink that receives progress events.
// Returns the partitioner for method chaining.
func (p *Partitioner) WithProgress(fn ProgressFunc) *Partitioner {
	p.progress = fn
	return p
}

// WithLogger sets the logger; nil restores the null logger.
func (p *Partitioner) WithLogger(logger hclog.Logger) *Partitioner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	p.logger = logger
	return p
}

// WithArchiveOpener replaces the ZIP writer, mainly for tests.
func (p *Partitioner) WithArchiveOpener(opener ArchiveOpener) *Partitioner {
	if opener != nil {
		p.opener = opener
	}
	return p
}

// job is the mutable state of one Run: counters, result and the files written
// so far. It is passed down explicitly and never shared between runs.
type job struct {
	cfg         Config
	destination string
	threshold   int64
	opener      ArchiveOpener
	logger      hclog.Logger
	progress    *progressTracker
	result      *Result
	buf         []byte
	usedNames   map[string]bool
	created     []string
}

func (j *job) archiveIndex() int {
	return len(j.result.Archives)
}

// openArchive creates an archive and registers it in the result.
func (j *job) openArchive(path string) (ArchiveWriter, int, error) {
	aw, err := j.opener(path, j.cfg.compressionLevel())
	if err != nil {
		return nil, 0, wrapAccess("create archive", path, err)
	}

	j.result.Archives = append(j.result.Archives, path)
	j.created = append(j.created, path)
	j.usedNames[filepath.Base(path)] = true

	return aw, len(j.result.Archives), nil
}

// Run executes the job. Configuration problems are reported as *ConfigError
// with a nil Result. Any later failure returns the Result filled so far, which
// lists the archives left on disk, together with the error:
// *OversizedFileError, *FileAccessError, or ctx.Err() on cancellation.
func (p *Partitioner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	threshold, err := p.cfg.EffectiveThreshold()
	if err != nil {
		return nil, err
	}

	source, destination, err := p.resolvePaths()
	if err != nil {
		return nil, err
	}

	unlock, err := lockedfile.MutexAt(filepath.Join(destination, lockFileName)).Lock()
	if err != nil {
		return nil, wrapAccess("lock", destination, err)
	}
	// The lock file is left in place so every job locks the same inode.
	defer unlock()

	result := &Result{
		Strategy:  p.cfg.Strategy,
		Threshold: threshold,
	}
	defer func() {
		result.Elapsed = time.Since(start)
	}()

	files, err := Enumerate(ctx, source, destination)
	if err != nil {
		return result, err
	}

	total := totalSize(files)
	result.TotalFiles = len(files)
	result.TotalBytes = total

	j := &job{
		cfg:         p.cfg,
		destination: destination,
		threshold:   threshold,
		opener:      p.opener,
		logger:      p.logger,
		progress:    newProgressTracker(total, p.progress),
		result:      result,
		buf:         make([]byte, p.cfg.chunkSize()),
		usedNames:   make(map[string]bool),
	}

	p.logger.Info("partition job started",
		"source", source, "destination", destination,
		"strategy", p.cfg.Strategy, "threshold", threshold,
		"files", len(files), "bytes", total)

	if len(files) == 0 {
		j.progress.finish(0, descriptionNoFiles)
		p.logger.Info("no files to compress", "source", source)
		return result, nil
	}

	if p.cfg.Strategy == SingleArchive {
		err = j.runSingle(ctx, files)
	} else {
		err = j.runSplit(ctx, files)
	}

	result.BytesProcessed = j.progress.getProcessed()

	if err != nil {
		if p.cfg.CleanupOnFailure && !isCancellation(err) {
			j.cleanup()
		}
		p.logger.Error("partition job failed", "error", err, "archives", len(result.Archives))
		return result, err
	}

	j.progress.finish(j.archiveIndex(), descriptionCompleted)

	p.logger.Info("partition job completed",
		"archives", len(result.Archives),
		"special_handling", len(result.SpecialHandling),
		"bytes", result.BytesProcessed,
		"elapsed", time.Since(start))

	return result, nil
}

func (j *job) runSingle(ctx context.Context, files []FileRecord) error {
	name := j.cfg.SingleArchiveName
	seq := newSequencer(j, j.threshold, func(int) string { return name })
	return seq.run(ctx, files)
}

func (j *job) runSplit(ctx context.Context, files []FileRecord) error {
	normal, oversized := Classify(files, j.threshold)

	j.logger.Debug("files classified", "normal", len(normal), "oversized", len(oversized), "threshold", j.threshold)

	if j.cfg.OversizedPolicy == PolicyCopyUncompressed {
		if err := j.checkCopyTargets(oversized); err != nil {
			return err
		}
	}

	for _, file := range oversized {
		if err := j.handleOversized(ctx, file); err != nil {
			return err
		}
	}

	seq := newSequencer(j, j.threshold, helper.ArchiveName)
	return seq.run(ctx, normal)
}

// cleanup removes everything the job wrote; directories created for verbatim
// copies are left in place.
func (j *job) cleanup() {
	for i := len(j.created) - 1; i >= 0; i-- {
		path := j.created[i]
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("failed to remove partial output", "path", path, "error", err)
			continue
		}
		j.logger.Debug("removed partial output", "path", path)
	}
	j.result.Archives = nil
}

// resolvePaths expands and validates the source and destination directories,
// creating the destination if needed.
func (p *Partitioner) resolvePaths() (string, string, error) {
	source, err := expandPath(p.source)
	if err != nil {
		return "", "", &ConfigError{Field: "Source", Value: p.source, Reason: err.Error()}
	}

	info, err := os.Stat(source)
	if err != nil {
		return "", "", &ConfigError{Field: "Source", Value: p.source, Reason: err.Error()}
	}
	if !info.IsDir() {
		return "", "", &ConfigError{Field: "Source", Value: p.source, Reason: "not a directory"}
	}

	destination, err := expandPath(p.destination)
	if err != nil {
		return "", "", &ConfigError{Field: "Destination", Value: p.destination, Reason: err.Error()}
	}

	if destination == source {
		return "", "", &ConfigError{Field: "Destination", Value: p.destination, Reason: "must differ from the source directory"}
	}

	if err := storage.Writable(destination); err != nil {
		return "", "", &ConfigError{Field: "Destination", Value: p.destination, Reason: err.Error()}
	}

	return source, destination, nil
}

func expandPath(path string) (string, error) {
	if path == "" {
		return "", errors.New("no path provided")
	}

	expanded, err := homedir.Expand(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	return filepath.Abs(expanded)
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
