// Package validator checks the output of a partition job against its source
// tree: every file must appear exactly once, in an archive or as a verbatim
// copy, with the same size and CRC-32.
package validator

import (
	"context"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/klauspost/compress/zip"
	"github.com/tragoedia0722/partition/pkg/partition"
)

type Validator struct {
	source  string
	exclude []string
	deep    bool
	logger  hclog.Logger
	buf     []byte
}

// Report is the outcome of one validation. Paths are source-relative entry
// names using forward slashes.
type Report struct {
	IsComplete   bool
	Missing      []string
	Mismatched   []string
	Unexpected   []string
	CheckedFiles int
	CheckedBytes int64
	ErrorDetails []string
}

func NewValidator(source string) *Validator {
	return &Validator{
		source: source,
		logger: hclog.NewNullLogger(),
		buf:    make([]byte, partition.DefaultChunkSize),
	}
}

// WithExclude skips directories under the source, typically a destination
// nested inside it.
func (v *Validator) WithExclude(dirs ...string) *Validator {
	v.exclude = append(v.exclude, dirs...)
	return v
}

// WithDeepCheck makes Validate decompress every entry so that corrupt archive
// data is caught, not only header mismatches.
func (v *Validator) WithDeepCheck(deep bool) *Validator {
	v.deep = deep
	return v
}

func (v *Validator) WithLogger(logger hclog.Logger) *Validator {
	if logger != nil {
		v.logger = logger
	}
	return v
}

// Validate compares result against the source tree. Problems with the output
// are reported in the Report; only enumeration failures and cancellation are
// returned as errors.
func (v *Validator) Validate(ctx context.Context, result *partition.Result) (*Report, error) {
	files, err := partition.Enumerate(ctx, v.source, v.exclude...)
	if err != nil {
		return nil, err
	}

	expected := make(map[string]partition.FileRecord, len(files))
	for _, f := range files {
		expected[f.RelPath] = f
	}

	report := &Report{}
	seen := make(map[string]bool, len(files))

	for _, sh := range result.SpecialHandling {
		if sh.Policy == partition.PolicySkip {
			delete(expected, sh.RelPath)
		}
	}

	for _, archive := range result.Archives {
		if err := v.checkArchive(ctx, archive, expected, seen, report); err != nil {
			return nil, err
		}
	}

	for _, sh := range result.SpecialHandling {
		if sh.Policy != partition.PolicyCopyUncompressed {
			continue
		}
		if err := v.checkCopy(ctx, sh, expected, seen, report); err != nil {
			return nil, err
		}
	}

	for rel := range expected {
		if !seen[rel] {
			report.Missing = append(report.Missing, rel)
		}
	}

	sort.Strings(report.Missing)
	sort.Strings(report.Mismatched)
	sort.Strings(report.Unexpected)

	report.IsComplete = len(report.Missing) == 0 && len(report.Mismatched) == 0 &&
		len(report.Unexpected) == 0 && len(report.ErrorDetails) == 0

	v.logger.Info("validation finished",
		"complete", report.IsComplete,
		"checked", report.CheckedFiles,
		"missing", len(report.Missing),
		"mismatched", len(report.Mismatched),
		"unexpected", len(report.Unexpected))

	return report, nil
}

func (v *Validator) checkArchive(ctx context.Context, path string, expected map[string]partition.FileRecord, seen map[string]bool, report *Report) error {
	zr, err := zip.OpenReader(path)
	if err != nil {
		report.ErrorDetails = append(report.ErrorDetails, fmt.Sprintf("cannot read archive %s: %v", path, err))
		return nil
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		src, ok := expected[zf.Name]
		if !ok || seen[zf.Name] {
			report.Unexpected = append(report.Unexpected, zf.Name)
			continue
		}
		seen[zf.Name] = true

		if v.deep {
			if err := v.drain(ctx, zf); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				report.Mismatched = append(report.Mismatched, zf.Name)
				report.ErrorDetails = append(report.ErrorDetails, fmt.Sprintf("%s in %s: %v", zf.Name, path, err))
				continue
			}
		}

		if err := v.compare(ctx, src, int64(zf.UncompressedSize64), zf.CRC32, report); err != nil {
			return err
		}
	}

	return nil
}

func (v *Validator) checkCopy(ctx context.Context, sh partition.SpecialHandling, expected map[string]partition.FileRecord, seen map[string]bool, report *Report) error {
	src, ok := expected[sh.RelPath]
	if !ok || seen[sh.RelPath] {
		report.Unexpected = append(report.Unexpected, sh.RelPath)
		return nil
	}
	seen[sh.RelPath] = true

	sum, size, err := v.checksum(ctx, sh.Output)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.Mismatched = append(report.Mismatched, sh.RelPath)
		report.ErrorDetails = append(report.ErrorDetails, fmt.Sprintf("cannot read copy %s: %v", sh.Output, err))
		return nil
	}

	return v.compare(ctx, src, size, sum, report)
}

// compare checks one output against its source file and updates the report.
func (v *Validator) compare(ctx context.Context, src partition.FileRecord, size int64, sum uint32, report *Report) error {
	srcSum, srcSize, err := v.checksum(ctx, src.Path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		report.ErrorDetails = append(report.ErrorDetails, fmt.Sprintf("cannot read source %s: %v", src.Path, err))
		return nil
	}

	if srcSize != size || srcSum != sum {
		v.logger.Debug("content mismatch", "entry", src.RelPath, "size", size, "source_size", srcSize)
		report.Mismatched = append(report.Mismatched, src.RelPath)
		return nil
	}

	report.CheckedFiles++
	report.CheckedBytes += size
	return nil
}

// drain reads an entry to the end; the zip reader verifies its CRC-32 at EOF.
func (v *Validator) drain(ctx context.Context, zf *zip.File) error {
	rc, err := zf.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	_, err = v.copy(ctx, io.Discard, rc)
	return err
}

func (v *Validator) checksum(ctx context.Context, path string) (uint32, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	h := crc32.NewIEEE()
	n, err := v.copy(ctx, h, f)
	if err != nil {
		return 0, 0, err
	}
	return h.Sum32(), n, nil
}

func (v *Validator) copy(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := src.Read(v.buf)
		if n > 0 {
			if _, werr := dst.Write(v.buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
