package partition

import (
	"fmt"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/tragoedia0722/partition/pkg/helper"
)

// Strategy selects between size-bounded splitting and a single archive.
type Strategy int

const (
	SplitBySize Strategy = iota
	SingleArchive
)

func (s Strategy) String() string {
	switch s {
	case SplitBySize:
		return "split"
	case SingleArchive:
		return "single"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy accepts "split" or "single".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "split", "split-by-size":
		return SplitBySize, nil
	case "single", "single-archive":
		return SingleArchive, nil
	}
	return 0, &ConfigError{Field: "Strategy", Value: s, Reason: "expected split or single"}
}

// SizeLimitKind tells how MaxSizeBytes is interpreted.
type SizeLimitKind int

const (
	// UncompressedData limits the raw bytes packed into one archive.
	UncompressedData SizeLimitKind = iota
	// CompressedArchiveEstimate limits the estimated size of the archive file.
	CompressedArchiveEstimate
)

func (k SizeLimitKind) String() string {
	switch k {
	case UncompressedData:
		return "uncompressed"
	case CompressedArchiveEstimate:
		return "compressed"
	default:
		return fmt.Sprintf("SizeLimitKind(%d)", int(k))
	}
}

// ParseSizeLimitKind accepts "uncompressed" or "compressed".
func ParseSizeLimitKind(s string) (SizeLimitKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uncompressed", "raw":
		return UncompressedData, nil
	case "compressed", "estimate":
		return CompressedArchiveEstimate, nil
	}
	return 0, &ConfigError{Field: "SizeLimitKind", Value: s, Reason: "expected uncompressed or compressed"}
}

// OversizedPolicy decides what happens to a file larger than the effective threshold.
type OversizedPolicy int

const (
	PolicyFail OversizedPolicy = iota
	PolicyIsolate
	PolicySkip
	PolicyCopyUncompressed
)

func (p OversizedPolicy) String() string {
	switch p {
	case PolicyFail:
		return "fail"
	case PolicyIsolate:
		return "isolate"
	case PolicySkip:
		return "skip"
	case PolicyCopyUncompressed:
		return "copy"
	default:
		return fmt.Sprintf("OversizedPolicy(%d)", int(p))
	}
}

// ParseOversizedPolicy accepts "fail", "isolate", "skip" or "copy".
func ParseOversizedPolicy(s string) (OversizedPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail":
		return PolicyFail, nil
	case "isolate", "own-archive":
		return PolicyIsolate, nil
	case "skip":
		return PolicySkip, nil
	case "copy", "copy-uncompressed":
		return PolicyCopyUncompressed, nil
	}
	return 0, &ConfigError{Field: "OversizedPolicy", Value: s, Reason: "expected fail, isolate, skip or copy"}
}

// Config describes one partitioning job. It is treated as immutable once Run starts.
type Config struct {
	Strategy          Strategy
	MaxSizeBytes      int64
	SizeLimitKind     SizeLimitKind
	CompressionRatio  float64
	OversizedPolicy   OversizedPolicy
	SingleArchiveName string

	// CompressionLevel is a flate level, flate.HuffmanOnly through
	// flate.BestCompression, or StoreOnly. Zero means DefaultCompressionLevel,
	// so flate.NoCompression has to be requested as StoreOnly.
	CompressionLevel int

	// ChunkSize overrides DefaultChunkSize when positive.
	ChunkSize int

	// CleanupOnFailure removes the archives and copies written by a job that
	// fails with an OversizedFileError or FileAccessError. Cancelled jobs always
	// keep their completed archives.
	CleanupOnFailure bool
}

// DefaultConfig returns a SplitBySize configuration with a 100MB raw budget.
func DefaultConfig() Config {
	return Config{
		Strategy:          SplitBySize,
		MaxSizeBytes:      DefaultMaxSize,
		SizeLimitKind:     UncompressedData,
		CompressionRatio:  DefaultCompressionRatio,
		OversizedPolicy:   PolicyFail,
		SingleArchiveName: DefaultSingleArchiveName,
		CompressionLevel:  DefaultCompressionLevel,
		ChunkSize:         DefaultChunkSize,
	}
}

// Validate checks every field that does not need the filesystem.
func (c Config) Validate() error {
	switch c.Strategy {
	case SplitBySize, SingleArchive:
	default:
		return &ConfigError{Field: "Strategy", Value: c.Strategy, Reason: "unknown strategy"}
	}

	switch c.SizeLimitKind {
	case UncompressedData, CompressedArchiveEstimate:
	default:
		return &ConfigError{Field: "SizeLimitKind", Value: c.SizeLimitKind, Reason: "unknown size limit kind"}
	}

	switch c.OversizedPolicy {
	case PolicyFail, PolicyIsolate, PolicySkip, PolicyCopyUncompressed:
	default:
		return &ConfigError{Field: "OversizedPolicy", Value: c.OversizedPolicy, Reason: "unknown policy"}
	}

	if !validRatio(c.CompressionRatio) {
		return &ConfigError{Field: "CompressionRatio", Value: c.CompressionRatio, Reason: "must be in (0, 1]"}
	}

	if c.Strategy == SplitBySize && c.MaxSizeBytes < MinSplitSize {
		return &ConfigError{
			Field:  "MaxSizeBytes",
			Value:  c.MaxSizeBytes,
			Reason: fmt.Sprintf("must be at least %d bytes when splitting", MinSplitSize),
		}
	}

	if c.Strategy == SingleArchive {
		name := c.SingleArchiveName
		if strings.ContainsAny(name, `/\`) {
			return &ConfigError{Field: "SingleArchiveName", Value: name, Reason: "must be a file name, not a path"}
		}
		if !helper.HasArchiveExt(name) {
			return &ConfigError{Field: "SingleArchiveName", Value: name, Reason: "must end in " + helper.ArchiveExt}
		}
	}

	if c.CompressionLevel != StoreOnly &&
		(c.CompressionLevel < flate.HuffmanOnly || c.CompressionLevel > flate.BestCompression) {
		return &ConfigError{Field: "CompressionLevel", Value: c.CompressionLevel, Reason: "not a valid flate level"}
	}

	if c.ChunkSize < 0 {
		return &ConfigError{Field: "ChunkSize", Value: c.ChunkSize, Reason: "must not be negative"}
	}

	return nil
}

func (c Config) chunkSize() int {
	if c.ChunkSize > 0 {
		return c.ChunkSize
	}
	return DefaultChunkSize
}

func (c Config) compressionLevel() int {
	switch c.CompressionLevel {
	case 0:
		return DefaultCompressionLevel
	case StoreOnly:
		return flate.NoCompression
	default:
		return c.CompressionLevel
	}
}

func validRatio(r float64) bool {
	// NaN fails both comparisons.
	return r > 0 && r <= 1
}
