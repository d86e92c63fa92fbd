package partition

import (
	"github.com/c2h5oh/datasize"
	"github.com/klauspost/compress/flate"
)

const (
	// DefaultChunkSize is the copy granularity of every streamed file (80KB).
	// Progress events and cancellation checks happen once per chunk.
	DefaultChunkSize = int(80 * datasize.KB)

	// MinSplitSize is the smallest MaxSizeBytes accepted by SplitBySize.
	MinSplitSize = int64(datasize.MB)

	// DefaultMaxSize is the archive budget used by DefaultConfig.
	DefaultMaxSize = int64(100 * datasize.MB)

	// DefaultCompressionRatio is the expected compressed/raw ratio used when
	// the limit is expressed as a compressed archive estimate.
	DefaultCompressionRatio = 0.7

	// DefaultCompressionLevel is the DEFLATE level used for archive entries.
	// A zero Config.CompressionLevel selects it.
	DefaultCompressionLevel = flate.DefaultCompression

	// StoreOnly writes DEFLATE entries without compressing them.
	StoreOnly = -3

	// DefaultSingleArchiveName is the archive name used by SingleArchive.
	DefaultSingleArchiveName = "archive.zip"

	// dirPermissions is the default permissions for directories (rwxr-xr-x)
	dirPermissions = 0o755

	// filePermissions is the default permissions for files (rw-r--r--)
	filePermissions = 0o644

	// lockFileName guards a destination against concurrent jobs.
	lockFileName = ".partition.lock"

	descriptionNoFiles   = "no files to compress"
	descriptionCompleted = "completed"
)
