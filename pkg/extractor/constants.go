package extractor

const (
	// copyBufferSize is the chunk size used to stream entries to disk (256KB).
	copyBufferSize = 256 * 1024

	// dirPermissions is the default permissions for directories (rwxr-xr-x)
	dirPermissions = 0o755

	// filePermissions is the default permissions for files (rw-r--r--)
	filePermissions = 0o644

	// progressUpdateThreshold is the minimum number of bytes written before the
	// progress callback fires again; the last chunk of every entry always fires.
	progressUpdateThreshold = 256 * 1024
)
