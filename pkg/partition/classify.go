package partition

import "time"

// FileRecord is one regular file found under the source root.
type FileRecord struct {
	// Path is the absolute host path.
	Path string
	// RelPath is the slash-separated path relative to the source root, used as entry name.
	RelPath string
	Size    int64
	ModTime time.Time
}

// Classify splits files into those that fit under threshold and those that
// do not. A file exactly at the threshold is normal. Both lists keep the
// input order.
func Classify(files []FileRecord, threshold int64) (normal, oversized []FileRecord) {
	normal = make([]FileRecord, 0, len(files))
	for _, f := range files {
		if f.Size > threshold {
			oversized = append(oversized, f)
			continue
		}
		normal = append(normal, f)
	}
	return normal, oversized
}

func totalSize(files []FileRecord) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}
