package extractor

// ProgressFunc is called with the bytes written so far, the total
// uncompressed size of all archives and the entry being written.
type ProgressFunc func(completed, total int64, currentFile string)

// progressTracker throttles callbacks to one per progressUpdateThreshold bytes.
type progressTracker struct {
	total     int64
	completed int64
	pending   int64
	callback  ProgressFunc
}

func newProgressTracker(total int64, callback ProgressFunc) *progressTracker {
	return &progressTracker{total: total, callback: callback}
}

func (pt *progressTracker) update(n int64, name string) {
	pt.completed += n
	pt.pending += n
	if pt.pending >= progressUpdateThreshold {
		pt.flush(name)
	}
}

// flush reports any bytes not yet reported.
func (pt *progressTracker) flush(name string) {
	if pt.pending == 0 {
		return
	}
	pt.pending = 0
	if pt.callback != nil {
		pt.callback(pt.completed, pt.total, name)
	}
}

func (pt *progressTracker) getCompleted() int64 {
	return pt.completed
}
