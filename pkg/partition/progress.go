package partition

// Event is one progress notification. Percent and BytesProcessed never
// decrease within a job, and the last event of a successful job has Percent 100.
//
// ArchiveIndex counts archives in creation order across the whole job,
// sequence and isolated archives alike, starting at 1. Skipped files and
// verbatim copies write no archive and are handled before the first one opens,
// so their events report 0, as does the terminal event of an empty job.
type Event struct {
	Percent        float64
	ArchiveIndex   int
	BytesProcessed int64
	TotalBytes     int64
	Description    string
}

// ProgressFunc receives progress events synchronously on the job's goroutine.
type ProgressFunc func(Event)

// progressTracker accumulates processed bytes across every archive and every
// oversized file of one job. A job runs on a single goroutine, so no locking.
type progressTracker struct {
	total       int64
	processed   int64
	lastPercent float64
	callback    ProgressFunc
}

func newProgressTracker(total int64, callback ProgressFunc) *progressTracker {
	return &progressTracker{
		total:    total,
		callback: callback,
	}
}

// add advances the processed counter; negative values are ignored.
func (pt *progressTracker) add(n int64) {
	if n > 0 {
		pt.processed += n
	}
}

func (pt *progressTracker) percent() float64 {
	p := 100.0
	if pt.total > 0 {
		p = float64(pt.processed) / float64(pt.total) * 100
	}

	if p > 100 {
		p = 100
	}
	if p < pt.lastPercent {
		p = pt.lastPercent
	}

	pt.lastPercent = p
	return p
}

func (pt *progressTracker) emit(archiveIndex int, description string) {
	if pt.callback == nil {
		return
	}

	pt.callback(Event{
		Percent:        pt.percent(),
		ArchiveIndex:   archiveIndex,
		BytesProcessed: pt.processed,
		TotalBytes:     pt.total,
		Description:    description,
	})
}

// finish emits the terminal 100% event.
func (pt *progressTracker) finish(archiveIndex int, description string) {
	pt.lastPercent = 100
	if pt.callback == nil {
		return
	}

	pt.callback(Event{
		Percent:        100,
		ArchiveIndex:   archiveIndex,
		BytesProcessed: pt.processed,
		TotalBytes:     pt.total,
		Description:    description,
	})
}

func (pt *progressTracker) getProcessed() int64 {
	return pt.processed
}
