package partition

import "time"

// SpecialHandling records what happened to one oversized file.
type SpecialHandling struct {
	Path    string
	RelPath string
	Size    int64
	Policy  OversizedPolicy
	// Output is the isolated archive or the verbatim copy; empty for PolicySkip.
	Output string
	Reason string
}

// Result is the report of one job.
type Result struct {
	// Archives lists every archive created, in creation order.
	Archives        []string
	SpecialHandling []SpecialHandling
	BytesProcessed  int64
	TotalBytes      int64
	TotalFiles      int
	Threshold       int64
	Elapsed         time.Duration
	Strategy        Strategy
}

// HasWarnings reports whether any file needed special handling.
func (r *Result) HasWarnings() bool {
	return len(r.SpecialHandling) > 0
}
