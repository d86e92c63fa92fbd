package main

import (
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/tragoedia0722/partition/pkg/partition"
)

// percentBar renders whole-job percentages from partition events.
func percentBar(description string) (*progressbar.ProgressBar, partition.ProgressFunc) {
	if quiet {
		return nil, nil
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionFullWidth(),
		progressbar.OptionClearOnFinish(),
	)

	return bar, func(ev partition.Event) {
		_ = bar.Set(int(ev.Percent))
	}
}

// byteBar renders byte counts reported by the extractor.
func byteBar(description string) (*progressbar.ProgressBar, func(completed, total int64, current string)) {
	if quiet {
		return nil, nil
	}

	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	return bar, func(completed, total int64, _ string) {
		if bar.GetMax64() != total {
			bar.ChangeMax64(total)
		}
		_ = bar.Set64(completed)
	}
}

func finishBar(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Finish()
	}
}
