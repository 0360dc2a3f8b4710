package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const histogramMax = time.Hour

// durationHistogram records durations in microseconds.
type durationHistogram struct {
	hist *hdrhistogram.Histogram
}

func newDurationHistogram() *durationHistogram {
	// 1us to 1h, 3 significant figures
	return &durationHistogram{hist: hdrhistogram.New(1, int64(histogramMax/time.Microsecond), 3)}
}

// Record clamps d into the trackable range.
func (h *durationHistogram) Record(d time.Duration) error {
	us := min(max(d.Microseconds(), 1), int64(histogramMax/time.Microsecond))
	return h.hist.RecordValue(us)
}

func (h *durationHistogram) Quantile(q float64) time.Duration {
	return time.Duration(h.hist.ValueAtQuantile(q)) * time.Microsecond
}

func (h *durationHistogram) Count() int64 {
	return h.hist.TotalCount()
}
