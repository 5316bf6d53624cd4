package reservation

import (
	"math"
	"sort"
	"sync"

	"gonum.org/v1/gonum/stat"
)

// accuracyWindow keeps the |actual - promised| samples of the most
// recent fulfilled reservations in a fixed-size ring.
type accuracyWindow struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

func newAccuracyWindow(size int) *accuracyWindow {
	if size <= 0 {
		size = 200
	}
	return &accuracyWindow{samples: make([]float64, size)}
}

func (w *accuracyWindow) add(promised, actual float64) {
	w.mu.Lock()
	w.samples[w.next] = math.Abs(actual - promised)
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
	w.mu.Unlock()
}

// p90 returns the 90th percentile of the window, 0 when empty. A
// single outlier in a small window can push the metric above an
// alerting threshold, which is intended: honesty regressions should
// surface immediately.
func (w *accuracyWindow) p90() float64 {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	data := make([]float64, n)
	copy(data, w.samples[:n])
	w.mu.Unlock()
	if n == 0 {
		return 0
	}
	sort.Float64s(data)
	return stat.Quantile(0.9, stat.Empirical, data, nil)
}
