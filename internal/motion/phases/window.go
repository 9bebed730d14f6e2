package phases

import (
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/serve.report/internal/motion/biomech"
)

// window is a fixed-capacity FIFO of the most recent snapshots.
type window struct {
	buf  []biomech.MetricsSnapshot
	size int
}

func newWindow(size int) window {
	return window{buf: make([]biomech.MetricsSnapshot, 0, size), size: size}
}

func (w *window) push(s biomech.MetricsSnapshot) {
	if len(w.buf) == w.size {
		copy(w.buf, w.buf[1:])
		w.buf = w.buf[:len(w.buf)-1]
	}
	w.buf = append(w.buf, s)
}

// recent returns up to n of the newest snapshots, oldest first. The result
// aliases the window and must not be retained.
func (w *window) recent(n int) []biomech.MetricsSnapshot {
	if n > len(w.buf) {
		n = len(w.buf)
	}
	return w.buf[len(w.buf)-n:]
}

func (w *window) len() int { return len(w.buf) }

func (w *window) clear() { w.buf = w.buf[:0] }

// metric selects one optional scalar from a snapshot.
type metric func(biomech.MetricsSnapshot) *float64

func kneeFlexion(s biomech.MetricsSnapshot) *float64   { return s.KneeFlexion() }
func contactHeight(s biomech.MetricsSnapshot) *float64 { return s.ContactHeight() }

// endpoints returns the metric at the first and last sample. ok is false when
// there are no samples or either endpoint is unset.
func endpoints(samples []biomech.MetricsSnapshot, m metric) (first, last float64, ok bool) {
	if len(samples) == 0 {
		return 0, 0, false
	}
	f, l := m(samples[0]), m(samples[len(samples)-1])
	if f == nil || l == nil {
		return 0, 0, false
	}
	return *f, *l, true
}

// maxOf returns the largest set value of m across samples.
func maxOf(samples []biomech.MetricsSnapshot, m metric) (float64, bool) {
	vals := make([]float64, 0, len(samples))
	for _, s := range samples {
		if v := m(s); v != nil {
			vals = append(vals, *v)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return floats.Max(vals), true
}
