package logstore

import "github.com/Talis-dev/logvault/pkg/logentry"

// ring is a fixed-capacity FIFO over a preallocated arena. When full, push
// overwrites the oldest slot.
type ring struct {
	buf   []logentry.Entry
	start int
	n     int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]logentry.Entry, capacity)}
}

func (r *ring) size() int     { return r.n }
func (r *ring) capacity() int { return len(r.buf) }

func (r *ring) slot(i int) int { return (r.start + i) % len(r.buf) }

// push appends e and reports whether the oldest entry was evicted.
func (r *ring) push(e logentry.Entry) bool {
	if r.n < len(r.buf) {
		r.buf[r.slot(r.n)] = e
		r.n++
		return false
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
	return true
}

func (r *ring) at(i int) *logentry.Entry { return &r.buf[r.slot(i)] }

// snapshot copies the live entries, oldest first.
func (r *ring) snapshot() []logentry.Entry {
	out := make([]logentry.Entry, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = *r.at(i)
	}
	return out
}

// removeIf drops every entry matching pred, compacting survivors in place
// so their relative order holds. Returns the number removed.
func (r *ring) removeIf(pred func(*logentry.Entry) bool) int {
	w := 0
	for i := 0; i < r.n; i++ {
		e := r.at(i)
		if pred(e) {
			continue
		}
		if w != i {
			*r.at(w) = *e
		}
		w++
	}
	removed := r.n - w
	for i := w; i < r.n; i++ {
		*r.at(i) = logentry.Entry{}
	}
	r.n = w
	return removed
}

func (r *ring) reset() {
	clear(r.buf)
	r.start, r.n = 0, 0
}
