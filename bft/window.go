package bft

import "github.com/celestiaorg/headerbft/types"

// slot holds one stored height: its header and the votes implied for it.
type slot struct {
	header     *types.Header
	prevotes   int64
	precommits int64
}

// window is a fixed-capacity ring of consecutive heights. Height h lives in
// slot h mod capacity, so sliding the window forward is a single slot reset.
type window struct {
	slots []slot
	// inclusive bounds, only meaningful when n > 0
	min, max int64
	n        int64
}

func newWindow(capacity int64) *window {
	return &window{
		slots: make([]slot, capacity),
		min:   -1,
		max:   -1,
	}
}

func (w *window) capacity() int64 { return int64(len(w.slots)) }

func (w *window) empty() bool { return w.n == 0 }

func (w *window) contains(height int64) bool {
	return w.n > 0 && height >= w.min && height <= w.max
}

func (w *window) index(height int64) int64 {
	i := height % w.capacity()
	if i < 0 {
		i += w.capacity()
	}
	return i
}

// at returns the slot of a stored height. The height must be in the window.
func (w *window) at(height int64) *slot {
	return &w.slots[w.index(height)]
}

// header returns the stored header at height or nil.
func (w *window) header(height int64) *types.Header {
	if !w.contains(height) {
		return nil
	}
	return w.at(height).header
}

// push appends h at max+1 (or opens the window at h.Height) and evicts the
// oldest height once the window is over capacity. It reports whether a
// height was evicted. The caller guarantees the height is sequential.
func (w *window) push(h *types.Header) (evicted bool) {
	if w.empty() {
		w.min = h.Height
		w.max = h.Height
		w.n = 1
	} else {
		if w.n == w.capacity() {
			*w.at(w.min) = slot{}
			w.min++
			w.n--
			evicted = true
		}
		w.max++
		w.n++
	}
	*w.at(w.max) = slot{header: h}
	return evicted
}

// truncate drops every height above height. height must be in [min, max].
func (w *window) truncate(height int64) {
	for j := height + 1; j <= w.max; j++ {
		*w.at(j) = slot{}
	}
	w.max = height
	w.n = w.max - w.min + 1
}

func (w *window) reset() {
	for i := range w.slots {
		w.slots[i] = slot{}
	}
	w.min, w.max, w.n = -1, -1, 0
}
