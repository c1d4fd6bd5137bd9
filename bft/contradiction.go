package bft

import "github.com/celestiaorg/headerbft/types"

// HeadersContradict reports whether two headers violate the fork choice rules
// for a single proposer. The result does not depend on argument order.
func HeadersContradict(a, b *types.Header) bool {
	x, y := CanonicalOrder(a, b)

	switch {
	case !x.SameProposer(y):
		return false
	case x.Equal(y):
		return false
	case x.HeightPrevoted == y.HeightPrevoted && x.Height >= y.Height:
		// moved to another branch without a higher prevoted height or height
		// as justification. This covers double forging.
		return true
	case x.Height > y.HeightPrevious:
		// claimed ancestries are not disjoint
		return true
	case x.HeightPrevoted > y.HeightPrevoted:
		// left the branch with the higher prevoted height
		return true
	default:
		return false
	}
}

// CanonicalOrder returns the pair with the header that must have been
// proposed first in front, ordered by (HeightPrevious, HeightPrevoted, Height).
// Ties keep the argument order.
func CanonicalOrder(a, b *types.Header) (*types.Header, *types.Header) {
	if a.HeightPrevious != b.HeightPrevious {
		if a.HeightPrevious > b.HeightPrevious {
			return b, a
		}
		return a, b
	}
	if a.HeightPrevoted != b.HeightPrevoted {
		if a.HeightPrevoted > b.HeightPrevoted {
			return b, a
		}
		return a, b
	}
	if a.Height > b.Height {
		return b, a
	}
	return a, b
}

// ContradictsStoredChain reports whether h contradicts the most recent stored
// header of its proposer in [max-offset, max] of the window. Only that one
// header is compared. An offset of 0 checks the tip alone; a negative offset
// selects VoteOffset.
func (t *Tracker) ContradictsStoredChain(h *types.Header, offset int64) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if offset < 0 {
		offset = t.cfg.VoteOffset
	}
	stored := t.latestByProposer(h, offset)
	return stored != nil && HeadersContradict(stored, h)
}

// latestByProposer returns the highest stored header in
// [max(min, max-offset), max] proposed by h's proposer, or nil.
//
// CONTRACT: mtx must be held.
func (t *Tracker) latestByProposer(h *types.Header, offset int64) *types.Header {
	if t.win.empty() {
		return nil
	}
	lo := max(t.win.min, t.win.max-offset)
	for j := t.win.max; j >= lo; j-- {
		if stored := t.win.at(j).header; stored.SameProposer(h) {
			return stored
		}
	}
	return nil
}
