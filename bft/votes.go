package bft

import "github.com/celestiaorg/headerbft/types"

// applyVotes credits the prevotes and precommits implied by h, which must be
// stored in the window.
//
// CONTRACT: mtx must be held.
func (t *Tracker) applyVotes(h *types.Header) {
	if !h.ImpliesVotes() {
		return
	}
	key := string(h.ProposerAddress)

	// Precommits go to heights that already have enough prevotes, scanned
	// from the top. The first one credited is remembered so later headers of
	// the same proposer never precommit twice.
	minPrecommit := max(
		t.lastConsistentPrevoteHeight(h)+1,
		h.HeightSinceActive,
		t.lastPrecommit[key]+1,
		t.win.min,
	)
	precommitted := false
	for j := h.Height - 1; j >= minPrecommit; j-- {
		s := t.win.at(j)
		if s.prevotes < t.cfg.PrevoteThreshold {
			continue
		}
		s.precommits++
		if !precommitted {
			precommitted = true
			t.lastPrecommit[key] = j
		}
	}

	minPrevote := max(
		t.win.min,
		h.HeightPrevious+1,
		h.HeightSinceActive,
		h.Height-t.cfg.VoteOffset,
	)
	for j := minPrevote; j <= h.Height; j++ {
		t.win.at(j).prevotes++
	}
}

// lastConsistentPrevoteHeight walks the chain of ancestors h claims through
// its proposer's previous headers and returns the height where that chain
// breaks. If it never breaks within the window and the vote offset, the lower
// scan bound minus one is returned. Precommits by h's proposer are only
// attributed strictly above the returned height.
//
// CONTRACT: mtx must be held.
func (t *Tracker) lastConsistentPrevoteHeight(h *types.Header) int64 {
	lo := max(t.win.min, h.Height-t.cfg.VoteOffset)
	prev := h.HeightPrevious

	height := max(h.HeightPrevious, h.Height-t.cfg.VoteOffset)
	for ; height >= lo; height-- {
		if height != prev {
			continue
		}
		ancestor := t.win.at(height).header
		if !ancestor.SameProposer(h) || ancestor.HeightPrevious >= height {
			break
		}
		prev = ancestor.HeightPrevious
	}
	return height
}

// updateCursors recomputes the prevoted height and raises the finalized
// height from the current counts.
//
// CONTRACT: mtx must be held.
func (t *Tracker) updateCursors() {
	if t.win.empty() {
		return
	}
	oldPrevoted, oldFinalized := t.heightPrevoted, t.heightFinalized

	// The tip was admitted against the prevoted height it echoes, so that
	// value is a verified lower bound.
	t.heightPrevoted = t.win.at(t.win.max).header.HeightPrevoted
	lo := max(t.win.min, t.heightPrevoted)
	for j := t.win.max; j >= lo; j-- {
		if t.win.at(j).prevotes >= t.cfg.PrevoteThreshold {
			t.heightPrevoted = j
			break
		}
	}

	// finalized is never lowered
	lo = max(t.win.min, t.heightFinalized)
	for j := min(t.heightPrevoted, t.win.max); j >= lo; j-- {
		if t.win.at(j).precommits >= t.cfg.PrecommitThreshold {
			t.heightFinalized = j
			break
		}
	}

	if t.heightPrevoted != oldPrevoted {
		t.logger.Debug("prevoted height changed", "from", oldPrevoted, "to", t.heightPrevoted)
		t.metrics.HeightPrevoted.Set(float64(t.heightPrevoted))
	}
	if t.heightFinalized != oldFinalized {
		t.logger.Info("finalized height advanced", "from", oldFinalized, "to", t.heightFinalized)
		t.metrics.HeightFinalized.Set(float64(t.heightFinalized))
	}
}

// recompute zeroes all counts and replays every stored header in height
// order, as if the window had been built from scratch.
//
// CONTRACT: mtx must be held.
func (t *Tracker) recompute() {
	t.lastPrecommit = make(map[string]int64, t.win.n)
	for j := t.win.min; j <= t.win.max; j++ {
		s := t.win.at(j)
		s.prevotes, s.precommits = 0, 0
		t.lastPrecommit[string(s.header.ProposerAddress)] = t.win.min - 1
	}
	for j := t.win.min; j <= t.win.max; j++ {
		t.applyVotes(t.win.at(j).header)
	}
	t.updateCursors()
	t.metrics.Recomputations.Add(1)
}
