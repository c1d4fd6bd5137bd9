package bft

import (
	"errors"

	"github.com/celestiaorg/headerbft/config"
	"github.com/celestiaorg/headerbft/libs/log"
	tmsync "github.com/celestiaorg/headerbft/libs/sync"
	"github.com/celestiaorg/headerbft/types"
)

// Tracker holds the most recent headers of the current chain together with
// the prevotes and precommits they imply, and derives the prevoted and
// finalized heights from them.
//
// All methods are safe for concurrent use. Each call holds a single lock for
// its whole duration.
type Tracker struct {
	mtx tmsync.Mutex

	cfg config.BFTConfig
	win *window

	// highest height each proposer has an implied precommit recorded for
	lastPrecommit map[string]int64

	heightPrevoted  int64
	heightFinalized int64

	logger  log.Logger
	metrics *Metrics
}

// TrackerOption sets an optional parameter on the Tracker.
type TrackerOption func(*Tracker)

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) TrackerOption {
	return func(t *Tracker) { t.metrics = metrics }
}

// NewTracker returns an empty tracker. The configuration is copied and fixed
// for the lifetime of the tracker.
func NewTracker(cfg *config.BFTConfig, options ...TrackerOption) (*Tracker, error) {
	if cfg == nil {
		return nil, errors.New("nil bft config")
	}
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}
	t := &Tracker{
		cfg:           *cfg,
		win:           newWindow(cfg.MaxStoredHeaders),
		lastPrecommit: make(map[string]int64),
		logger:        log.NewNopLogger(),
		metrics:       NopMetrics(),
	}
	for _, option := range options {
		option(t)
	}
	return t, nil
}

// SetLogger sets the logger.
func (t *Tracker) SetLogger(l log.Logger) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.logger = l
}

// Admit appends h to the window and updates the vote counts and cursors. A
// rejected header leaves the tracker untouched. The tracker keeps a copy of h.
func (t *Tracker) Admit(h *types.Header) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if err := t.checkAdmissible(h); err != nil {
		t.reject(h, err)
		return err
	}
	t.admit(h.Copy())
	return nil
}

// CheckAdmissible runs the admission checks of Admit without storing h. A
// header that passes is admitted by a following Admit unless the tracker is
// changed in between.
func (t *Tracker) CheckAdmissible(h *types.Header) error {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	if err := t.checkAdmissible(h); err != nil {
		t.reject(h, err)
		return err
	}
	return nil
}

// CONTRACT: mtx must be held.
func (t *Tracker) reject(h *types.Header, err error) {
	t.logger.Debug("rejected header", "height", h.Height, "proposer", h.ProposerAddress, "err", err)
	t.metrics.RejectedHeaders.With("reason", rejectReason(err)).Add(1)
}

// checkAdmissible runs the admission checks in order; the first failing one
// wins.
//
// CONTRACT: mtx must be held.
func (t *Tracker) checkAdmissible(h *types.Header) error {
	if t.win.empty() {
		return nil
	}
	if h.Height != t.win.max+1 {
		return &NonSequentialHeightError{Expected: t.win.max + 1, Got: h.Height}
	}
	// A shorter window cannot vouch for the prevoted height yet.
	if t.win.max-t.win.min >= t.cfg.VoteOffset && h.HeightPrevoted != t.heightPrevoted {
		return &StalePrevotedHeightError{Height: h.Height, Expected: t.heightPrevoted, Got: h.HeightPrevoted}
	}
	if stored := t.latestByProposer(h, t.cfg.VoteOffset); stored != nil && HeadersContradict(stored, h) {
		return &ContradictionError{Stored: stored.Copy(), Received: h.Copy()}
	}
	return nil
}

// CONTRACT: mtx must be held.
func (t *Tracker) admit(h *types.Header) {
	if t.win.push(h) {
		t.metrics.EvictedHeaders.Add(1)
	}
	if int64(len(t.lastPrecommit)) > t.cfg.MaxStoredHeaders {
		t.cleanupStaleProposers()
	}
	key := string(h.ProposerAddress)
	if _, ok := t.lastPrecommit[key]; !ok {
		t.lastPrecommit[key] = t.win.min - 1
	}

	t.applyVotes(h)
	t.updateCursors()

	t.metrics.AdmittedHeaders.Add(1)
	t.metrics.WindowSize.Set(float64(t.win.n))
}

// RemoveHeadersAbove drops every stored header above height and recomputes
// all counts from the headers that remain. If height is below the window the
// window is cleared. The prevoted and finalized heights survive a clear.
func (t *Tracker) RemoveHeadersAbove(height int64) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.removeHeadersAbove(height)
}

// ClearAll empties the window. The prevoted and finalized heights are kept.
func (t *Tracker) ClearAll() {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.removeHeadersAbove(t.win.min - 1)
}

// CONTRACT: mtx must be held.
func (t *Tracker) removeHeadersAbove(height int64) {
	if t.win.empty() || height >= t.win.max {
		return
	}

	if height >= t.win.min {
		t.logger.Debug("truncating window", "from", t.win.max, "to", height)
		t.win.truncate(height)
		t.recompute()
	} else {
		t.logger.Debug("clearing window", "min", t.win.min, "max", t.win.max)
		t.win.reset()
		t.lastPrecommit = make(map[string]int64)
	}
	t.metrics.WindowSize.Set(float64(t.win.n))
}

// CleanupStaleProposers forgets the precommit bookkeeping of every proposer
// without a header in the window. It runs automatically once the bookkeeping
// grows beyond MaxStoredHeaders entries.
func (t *Tracker) CleanupStaleProposers() {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	t.cleanupStaleProposers()
}

// CONTRACT: mtx must be held.
func (t *Tracker) cleanupStaleProposers() {
	active := make(map[string]struct{}, t.win.n)
	for j := t.win.min; t.win.n > 0 && j <= t.win.max; j++ {
		active[string(t.win.at(j).header.ProposerAddress)] = struct{}{}
	}
	removed := 0
	for key := range t.lastPrecommit {
		if _, ok := active[key]; !ok {
			delete(t.lastPrecommit, key)
			removed++
		}
	}
	if removed > 0 {
		t.logger.Debug("removed stale proposers", "count", removed, "remaining", len(t.lastPrecommit))
	}
}

//-----------------------------------------------------------------------------
// Queries

// HeightFinalized returns the height up to which all headers are final.
func (t *Tracker) HeightFinalized() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.heightFinalized
}

// HeightPrevoted returns the highest height with enough prevotes. It is only
// guaranteed to be correct once VoteOffset+1 headers are stored.
func (t *Tracker) HeightPrevoted() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.heightPrevoted
}

// MinStoredHeight returns the lowest stored height, or -1 if the window is
// empty.
func (t *Tracker) MinStoredHeight() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.win.min
}

// MaxStoredHeight returns the highest stored height, or -1 if the window is
// empty.
func (t *Tracker) MaxStoredHeight() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.win.max
}

// Size returns the number of stored headers.
func (t *Tracker) Size() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.win.n
}

// Header returns a copy of the stored header at height, or nil.
func (t *Tracker) Header(height int64) *types.Header {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.win.header(height).Copy()
}

// PrevoteCount returns the prevotes implied for height. Heights outside the
// window have none.
func (t *Tracker) PrevoteCount(height int64) int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if !t.win.contains(height) {
		return 0
	}
	return t.win.at(height).prevotes
}

// PrecommitCount returns the precommits implied for height. Heights outside
// the window have none.
func (t *Tracker) PrecommitCount(height int64) int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if !t.win.contains(height) {
		return 0
	}
	return t.win.at(height).precommits
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrNonSequentialHeight):
		return "non_sequential"
	case errors.Is(err, ErrStalePrevotedHeight):
		return "stale_prevoted"
	case errors.Is(err, ErrContradictingAncestry):
		return "contradiction"
	default:
		return "other"
	}
}
