package chain

import (
	"errors"
	"fmt"

	"github.com/celestiaorg/headerbft/bft"
	"github.com/celestiaorg/headerbft/config"
	"github.com/celestiaorg/headerbft/evidence"
	"github.com/celestiaorg/headerbft/libs/log"
	tmsync "github.com/celestiaorg/headerbft/libs/sync"
	"github.com/celestiaorg/headerbft/store"
	"github.com/celestiaorg/headerbft/types"
)

var (
	// ErrRevertFinalized is returned when a chain switch would revert a
	// finalized header.
	ErrRevertFinalized = errors.New("cannot revert finalized header")
	// ErrMissingHistory is returned when a resync needs headers that are no
	// longer stored.
	ErrMissingHistory = errors.New("missing header history")
)

const (
	switchModeTruncate = "truncate"
	switchModeResync   = "resync"
)

// Manager feeds verified headers into the tracker and the header store and
// moves both to a different branch on a chain switch. Detected
// contradictions are recorded in the evidence pool.
type Manager struct {
	mtx tmsync.Mutex

	cfg     config.BFTConfig
	tracker *bft.Tracker
	store   *store.HeaderStore
	pool    *evidence.Pool

	// number of headers kept in the store, 0 keeps all
	retainHeaders int64

	logger  log.Logger
	metrics *Metrics
}

// ManagerOption sets an optional parameter on the Manager.
type ManagerOption func(*Manager)

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = metrics }
}

// WithRetainHeaders prunes the store down to the latest n headers after each
// append. n <= 0 keeps every header.
func WithRetainHeaders(n int64) ManagerOption {
	return func(m *Manager) { m.retainHeaders = n }
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager returns a Manager. If the tracker is empty and the store is not,
// the tracker is rebuilt from the latest stored headers. pool may be nil.
func NewManager(
	cfg *config.BFTConfig,
	tracker *bft.Tracker,
	hs *store.HeaderStore,
	pool *evidence.Pool,
	options ...ManagerOption,
) (*Manager, error) {
	if cfg == nil || tracker == nil || hs == nil {
		return nil, errors.New("chain manager needs a config, a tracker and a store")
	}
	m := &Manager{
		cfg:     *cfg,
		tracker: tracker,
		store:   hs,
		pool:    pool,
		logger:  log.NewNopLogger(),
		metrics: NopMetrics(),
	}
	for _, option := range options {
		option(m)
	}

	if tracker.Size() == 0 && hs.Height() >= 0 {
		m.logger.Info("restoring tracker from store", "base", hs.Base(), "height", hs.Height())
		headers, err := m.loadReplay(hs.Height())
		if err != nil {
			return nil, fmt.Errorf("failed to restore tracker: %w", err)
		}
		if err := m.replay(headers); err != nil {
			return nil, fmt.Errorf("failed to restore tracker: %w", err)
		}
	}
	return m, nil
}

// AddHeader persists h and admits it into the tracker. h is checked against
// the tracker before it is written, so a header the store refuses never
// reaches the tracker.
func (m *Manager) AddHeader(h *types.Header) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.addHeader(h)
}

// CONTRACT: mtx must be held.
func (m *Manager) addHeader(h *types.Header) error {
	if err := h.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid header: %w", err)
	}

	if err := m.tracker.CheckAdmissible(h); err != nil {
		var contradiction *bft.ContradictionError
		if errors.As(err, &contradiction) {
			m.recordContradiction(contradiction)
		}
		return err
	}

	if err := m.store.SaveHeader(h); err != nil {
		return fmt.Errorf("failed to persist header %d: %w", h.Height, err)
	}

	if err := m.tracker.Admit(h); err != nil {
		// the tracker changed outside the manager since the check
		m.logger.Error("admission failed after persisting, removing header", "height", h.Height, "err", err)
		if delErr := m.store.DeleteAbove(h.Height - 1); delErr != nil {
			m.logger.Error("failed to remove persisted header", "height", h.Height, "err", delErr)
		}
		return err
	}

	if m.pool != nil {
		m.pool.Update(h.Height)
	}
	m.pruneStore()
	return nil
}

// CONTRACT: mtx must be held.
func (m *Manager) recordContradiction(c *bft.ContradictionError) {
	if m.pool == nil {
		return
	}
	ev, err := evidence.NewContradictionEvidence(c.Stored, c.Received)
	if err != nil {
		m.logger.Error("failed to build contradiction evidence", "err", err)
		return
	}
	if err := m.pool.AddEvidence(ev); err != nil && !errors.Is(err, evidence.ErrDuplicateEvidence) {
		m.logger.Error("failed to add contradiction evidence", "evidence", ev, "err", err)
	}
}

// CONTRACT: mtx must be held.
func (m *Manager) pruneStore() {
	if m.retainHeaders <= 0 || m.store.Size() <= m.retainHeaders {
		return
	}
	retain := m.store.Height() - m.retainHeaders + 1
	pruned, err := m.store.PruneBelow(retain)
	if err != nil {
		m.logger.Error("failed to prune header store", "retain", retain, "err", err)
		return
	}
	m.metrics.PrunedHeaders.Add(float64(pruned))
}

// SwitchChain reverts the chain to lastCommonHeight and appends headers, the
// new branch in height order. When enough history stays in the tracker the
// window is truncated in place. Otherwise the tracker is rebuilt from the
// VoteOffset+1 stored headers up to lastCommonHeight, so that the prevoted
// height is known again before the new branch is checked against it.
//
// The switch stops at the first header that is rejected. Headers appended
// before it stay.
func (m *Manager) SwitchChain(lastCommonHeight int64, headers []*types.Header) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if finalized := m.tracker.HeightFinalized(); finalized > lastCommonHeight {
		return fmt.Errorf("%w: finalized height %d, last common height %d",
			ErrRevertFinalized, finalized, lastCommonHeight)
	}
	minHeight, maxHeight := m.tracker.MinStoredHeight(), m.tracker.MaxStoredHeight()
	if lastCommonHeight > maxHeight {
		return fmt.Errorf("last common height %d is above the tip %d", lastCommonHeight, maxHeight)
	}

	mode := switchModeTruncate
	if maxHeight-lastCommonHeight > m.cfg.MaxRevertDepth() || lastCommonHeight-minHeight < m.cfg.VoteOffset {
		mode = switchModeResync
	}
	m.logger.Info("switching chain", "mode", mode, "last_common", lastCommonHeight, "tip", maxHeight,
		"headers", len(headers))

	// The store is changed first. If that fails the tracker is untouched.
	switch mode {
	case switchModeTruncate:
		if err := m.store.DeleteAbove(lastCommonHeight); err != nil {
			return err
		}
		m.tracker.RemoveHeadersAbove(lastCommonHeight)
	case switchModeResync:
		if err := m.resync(lastCommonHeight); err != nil {
			return err
		}
	}
	m.metrics.ChainSwitches.With("mode", mode).Add(1)

	for _, h := range headers {
		if err := m.addHeader(h); err != nil {
			return fmt.Errorf("chain switch stopped at height %d: %w", h.Height, err)
		}
	}
	return nil
}

// CONTRACT: mtx must be held.
func (m *Manager) resync(lastCommonHeight int64) error {
	if _, err := m.store.LoadHeader(lastCommonHeight); err != nil {
		if errors.Is(err, store.ErrHeaderNotFound) {
			return fmt.Errorf("%w: height %d is not stored (store base %d)",
				ErrMissingHistory, lastCommonHeight, m.store.Base())
		}
		return err
	}
	headers, err := m.loadReplay(lastCommonHeight)
	if err != nil {
		return err
	}
	if err := m.store.DeleteAbove(lastCommonHeight); err != nil {
		return err
	}

	m.tracker.ClearAll()
	return m.replay(headers)
}

// loadReplay loads the stored headers in [height-VoteOffset, height], clamped
// to the store base.
func (m *Manager) loadReplay(height int64) ([]*types.Header, error) {
	from := max(m.store.Base(), height-m.cfg.VoteOffset)
	return m.store.LoadHeaders(from, height)
}

// replay admits headers that were verified before they were stored.
func (m *Manager) replay(headers []*types.Header) error {
	for _, h := range headers {
		if err := m.tracker.Admit(h); err != nil {
			return fmt.Errorf("failed to replay stored header %d: %w", h.Height, err)
		}
	}
	if len(headers) > 0 {
		m.logger.Debug("replayed stored headers", "from", headers[0].Height, "to", headers[len(headers)-1].Height)
	}
	return nil
}

// Status is a snapshot of the tracker, the store and the evidence pool.
type Status struct {
	MinStoredHeight int64 `json:"min_stored_height"`
	MaxStoredHeight int64 `json:"max_stored_height"`
	HeightPrevoted  int64 `json:"height_prevoted"`
	HeightFinalized int64 `json:"height_finalized"`
	StoreBase       int64 `json:"store_base"`
	StoreHeight     int64 `json:"store_height"`
	PendingEvidence int   `json:"pending_evidence"`
}

// Status returns a consistent snapshot.
func (m *Manager) Status() Status {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	s := Status{
		MinStoredHeight: m.tracker.MinStoredHeight(),
		MaxStoredHeight: m.tracker.MaxStoredHeight(),
		HeightPrevoted:  m.tracker.HeightPrevoted(),
		HeightFinalized: m.tracker.HeightFinalized(),
		StoreBase:       m.store.Base(),
		StoreHeight:     m.store.Height(),
	}
	if m.pool != nil {
		s.PendingEvidence = m.pool.Size()
	}
	return s
}
