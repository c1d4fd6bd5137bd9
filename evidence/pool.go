package evidence

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/celestiaorg/headerbft/config"
	"github.com/celestiaorg/headerbft/libs/log"
	tmsync "github.com/celestiaorg/headerbft/libs/sync"
)

var (
	// ErrDuplicateEvidence is returned for evidence the pool has already seen.
	ErrDuplicateEvidence = errors.New("duplicate evidence")
	// ErrEvidenceExpired is returned for evidence older than MaxAgeHeights.
	ErrEvidenceExpired = errors.New("evidence expired")
)

// Pool keeps the contradiction evidence detected while admitting headers
// until it is committed or expires. Pending evidence is bounded by
// MaxPending; the oldest entries are dropped first.
type Pool struct {
	mtx tmsync.Mutex

	cfg     config.EvidenceConfig
	pending []*ContradictionEvidence
	// hashes of all evidence added recently, pending or not
	seen *lru.Cache[string, struct{}]

	// latest height reported through Update
	height int64

	logger  log.Logger
	metrics *Metrics
}

// PoolOption sets an optional parameter on the Pool.
type PoolOption func(*Pool)

// WithMetrics sets the metrics.
func WithMetrics(metrics *Metrics) PoolOption {
	return func(p *Pool) { p.metrics = metrics }
}

// NewPool creates an empty evidence pool.
func NewPool(cfg *config.EvidenceConfig, options ...PoolOption) (*Pool, error) {
	if cfg == nil {
		return nil, errors.New("nil evidence config")
	}
	if err := cfg.ValidateBasic(); err != nil {
		return nil, err
	}
	seen, err := lru.New[string, struct{}](cfg.SeenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen cache: %w", err)
	}
	p := &Pool{
		cfg:     *cfg,
		seen:    seen,
		logger:  log.NewNopLogger(),
		metrics: NopMetrics(),
	}
	for _, option := range options {
		option(p)
	}
	return p, nil
}

// SetLogger sets the logger.
func (p *Pool) SetLogger(l log.Logger) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.logger = l
}

// AddEvidence validates ev and adds it to the pending list.
func (p *Pool) AddEvidence(ev *ContradictionEvidence) error {
	if err := ev.ValidateBasic(); err != nil {
		return err
	}
	key := string(ev.Hash())

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.seen.Contains(key) {
		return ErrDuplicateEvidence
	}
	if p.isExpired(ev) {
		return fmt.Errorf("%w: height %d, current height %d", ErrEvidenceExpired, ev.Height(), p.height)
	}

	p.seen.Add(key, struct{}{})
	p.pending = append(p.pending, ev)
	if len(p.pending) > p.cfg.MaxPending {
		dropped := p.pending[0]
		p.pending[0] = nil
		p.pending = p.pending[1:]
		p.logger.Info("pending evidence full, dropped oldest", "evidence", dropped)
	}

	p.logger.Info("detected contradiction", "proposer", ev.Proposer(), "height", ev.Height())
	p.metrics.DetectedEvidence.Add(1)
	p.metrics.PendingEvidence.Set(float64(len(p.pending)))
	return nil
}

// PendingEvidence returns up to maxNum pending entries, oldest first. A
// non-positive maxNum returns all of them.
func (p *Pool) PendingEvidence(maxNum int) []*ContradictionEvidence {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	n := len(p.pending)
	if maxNum > 0 && maxNum < n {
		n = maxNum
	}
	evs := make([]*ContradictionEvidence, n)
	copy(evs, p.pending[:n])
	return evs
}

// MarkCommitted removes the given evidence from the pending list. It stays
// in the seen cache so it is not added again.
func (p *Pool) MarkCommitted(evs []*ContradictionEvidence) {
	if len(evs) == 0 {
		return
	}
	committed := make(map[string]struct{}, len(evs))
	for _, ev := range evs {
		committed[string(ev.Hash())] = struct{}{}
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	remaining := p.pending[:0]
	for _, ev := range p.pending {
		if _, ok := committed[string(ev.Hash())]; !ok {
			remaining = append(remaining, ev)
		}
	}
	clear(p.pending[len(remaining):])
	p.pending = remaining
	p.metrics.PendingEvidence.Set(float64(len(p.pending)))
}

// Update informs the pool about the current height and prunes expired
// evidence.
func (p *Pool) Update(height int64) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if height <= p.height {
		return
	}
	p.height = height

	remaining := p.pending[:0]
	for _, ev := range p.pending {
		if !p.isExpired(ev) {
			remaining = append(remaining, ev)
		}
	}
	if pruned := len(p.pending) - len(remaining); pruned > 0 {
		p.logger.Debug("pruned expired evidence", "count", pruned, "height", height)
	}
	clear(p.pending[len(remaining):])
	p.pending = remaining
	p.metrics.PendingEvidence.Set(float64(len(p.pending)))
}

// Size returns the number of pending evidence entries.
func (p *Pool) Size() int {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	return len(p.pending)
}

// CONTRACT: mtx must be held.
func (p *Pool) isExpired(ev *ContradictionEvidence) bool {
	return p.height-ev.Height() > p.cfg.MaxAgeHeights
}
