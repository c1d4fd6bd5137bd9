package chain

import (
	"errors"
	"fmt"
	"testing"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/headerbft/bft"
	"github.com/celestiaorg/headerbft/config"
	"github.com/celestiaorg/headerbft/evidence"
	"github.com/celestiaorg/headerbft/store"
	"github.com/celestiaorg/headerbft/types"
)

const numProposers = 101

var errDiskFull = errors.New("disk full")

// failingDB fails every batch write while failWrites is set.
type failingDB struct {
	dbm.DB
	failWrites bool
}

func (db *failingDB) NewBatch() dbm.Batch {
	return &failingBatch{Batch: db.DB.NewBatch(), db: db}
}

type failingBatch struct {
	dbm.Batch
	db *failingDB
}

func (b *failingBatch) Write() error {
	if b.db.failWrites {
		return errDiskFull
	}
	return b.Batch.Write()
}

func (b *failingBatch) WriteSync() error {
	if b.db.failWrites {
		return errDiskFull
	}
	return b.Batch.WriteSync()
}

type testEnv struct {
	db      dbm.DB
	tracker *bft.Tracker
	store   *store.HeaderStore
	pool    *evidence.Pool
	manager *Manager
}

func newTestEnv(t *testing.T, db dbm.DB, options ...ManagerOption) *testEnv {
	t.Helper()
	if db == nil {
		db = dbm.NewMemDB()
	}
	cfg := config.DefaultBFTConfig()

	tracker, err := bft.NewTracker(cfg)
	require.NoError(t, err)
	hs, err := store.NewHeaderStore(db)
	require.NoError(t, err)
	pool, err := evidence.NewPool(config.TestEvidenceConfig())
	require.NoError(t, err)
	manager, err := NewManager(cfg, tracker, hs, pool, options...)
	require.NoError(t, err)

	return &testEnv{db: db, tracker: tracker, store: hs, pool: pool, manager: manager}
}

// makeHeader returns the header at height of a branch where each of the
// proposers extends its own header from gap heights below.
func makeHeader(height, gap int64) *types.Header {
	h := types.NewHeader(nil, height, height-gap, max(height-68, 0), 0,
		types.Address(fmt.Sprintf("proposer-%d", height%numProposers)))
	h.ID = h.Fingerprint()
	return h
}

func makeBranch(from, to, gap int64) []*types.Header {
	headers := make([]*types.Header, 0, to-from+1)
	for h := from; h <= to; h++ {
		headers = append(headers, makeHeader(h, gap))
	}
	return headers
}

func addBranch(t *testing.T, m *Manager, from, to, gap int64) {
	t.Helper()
	for _, h := range makeBranch(from, to, gap) {
		require.NoError(t, m.AddHeader(h), "height %d", h.Height)
	}
}

func TestNewManagerRequiresComponents(t *testing.T) {
	cfg := config.DefaultBFTConfig()
	tracker, err := bft.NewTracker(cfg)
	require.NoError(t, err)

	_, err = NewManager(cfg, tracker, nil, nil)
	require.Error(t, err)
	_, err = NewManager(nil, tracker, nil, nil)
	require.Error(t, err)
}

func TestAddHeaderPersists(t *testing.T) {
	env := newTestEnv(t, nil)
	addBranch(t, env.manager, 0, 400, numProposers)

	status := env.manager.Status()
	assert.Equal(t, Status{
		MinStoredHeight: 0,
		MaxStoredHeight: 400,
		HeightPrevoted:  333,
		HeightFinalized: 265,
		StoreBase:       0,
		StoreHeight:     400,
	}, status)

	h, err := env.store.LoadHeader(250)
	require.NoError(t, err)
	assert.Equal(t, makeHeader(250, numProposers), h)
}

func TestAddHeaderRejectsInvalid(t *testing.T) {
	env := newTestEnv(t, nil)
	h := makeHeader(0, numProposers)
	h.ID = nil

	require.Error(t, env.manager.AddHeader(h))
	assert.EqualValues(t, 0, env.tracker.Size())
	assert.EqualValues(t, -1, env.store.Height())
}

func TestAddHeaderRecordsContradiction(t *testing.T) {
	env := newTestEnv(t, nil)
	addBranch(t, env.manager, 0, 400, numProposers)

	// proposer-98 claims an ancestry that overlaps its header at 300
	forged := makeHeader(401, numProposers+1)
	err := env.manager.AddHeader(forged)
	require.ErrorIs(t, err, bft.ErrContradictingAncestry)

	assert.EqualValues(t, 400, env.tracker.MaxStoredHeight())
	assert.EqualValues(t, 400, env.store.Height())
	require.Equal(t, 1, env.pool.Size())

	ev := env.pool.PendingEvidence(-1)[0]
	assert.Equal(t, forged.ProposerAddress, ev.Proposer())
	assert.EqualValues(t, 401, ev.Height())
	assert.True(t, ev.First.Equal(makeHeader(300, numProposers)))

	// the same contradiction is recorded once
	require.Error(t, env.manager.AddHeader(forged))
	assert.Equal(t, 1, env.manager.Status().PendingEvidence)
}

func TestAddHeaderStoreFailureLeavesTrackerUntouched(t *testing.T) {
	db := &failingDB{DB: dbm.NewMemDB()}
	env := newTestEnv(t, db)
	addBranch(t, env.manager, 0, 600, numProposers)
	before := env.manager.Status()
	require.EqualValues(t, 96, before.MinStoredHeight)

	db.failWrites = true
	err := env.manager.AddHeader(makeHeader(601, numProposers))
	require.ErrorIs(t, err, errDiskFull)

	// neither the oldest header nor finality may change for a header that
	// was never persisted
	assert.Equal(t, before, env.manager.Status())
	assert.NotNil(t, env.tracker.Header(96))

	db.failWrites = false
	require.NoError(t, env.manager.AddHeader(makeHeader(601, numProposers)))
	assert.EqualValues(t, 601, env.manager.Status().StoreHeight)
}

func TestAddHeaderPrunesStore(t *testing.T) {
	env := newTestEnv(t, nil, WithRetainHeaders(10))
	addBranch(t, env.manager, 0, 50, numProposers)

	assert.EqualValues(t, 10, env.store.Size())
	assert.EqualValues(t, 41, env.store.Base())
	assert.EqualValues(t, 51, env.tracker.Size())
}

func TestSwitchChainTruncatesWindow(t *testing.T) {
	env := newTestEnv(t, nil)
	addBranch(t, env.manager, 0, 900, numProposers)
	require.EqualValues(t, 765, env.tracker.HeightFinalized())
	require.EqualValues(t, 396, env.tracker.MinStoredHeight())

	// the alternative branch has proposers extending headers 78 heights back
	alt := makeBranch(782, 1100, 78)
	require.NoError(t, env.manager.SwitchChain(781, alt))

	assert.EqualValues(t, 1100, env.tracker.MaxStoredHeight())
	assert.EqualValues(t, 1100, env.store.Height())
	assert.EqualValues(t, 1033, env.tracker.HeightPrevoted())

	h, err := env.store.LoadHeader(800)
	require.NoError(t, err)
	assert.Equal(t, makeHeader(800, 78), h)
	h, err = env.store.LoadHeader(781)
	require.NoError(t, err)
	assert.Equal(t, makeHeader(781, numProposers), h)
}

func TestSwitchChainResyncsFromStore(t *testing.T) {
	db := dbm.NewMemDB()
	first := newTestEnv(t, db)
	addBranch(t, first.manager, 0, 400, numProposers)

	// a restarted manager only restores the latest VoteOffset+1 headers
	env := newTestEnv(t, db)
	require.EqualValues(t, 98, env.tracker.MinStoredHeight())
	require.EqualValues(t, 400, env.tracker.MaxStoredHeight())
	require.EqualValues(t, 333, env.tracker.HeightPrevoted())

	// 380 is too close to the bottom of the window to truncate in place
	require.NoError(t, env.manager.SwitchChain(380, makeBranch(381, 420, 78)))

	assert.EqualValues(t, 78, env.tracker.MinStoredHeight())
	assert.EqualValues(t, 420, env.tracker.MaxStoredHeight())
	assert.EqualValues(t, 420, env.store.Height())
	assert.EqualValues(t, 353, env.tracker.HeightPrevoted())

	h, err := env.store.LoadHeader(400)
	require.NoError(t, err)
	assert.Equal(t, makeHeader(400, 78), h)
}

func TestSwitchChainStoreFailureLeavesTrackerUntouched(t *testing.T) {
	db := &failingDB{DB: dbm.NewMemDB()}
	env := newTestEnv(t, db)
	addBranch(t, env.manager, 0, 900, numProposers)
	before := env.manager.Status()

	db.failWrites = true
	err := env.manager.SwitchChain(781, makeBranch(782, 800, 78))
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, before, env.manager.Status())
	assert.Equal(t, makeHeader(900, numProposers), env.tracker.Header(900))
}

func TestResyncStoreFailureLeavesTrackerUntouched(t *testing.T) {
	db := &failingDB{DB: dbm.NewMemDB()}
	first := newTestEnv(t, db)
	addBranch(t, first.manager, 0, 400, numProposers)

	env := newTestEnv(t, db)
	before := env.manager.Status()
	require.EqualValues(t, 98, before.MinStoredHeight)

	db.failWrites = true
	err := env.manager.SwitchChain(380, makeBranch(381, 420, 78))
	require.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, before, env.manager.Status())
}

func TestSwitchChainRefusesFinalizedRevert(t *testing.T) {
	env := newTestEnv(t, nil)
	addBranch(t, env.manager, 0, 900, numProposers)

	err := env.manager.SwitchChain(700, makeBranch(701, 710, 78))
	require.ErrorIs(t, err, ErrRevertFinalized)
	assert.EqualValues(t, 900, env.tracker.MaxStoredHeight())
	assert.EqualValues(t, 900, env.store.Height())
}

func TestSwitchChainMissingHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	addBranch(t, env.manager, 0, 50, numProposers)
	_, err := env.store.PruneBelow(40)
	require.NoError(t, err)

	err = env.manager.SwitchChain(30, nil)
	require.ErrorIs(t, err, ErrMissingHistory)
	assert.EqualValues(t, 51, env.tracker.Size())
	assert.EqualValues(t, 50, env.store.Height())
}

func TestSwitchChainAboveTip(t *testing.T) {
	env := newTestEnv(t, nil)
	addBranch(t, env.manager, 0, 50, numProposers)

	require.Error(t, env.manager.SwitchChain(51, nil))
}

func TestSwitchChainStopsAtRejectedHeader(t *testing.T) {
	env := newTestEnv(t, nil)
	addBranch(t, env.manager, 0, 900, numProposers)

	alt := makeBranch(782, 800, 78)
	alt[10].HeightPrevoted = 0
	alt[10].ID = alt[10].Fingerprint()

	err := env.manager.SwitchChain(781, alt)
	require.ErrorIs(t, err, bft.ErrStalePrevotedHeight)
	assert.Contains(t, err.Error(), "height 792")
	assert.EqualValues(t, 791, env.tracker.MaxStoredHeight())
	assert.EqualValues(t, 791, env.store.Height())
}
