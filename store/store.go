package store

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/google/orderedcode"
	"github.com/pkg/errors"

	tmsync "github.com/celestiaorg/headerbft/libs/sync"
	"github.com/celestiaorg/headerbft/types"
)

// ErrHeaderNotFound is returned when no header is stored at a height.
var ErrHeaderNotFound = errors.New("header not found")

/*
HeaderStore is a simple low level store for headers that left the tracker
window. It keeps every header between base and height (inclusive) and
nothing else, so a chain switch can replay the headers below a fork point
without fetching them again.

Keys are ordered by height, which lets ranges be read with a single
iterator.
*/
type HeaderStore struct {
	db dbm.DB

	// mtx guards access to the struct fields listed below it. We rely on the
	// database to enforce fine-grained concurrency control for its data.
	mtx    tmsync.RWMutex
	base   int64
	height int64
}

// NewHeaderStore returns a new HeaderStore with the given DB, initialized to
// the last state that was committed to the DB.
func NewHeaderStore(db dbm.DB) (*HeaderStore, error) {
	ss, err := loadStoreState(db)
	if err != nil {
		return nil, err
	}
	return &HeaderStore{
		db:     db,
		base:   ss.base,
		height: ss.height,
	}, nil
}

// Base returns the first stored height, or -1 for an empty store.
func (hs *HeaderStore) Base() int64 {
	hs.mtx.RLock()
	defer hs.mtx.RUnlock()
	return hs.base
}

// Height returns the last stored height, or -1 for an empty store.
func (hs *HeaderStore) Height() int64 {
	hs.mtx.RLock()
	defer hs.mtx.RUnlock()
	return hs.height
}

// Size returns the number of stored headers.
func (hs *HeaderStore) Size() int64 {
	hs.mtx.RLock()
	defer hs.mtx.RUnlock()
	if hs.height < 0 {
		return 0
	}
	return hs.height - hs.base + 1
}

// SaveHeader persists h. Headers must be saved contiguously; the first header
// saved to an empty store sets its base.
func (hs *HeaderStore) SaveHeader(h *types.Header) error {
	if err := h.ValidateBasic(); err != nil {
		return errors.Wrap(err, "invalid header")
	}

	hs.mtx.Lock()
	defer hs.mtx.Unlock()

	if hs.height >= 0 && h.Height != hs.height+1 {
		return fmt.Errorf("header store can only save contiguous headers. Wanted %v, got %v",
			hs.height+1, h.Height)
	}

	base := hs.base
	if hs.height < 0 {
		base = h.Height
	}

	batch := hs.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(headerKey(h.Height), h.Marshal()); err != nil {
		return errors.Wrapf(err, "failed to save header at height %d", h.Height)
	}
	if err := batch.Set(stateKey, storeState{base: base, height: h.Height}.marshal()); err != nil {
		return errors.Wrap(err, "failed to save store state")
	}
	if err := batch.WriteSync(); err != nil {
		return errors.Wrapf(err, "failed to save header at height %d", h.Height)
	}

	hs.base = base
	hs.height = h.Height
	return nil
}

// LoadHeader returns the header stored at height.
func (hs *HeaderStore) LoadHeader(height int64) (*types.Header, error) {
	bz, err := hs.db.Get(headerKey(height))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load header at height %d", height)
	}
	if len(bz) == 0 {
		return nil, errors.Wrapf(ErrHeaderNotFound, "height %d", height)
	}
	h, err := types.HeaderFromBytes(bz)
	if err != nil {
		// NOTE: a stored header that does not decode means the db is corrupt.
		return nil, errors.Wrapf(err, "failed to decode header at height %d", height)
	}
	return h, nil
}

// LoadHeaders returns the headers in [from, to] in height order. Every height
// in the range must be stored.
func (hs *HeaderStore) LoadHeaders(from, to int64) ([]*types.Header, error) {
	if from > to {
		return nil, fmt.Errorf("invalid range [%d, %d]", from, to)
	}

	it, err := hs.db.Iterator(headerKey(from), headerKey(to+1))
	if err != nil {
		return nil, errors.Wrap(err, "failed to open iterator")
	}
	defer it.Close()

	headers := make([]*types.Header, 0, to-from+1)
	next := from
	for ; it.Valid(); it.Next() {
		h, err := types.HeaderFromBytes(it.Value())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to decode header at height %d", next)
		}
		if h.Height != next {
			return nil, errors.Wrapf(ErrHeaderNotFound, "height %d", next)
		}
		headers = append(headers, h)
		next++
	}
	if err := it.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate headers")
	}
	if next != to+1 {
		return nil, errors.Wrapf(ErrHeaderNotFound, "height %d", next)
	}
	return headers, nil
}

// DeleteAbove removes every header above height. Deleting below the base
// empties the store.
func (hs *HeaderStore) DeleteAbove(height int64) error {
	hs.mtx.Lock()
	defer hs.mtx.Unlock()

	if hs.height < 0 || height >= hs.height {
		return nil
	}

	from := max(height+1, hs.base)
	batch := hs.db.NewBatch()
	defer batch.Close()
	for h := from; h <= hs.height; h++ {
		if err := batch.Delete(headerKey(h)); err != nil {
			return errors.Wrapf(err, "failed to delete header at height %d", h)
		}
	}

	ss := storeState{base: hs.base, height: height}
	if height < hs.base {
		ss = storeState{base: -1, height: -1}
	}
	if err := batch.Set(stateKey, ss.marshal()); err != nil {
		return errors.Wrap(err, "failed to save store state")
	}
	if err := batch.WriteSync(); err != nil {
		return errors.Wrapf(err, "failed to delete headers above %d", height)
	}

	hs.base, hs.height = ss.base, ss.height
	return nil
}

// PruneBelow removes headers up to (but not including) retain. It returns the
// number of headers pruned.
func (hs *HeaderStore) PruneBelow(retain int64) (uint64, error) {
	hs.mtx.RLock()
	base, height := hs.base, hs.height
	hs.mtx.RUnlock()

	if height < 0 || retain <= base {
		return 0, nil
	}
	if retain > height {
		return 0, fmt.Errorf("cannot prune beyond the latest height %v", height)
	}

	pruned := uint64(0)
	batch := hs.db.NewBatch()
	defer func() { batch.Close() }()
	flush := func(batch dbm.Batch, base int64) error {
		// Update base first to make sure no one tries to access missing
		// headers.
		hs.mtx.Lock()
		hs.base = base
		ss := storeState{base: hs.base, height: hs.height}
		hs.mtx.Unlock()

		if err := batch.Set(stateKey, ss.marshal()); err != nil {
			return err
		}
		if err := batch.WriteSync(); err != nil {
			return errors.Wrapf(err, "failed to prune up to height %v", base)
		}
		return nil
	}

	for h := base; h < retain; h++ {
		if err := batch.Delete(headerKey(h)); err != nil {
			return 0, err
		}
		pruned++

		// flush every 1000 headers to avoid batches becoming too large
		if pruned%1000 == 0 {
			if err := flush(batch, h+1); err != nil {
				return 0, err
			}
			batch.Close()
			batch = hs.db.NewBatch()
		}
	}

	if err := flush(batch, retain); err != nil {
		return 0, err
	}
	return pruned, nil
}

//-----------------------------------------------------------------------------

const (
	// prefixes are unique across all keys of the store
	prefixHeader = int64(1)
)

var stateKey = []byte("headerStore")

func headerKey(height int64) []byte {
	key, err := orderedcode.Append(nil, prefixHeader, height)
	if err != nil {
		panic(err)
	}
	return key
}
