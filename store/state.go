package store

import (
	"fmt"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// storeState is the persisted descriptor of a HeaderStore. It is encoded
// like
//
//	message HeaderStoreState {
//	  int64 base   = 1;
//	  int64 height = 2;
//	}
type storeState struct {
	base   int64
	height int64
}

const (
	fieldBase   protowire.Number = 1
	fieldHeight protowire.Number = 2
)

func (ss storeState) marshal() []byte {
	bz := make([]byte, 0, 22)
	bz = protowire.AppendTag(bz, fieldBase, protowire.VarintType)
	bz = protowire.AppendVarint(bz, uint64(ss.base))
	bz = protowire.AppendTag(bz, fieldHeight, protowire.VarintType)
	bz = protowire.AppendVarint(bz, uint64(ss.height))
	return bz
}

func (ss *storeState) unmarshal(bz []byte) error {
	*ss = storeState{}
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return protowire.ParseError(n)
		}
		bz = bz[n:]
		if typ != protowire.VarintType || (num != fieldBase && num != fieldHeight) {
			n = protowire.ConsumeFieldValue(num, typ, bz)
		} else {
			var v uint64
			v, n = protowire.ConsumeVarint(bz)
			if num == fieldBase {
				ss.base = int64(v)
			} else {
				ss.height = int64(v)
			}
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		bz = bz[n:]
	}
	return nil
}

// loadStoreState returns the state persisted in db. If no state was
// persisted the store is empty.
func loadStoreState(db dbm.DB) (storeState, error) {
	bz, err := db.Get(stateKey)
	if err != nil {
		return storeState{}, errors.Wrap(err, "failed to load store state")
	}
	if len(bz) == 0 {
		return storeState{base: -1, height: -1}, nil
	}

	var ss storeState
	if err := ss.unmarshal(bz); err != nil {
		return storeState{}, fmt.Errorf("could not unmarshal store state %X: %w", bz, err)
	}
	return ss, nil
}
