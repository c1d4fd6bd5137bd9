package types

import (
	"bytes"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/celestiaorg/headerbft/crypto/tmhash"
)

// Header carries the fields of a block header that the finality gadget
// consumes. A header implies prevotes and precommits by its proposer for a
// bounded span of the chain below it.
//
// Headers are treated as immutable once handed to a tracker.
type Header struct {
	// ID is the fingerprint of the block.
	ID HexBytes `json:"id"`
	// Height of the block.
	Height int64 `json:"height"`
	// HeightPrevious is the height of the previous block by the same proposer
	// that this block claims to extend.
	HeightPrevious int64 `json:"height_previous"`
	// HeightPrevoted is the prevoted height known to the proposer when the
	// block was built.
	HeightPrevoted int64 `json:"height_prevoted"`
	// HeightSinceActive is the height since which the proposer has been
	// continuously part of the active set.
	HeightSinceActive int64 `json:"height_since_active"`
	// ProposerAddress identifies the proposer of the block.
	ProposerAddress Address `json:"proposer_address"`
}

// NewHeader returns a new Header. It never fails; validity is judged on
// admission.
func NewHeader(
	id HexBytes,
	height, heightPrevious, heightPrevoted, heightSinceActive int64,
	proposer Address,
) *Header {
	return &Header{
		ID:                id,
		Height:            height,
		HeightPrevious:    heightPrevious,
		HeightPrevoted:    heightPrevoted,
		HeightSinceActive: heightSinceActive,
		ProposerAddress:   proposer,
	}
}

// ImpliesVotes reports whether the header implies any prevote or precommit.
// A header whose HeightPrevious is not below its own height is vacuous.
func (h *Header) ImpliesVotes() bool {
	return h.HeightPrevious < h.Height
}

// Equal reports whether both headers describe the same block. Headers are
// compared by ID only.
func (h *Header) Equal(other *Header) bool {
	if h == nil || other == nil {
		return h == other
	}
	return bytes.Equal(h.ID, other.ID)
}

// SameProposer reports whether both headers were proposed by the same
// identity.
func (h *Header) SameProposer(other *Header) bool {
	return bytes.Equal(h.ProposerAddress, other.ProposerAddress)
}

// Copy returns a deep copy of the header.
func (h *Header) Copy() *Header {
	if h == nil {
		return nil
	}
	cp := *h
	cp.ID = append(HexBytes(nil), h.ID...)
	cp.ProposerAddress = append(Address(nil), h.ProposerAddress...)
	return &cp
}

// ValidateBasic performs stateless structural checks. It is not part of the
// admission rules, which are enforced by the tracker.
func (h *Header) ValidateBasic() error {
	if h == nil {
		return errors.New("nil header")
	}
	if len(h.ID) == 0 {
		return errors.New("empty header ID")
	}
	if len(h.ProposerAddress) == 0 {
		return errors.New("empty proposer address")
	}
	if h.Height < 0 {
		return fmt.Errorf("negative height %d", h.Height)
	}
	if h.HeightSinceActive < 0 {
		return fmt.Errorf("negative height since active %d", h.HeightSinceActive)
	}
	return nil
}

// Fingerprint hashes the encoded header with its ID cleared. It is the
// canonical way of deriving an ID for a new header.
func (h *Header) Fingerprint() HexBytes {
	cp := *h
	cp.ID = nil
	return tmhash.Sum(cp.Marshal())
}

// String returns a short human readable representation of the header.
func (h *Header) String() string {
	if h == nil {
		return "nil-Header"
	}
	return fmt.Sprintf("Header{%v h:%d prev:%d prevoted:%d active:%d by:%v}",
		h.ID, h.Height, h.HeightPrevious, h.HeightPrevoted, h.HeightSinceActive, h.ProposerAddress)
}

//-----------------------------------------------------------------------------
// Wire encoding. Field numbers are stable and compatible with
//
//	message Header {
//	  bytes id                  = 1;
//	  int64 height              = 2;
//	  int64 height_previous     = 3;
//	  int64 height_prevoted     = 4;
//	  int64 height_since_active = 5;
//	  bytes proposer_address    = 6;
//	}

const (
	fieldID                protowire.Number = 1
	fieldHeight            protowire.Number = 2
	fieldHeightPrevious    protowire.Number = 3
	fieldHeightPrevoted    protowire.Number = 4
	fieldHeightSinceActive protowire.Number = 5
	fieldProposerAddress   protowire.Number = 6
)

// Marshal returns the protobuf encoding of the header.
func (h *Header) Marshal() []byte {
	bz := make([]byte, 0, 64+len(h.ID)+len(h.ProposerAddress))
	if len(h.ID) > 0 {
		bz = protowire.AppendTag(bz, fieldID, protowire.BytesType)
		bz = protowire.AppendBytes(bz, h.ID)
	}
	bz = appendInt64(bz, fieldHeight, h.Height)
	bz = appendInt64(bz, fieldHeightPrevious, h.HeightPrevious)
	bz = appendInt64(bz, fieldHeightPrevoted, h.HeightPrevoted)
	bz = appendInt64(bz, fieldHeightSinceActive, h.HeightSinceActive)
	if len(h.ProposerAddress) > 0 {
		bz = protowire.AppendTag(bz, fieldProposerAddress, protowire.BytesType)
		bz = protowire.AppendBytes(bz, h.ProposerAddress)
	}
	return bz
}

// Unmarshal decodes a header produced by Marshal. Unknown fields are skipped.
func (h *Header) Unmarshal(bz []byte) error {
	*h = Header{}
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return fmt.Errorf("header: %w", protowire.ParseError(n))
		}
		bz = bz[n:]

		switch {
		case (num == fieldID || num == fieldProposerAddress) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(bz)
			if n < 0 {
				return fmt.Errorf("header field %d: %w", num, protowire.ParseError(n))
			}
			if num == fieldID {
				h.ID = append(HexBytes(nil), v...)
			} else {
				h.ProposerAddress = append(Address(nil), v...)
			}
			bz = bz[n:]
		case num >= fieldHeight && num <= fieldHeightSinceActive && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(bz)
			if n < 0 {
				return fmt.Errorf("header field %d: %w", num, protowire.ParseError(n))
			}
			switch num {
			case fieldHeight:
				h.Height = int64(v)
			case fieldHeightPrevious:
				h.HeightPrevious = int64(v)
			case fieldHeightPrevoted:
				h.HeightPrevoted = int64(v)
			case fieldHeightSinceActive:
				h.HeightSinceActive = int64(v)
			}
			bz = bz[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, bz)
			if n < 0 {
				return fmt.Errorf("header field %d: %w", num, protowire.ParseError(n))
			}
			bz = bz[n:]
		}
	}
	return nil
}

// HeaderFromBytes decodes a header.
func HeaderFromBytes(bz []byte) (*Header, error) {
	h := new(Header)
	if err := h.Unmarshal(bz); err != nil {
		return nil, err
	}
	return h, nil
}

func appendInt64(bz []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return bz
	}
	bz = protowire.AppendTag(bz, num, protowire.VarintType)
	return protowire.AppendVarint(bz, uint64(v))
}
