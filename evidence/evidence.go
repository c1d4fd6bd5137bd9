package evidence

import (
	"bytes"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/celestiaorg/headerbft/bft"
	"github.com/celestiaorg/headerbft/crypto/tmhash"
	"github.com/celestiaorg/headerbft/types"
)

// ErrInvalidEvidence is returned for a pair of headers that do not prove a
// contradiction.
var ErrInvalidEvidence = errors.New("invalid evidence")

// ContradictionEvidence proves that a proposer signed two headers which
// violate the fork choice rules, e.g. by double forging. First is the header
// that must have been proposed first.
type ContradictionEvidence struct {
	First  *types.Header `json:"first"`
	Second *types.Header `json:"second"`
}

// NewContradictionEvidence orders a and b canonically and returns the
// evidence. It fails unless the headers contradict each other. The headers
// are copied.
func NewContradictionEvidence(a, b *types.Header) (*ContradictionEvidence, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("%w: missing header", ErrInvalidEvidence)
	}
	if !bft.HeadersContradict(a, b) {
		return nil, fmt.Errorf("%w: %v and %v do not contradict", ErrInvalidEvidence, a, b)
	}

	first, second := bft.CanonicalOrder(a, b)
	if sameOrderKey(first, second) && bytes.Compare(first.ID, second.ID) > 0 {
		first, second = second, first
	}
	return &ContradictionEvidence{First: first.Copy(), Second: second.Copy()}, nil
}

func sameOrderKey(a, b *types.Header) bool {
	return a.HeightPrevious == b.HeightPrevious &&
		a.HeightPrevoted == b.HeightPrevoted &&
		a.Height == b.Height
}

// Height returns the height of the later header.
func (ev *ContradictionEvidence) Height() int64 {
	return max(ev.First.Height, ev.Second.Height)
}

// Proposer returns the address of the offending proposer.
func (ev *ContradictionEvidence) Proposer() types.Address {
	return ev.First.ProposerAddress
}

// Bytes returns the protobuf encoding of the evidence, both headers as
// length-delimited fields 1 and 2.
func (ev *ContradictionEvidence) Bytes() []byte {
	first, second := ev.First.Marshal(), ev.Second.Marshal()
	bz := make([]byte, 0, len(first)+len(second)+8)
	bz = protowire.AppendTag(bz, 1, protowire.BytesType)
	bz = protowire.AppendBytes(bz, first)
	bz = protowire.AppendTag(bz, 2, protowire.BytesType)
	bz = protowire.AppendBytes(bz, second)
	return bz
}

// Hash returns the hash of the evidence.
func (ev *ContradictionEvidence) Hash() []byte {
	return tmhash.Sum(ev.Bytes())
}

// ValidateBasic performs basic validation.
func (ev *ContradictionEvidence) ValidateBasic() error {
	if ev == nil {
		return errors.New("empty contradiction evidence")
	}
	if ev.First == nil || ev.Second == nil {
		return fmt.Errorf("%w: missing header", ErrInvalidEvidence)
	}
	if err := ev.First.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid first header: %w", err)
	}
	if err := ev.Second.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid second header: %w", err)
	}
	if !bft.HeadersContradict(ev.First, ev.Second) {
		return fmt.Errorf("%w: headers do not contradict", ErrInvalidEvidence)
	}
	return nil
}

// String returns a string representation of the evidence.
func (ev *ContradictionEvidence) String() string {
	return fmt.Sprintf("ContradictionEvidence{%v, %v}", ev.First, ev.Second)
}
