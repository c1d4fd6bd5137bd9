package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/headerbft/types"
)

func doubleForged(height int64, proposer string) (*types.Header, *types.Header) {
	a := types.NewHeader(nil, height, height-4, height-10, 0, types.Address(proposer))
	a.ID = a.Fingerprint()
	b := a.Copy()
	b.ID = types.HexBytes("double-" + string(a.ID))
	return a, b
}

func TestNewContradictionEvidence(t *testing.T) {
	a, b := doubleForged(20, "p1")

	ev, err := NewContradictionEvidence(a, b)
	require.NoError(t, err)
	require.NoError(t, ev.ValidateBasic())
	assert.EqualValues(t, 20, ev.Height())
	assert.Equal(t, types.Address("p1"), ev.Proposer())

	// argument order does not matter
	ev2, err := NewContradictionEvidence(b, a)
	require.NoError(t, err)
	assert.Equal(t, ev.Hash(), ev2.Hash())
	assert.Equal(t, ev.First, ev2.First)

	// headers are copied
	a.Height = 99
	assert.EqualValues(t, 20, ev.First.Height)
}

func TestNewContradictionEvidenceCanonicalOrder(t *testing.T) {
	earlier := types.NewHeader(types.HexBytes{1}, 75, 51, 34, 0, types.Address("p"))
	later := types.NewHeader(types.HexBytes{2}, 135, 75, 33, 0, types.Address("p"))

	ev, err := NewContradictionEvidence(later, earlier)
	require.NoError(t, err)
	assert.True(t, ev.First.Equal(earlier))
	assert.True(t, ev.Second.Equal(later))
	assert.EqualValues(t, 135, ev.Height())
}

func TestNewContradictionEvidenceInvalid(t *testing.T) {
	a, _ := doubleForged(20, "p1")
	child := types.NewHeader(types.HexBytes{9}, 24, 20, 14, 0, types.Address("p1"))

	_, err := NewContradictionEvidence(a, child)
	require.ErrorIs(t, err, ErrInvalidEvidence)

	_, err = NewContradictionEvidence(a, nil)
	require.ErrorIs(t, err, ErrInvalidEvidence)

	other, _ := doubleForged(20, "p2")
	_, err = NewContradictionEvidence(a, other)
	require.ErrorIs(t, err, ErrInvalidEvidence)
}

func TestContradictionEvidenceValidateBasic(t *testing.T) {
	a, b := doubleForged(20, "p1")
	ev, err := NewContradictionEvidence(a, b)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		malleate func(ev *ContradictionEvidence)
		expErr   bool
	}{
		{"valid", func(ev *ContradictionEvidence) {}, false},
		{"missing header", func(ev *ContradictionEvidence) { ev.Second = nil }, true},
		{"empty proposer", func(ev *ContradictionEvidence) { ev.First.ProposerAddress = nil }, true},
		{"same block", func(ev *ContradictionEvidence) { ev.Second.ID = ev.First.ID }, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cp := &ContradictionEvidence{First: ev.First.Copy(), Second: ev.Second.Copy()}
			tc.malleate(cp)
			if tc.expErr {
				assert.Error(t, cp.ValidateBasic())
			} else {
				assert.NoError(t, cp.ValidateBasic())
			}
		})
	}

	var nilEv *ContradictionEvidence
	assert.Error(t, nilEv.ValidateBasic())
}
