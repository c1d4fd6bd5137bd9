package bft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/headerbft/types"
)

func TestHeadersContradict(t *testing.T) {
	withID := func(id byte, height, prev, prevoted int64, p string) *types.Header {
		return types.NewHeader(types.HexBytes{id}, height, prev, prevoted, 0, types.Address(p))
	}

	testCases := []struct {
		name       string
		a, b       *types.Header
		contradict bool
	}{
		{"identical block", withID(42, 1, 0, 3, "p1"), withID(42, 1, 0, 3, "p1"), false},
		{"different proposers", withID(1, 1, 0, 3, "p1"), withID(2, 1, 0, 3, "p2"), false},
		{"double forging", withID(1, 5, 0, 0, "p1"), withID(2, 5, 0, 0, "p1"), true},
		{"same ancestor at different heights", withID(1, 5, 0, 0, "p1"), withID(2, 6, 0, 0, "p1"), true},
		{"prevoted height increased", withID(1, 5, 0, 0, "p1"), withID(2, 5, 5, 1, "p1"), false},
		{"ancestries overlap", withID(1, 5, 51, 0, "p1"), withID(2, 32, 50, 0, "p1"), true},
		{"lower prevoted height later", withID(1, 75, 51, 34, "p1"), withID(2, 135, 75, 33, "p1"), true},
		{"extends own header", withID(1, 75, 51, 34, "p1"), withID(2, 135, 75, 34, "p1"), false},
		{"vacuous earlier header", withID(1, 75, 75, 34, "p1"), withID(2, 135, 75, 34, "p1"), false},
		{"both vacuous", withID(1, 75, 80, 34, "p1"), withID(2, 135, 80, 34, "p1"), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.contradict, HeadersContradict(tc.a, tc.b))
			assert.Equal(t, tc.contradict, HeadersContradict(tc.b, tc.a))
		})
	}
}

func TestHeadersContradictProposerOnly(t *testing.T) {
	a := types.NewHeader(types.HexBytes{1}, 9, 3, 2, 0, types.Address("delegate"))
	b := types.NewHeader(types.HexBytes{2}, 9, 3, 2, 0, types.Address("delegate"))
	require.True(t, HeadersContradict(a, b))
	require.True(t, HeadersContradict(b, a))

	b.ProposerAddress = types.Address("other")
	assert.False(t, HeadersContradict(a, b))
	assert.False(t, HeadersContradict(b, a))
}

func TestContradictsStoredChainUsesLatestHeader(t *testing.T) {
	var (
		a = types.Address("A")
		b = types.Address("B")
	)
	tr := newTestTracker(t, smallSetConfig())
	admitAll(t, tr,
		newHeader(1, 0, 0, 0, a),
		newHeader(2, 0, 0, 0, b),
		newHeader(3, 1, 0, 0, a),
		newHeader(4, 2, 0, 0, b),
		newHeader(5, 4, 0, 0, b),
	)

	// A second header at height 1 contradicts the stored one, but only the
	// most recent header of A is compared.
	fork1 := newHeader(1, 0, 0, 0, a)
	fork1.ID = types.HexBytes("fork")
	require.True(t, HeadersContradict(tr.Header(1), fork1))
	assert.False(t, tr.ContradictsStoredChain(fork1, -1))

	fork3 := newHeader(3, 1, 0, 0, a)
	fork3.ID = types.HexBytes("fork")
	assert.True(t, tr.ContradictsStoredChain(fork3, -1))

	// An offset of 1 only covers heights 4 and 5, which A did not propose.
	assert.False(t, tr.ContradictsStoredChain(fork3, 0))
	assert.False(t, tr.ContradictsStoredChain(fork3, 1))
	assert.True(t, tr.ContradictsStoredChain(fork3, 2))
}

func TestContradictsStoredChainZeroOffsetChecksTipOnly(t *testing.T) {
	var (
		a = types.Address("A")
		b = types.Address("B")
	)
	tr := newTestTracker(t, smallSetConfig())
	admitAll(t, tr,
		newHeader(1, 0, 0, 0, a),
		newHeader(2, 0, 0, 0, b),
	)

	fork := newHeader(1, 0, 0, 0, a)
	fork.ID = types.HexBytes("fork")

	// only B@2 is in [2, 2]
	assert.False(t, tr.ContradictsStoredChain(fork, 0))
	assert.True(t, tr.ContradictsStoredChain(fork, 1))
	assert.True(t, tr.ContradictsStoredChain(fork, -1))

	// the tip itself is compared with an offset of 0
	forkTip := newHeader(2, 0, 0, 0, b)
	forkTip.ID = types.HexBytes("fork")
	assert.True(t, tr.ContradictsStoredChain(forkTip, 0))
}
