package bft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/headerbft/types"
)

func TestWindowPushEvicts(t *testing.T) {
	w := newWindow(3)
	require.True(t, w.empty())

	for h := int64(10); h <= 12; h++ {
		assert.False(t, w.push(&types.Header{Height: h}))
	}
	assert.EqualValues(t, 10, w.min)
	assert.EqualValues(t, 12, w.max)

	w.at(12).prevotes = 7
	assert.True(t, w.push(&types.Header{Height: 13}))
	assert.EqualValues(t, 11, w.min)
	assert.EqualValues(t, 13, w.max)
	assert.EqualValues(t, 3, w.n)
	assert.Nil(t, w.header(10))
	assert.EqualValues(t, 0, w.at(13).prevotes, "reused slot must be cleared")
	assert.EqualValues(t, 7, w.at(12).prevotes)
}

func TestWindowTruncateAndReset(t *testing.T) {
	w := newWindow(5)
	for h := int64(0); h < 5; h++ {
		w.push(&types.Header{Height: h})
		w.at(h).precommits = h
	}

	w.truncate(2)
	assert.EqualValues(t, 2, w.max)
	assert.EqualValues(t, 3, w.n)
	assert.False(t, w.contains(3))
	assert.Nil(t, w.slots[w.index(4)].header)

	w.push(&types.Header{Height: 3})
	assert.EqualValues(t, 0, w.at(3).precommits)
	assert.EqualValues(t, 2, w.at(2).precommits)

	w.reset()
	assert.True(t, w.empty())
	assert.EqualValues(t, -1, w.min)
	assert.EqualValues(t, -1, w.max)
	assert.False(t, w.contains(-1))
}

func TestWindowNegativeHeights(t *testing.T) {
	w := newWindow(4)
	for h := int64(-3); h <= 3; h++ {
		w.push(&types.Header{Height: h})
	}
	assert.EqualValues(t, 0, w.min)
	for h := int64(0); h <= 3; h++ {
		require.NotNil(t, w.header(h))
		assert.Equal(t, h, w.header(h).Height)
	}
	assert.EqualValues(t, 1, w.index(-3))
}
