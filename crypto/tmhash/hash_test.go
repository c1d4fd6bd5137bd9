package tmhash_test

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/headerbft/crypto/tmhash"
)

func TestHash(t *testing.T) {
	testVector := []byte("abc")
	hasher := tmhash.New()
	_, err := hasher.Write(testVector)
	require.NoError(t, err)
	bz := hasher.Sum(nil)

	bz2 := tmhash.Sum(testVector)

	hasher = sha256.New()
	_, err = hasher.Write(testVector)
	require.NoError(t, err)
	bz3 := hasher.Sum(nil)

	assert.Equal(t, bz, bz2)
	assert.Equal(t, bz, bz3)
}

func TestSumMany(t *testing.T) {
	assert.Equal(t, tmhash.Sum([]byte("abcdef")), tmhash.SumMany([]byte("ab"), []byte("cd"), []byte("ef")))
	assert.Equal(t, tmhash.Sum([]byte("x")), tmhash.SumMany([]byte("x")))
}

func TestHashTruncated(t *testing.T) {
	testVector := []byte("abc")
	bz := tmhash.SumTruncated(testVector)

	full := sha256.Sum256(testVector)
	assert.Len(t, bz, tmhash.TruncatedSize)
	assert.Equal(t, full[:tmhash.TruncatedSize], bz)
}
