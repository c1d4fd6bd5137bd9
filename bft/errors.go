package bft

import (
	"errors"
	"fmt"

	"github.com/celestiaorg/headerbft/types"
)

var (
	// ErrNonSequentialHeight is returned when a header does not extend the
	// stored window by exactly one height.
	ErrNonSequentialHeight = errors.New("non-sequential header height")
	// ErrStalePrevotedHeight is returned when a header echoes a prevoted
	// height other than the one the tracker computed.
	ErrStalePrevotedHeight = errors.New("stale prevoted height")
	// ErrContradictingAncestry is returned when a header contradicts the most
	// recent stored header of its proposer.
	ErrContradictingAncestry = errors.New("contradicting ancestry")
)

// NonSequentialHeightError carries the height the tracker expected.
type NonSequentialHeightError struct {
	Expected int64
	Got      int64
}

func (e *NonSequentialHeightError) Error() string {
	return fmt.Sprintf("%v: expected %d, got %d", ErrNonSequentialHeight, e.Expected, e.Got)
}

func (e *NonSequentialHeightError) Unwrap() error { return ErrNonSequentialHeight }

// StalePrevotedHeightError carries the prevoted height the tracker holds.
type StalePrevotedHeightError struct {
	Height   int64
	Expected int64
	Got      int64
}

func (e *StalePrevotedHeightError) Error() string {
	return fmt.Sprintf("%v at height %d: expected %d, got %d",
		ErrStalePrevotedHeight, e.Height, e.Expected, e.Got)
}

func (e *StalePrevotedHeightError) Unwrap() error { return ErrStalePrevotedHeight }

// ContradictionError carries both headers of a detected contradiction. The
// headers are copies and may be retained by the caller.
type ContradictionError struct {
	Stored   *types.Header
	Received *types.Header
}

func (e *ContradictionError) Error() string {
	return fmt.Sprintf("%v: %v contradicts stored %v", ErrContradictingAncestry, e.Received, e.Stored)
}

func (e *ContradictionError) Unwrap() error { return ErrContradictingAncestry }
