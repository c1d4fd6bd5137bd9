/*
Package bft tracks the implied votes of recent block headers and derives
from them the prevoted and finalized heights of the chain.

A header at height h proposed by p implies a prevote by p for every height
between its claimed previous header and h, and a precommit for every height
below h that already has enough prevotes. Both spans are bounded by the vote
offset and by the height since which p is active. The Tracker keeps the last
MaxStoredHeaders headers in a ring together with these counts.

A height becomes prevoted once PrevoteThreshold prevotes are counted for it
and finalized once PrecommitThreshold precommits are counted for it. The
finalized height never decreases, not even when headers are removed or the
window is cleared.

Headers are admitted strictly in height order. A header is rejected when it
does not extend the window, when it echoes a prevoted height other than the
one computed by the tracker (only checked once VoteOffset+1 headers are
stored), or when it contradicts the most recent header of its proposer. See
HeadersContradict for the contradiction rules.
*/
package bft
