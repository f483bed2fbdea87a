//go:build !cuda

// Package decoymatch assembles a spend's ring from node-supplied decoy
// candidates plus the real output, the one step of input preparation the
// wallet core swaps out for a hardware-accelerated build.
package decoymatch

import (
	"sort"

	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
)

// SelectRing removes any candidate that collides with real by global
// index, appends real, and sorts the result by global index ascending —
// the order ring signatures are generated and verified against. It
// returns the assembled ring and real's position within it.
func SelectRing(candidates []txmodel.GlobalOutput, real txmodel.GlobalOutput) ([]txmodel.GlobalOutput, int) {
	deduped := make([]txmodel.GlobalOutput, 0, len(candidates)+1)
	for _, c := range candidates {
		if c.Index != real.Index {
			deduped = append(deduped, c)
		}
	}
	ring := append(deduped, real)
	sort.Slice(ring, func(i, j int) bool { return ring[i].Index < ring[j].Index })

	for i, o := range ring {
		if o.Index == real.Index {
			return ring, i
		}
	}
	return ring, 0
}
