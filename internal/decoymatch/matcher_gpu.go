//go:build cuda

package decoymatch

import (
	"log"
	"sort"

	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
)

// SelectRing is the build compiled in with the cuda tag. No CUDA kernel
// ships with this module, so ring assembly falls back to the same scan
// the default build performs; a build wired to a real kernel would
// replace this with one that offloads the candidate scan/sort to the GPU.
func SelectRing(candidates []txmodel.GlobalOutput, real txmodel.GlobalOutput) ([]txmodel.GlobalOutput, int) {
	log.Println("[decoymatch] built with the cuda tag but no CUDA kernel is linked; using the CPU ring assembly path")

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
