// Package amount implements CryptoNote-style "pretty amount" decomposition:
// splitting a raw atomic-unit amount into digit-aligned chunks plus a single
// dust bucket, so that transaction outputs don't leak an amount's
// least-significant digits and remain mixable with other wallets' outputs.
package amount

// Decomposition is the result of splitting an amount into digit-aligned
// chunks plus a single dust bucket. Summing Chunks and Dust always
// reproduces the original amount exactly.
//
// Dust, when nonzero, is logically emitted immediately before Chunks[0] —
// the first chunk above the dust threshold encountered while scanning
// digits from least to most significant. If Chunks is empty, every digit
// fell at or below the threshold and Dust is the sole output.
type Decomposition struct {
	Chunks []uint64
	Dust   uint64
}

// Decompose splits amount into digit chunks of the form d*10^k (1 ≤ d ≤ 9),
// scanning from the least significant digit up. Any chunk at or below
// dustThreshold accumulates into a single dust bucket instead of being
// emitted as its own chunk; the bucket is folded in (not re-split) once a
// chunk above the threshold appears, or at the end if none ever does.
func Decompose(amount, dustThreshold uint64) Decomposition {
	d := Decomposition{}
	var dustAccum uint64
	dustFolded := false

	scale := uint64(1)
	remaining := amount
	for remaining > 0 {
		digit := remaining % 10
		if digit != 0 {
			chunk := digit * scale
			if chunk <= dustThreshold {
				dustAccum += chunk
			} else {
				if !dustFolded && dustAccum != 0 {
					d.Dust = dustAccum
					dustFolded = true
				}
				d.Chunks = append(d.Chunks, chunk)
			}
		}
		remaining /= 10
		scale *= 10
	}

	if !dustFolded {
		d.Dust = dustAccum
	}
	return d
}
