package txmodel

import (
	"fmt"
	"math"

	"github.com/rawblock/cryptonote-core/internal/crypto"
)

// addOverflows reports whether a+b would overflow a uint64.
func addOverflows(a, b uint64) bool {
	return b > math.MaxUint64-a
}

// ValidateInputs checks: every input is a recognized kind, summing input
// amounts does not overflow, no two KeyInputs share a key image, and no
// two MultisigInputs target the same (amount, output index).
func ValidateInputs(inputs []Input) error {
	var total uint64
	seenKeyImages := make(map[crypto.KeyImage]struct{})
	seenMultisig := make(map[[2]uint64]struct{})

	for i, in := range inputs {
		switch v := in.(type) {
		case BaseInput:
			// no amount, no key image to track.
		case KeyInput:
			if addOverflows(total, v.Amount) {
				return fmt.Errorf("txmodel: input %d: summed input amounts overflow", i)
			}
			total += v.Amount
			if _, dup := seenKeyImages[v.KeyImage]; dup {
				return fmt.Errorf("txmodel: input %d: duplicate key image within transaction", i)
			}
			seenKeyImages[v.KeyImage] = struct{}{}
		case MultisigInput:
			if addOverflows(total, v.Amount) {
				return fmt.Errorf("txmodel: input %d: summed input amounts overflow", i)
			}
			total += v.Amount
			key := [2]uint64{v.Amount, uint64(v.OutputIndex)}
			if _, dup := seenMultisig[key]; dup {
				return fmt.Errorf("txmodel: input %d: duplicate multisig (amount, global_index)", i)
			}
			seenMultisig[key] = struct{}{}
		default:
			return fmt.Errorf("txmodel: input %d: unsupported input type %T", i, in)
		}
	}
	return nil
}

// ValidateOutputs checks: every output amount is non-zero, every output is
// well-formed per its own Validate, and summing output amounts does not
// overflow.
func ValidateOutputs(outputs []TransactionOutput) error {
	var total uint64
	for i, out := range outputs {
		if err := out.Validate(); err != nil {
			return fmt.Errorf("txmodel: output %d: %w", i, err)
		}
		if addOverflows(total, out.Amount) {
			return fmt.Errorf("txmodel: output %d: summed output amounts overflow", i)
		}
		total += out.Amount
	}
	return nil
}

// ValidateSignatures checks that signatures has one entry per input and
// that each entry's length matches that input's required signature count.
func ValidateSignatures(inputs []Input, signatures [][]Signature) error {
	if len(signatures) != len(inputs) {
		return fmt.Errorf("txmodel: %d signature sets for %d inputs", len(signatures), len(inputs))
	}
	for i, in := range inputs {
		want := in.RequiredSignatures()
		got := len(signatures[i])
		if got != want {
			return fmt.Errorf("txmodel: input %d: %d signatures, want %d", i, got, want)
		}
	}
	return nil
}
