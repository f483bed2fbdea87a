package txmodel

import (
	"testing"

	"github.com/rawblock/cryptonote-core/internal/crypto"
)

func TestValidateInputsRejectsDuplicateKeyImage(t *testing.T) {
	img := crypto.GenerateKeyImage(crypto.ScalarBaseMult(crypto.RandomScalar()), crypto.RandomScalar())
	inputs := []Input{
		KeyInput{Amount: 1, OutputIndexes: []uint32{1}, KeyImage: img},
		KeyInput{Amount: 2, OutputIndexes: []uint32{1}, KeyImage: img},
	}
	if err := ValidateInputs(inputs); err == nil {
		t.Fatalf("expected an error for duplicate key images")
	}
}

func TestValidateInputsRejectsDuplicateMultisig(t *testing.T) {
	inputs := []Input{
		MultisigInput{Amount: 10, SignatureCount: 2, OutputIndex: 5},
		MultisigInput{Amount: 10, SignatureCount: 2, OutputIndex: 5},
	}
	if err := ValidateInputs(inputs); err == nil {
		t.Fatalf("expected an error for duplicate multisig (amount, global_index)")
	}
}

func TestValidateInputsRejectsOverflow(t *testing.T) {
	inputs := []Input{
		KeyInput{Amount: ^uint64(0), OutputIndexes: []uint32{1}, KeyImage: crypto.KeyImage{1}},
		KeyInput{Amount: 1, OutputIndexes: []uint32{1}, KeyImage: crypto.KeyImage{2}},
	}
	if err := ValidateInputs(inputs); err == nil {
		t.Fatalf("expected an error for overflowing input amounts")
	}
}

func TestValidateOutputsRejectsZeroAmount(t *testing.T) {
	outputs := []TransactionOutput{
		{Amount: 0, Target: KeyOutput{Key: crypto.ScalarBaseMult(crypto.RandomScalar())}},
	}
	if err := ValidateOutputs(outputs); err == nil {
		t.Fatalf("expected an error for a zero-amount output")
	}
}

func TestValidateOutputsRejectsBadMultisigThreshold(t *testing.T) {
	keys := []crypto.Point{crypto.ScalarBaseMult(crypto.RandomScalar())}
	outputs := []TransactionOutput{
		{Amount: 1, Target: MultisigOutput{Keys: keys, Required: 2}},
	}
	if err := ValidateOutputs(outputs); err == nil {
		t.Fatalf("expected an error for required > len(keys)")
	}
}

func TestValidateOutputsRejectsOverflow(t *testing.T) {
	pub := crypto.ScalarBaseMult(crypto.RandomScalar())
	outputs := []TransactionOutput{
		{Amount: ^uint64(0), Target: KeyOutput{Key: pub}},
		{Amount: 1, Target: KeyOutput{Key: pub}},
	}
	if err := ValidateOutputs(outputs); err == nil {
		t.Fatalf("expected an error for overflowing output amounts")
	}
}

func TestValidateSignaturesLengthMismatch(t *testing.T) {
	inputs := []Input{KeyInput{Amount: 1, OutputIndexes: []uint32{1, 2, 3}}}
	signatures := [][]Signature{{}, {}}
	if err := ValidateSignatures(inputs, signatures); err == nil {
		t.Fatalf("expected an error when signature-set count doesn't match input count")
	}
}

func TestValidateSignaturesWrongInnerLength(t *testing.T) {
	inputs := []Input{KeyInput{Amount: 1, OutputIndexes: []uint32{1, 2, 3}}}
	signatures := [][]Signature{{{}, {}}}
	if err := ValidateSignatures(inputs, signatures); err == nil {
		t.Fatalf("expected an error when a ring input has too few signatures")
	}
}

func TestRelativeAbsoluteOutputIndexRoundTrip(t *testing.T) {
	absolute := []uint32{5, 12, 12, 40, 100}
	relative := RelativeOutputIndexes(absolute)
	ki := KeyInput{OutputIndexes: relative}
	got := ki.AbsoluteOutputIndexes()

	if len(got) != len(absolute) {
		t.Fatalf("got %v, want %v", got, absolute)
	}
	for i := range absolute {
		if got[i] != absolute[i] {
			t.Fatalf("got %v, want %v", got, absolute)
		}
	}
}

func TestUnlockTimeInterpretation(t *testing.T) {
	if !IsUnlockTimeBlockIndex(0) {
		t.Fatalf("expected 0 to be a block index")
	}
	if !IsUnlockTimeBlockIndex(MaxBlockHeight - 1) {
		t.Fatalf("expected MaxBlockHeight-1 to be a block index")
	}
	if IsUnlockTimeBlockIndex(MaxBlockHeight) {
		t.Fatalf("expected MaxBlockHeight to be a timestamp")
	}
}

func TestTransactionHashChangesWithSignatures(t *testing.T) {
	prefix := TransactionPrefix{
		Version:    1,
		UnlockTime: 0,
		Outputs: []TransactionOutput{
			{Amount: 1, Target: KeyOutput{Key: crypto.ScalarBaseMult(crypto.RandomScalar())}},
		},
	}
	txA := Transaction{TransactionPrefix: prefix, Signatures: [][]Signature{}}
	txB := Transaction{TransactionPrefix: prefix, Signatures: [][]Signature{{}}}

	if txA.Hash() == txB.Hash() {
		t.Fatalf("expected differing signature structure to change the transaction hash")
	}
	if txA.PrefixHash() != txB.PrefixHash() {
		t.Fatalf("expected identical prefixes to share a prefix hash")
	}
}
