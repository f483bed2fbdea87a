package txmodel

import (
	"testing"

	"github.com/rawblock/cryptonote-core/internal/crypto"
)

func newTestAccount() crypto.AccountKeys {
	spend := crypto.GenerateKeyPair()
	view := crypto.GenerateKeyPair()
	return crypto.AccountKeys{
		Address: crypto.Address{
			SpendPublic: spend.Public,
			ViewPublic:  view.Public,
		},
		SpendSecret: spend.Secret,
		ViewSecret:  view.Secret,
	}
}

// buildReceivedOutput simulates a sender building one output to recipient
// at outputIndex within some other transaction's output list, and returns
// the ingredients an owning wallet would need to spend it later.
func buildReceivedOutput(recipient crypto.AccountKeys, outputIndex uint32) (txPublic crypto.Point, outputKey crypto.Point) {
	txKeys := crypto.GenerateKeyPair()
	derivation := crypto.GenerateKeyDerivation(recipient.ViewPublic, txKeys.Secret)
	outputKey = crypto.DerivePublicKey(derivation, outputIndex, recipient.SpendPublic)
	return txKeys.Public, outputKey
}

func TestBuilderSignAndVerifyKeyInput(t *testing.T) {
	spender := newTestAccount()
	const outputInTx = 0
	txPublic, ownedKey := buildReceivedOutput(spender, outputInTx)

	// Two decoy outputs plus the real one, in ascending global-index order.
	ring := []GlobalOutput{
		{Index: 10, TargetKey: crypto.ScalarBaseMult(crypto.RandomScalar())},
		{Index: 25, TargetKey: ownedKey},
		{Index: 40, TargetKey: crypto.ScalarBaseMult(crypto.RandomScalar())},
	}

	info := InputKeyInfo{
		Amount:  1_000_000,
		Outputs: ring,
		RealOutput: RealOutputInfo{
			TxPublicKey:  txPublic,
			OutputInTx:   outputInTx,
			RingPosition: 1,
		},
	}

	b := NewBuilder(1, 0)
	recipient := newTestAccount()
	if _, err := b.DeriveRecipientOutput(999_000, recipient.Address, 0); err != nil {
		t.Fatalf("DeriveRecipientOutput: %v", err)
	}
	if _, err := b.AddKeyInput(spender, info); err != nil {
		t.Fatalf("AddKeyInput: %v", err)
	}

	tx, err := b.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := ValidateInputs(tx.Inputs); err != nil {
		t.Fatalf("ValidateInputs: %v", err)
	}
	if err := ValidateOutputs(tx.Outputs); err != nil {
		t.Fatalf("ValidateOutputs: %v", err)
	}
	if err := ValidateSignatures(tx.Inputs, tx.Signatures); err != nil {
		t.Fatalf("ValidateSignatures: %v", err)
	}

	ringPoints := make([]crypto.Point, len(ring))
	for i, o := range ring {
		ringPoints[i] = o.TargetKey
	}
	if !CheckKeyInputSignature(tx, 0, ringPoints) {
		t.Fatalf("expected the ring signature to verify")
	}

	// Tamper with one output's amount and confirm the prefix hash (and thus
	// the signature) no longer matches.
	tx.Outputs[0].Amount++
	if CheckKeyInputSignature(tx, 0, ringPoints) {
		t.Fatalf("expected verification to fail after tampering with an output")
	}
}

func TestAddKeyInputRejectsWrongSecret(t *testing.T) {
	spender := newTestAccount()
	impostor := newTestAccount()
	txPublic, ownedKey := buildReceivedOutput(spender, 0)

	ring := []GlobalOutput{{Index: 1, TargetKey: ownedKey}}
	info := InputKeyInfo{
		Amount:  1,
		Outputs: ring,
		RealOutput: RealOutputInfo{
			TxPublicKey:  txPublic,
			OutputInTx:   0,
			RingPosition: 0,
		},
	}

	b := NewBuilder(1, 0)
	if _, err := b.AddKeyInput(impostor, info); err != ErrInvalidSecretKey {
		t.Fatalf("AddKeyInput with wrong account: err = %v, want ErrInvalidSecretKey", err)
	}
}

func TestAddKeyInputRejectsOutOfRangeRingPosition(t *testing.T) {
	spender := newTestAccount()
	txPublic, ownedKey := buildReceivedOutput(spender, 0)
	ring := []GlobalOutput{{Index: 1, TargetKey: ownedKey}}
	info := InputKeyInfo{
		Amount:  1,
		Outputs: ring,
		RealOutput: RealOutputInfo{
			TxPublicKey:  txPublic,
			OutputInTx:   0,
			RingPosition: 5,
		},
	}

	b := NewBuilder(1, 0)
	if _, err := b.AddKeyInput(spender, info); err != ErrInvalidInputIndex {
		t.Fatalf("err = %v, want ErrInvalidInputIndex", err)
	}
}

func TestFinalizeRequiresSignature(t *testing.T) {
	b := NewBuilder(1, 0)
	if _, err := b.Finalize(); err != ErrSignatureRequired {
		t.Fatalf("Finalize before Sign: err = %v, want ErrSignatureRequired", err)
	}

	account := newTestAccount()
	if _, err := b.DeriveRecipientOutput(1, account.Address, 0); err != nil {
		t.Fatalf("DeriveRecipientOutput: %v", err)
	}
	if _, err := b.Sign(); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := b.Finalize(); err != nil {
		t.Fatalf("Finalize after Sign: %v", err)
	}

	if _, err := b.DeriveRecipientOutput(2, account.Address, 1); err != nil {
		t.Fatalf("DeriveRecipientOutput: %v", err)
	}
	if _, err := b.Finalize(); err != ErrSignatureRequired {
		t.Fatalf("Finalize after mutating post-sign: err = %v, want ErrSignatureRequired", err)
	}
}

func TestFindOutputsToAccount(t *testing.T) {
	recipient := newTestAccount()
	stranger := newTestAccount()

	b := NewBuilder(1, 0)
	if _, err := b.DeriveRecipientOutput(500, stranger.Address, 0); err != nil {
		t.Fatalf("DeriveRecipientOutput: %v", err)
	}
	if _, err := b.DeriveRecipientOutput(700, recipient.Address, 1); err != nil {
		t.Fatalf("DeriveRecipientOutput: %v", err)
	}
	tx, err := b.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	owned, err := FindOutputsToAccount(tx, recipient)
	if err != nil {
		t.Fatalf("FindOutputsToAccount: %v", err)
	}
	if len(owned) != 1 || owned[0] != 1 {
		t.Fatalf("owned = %v, want [1]", owned)
	}
}

func TestMultisigCosignerRoundTrip(t *testing.T) {
	cosigner1 := crypto.GenerateKeyPair()
	cosigner2 := crypto.GenerateKeyPair()

	b := NewBuilder(1, 0)
	account := newTestAccount()
	if _, err := b.DeriveRecipientOutput(1, account.Address, 0); err != nil {
		t.Fatalf("DeriveRecipientOutput: %v", err)
	}
	if _, err := b.AddMultisigInput(100, 2, 7); err != nil {
		t.Fatalf("AddMultisigInput: %v", err)
	}
	tx, err := b.Sign()
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if err := SignMultisigCosigner(&tx, 0, cosigner1.Public, cosigner1.Secret); err != nil {
		t.Fatalf("SignMultisigCosigner (1): %v", err)
	}
	if err := SignMultisigCosigner(&tx, 0, cosigner2.Public, cosigner2.Secret); err != nil {
		t.Fatalf("SignMultisigCosigner (2): %v", err)
	}

	if err := ValidateSignatures(tx.Inputs, tx.Signatures); err != nil {
		t.Fatalf("ValidateSignatures: %v", err)
	}
	if !CheckMultisigCosigner(tx, 0, 0, cosigner1.Public) {
		t.Fatalf("expected cosigner 1's share to verify")
	}
	if !CheckMultisigCosigner(tx, 0, 1, cosigner2.Public) {
		t.Fatalf("expected cosigner 2's share to verify")
	}
	if CheckMultisigCosigner(tx, 0, 0, cosigner2.Public) {
		t.Fatalf("expected cosigner 1's share to fail against cosigner 2's key")
	}
}
