package txmodel

import (
	"errors"
	"fmt"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/extra"
)

// Builder-level failure modes.
var (
	ErrInvalidSecretKey  = errors.New("txmodel: secret key does not match the real output's target key")
	ErrSignatureRequired = errors.New("txmodel: inputs or outputs changed after signing; re-sign before finalizing")
	ErrInvalidInputIndex = errors.New("txmodel: input index out of range")
)

// GlobalOutput is one candidate output by its absolute global index, used
// both as a ring member and to recognize the real spent output.
type GlobalOutput struct {
	Index     uint32
	TargetKey crypto.Point
}

// RealOutputInfo locates the spender's own output within an InputKeyInfo's
// ring: the transaction that created it, the recipient's position in that
// transaction's outputs, and its position within the ring.
type RealOutputInfo struct {
	TxPublicKey  crypto.Point
	OutputInTx   uint32
	RingPosition int
}

// InputKeyInfo describes everything needed to spend one owned output as a
// ring-signed KeyInput: the candidate ring (sorted by global index, the
// honest output included), the real output's location, and the amount
// being spent.
type InputKeyInfo struct {
	Amount     uint64
	Outputs    []GlobalOutput
	RealOutput RealOutputInfo
}

type ringInputState struct {
	ring            []crypto.Point
	keyImage        crypto.KeyImage
	ephemeralSecret crypto.Scalar
	realIndex       int
}

// Builder assembles a TransactionPrefix incrementally and produces its
// ring and multisig signatures. A fresh Builder writes its own transaction
// public key into Extra immediately; every output key recipients derive
// is relative to that key.
type Builder struct {
	prefix TransactionPrefix
	txKeys crypto.KeyPair
	rings  []*ringInputState // parallel to prefix.Inputs for KeyInput entries; nil otherwise
	signed bool
	dirty  bool
	lastTx *Transaction
}

// NewBuilder starts a new transaction with a fresh transaction keypair.
func NewBuilder(version uint8, unlockTime uint64) *Builder {
	txKeys := crypto.GenerateKeyPair()
	b := &Builder{
		prefix: TransactionPrefix{
			Version:    version,
			UnlockTime: unlockTime,
		},
		txKeys: txKeys,
	}
	var keyBytes [32]byte
	copy(keyBytes[:], txKeys.Public.Bytes())
	b.prefix.Extra = extra.Serialize([]extra.Field{extra.PublicKeyField{Key: keyBytes}}, nil)
	return b
}

// TxSecret returns the transaction secret key, which the sender must
// discard after broadcast but which recipients never see directly.
func (b *Builder) TxSecret() crypto.Scalar { return b.txKeys.Secret }

// TxPublic returns the transaction public key written into Extra.
func (b *Builder) TxPublic() crypto.Point { return b.txKeys.Public }

// SetExtra overwrites Extra with raw, which must still carry the builder's
// public key if recipients are to find their outputs; used when appending
// a payment id or merge-mining tag alongside it.
func (b *Builder) SetExtra(raw []byte) {
	b.prefix.Extra = raw
	b.markDirty()
}

func (b *Builder) markDirty() {
	if b.signed {
		b.dirty = true
	}
}

// AddOutput appends a recipient output. outIndex is the output's position
// within this transaction, the index DerivePublicKey and later recipient
// scanning both key off of.
func (b *Builder) AddOutput(amount uint64, target OutputTarget) (outIndex int, err error) {
	out := TransactionOutput{Amount: amount, Target: target}
	if err := out.Validate(); err != nil {
		return 0, err
	}
	b.prefix.Outputs = append(b.prefix.Outputs, out)
	b.markDirty()
	return len(b.prefix.Outputs) - 1, nil
}

// OutputCount returns how many outputs have been added so far, the index
// the next DeriveRecipientOutput call must be given.
func (b *Builder) OutputCount() int { return len(b.prefix.Outputs) }

// DeriveRecipientOutput computes output_key = derive_public_key(H(addr.view_public*tx_secret), i, addr.spend_public)
// for recipient addr at output index i, and appends the resulting KeyOutput.
func (b *Builder) DeriveRecipientOutput(amount uint64, addr crypto.Address, outputIndex uint32) (int, error) {
	derivation := crypto.GenerateKeyDerivation(addr.ViewPublic, b.txKeys.Secret)
	key := crypto.DerivePublicKey(derivation, outputIndex, addr.SpendPublic)
	return b.AddOutput(amount, KeyOutput{Key: key})
}

// AddKeyInput derives the spender's ephemeral keys and key image for info
// and appends a KeyInput with relative output indexes. The ring signature
// itself is produced later by Sign, once every input and output is final.
func (b *Builder) AddKeyInput(account crypto.AccountKeys, info InputKeyInfo) (inputIndex int, err error) {
	if info.RealOutput.RingPosition < 0 || info.RealOutput.RingPosition >= len(info.Outputs) {
		return 0, ErrInvalidInputIndex
	}

	derivation := crypto.GenerateKeyDerivation(info.RealOutput.TxPublicKey, account.ViewSecret)
	ephemeralPublic := crypto.DerivePublicKey(derivation, info.RealOutput.OutputInTx, account.SpendPublic)
	realTarget := info.Outputs[info.RealOutput.RingPosition].TargetKey
	if !ephemeralPublic.Equal(realTarget) {
		return 0, ErrInvalidSecretKey
	}
	ephemeralSecret := crypto.DeriveSecretKey(derivation, info.RealOutput.OutputInTx, account.SpendSecret)
	keyImage := crypto.GenerateKeyImage(ephemeralPublic, ephemeralSecret)

	absolute := make([]uint32, len(info.Outputs))
	ring := make([]crypto.Point, len(info.Outputs))
	for i, o := range info.Outputs {
		absolute[i] = o.Index
		ring[i] = o.TargetKey
	}

	input := KeyInput{
		Amount:        info.Amount,
		OutputIndexes: RelativeOutputIndexes(absolute),
		KeyImage:      keyImage,
	}
	b.prefix.Inputs = append(b.prefix.Inputs, input)
	b.rings = append(b.rings, &ringInputState{
		ring:            ring,
		keyImage:        keyImage,
		ephemeralSecret: ephemeralSecret,
		realIndex:       info.RealOutput.RingPosition,
	})
	b.markDirty()
	return len(b.prefix.Inputs) - 1, nil
}

// AddMultisigInput appends a MultisigInput with no signatures yet; cosigners
// attach their shares afterward with SignMultisigCosigner.
func (b *Builder) AddMultisigInput(amount uint64, signatureCount uint32, outputIndex uint32) (inputIndex int, err error) {
	b.prefix.Inputs = append(b.prefix.Inputs, MultisigInput{
		Amount:         amount,
		SignatureCount: signatureCount,
		OutputIndex:    outputIndex,
	})
	b.rings = append(b.rings, nil)
	b.markDirty()
	return len(b.prefix.Inputs) - 1, nil
}

// Sign produces ring signatures for every KeyInput added so far and
// returns the finalized Transaction. Multisig inputs are left with empty
// signature slots for cosigners to fill via SignMultisigCosigner.
func (b *Builder) Sign() (Transaction, error) {
	prefixHash := b.prefix.PrefixHash()
	signatures := make([][]Signature, len(b.prefix.Inputs))

	for i, in := range b.prefix.Inputs {
		switch in.(type) {
		case KeyInput:
			state := b.rings[i]
			rs, err := crypto.GenerateRingSignature(prefixHash, state.keyImage, state.ring, state.realIndex, state.ephemeralSecret)
			if err != nil {
				return Transaction{}, fmt.Errorf("txmodel: signing input %d: %w", i, err)
			}
			signatures[i] = fromRingSignature(rs)
		case MultisigInput:
			signatures[i] = nil
		case BaseInput:
			signatures[i] = nil
		}
	}

	tx := Transaction{TransactionPrefix: b.prefix, Signatures: signatures}
	b.signed = true
	b.dirty = false
	b.lastTx = &tx
	return tx, nil
}

// Finalize returns the most recent Sign result. It fails with
// ErrSignatureRequired if Sign has never been called, or if inputs or
// outputs were added after the last Sign call invalidating it.
func (b *Builder) Finalize() (Transaction, error) {
	if !b.signed || b.dirty || b.lastTx == nil {
		return Transaction{}, ErrSignatureRequired
	}
	return *b.lastTx, nil
}

// SignMultisigCosigner adds one cosigner's Schnorr share to tx's signature
// set for inputIndex, which must be a MultisigInput. A multisig share is a
// plain Schnorr signature: one (challenge, response) pair whose challenge is
// Hs(prefixHash || cosignerPublic || k*G) for a fresh nonce k.
func SignMultisigCosigner(tx *Transaction, inputIndex int, cosignerPublic crypto.Point, cosignerSecret crypto.Scalar) error {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return ErrInvalidInputIndex
	}
	mi, ok := tx.Inputs[inputIndex].(MultisigInput)
	if !ok {
		return fmt.Errorf("txmodel: input %d is not a multisig input", inputIndex)
	}
	if len(tx.Signatures[inputIndex]) >= int(mi.SignatureCount) {
		return fmt.Errorf("txmodel: input %d already has %d signatures", inputIndex, mi.SignatureCount)
	}

	prefixHash := tx.TransactionPrefix.PrefixHash()
	// A cosigner share carries no key image; CheckMultisigCosigner verifies
	// it directly against cosignerPublic instead.
	k := crypto.RandomScalar()
	challenge := crypto.HashToScalar(prefixHash.Bytes(), cosignerPublic.Bytes(), crypto.ScalarBaseMult(k).Bytes())
	response := k.Sub(challenge.Mul(cosignerSecret))
	tx.Signatures[inputIndex] = append(tx.Signatures[inputIndex], Signature{Challenge: challenge, Response: response})
	return nil
}

// CheckMultisigCosigner verifies one cosigner share against cosignerPublic.
func CheckMultisigCosigner(tx Transaction, inputIndex, shareIndex int, cosignerPublic crypto.Point) bool {
	if inputIndex < 0 || inputIndex >= len(tx.Signatures) {
		return false
	}
	shares := tx.Signatures[inputIndex]
	if shareIndex < 0 || shareIndex >= len(shares) {
		return false
	}
	prefixHash := tx.TransactionPrefix.PrefixHash()
	share := shares[shareIndex]
	commitment := crypto.DoubleScalarMultBaseVartime(share.Challenge, cosignerPublic, share.Response)
	return crypto.HashToScalar(prefixHash.Bytes(), cosignerPublic.Bytes(), commitment.Bytes()).Sub(share.Challenge).IsZero()
}

// CheckKeyInputSignature verifies the ring signature for a KeyInput at
// inputIndex against its recorded ring.
func CheckKeyInputSignature(tx Transaction, inputIndex int, ring []crypto.Point) bool {
	if inputIndex < 0 || inputIndex >= len(tx.Inputs) {
		return false
	}
	ki, ok := tx.Inputs[inputIndex].(KeyInput)
	if !ok {
		return false
	}
	rs := toRingSignature(tx.Signatures[inputIndex])
	prefixHash := tx.TransactionPrefix.PrefixHash()
	return crypto.CheckRingSignature(prefixHash, ki.KeyImage, ring, rs)
}

// FindOutputsToAccount scans tx's outputs for ones owned by account,
// returning their output indexes within tx. txPublicKey is read from tx's
// extra field.
func FindOutputsToAccount(tx Transaction, account crypto.AccountKeys) ([]int, error) {
	txPublicKey, ok := extraPublicKey(tx.Extra)
	if !ok {
		return nil, fmt.Errorf("txmodel: transaction has no public key in extra")
	}
	derivation := crypto.GenerateKeyDerivation(txPublicKey, account.ViewSecret)

	var owned []int
	for i, out := range tx.Outputs {
		switch target := out.Target.(type) {
		case KeyOutput:
			expected := crypto.DerivePublicKey(derivation, uint32(i), account.SpendPublic)
			if expected.Equal(target.Key) {
				owned = append(owned, i)
			}
		case MultisigOutput:
			expected := crypto.DerivePublicKey(derivation, uint32(i), account.SpendPublic)
			for _, k := range target.Keys {
				if expected.Equal(k) {
					owned = append(owned, i)
					break
				}
			}
		}
	}
	return owned, nil
}
