// Package txmodel implements the CryptoNote transaction and block model:
// tagged-union inputs and outputs, stealth-output derivation, ring-signature
// construction and verification, and the validation predicates a relaying
// node or wallet runs before accepting a transaction.
package txmodel

import (
	"encoding/binary"
	"fmt"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/extra"
)

// MaxBlockHeight is the boundary below which an unlock_time value is
// interpreted as a block index rather than a UNIX timestamp.
const MaxBlockHeight = 500_000_000

// IsUnlockTimeBlockIndex reports whether unlockTime names a block index
// (true) or a UNIX timestamp (false).
func IsUnlockTimeBlockIndex(unlockTime uint64) bool {
	return unlockTime < MaxBlockHeight
}

// OutputTarget is the receivable half of a TransactionOutput: either a
// single-recipient KeyOutput or a MultisigOutput spendable by a threshold
// of cosigners.
type OutputTarget interface {
	outputTarget()
}

// KeyOutput is receivable by one address; recognizing it as one's own
// requires scanning with the recipient's view secret.
type KeyOutput struct {
	Key crypto.Point
}

func (KeyOutput) outputTarget() {}

// MultisigOutput is spendable once Required of Keys' holders co-sign.
type MultisigOutput struct {
	Keys     []crypto.Point
	Required uint32
}

func (MultisigOutput) outputTarget() {}

// TransactionOutput pairs an amount with its receivable target.
type TransactionOutput struct {
	Amount uint64
	Target OutputTarget
}

// Validate checks the per-output invariants: a positive amount, and for a
// multisig target, 1 ≤ Required ≤ len(Keys).
func (o TransactionOutput) Validate() error {
	if o.Amount == 0 {
		return fmt.Errorf("txmodel: output amount must be non-zero")
	}
	if m, ok := o.Target.(MultisigOutput); ok {
		if m.Required < 1 || int(m.Required) > len(m.Keys) {
			return fmt.Errorf("txmodel: multisig output requires 1<=required<=%d, got %d", len(m.Keys), m.Required)
		}
	}
	return nil
}

// Input is a tagged union over the three input kinds a transaction may
// spend: BaseInput (coinbase), KeyInput (ring-signed spend) and
// MultisigInput (threshold spend).
type Input interface {
	inputKind()
	// RequiredSignatures is the length the matching signatures[i] entry
	// must have for this input.
	RequiredSignatures() int
}

// BaseInput is the sole input of a coinbase transaction.
type BaseInput struct {
	BlockIndex uint32
}

func (BaseInput) inputKind()              {}
func (BaseInput) RequiredSignatures() int { return 0 }

// KeyInput spends one output via a ring signature over a set of candidate
// outputs for the same amount. OutputIndexes are relative offsets: each
// entry after the first is the difference from the previous absolute
// index, so the wire form stays small even for large absolute indexes.
type KeyInput struct {
	Amount        uint64
	OutputIndexes []uint32
	KeyImage      crypto.KeyImage
}

func (KeyInput) inputKind() {}

// RequiredSignatures is the ring size.
func (k KeyInput) RequiredSignatures() int { return len(k.OutputIndexes) }

// AbsoluteOutputIndexes expands OutputIndexes from relative to absolute
// form by a running cumulative sum.
func (k KeyInput) AbsoluteOutputIndexes() []uint32 {
	out := make([]uint32, len(k.OutputIndexes))
	var running uint32
	for i, rel := range k.OutputIndexes {
		running += rel
		out[i] = running
	}
	return out
}

// RelativeOutputIndexes converts a slice of strictly increasing absolute
// indexes into the relative form KeyInput stores on the wire.
func RelativeOutputIndexes(absolute []uint32) []uint32 {
	rel := make([]uint32, len(absolute))
	var prev uint32
	for i, idx := range absolute {
		rel[i] = idx - prev
		prev = idx
	}
	return rel
}

// MultisigInput spends a MultisigOutput, requiring SignatureCount
// independent cosigner signatures.
type MultisigInput struct {
	Amount         uint64
	SignatureCount uint32
	OutputIndex    uint32
}

func (MultisigInput) inputKind() {}

// RequiredSignatures is SignatureCount.
func (m MultisigInput) RequiredSignatures() int { return int(m.SignatureCount) }

// Signature is one Schnorr-style (challenge, response) proof element. A
// ring signature over n candidates is n of these bound by one Fiat-Shamir
// challenge; a multisig cosigner share is one of these generated
// independently, as a plain Schnorr signature under the cosigner's key.
type Signature struct {
	Challenge crypto.Scalar
	Response  crypto.Scalar
}

func toRingSignature(sigs []Signature) crypto.RingSignature {
	rs := crypto.RingSignature{
		Challenges: make([]crypto.Scalar, len(sigs)),
		Responses:  make([]crypto.Scalar, len(sigs)),
	}
	for i, s := range sigs {
		rs.Challenges[i] = s.Challenge
		rs.Responses[i] = s.Response
	}
	return rs
}

func fromRingSignature(rs crypto.RingSignature) []Signature {
	sigs := make([]Signature, len(rs.Challenges))
	for i := range rs.Challenges {
		sigs[i] = Signature{Challenge: rs.Challenges[i], Response: rs.Responses[i]}
	}
	return sigs
}

// TransactionPrefix is the unsigned body of a transaction: everything that
// is hashed to produce the message ring signatures are computed over.
type TransactionPrefix struct {
	Version    uint8
	UnlockTime uint64
	Inputs     []Input
	Outputs    []TransactionOutput
	Extra      []byte
}

// PrefixHash returns H(serialize(prefix)), the signing message.
func (p TransactionPrefix) PrefixHash() crypto.Hash {
	return crypto.Keccak256(p.serialize())
}

func (p TransactionPrefix) serialize() []byte {
	var buf []byte
	buf = append(buf, p.Version)
	buf = appendUvarint(buf, p.UnlockTime)
	buf = appendUvarint(buf, uint64(len(p.Inputs)))
	for _, in := range p.Inputs {
		buf = appendInput(buf, in)
	}
	buf = appendUvarint(buf, uint64(len(p.Outputs)))
	for _, out := range p.Outputs {
		buf = appendOutput(buf, out)
	}
	buf = appendUvarint(buf, uint64(len(p.Extra)))
	buf = append(buf, p.Extra...)
	return buf
}

// Transaction is a TransactionPrefix plus one signature set per input.
type Transaction struct {
	TransactionPrefix
	Signatures [][]Signature
}

// Hash returns H(serialize(prefix) || serialize(signatures)), the
// transaction id.
func (t Transaction) Hash() crypto.Hash {
	return crypto.Keccak256(t.Serialize())
}

func appendUvarint(buf []byte, v uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	return append(buf, tmp[:n]...)
}

func appendInput(buf []byte, in Input) []byte {
	switch v := in.(type) {
	case BaseInput:
		buf = append(buf, tagBaseInput)
		buf = appendUvarint(buf, uint64(v.BlockIndex))
	case KeyInput:
		buf = append(buf, tagKeyInput)
		buf = appendUvarint(buf, v.Amount)
		buf = appendUvarint(buf, uint64(len(v.OutputIndexes)))
		for _, idx := range v.OutputIndexes {
			buf = appendUvarint(buf, uint64(idx))
		}
		buf = append(buf, v.KeyImage.Bytes()...)
	case MultisigInput:
		buf = append(buf, tagMultisigInput)
		buf = appendUvarint(buf, v.Amount)
		buf = appendUvarint(buf, uint64(v.SignatureCount))
		buf = appendUvarint(buf, uint64(v.OutputIndex))
	}
	return buf
}

func appendOutput(buf []byte, out TransactionOutput) []byte {
	buf = appendUvarint(buf, out.Amount)
	switch v := out.Target.(type) {
	case KeyOutput:
		buf = append(buf, tagKeyOutput)
		buf = append(buf, v.Key.Bytes()...)
	case MultisigOutput:
		buf = append(buf, tagMultisigOutput)
		buf = appendUvarint(buf, uint64(len(v.Keys)))
		for _, k := range v.Keys {
			buf = append(buf, k.Bytes()...)
		}
		buf = appendUvarint(buf, uint64(v.Required))
	}
	return buf
}

// extraPublicKey extracts the transaction public key the builder wrote
// into Extra, if any.
func extraPublicKey(raw []byte) (crypto.Point, bool) {
	res, err := extra.Parse(raw, extra.ModeOpaqueTail)
	if err != nil {
		return crypto.Point{}, false
	}
	key, ok := extra.GetPublicKey(res.Fields)
	if !ok {
		return crypto.Point{}, false
	}
	p, err := crypto.PointFromBytes(key[:])
	if err != nil {
		return crypto.Point{}, false
	}
	return p, true
}
