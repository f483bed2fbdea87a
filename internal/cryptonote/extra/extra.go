// Package extra parses and writes the TLV-style "extra" field carried by
// every CryptoNote transaction: the sender's one-time transaction public
// key, an optional nonce (typically a payment id), a merge-mining tag, and
// padding.
package extra

import (
	"encoding/binary"
	"fmt"
)

const (
	TagPadding        byte = 0x00
	TagPublicKey      byte = 0x01
	TagNonce          byte = 0x02
	TagMergeMiningTag byte = 0x03

	nonceSubTagPaymentID byte = 0x00

	maxPaddingRun = 255
	maxNonceLen   = 255
)

// Field is one self-describing record of an extra field. Concrete types are
// PaddingField, PublicKeyField, NonceField and MergeMiningTagField.
type Field interface {
	Tag() byte
}

// PaddingField is a run of zero bytes, at most 255 long.
type PaddingField struct {
	Length int
}

// Tag implements Field.
func (PaddingField) Tag() byte { return TagPadding }

// PublicKeyField carries the transaction's one-time public key, used by
// recipients to compute the key derivation.
type PublicKeyField struct {
	Key [32]byte
}

// Tag implements Field.
func (PublicKeyField) Tag() byte { return TagPublicKey }

// NonceField is an arbitrary length-prefixed blob. A nonce whose first byte
// is the payment-id sub-tag followed by exactly 32 more bytes carries a
// payment id; see PaymentID and SetPaymentID.
type NonceField struct {
	Data []byte
}

// Tag implements Field.
func (NonceField) Tag() byte { return TagNonce }

// PaymentID returns the 32-byte payment id carried by this nonce, if any.
func (n NonceField) PaymentID() ([32]byte, bool) {
	var id [32]byte
	if len(n.Data) != 33 || n.Data[0] != nonceSubTagPaymentID {
		return id, false
	}
	copy(id[:], n.Data[1:])
	return id, true
}

// NewPaymentIDNonce builds a NonceField carrying id as a payment id.
func NewPaymentIDNonce(id [32]byte) NonceField {
	data := make([]byte, 33)
	data[0] = nonceSubTagPaymentID
	copy(data[1:], id[:])
	return NonceField{Data: data}
}

// MergeMiningTagField anchors a merge-mined auxiliary chain's block hash
// into this transaction.
type MergeMiningTagField struct {
	Depth      uint64
	MerkleRoot [32]byte
}

// Tag implements Field.
func (MergeMiningTagField) Tag() byte { return TagMergeMiningTag }

// Mode controls how Parse handles an unrecognized tag byte.
type Mode int

const (
	// ModeStrict rejects an extra field containing an unknown tag.
	ModeStrict Mode = iota
	// ModeOpaqueTail stops parsing at an unknown tag and returns everything
	// from that byte onward as Result.Tail, without error.
	ModeOpaqueTail
)

// Result is the outcome of parsing an extra field.
type Result struct {
	Fields []Field
	// Tail holds the unparsed remainder when parsing stopped at an unknown
	// tag under ModeOpaqueTail. Empty when every byte was consumed.
	Tail []byte
}

// ErrUnknownTag is returned by Parse in ModeStrict when a tag byte matches
// none of the known record kinds.
type ErrUnknownTag struct {
	Tag byte
}

func (e ErrUnknownTag) Error() string {
	return fmt.Sprintf("extra: unknown tag 0x%02x", e.Tag)
}

// ErrTruncated is returned when a record's payload runs past the end of
// the input.
var ErrTruncated = fmt.Errorf("extra: truncated record")

// Parse reads data as a sequence of (tag, payload) records. Duplicate
// fields of the same kind are preserved in order; callers needing "first
// wins" semantics (PublicKey, PaymentID) use the helpers below, which scan
// from the start.
func Parse(data []byte, mode Mode) (Result, error) {
	var res Result
	i := 0
	for i < len(data) {
		tag := data[i]
		switch tag {
		case TagPadding:
			run := 0
			for i < len(data) && data[i] == 0 && run < maxPaddingRun {
				i++
				run++
			}
			res.Fields = append(res.Fields, PaddingField{Length: run})

		case TagPublicKey:
			if i+1+32 > len(data) {
				return Result{}, ErrTruncated
			}
			var f PublicKeyField
			copy(f.Key[:], data[i+1:i+1+32])
			res.Fields = append(res.Fields, f)
			i += 1 + 32

		case TagNonce:
			if i+2 > len(data) {
				return Result{}, ErrTruncated
			}
			length := int(data[i+1])
			if i+2+length > len(data) {
				return Result{}, ErrTruncated
			}
			payload := make([]byte, length)
			copy(payload, data[i+2:i+2+length])
			res.Fields = append(res.Fields, NonceField{Data: payload})
			i += 2 + length

		case TagMergeMiningTag:
			depth, n := binary.Uvarint(data[i+1:])
			if n <= 0 {
				return Result{}, ErrTruncated
			}
			start := i + 1 + n
			if start+32 > len(data) {
				return Result{}, ErrTruncated
			}
			var f MergeMiningTagField
			f.Depth = depth
			copy(f.MerkleRoot[:], data[start:start+32])
			res.Fields = append(res.Fields, f)
			i = start + 32

		default:
			if mode == ModeOpaqueTail {
				res.Tail = append([]byte(nil), data[i:]...)
				return res, nil
			}
			return Result{}, ErrUnknownTag{Tag: tag}
		}
	}
	return res, nil
}

// Serialize re-emits fields in the order given, followed by tail verbatim
// if non-empty.
func Serialize(fields []Field, tail []byte) []byte {
	var out []byte
	for _, f := range fields {
		switch v := f.(type) {
		case PaddingField:
			out = append(out, make([]byte, v.Length)...)
		case PublicKeyField:
			out = append(out, TagPublicKey)
			out = append(out, v.Key[:]...)
		case NonceField:
			out = append(out, TagNonce, byte(len(v.Data)))
			out = append(out, v.Data...)
		case MergeMiningTagField:
			out = append(out, TagMergeMiningTag)
			var buf [binary.MaxVarintLen64]byte
			n := binary.PutUvarint(buf[:], v.Depth)
			out = append(out, buf[:n]...)
			out = append(out, v.MerkleRoot[:]...)
		}
	}
	return append(out, tail...)
}

// GetPublicKey returns the first PublicKeyField's key.
func GetPublicKey(fields []Field) ([32]byte, bool) {
	for _, f := range fields {
		if pk, ok := f.(PublicKeyField); ok {
			return pk.Key, true
		}
	}
	return [32]byte{}, false
}

// GetPaymentID returns the payment id carried by the first nonce that has
// one.
func GetPaymentID(fields []Field) ([32]byte, bool) {
	for _, f := range fields {
		if n, ok := f.(NonceField); ok {
			if id, ok := n.PaymentID(); ok {
				return id, true
			}
		}
	}
	return [32]byte{}, false
}

// SetPaymentID replaces the first existing nonce field with one carrying
// id, or appends a new nonce field if none exists.
func SetPaymentID(fields []Field, id [32]byte) []Field {
	nonce := NewPaymentIDNonce(id)
	for i, f := range fields {
		if _, ok := f.(NonceField); ok {
			out := append([]Field(nil), fields...)
			out[i] = nonce
			return out
		}
	}
	return append(append([]Field(nil), fields...), nonce)
}
