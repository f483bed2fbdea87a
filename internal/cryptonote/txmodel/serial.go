package txmodel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/rawblock/cryptonote-core/internal/crypto"
)

// Wire tags for the input/output tagged unions.
const (
	tagBaseInput     = 0xff
	tagKeyInput      = 0x02
	tagMultisigInput = 0x03

	tagKeyOutput      = 0x02
	tagMultisigOutput = 0x03
)

// Serialize returns the full wire encoding of t: the prefix followed by
// every signature set. ParseTransaction is its inverse.
func (t Transaction) Serialize() []byte {
	buf := t.TransactionPrefix.serialize()
	buf = appendUvarint(buf, uint64(len(t.Signatures)))
	for _, set := range t.Signatures {
		buf = appendUvarint(buf, uint64(len(set)))
		for _, s := range set {
			buf = append(buf, s.Challenge.Bytes()...)
			buf = append(buf, s.Response.Bytes()...)
		}
	}
	return buf
}

// ParseTransaction decodes the wire form produced by Serialize. Trailing
// bytes after the signature sets are rejected.
func ParseTransaction(data []byte) (Transaction, error) {
	r := bytes.NewReader(data)
	prefix, err := parsePrefix(r)
	if err != nil {
		return Transaction{}, err
	}

	sigSets, err := readUvarint(r, "signature set count")
	if err != nil {
		return Transaction{}, err
	}
	signatures := make([][]Signature, 0, sigSets)
	for i := uint64(0); i < sigSets; i++ {
		n, err := readUvarint(r, "signature count")
		if err != nil {
			return Transaction{}, err
		}
		var set []Signature
		for j := uint64(0); j < n; j++ {
			challenge, err := readScalar(r)
			if err != nil {
				return Transaction{}, fmt.Errorf("txmodel: signature %d/%d challenge: %w", i, j, err)
			}
			response, err := readScalar(r)
			if err != nil {
				return Transaction{}, fmt.Errorf("txmodel: signature %d/%d response: %w", i, j, err)
			}
			set = append(set, Signature{Challenge: challenge, Response: response})
		}
		signatures = append(signatures, set)
	}

	if r.Len() != 0 {
		return Transaction{}, fmt.Errorf("txmodel: %d trailing bytes after transaction", r.Len())
	}
	return Transaction{TransactionPrefix: prefix, Signatures: signatures}, nil
}

// ParseTransactionPrefix decodes just the unsigned prefix, the form a
// pool-relayed transaction reader exposes before signatures are checked.
func ParseTransactionPrefix(data []byte) (TransactionPrefix, error) {
	r := bytes.NewReader(data)
	prefix, err := parsePrefix(r)
	if err != nil {
		return TransactionPrefix{}, err
	}
	if r.Len() != 0 {
		return TransactionPrefix{}, fmt.Errorf("txmodel: %d trailing bytes after prefix", r.Len())
	}
	return prefix, nil
}

func parsePrefix(r *bytes.Reader) (TransactionPrefix, error) {
	var p TransactionPrefix

	version, err := r.ReadByte()
	if err != nil {
		return p, fmt.Errorf("txmodel: read version: %w", err)
	}
	p.Version = version

	if p.UnlockTime, err = readUvarint(r, "unlock time"); err != nil {
		return p, err
	}

	inputs, err := readUvarint(r, "input count")
	if err != nil {
		return p, err
	}
	for i := uint64(0); i < inputs; i++ {
		in, err := parseInput(r)
		if err != nil {
			return p, fmt.Errorf("txmodel: input %d: %w", i, err)
		}
		p.Inputs = append(p.Inputs, in)
	}

	outputs, err := readUvarint(r, "output count")
	if err != nil {
		return p, err
	}
	for i := uint64(0); i < outputs; i++ {
		out, err := parseOutput(r)
		if err != nil {
			return p, fmt.Errorf("txmodel: output %d: %w", i, err)
		}
		p.Outputs = append(p.Outputs, out)
	}

	extraLen, err := readUvarint(r, "extra length")
	if err != nil {
		return p, err
	}
	if extraLen > uint64(r.Len()) {
		return p, fmt.Errorf("txmodel: extra length %d exceeds remaining %d bytes", extraLen, r.Len())
	}
	if extraLen > 0 {
		p.Extra = make([]byte, extraLen)
		if _, err := io.ReadFull(r, p.Extra); err != nil {
			return p, fmt.Errorf("txmodel: read extra: %w", err)
		}
	}
	return p, nil
}

func parseInput(r *bytes.Reader) (Input, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("read tag: %w", err)
	}
	switch tag {
	case tagBaseInput:
		blockIndex, err := readUvarint(r, "block index")
		if err != nil {
			return nil, err
		}
		return BaseInput{BlockIndex: uint32(blockIndex)}, nil
	case tagKeyInput:
		amount, err := readUvarint(r, "amount")
		if err != nil {
			return nil, err
		}
		count, err := readUvarint(r, "output index count")
		if err != nil {
			return nil, err
		}
		indexes := make([]uint32, 0, count)
		for i := uint64(0); i < count; i++ {
			idx, err := readUvarint(r, "output index")
			if err != nil {
				return nil, err
			}
			indexes = append(indexes, uint32(idx))
		}
		var img crypto.KeyImage
		if _, err := io.ReadFull(r, img[:]); err != nil {
			return nil, fmt.Errorf("read key image: %w", err)
		}
		return KeyInput{Amount: amount, OutputIndexes: indexes, KeyImage: img}, nil
	case tagMultisigInput:
		amount, err := readUvarint(r, "amount")
		if err != nil {
			return nil, err
		}
		sigCount, err := readUvarint(r, "signature count")
		if err != nil {
			return nil, err
		}
		outIndex, err := readUvarint(r, "output index")
		if err != nil {
			return nil, err
		}
		return MultisigInput{Amount: amount, SignatureCount: uint32(sigCount), OutputIndex: uint32(outIndex)}, nil
	default:
		return nil, fmt.Errorf("unknown input tag 0x%02x", tag)
	}
}

func parseOutput(r *bytes.Reader) (TransactionOutput, error) {
	amount, err := readUvarint(r, "amount")
	if err != nil {
		return TransactionOutput{}, err
	}
	tag, err := r.ReadByte()
	if err != nil {
		return TransactionOutput{}, fmt.Errorf("read target tag: %w", err)
	}
	switch tag {
	case tagKeyOutput:
		key, err := readPoint(r)
		if err != nil {
			return TransactionOutput{}, fmt.Errorf("read output key: %w", err)
		}
		return TransactionOutput{Amount: amount, Target: KeyOutput{Key: key}}, nil
	case tagMultisigOutput:
		count, err := readUvarint(r, "multisig key count")
		if err != nil {
			return TransactionOutput{}, err
		}
		keys := make([]crypto.Point, 0, count)
		for i := uint64(0); i < count; i++ {
			k, err := readPoint(r)
			if err != nil {
				return TransactionOutput{}, fmt.Errorf("read multisig key %d: %w", i, err)
			}
			keys = append(keys, k)
		}
		required, err := readUvarint(r, "required signatures")
		if err != nil {
			return TransactionOutput{}, err
		}
		return TransactionOutput{Amount: amount, Target: MultisigOutput{Keys: keys, Required: uint32(required)}}, nil
	default:
		return TransactionOutput{}, fmt.Errorf("unknown output tag 0x%02x", tag)
	}
}

func readUvarint(r *bytes.Reader, what string) (uint64, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("txmodel: read %s: %w", what, err)
	}
	return v, nil
}

func readScalar(r *bytes.Reader) (crypto.Scalar, error) {
	var b [32]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return crypto.Scalar{}, err
	}
	return crypto.ScalarFromCanonicalBytes(b[:])
}

func readPoint(r *bytes.Reader) (crypto.Point, error) {
	var b [32]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return crypto.Point{}, err
	}
	return crypto.PointFromBytes(b[:])
}
