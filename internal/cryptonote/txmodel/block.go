package txmodel

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rawblock/cryptonote-core/internal/crypto"
)

// BlockMajorVersionMergeMining is the first block major version carrying a
// merge-mining parent block envelope.
const BlockMajorVersionMergeMining = 2

// ParentBlock is the merge-mining envelope embedded in blocks of major
// version two and above: the parent chain's header fields plus the merkle
// branch proving this block's hash is committed to by the parent's
// coinbase.
type ParentBlock struct {
	Major   uint8
	Minor   uint8
	Nonce   uint32
	Prev    crypto.Hash
	BaseTx  Transaction
	Branch  []crypto.Hash
	TxCount uint32
}

// Block is one block of the chain. BaseTx is the coinbase transaction; its
// first input is a BaseInput carrying this block's height.
type Block struct {
	Major     uint8
	Minor     uint8
	Timestamp uint64
	PrevHash  crypto.Hash
	Nonce     uint32
	BaseTx    Transaction
	TxHashes  []crypto.Hash

	// Parent is present iff Major >= BlockMajorVersionMergeMining.
	Parent *ParentBlock
}

// Height returns the block's height as recorded by its coinbase input.
func (b Block) Height() (uint64, error) {
	if len(b.BaseTx.Inputs) == 0 {
		return 0, fmt.Errorf("txmodel: block coinbase has no inputs")
	}
	base, ok := b.BaseTx.Inputs[0].(BaseInput)
	if !ok {
		return 0, fmt.Errorf("txmodel: block coinbase's first input is %T, not a base input", b.BaseTx.Inputs[0])
	}
	return uint64(base.BlockIndex), nil
}

// Validate checks the structural block invariants: a coinbase whose first
// input is a BaseInput, and a parent envelope present exactly when the
// major version calls for one.
func (b Block) Validate() error {
	if _, err := b.Height(); err != nil {
		return err
	}
	mergeMining := b.Major >= BlockMajorVersionMergeMining
	if mergeMining && b.Parent == nil {
		return fmt.Errorf("txmodel: block major version %d requires a parent block", b.Major)
	}
	if !mergeMining && b.Parent != nil {
		return fmt.Errorf("txmodel: block major version %d does not carry a parent block", b.Major)
	}
	return nil
}

// Serialize returns the block's wire encoding; ParseBlock is its inverse.
func (b Block) Serialize() []byte {
	var buf []byte
	buf = append(buf, b.Major, b.Minor)
	buf = appendUvarint(buf, b.Timestamp)
	buf = append(buf, b.PrevHash.Bytes()...)
	buf = appendUvarint(buf, uint64(b.Nonce))

	if b.Parent != nil {
		buf = append(buf, b.Parent.Major, b.Parent.Minor)
		buf = appendUvarint(buf, uint64(b.Parent.Nonce))
		buf = append(buf, b.Parent.Prev.Bytes()...)
		parentBase := b.Parent.BaseTx.Serialize()
		buf = appendUvarint(buf, uint64(len(parentBase)))
		buf = append(buf, parentBase...)
		buf = appendUvarint(buf, uint64(len(b.Parent.Branch)))
		for _, h := range b.Parent.Branch {
			buf = append(buf, h.Bytes()...)
		}
		buf = appendUvarint(buf, uint64(b.Parent.TxCount))
	}

	base := b.BaseTx.Serialize()
	buf = appendUvarint(buf, uint64(len(base)))
	buf = append(buf, base...)
	buf = appendUvarint(buf, uint64(len(b.TxHashes)))
	for _, h := range b.TxHashes {
		buf = append(buf, h.Bytes()...)
	}
	return buf
}

// Hash returns the block's id, H(serialize(block)).
func (b Block) Hash() crypto.Hash {
	return crypto.Keccak256(b.Serialize())
}

// ParseBlock decodes the wire form produced by Serialize.
func ParseBlock(data []byte) (Block, error) {
	r := bytes.NewReader(data)
	var b Block

	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return Block{}, fmt.Errorf("txmodel: read block version: %w", err)
	}
	b.Major, b.Minor = header[0], header[1]

	var err error
	if b.Timestamp, err = readUvarint(r, "block timestamp"); err != nil {
		return Block{}, err
	}
	if _, err := io.ReadFull(r, b.PrevHash[:]); err != nil {
		return Block{}, fmt.Errorf("txmodel: read prev hash: %w", err)
	}
	nonce, err := readUvarint(r, "block nonce")
	if err != nil {
		return Block{}, err
	}
	b.Nonce = uint32(nonce)

	if b.Major >= BlockMajorVersionMergeMining {
		parent, err := parseParentBlock(r)
		if err != nil {
			return Block{}, err
		}
		b.Parent = parent
	}

	if b.BaseTx, err = readEmbeddedTransaction(r, "coinbase"); err != nil {
		return Block{}, err
	}

	count, err := readUvarint(r, "tx hash count")
	if err != nil {
		return Block{}, err
	}
	for i := uint64(0); i < count; i++ {
		var h crypto.Hash
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return Block{}, fmt.Errorf("txmodel: read tx hash %d: %w", i, err)
		}
		b.TxHashes = append(b.TxHashes, h)
	}

	if r.Len() != 0 {
		return Block{}, fmt.Errorf("txmodel: %d trailing bytes after block", r.Len())
	}
	return b, nil
}

func parseParentBlock(r *bytes.Reader) (*ParentBlock, error) {
	var p ParentBlock

	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("txmodel: read parent version: %w", err)
	}
	p.Major, p.Minor = header[0], header[1]

	nonce, err := readUvarint(r, "parent nonce")
	if err != nil {
		return nil, err
	}
	p.Nonce = uint32(nonce)
	if _, err := io.ReadFull(r, p.Prev[:]); err != nil {
		return nil, fmt.Errorf("txmodel: read parent prev hash: %w", err)
	}
	if p.BaseTx, err = readEmbeddedTransaction(r, "parent coinbase"); err != nil {
		return nil, err
	}

	branchLen, err := readUvarint(r, "merkle branch length")
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < branchLen; i++ {
		var h crypto.Hash
		if _, err := io.ReadFull(r, h[:]); err != nil {
			return nil, fmt.Errorf("txmodel: read merkle branch %d: %w", i, err)
		}
		p.Branch = append(p.Branch, h)
	}

	txCount, err := readUvarint(r, "parent tx count")
	if err != nil {
		return nil, err
	}
	p.TxCount = uint32(txCount)
	return &p, nil
}

func readEmbeddedTransaction(r *bytes.Reader, what string) (Transaction, error) {
	size, err := readUvarint(r, what+" size")
	if err != nil {
		return Transaction{}, err
	}
	if size > uint64(r.Len()) {
		return Transaction{}, fmt.Errorf("txmodel: %s size %d exceeds remaining %d bytes", what, size, r.Len())
	}
	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Transaction{}, fmt.Errorf("txmodel: read %s: %w", what, err)
	}
	tx, err := ParseTransaction(raw)
	if err != nil {
		return Transaction{}, fmt.Errorf("txmodel: parse %s: %w", what, err)
	}
	return tx, nil
}
