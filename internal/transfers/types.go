// Package transfers implements the wallet's output-tracking engine: a
// concurrent, multi-indexed ledger of unconfirmed, available and spent
// outputs, with key-image visibility rules that converge on one witness
// per key image across chain reorganizations.
package transfers

import (
	"errors"

	"github.com/google/uuid"

	"github.com/rawblock/cryptonote-core/internal/crypto"
)

// Sentinel values for an output not yet confirmed in a block. Per the
// engine-wide invariant, a row's block height is this sentinel if and
// only if its global output index is also the sentinel.
const (
	UnconfirmedHeightSentinel      = ^uint64(0)
	UnconfirmedGlobalIndexSentinel = ^uint32(0)
)

// DefaultSpendableAge is the number of confirmations an output needs
// before it is no longer "soft locked".
const DefaultSpendableAge = 10

// OutputType distinguishes a KeyOutput row from a MultisigOutput row.
type OutputType int

const (
	OutputTypeKey OutputType = iota
	OutputTypeMultisig
)

// Kind is which of the three disjoint collections a row currently belongs
// to.
type Kind int

const (
	KindUnconfirmed Kind = iota
	KindAvailable
	KindSpent
)

// descriptor is the spent-output descriptor a row is indexed by: a key
// image for KeyOutput rows, or (amount, global index) for MultisigOutput
// rows. It is comparable so it can key a map directly.
type descriptor struct {
	isMultisig  bool
	keyImage    crypto.KeyImage
	amount      uint64
	globalIndex uint32
}

func keyDescriptor(img crypto.KeyImage) descriptor {
	return descriptor{keyImage: img}
}

func multisigDescriptor(amount uint64, globalIndex uint32) descriptor {
	return descriptor{isMultisig: true, amount: amount, globalIndex: globalIndex}
}

// Row is one TxOut-shaped record. Spent rows additionally carry
// SpendingBlock/SpendingTxHash/InputInTx.
type Row struct {
	ID   uuid.UUID
	Kind Kind
	Type OutputType

	Amount            uint64
	GlobalOutputIndex uint32
	OutputInTx        uint32
	TxPublicKey       crypto.Point
	OutputKey         crypto.Point
	KeyImage          crypto.KeyImage // zero value for multisig rows
	UnlockTime        uint64
	BlockHeight       uint64
	TxIndexInBlock    uint32
	TxHash            crypto.Hash
	Visible           bool

	// Populated only when Kind == KindSpent.
	SpendingBlock  uint64
	SpendingTxHash crypto.Hash
	InputInTx      uint32
}

func (r *Row) descriptor() descriptor {
	if r.Type == OutputTypeMultisig {
		return multisigDescriptor(r.Amount, r.GlobalOutputIndex)
	}
	return keyDescriptor(r.KeyImage)
}

// TxState is a wallet transaction's lifecycle state.
type TxState int

const (
	TxFailed TxState = iota
	TxSending
	TxSucceeded
	TxCancelled
	TxDeleted
)

// TxRecord is the per-wallet record of one transaction.
type TxRecord struct {
	Hash         crypto.Hash
	State        TxState
	CreationTime uint64
	UnlockTime   uint64
	BlockHeight  uint64
	Timestamp    uint64
	ExtraBytes   []byte
	Fee          uint64
	TotalAmount  int64
	IsBase       bool
}

// NewOutput is one output being added by AddTransaction, in source order
// (OutputInTx is assigned by position).
type NewOutput struct {
	Type              OutputType
	Amount            uint64
	OutputKey         crypto.Point
	KeyImage          crypto.KeyImage // required for OutputTypeKey
	TxPublicKey       crypto.Point
	UnlockTime        uint64
	GlobalOutputIndex uint32 // ignored when the enclosing block is unconfirmed
}

// SpentInput is one input of the transaction being added, used to look up
// and move the corresponding Available row to Spent.
type SpentInput struct {
	Type        OutputType
	Amount      uint64
	KeyImage    crypto.KeyImage // for OutputTypeKey
	GlobalIndex uint32          // for OutputTypeMultisig
}

// BlockInfo locates a transaction within the chain, or carries the
// unconfirmed sentinel height for a pool/relay-only observation.
type BlockInfo struct {
	Height         uint64
	Timestamp      uint64
	TxIndexInBlock uint32
}

// IsUnconfirmed reports whether b represents the not-yet-confirmed state.
func (b BlockInfo) IsUnconfirmed() bool {
	return b.Height == UnconfirmedHeightSentinel
}

// Errors returned by engine operations.
var (
	ErrInvalidOrder         = errors.New("transfers: block height precedes current height")
	ErrDuplicateTransaction = errors.New("transfers: transaction already recorded")
	ErrDuplicateOutput      = errors.New("transfers: duplicate output for (tx_hash, out_in_tx)")
	ErrDoubleSpend          = errors.New("transfers: key image already spent")
	ErrNotFound             = errors.New("transfers: record not found")
	ErrInvariantViolation   = errors.New("transfers: internal invariant violated")
	ErrUnsupportedVersion   = errors.New("transfers: unsupported snapshot version")
)
