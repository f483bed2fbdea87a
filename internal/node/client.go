// Package node declares the abstract contract the wallet core and the
// pool-diff observer use to reach a blockchain node. No concrete RPC
// transport lives here: the HTTP/JSON-RPC wire protocol is an explicit
// non-goal, and callers supply their own Client (an RPC client, a test
// double, or an in-process chain for integration tests).
package node

import (
	"context"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
)

// BlockDetails is one block as reported by the node, including its
// transactions. IsAlternative marks a block that is not on the node's
// current main chain (returned alongside mainchain blocks when a height
// has more than one candidate).
type BlockDetails struct {
	Hash          crypto.Hash
	Height        uint64
	Timestamp     uint64
	IsAlternative bool
	Transactions  []TxDetails
}

// TxDetails is one transaction as reported by the node: its parsed body
// plus the chain placement metadata the wallet needs (BlockHeight is
// transfers.UnconfirmedHeightSentinel for a pool-only transaction).
type TxDetails struct {
	Hash           crypto.Hash
	BlockHeight    uint64
	TxIndexInBlock uint32
	Timestamp      uint64
	Fee            uint64
	Transaction    txmodel.Transaction
}

// PoolDiff is the result of a pool symmetric-difference query: whether the
// node's view of the chain tip still matches the caller's, the hashes of
// genuinely new pool entries (bodies are fetched separately, by the
// caller, via GetTransactions), and the hashes of entries the node no
// longer has (for any reason, most commonly inclusion in a block).
type PoolDiff struct {
	IsChainActual bool
	NewHashes     []crypto.Hash
	RemovedHashes []crypto.Hash
}

// AmountOutputs is one amount's decoy candidate set, as returned by
// GetRandomOutsByAmounts.
type AmountOutputs struct {
	Amount  uint64
	Outputs []txmodel.GlobalOutput
}

// RelayStatus is the node's verdict on a relayed transaction.
type RelayStatus int

const (
	RelayAccepted RelayStatus = iota
	RelayRejected
)

// Client is the node-facing contract consumed by the wallet core (F) and
// the pool-diff observer (G). The spec describes each call as
// asynchronous with a blocking wrapper; Go's goroutines make that
// distinction unnecessary; a context-aware synchronous method serves both
// roles; a caller wanting fire-and-forget semantics spawns its own
// goroutine around the call.
type Client interface {
	// GetBlocksByHeightRange returns, per height in [begin, end), every
	// block known at that height (mainchain first, alternatives after).
	GetBlocksByHeightRange(ctx context.Context, begin, end uint64) ([][]BlockDetails, error)

	// GetBlocksByHash returns the blocks named by hashes, in the order
	// given.
	GetBlocksByHash(ctx context.Context, hashes []crypto.Hash) ([]BlockDetails, error)

	// GetBlockHashesByTimestamps returns mainchain block hashes whose
	// timestamp falls in [begin, begin+span).
	GetBlockHashesByTimestamps(ctx context.Context, begin, span uint64) ([]crypto.Hash, error)

	// GetTransactions returns the transactions named by hashes, searching
	// both the chain and the pool.
	GetTransactions(ctx context.Context, hashes []crypto.Hash) ([]TxDetails, error)

	// GetTransactionHashesByPaymentID returns the hashes of every
	// transaction whose extra field carries paymentID.
	GetTransactionHashesByPaymentID(ctx context.Context, paymentID crypto.Hash) ([]crypto.Hash, error)

	// GetPoolSymmetricDifference diffs the node's pool against the
	// caller's known pool hashes and chain tip.
	GetPoolSymmetricDifference(ctx context.Context, knownHashes []crypto.Hash, knownTop crypto.Hash) (PoolDiff, error)

	// GetRandomOutsByAmounts returns up to mixin decoy candidates per
	// amount requested.
	GetRandomOutsByAmounts(ctx context.Context, amounts []uint64, mixin int) ([]AmountOutputs, error)

	// RelayTransaction submits tx to the node's pool.
	RelayTransaction(ctx context.Context, tx txmodel.Transaction) (RelayStatus, error)

	// IsSynchronized reports whether the node considers itself caught up
	// with the network.
	IsSynchronized(ctx context.Context) (bool, error)

	// GetLastLocalBlockHeight returns the node's current local chain tip
	// height.
	GetLastLocalBlockHeight(ctx context.Context) (uint64, error)

	// AddObserver registers obs for push notifications; RemoveObserver
	// unregisters it. Both report whether the set changed. Observers are
	// non-owning references: the registering party retains ownership and
	// must RemoveObserver before discarding obs.
	AddObserver(obs Observer) bool
	RemoveObserver(obs Observer) bool
}

// Observer receives the node's push notifications. The pool-diff observer
// and the wallet's synchronizer both implement it (directly or through a
// thin adapter).
type Observer interface {
	// LocalBlockchainUpdated reports the node's chain grew to topIndex.
	LocalBlockchainUpdated(topIndex uint64)

	// BlockchainSynchronized reports the node caught up with the network
	// at topIndex.
	BlockchainSynchronized(topIndex uint64)

	// ChainSwitched reports a reorg: the chain now ends at newTop, with
	// commonRoot the last height shared with the previous chain and hashes
	// the replaced blocks' identities.
	ChainSwitched(newTop, commonRoot uint64, hashes []crypto.Hash)

	// PoolChanged reports the node's transaction pool changed in some way;
	// observers diff it themselves.
	PoolChanged()
}
