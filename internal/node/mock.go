package node

import (
	"context"
	"sync"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
)

// Mock is an in-memory Client for exercising the wallet core and the
// pool-diff observer without a real node. Every field is exported so a
// test can script responses directly; a nil function falls back to a
// default rather than panicking: empty results for queries, a chain-actual
// pool diff, IsSynchronized true and RelayAccepted.
type Mock struct {
	mu sync.Mutex

	GetBlocksByHeightRangeFn      func(ctx context.Context, begin, end uint64) ([][]BlockDetails, error)
	GetBlocksByHashFn             func(ctx context.Context, hashes []crypto.Hash) ([]BlockDetails, error)
	GetBlockHashesByTimestampsFn  func(ctx context.Context, begin, span uint64) ([]crypto.Hash, error)
	GetTransactionsFn             func(ctx context.Context, hashes []crypto.Hash) ([]TxDetails, error)
	GetTxHashesByPaymentIDFn      func(ctx context.Context, paymentID crypto.Hash) ([]crypto.Hash, error)
	GetPoolSymmetricDifferenceFn  func(ctx context.Context, knownHashes []crypto.Hash, knownTop crypto.Hash) (PoolDiff, error)
	GetRandomOutsByAmountsFn      func(ctx context.Context, amounts []uint64, mixin int) ([]AmountOutputs, error)
	RelayTransactionFn            func(ctx context.Context, tx txmodel.Transaction) (RelayStatus, error)
	IsSynchronizedFn              func(ctx context.Context) (bool, error)
	GetLastLocalBlockHeightFn     func(ctx context.Context) (uint64, error)

	Relayed   []txmodel.Transaction
	observers []Observer
}

var _ Client = (*Mock)(nil)

func (m *Mock) GetBlocksByHeightRange(ctx context.Context, begin, end uint64) ([][]BlockDetails, error) {
	if m.GetBlocksByHeightRangeFn != nil {
		return m.GetBlocksByHeightRangeFn(ctx, begin, end)
	}
	return nil, nil
}

func (m *Mock) GetBlocksByHash(ctx context.Context, hashes []crypto.Hash) ([]BlockDetails, error) {
	if m.GetBlocksByHashFn != nil {
		return m.GetBlocksByHashFn(ctx, hashes)
	}
	return nil, nil
}

func (m *Mock) GetBlockHashesByTimestamps(ctx context.Context, begin, span uint64) ([]crypto.Hash, error) {
	if m.GetBlockHashesByTimestampsFn != nil {
		return m.GetBlockHashesByTimestampsFn(ctx, begin, span)
	}
	return nil, nil
}

func (m *Mock) GetTransactions(ctx context.Context, hashes []crypto.Hash) ([]TxDetails, error) {
	if m.GetTransactionsFn != nil {
		return m.GetTransactionsFn(ctx, hashes)
	}
	return nil, nil
}

func (m *Mock) GetTransactionHashesByPaymentID(ctx context.Context, paymentID crypto.Hash) ([]crypto.Hash, error) {
	if m.GetTxHashesByPaymentIDFn != nil {
		return m.GetTxHashesByPaymentIDFn(ctx, paymentID)
	}
	return nil, nil
}

func (m *Mock) GetPoolSymmetricDifference(ctx context.Context, knownHashes []crypto.Hash, knownTop crypto.Hash) (PoolDiff, error) {
	if m.GetPoolSymmetricDifferenceFn != nil {
		return m.GetPoolSymmetricDifferenceFn(ctx, knownHashes, knownTop)
	}
	return PoolDiff{IsChainActual: true}, nil
}

func (m *Mock) GetRandomOutsByAmounts(ctx context.Context, amounts []uint64, mixin int) ([]AmountOutputs, error) {
	if m.GetRandomOutsByAmountsFn != nil {
		return m.GetRandomOutsByAmountsFn(ctx, amounts, mixin)
	}
	return nil, nil
}

func (m *Mock) RelayTransaction(ctx context.Context, tx txmodel.Transaction) (RelayStatus, error) {
	m.mu.Lock()
	m.Relayed = append(m.Relayed, tx)
	m.mu.Unlock()

	if m.RelayTransactionFn != nil {
		return m.RelayTransactionFn(ctx, tx)
	}
	return RelayAccepted, nil
}

func (m *Mock) IsSynchronized(ctx context.Context) (bool, error) {
	if m.IsSynchronizedFn != nil {
		return m.IsSynchronizedFn(ctx)
	}
	return true, nil
}

func (m *Mock) GetLastLocalBlockHeight(ctx context.Context) (uint64, error) {
	if m.GetLastLocalBlockHeightFn != nil {
		return m.GetLastLocalBlockHeightFn(ctx)
	}
	return 0, nil
}

func (m *Mock) AddObserver(obs Observer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.observers {
		if o == obs {
			return false
		}
	}
	m.observers = append(m.observers, obs)
	return true
}

func (m *Mock) RemoveObserver(obs Observer) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, o := range m.observers {
		if o == obs {
			m.observers = append(m.observers[:i], m.observers[i+1:]...)
			return true
		}
	}
	return false
}

// NotifyPoolChanged fans a PoolChanged notification out to every registered
// observer, for tests that drive the push path.
func (m *Mock) NotifyPoolChanged() {
	m.mu.Lock()
	obs := append([]Observer(nil), m.observers...)
	m.mu.Unlock()
	for _, o := range obs {
		o.PoolChanged()
	}
}
