// Package poolobserver implements the blockchain explorer's pool-diff
// state machine: at most one pool symmetric-difference request in flight
// at a time, with concurrent triggers coalesced rather than queued, plus
// reorg-aware block notification propagation.
package poolobserver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/node"
)

// state values for the CAS loop driving PoolChanged.
const (
	stateNone state = iota
	stateUpdating
	stateUpdateRequired
)

type state = int32

// RemovalReason explains why a previously known pool entry disappeared.
type RemovalReason int

const (
	ReasonIncludedInBlock RemovalReason = iota
)

// RemovedEntry is one pool entry the observer no longer has.
type RemovedEntry struct {
	Hash   crypto.Hash
	Reason RemovalReason
}

// BlockRef names a block by hash and height, the observer's notion of
// "known top".
type BlockRef struct {
	Hash   crypto.Hash
	Height uint64
}

// Observer runs the [4]G single-flight pool-diff state machine against a
// node.Client. Construct with New and set its callbacks before the first
// trigger.
type Observer struct {
	client      node.Client
	concurrency int

	poolState     atomic.Int32
	synchronized  atomic.Bool
	observerCount atomic.Int32

	mu              sync.Mutex
	knownPoolHashes map[crypto.Hash]struct{}
	knownTop        BlockRef

	OnPoolUpdated            func(newTxs []node.TxDetails, removed []RemovedEntry)
	OnBlockchainSynchronized func(top BlockRef)
	OnBlockchainUpdated      func(newBlocks, alternativeBlocks []node.BlockDetails)
}

// New returns an Observer with an empty known-pool set. concurrency bounds
// how many tx-body fetches run at once when resolving newly observed pool
// entries.
func New(client node.Client, concurrency int) *Observer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Observer{
		client:          client,
		concurrency:     concurrency,
		knownPoolHashes: make(map[crypto.Hash]struct{}),
	}
}

// SetSynchronized records whether the node considers itself caught up;
// PoolChanged no-ops while this is false.
func (o *Observer) SetSynchronized(synced bool) {
	o.synchronized.Store(synced)
}

// AddObserver/RemoveObserver track whether anyone is listening; PoolChanged
// no-ops with zero observers, matching the original's subscription guard.
func (o *Observer) AddObserver()    { o.observerCount.Add(1) }
func (o *Observer) RemoveObserver() { o.observerCount.Add(-1) }

// PoolChanged triggers a pool symmetric-difference pass, coalescing
// concurrent callers: only one pass runs at a time, and a trigger that
// arrives mid-pass is folded into one more pass immediately after, rather
// than queued per-caller.
func (o *Observer) PoolChanged(ctx context.Context) error {
	if !o.beginUpdate() {
		return nil
	}
	var lastErr error
	for {
		if err := o.doPoolUpdate(ctx); err != nil {
			lastErr = err
		}
		if !o.endUpdate() {
			return lastErr
		}
	}
}

func (o *Observer) beginUpdate() bool {
	if o.poolState.CompareAndSwap(stateNone, stateUpdating) {
		return true
	}
	o.poolState.CompareAndSwap(stateUpdating, stateUpdateRequired)
	return false
}

// endUpdate leaves UPDATING, returning true if another pass was requested
// while this one ran (in which case the state goes back to UPDATING and the
// caller loops to redo the pass immediately, so no other caller can start
// a pass in between).
func (o *Observer) endUpdate() bool {
	for {
		if o.poolState.CompareAndSwap(stateUpdating, stateNone) {
			return false
		}
		if o.poolState.CompareAndSwap(stateUpdateRequired, stateUpdating) {
			return true
		}
	}
}

func (o *Observer) doPoolUpdate(ctx context.Context) error {
	if !o.synchronized.Load() || o.observerCount.Load() == 0 {
		return nil
	}

	o.mu.Lock()
	known := make([]crypto.Hash, 0, len(o.knownPoolHashes))
	for h := range o.knownPoolHashes {
		known = append(known, h)
	}
	top := o.knownTop.Hash
	o.mu.Unlock()

	diff, err := o.client.GetPoolSymmetricDifference(ctx, known, top)
	if err != nil {
		return fmt.Errorf("poolobserver: pool symmetric difference: %w", err)
	}
	if !diff.IsChainActual {
		// The node's chain tip moved out from under us; the synchronizer
		// will drive a reorg callback, which is where knownTop gets fixed.
		return nil
	}

	newTxs, err := o.fetchNewEntries(ctx, diff.NewHashes)
	if err != nil {
		return fmt.Errorf("poolobserver: fetch new pool entries: %w", err)
	}

	o.mu.Lock()
	for _, tx := range newTxs {
		o.knownPoolHashes[tx.Hash] = struct{}{}
	}
	var removed []RemovedEntry
	for _, h := range diff.RemovedHashes {
		if _, ok := o.knownPoolHashes[h]; ok {
			delete(o.knownPoolHashes, h)
			removed = append(removed, RemovedEntry{Hash: h, Reason: ReasonIncludedInBlock})
		}
	}
	o.mu.Unlock()

	if len(newTxs) > 0 || len(removed) > 0 {
		o.OnPoolUpdated(newTxs, removed)
	}
	return nil
}

func (o *Observer) fetchNewEntries(ctx context.Context, hashes []crypto.Hash) ([]node.TxDetails, error) {
	if len(hashes) == 0 {
		return nil, nil
	}
	results := make([]node.TxDetails, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, h := range hashes {
		i, h := i, h
		g.Go(func() error {
			details, err := o.client.GetTransactions(gctx, []crypto.Hash{h})
			if err != nil {
				return err
			}
			if len(details) == 0 {
				return fmt.Errorf("node returned no body for %s", h)
			}
			results[i] = details[0]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func firstMainchain(perHeight [][]node.BlockDetails) (node.BlockDetails, bool) {
	for _, atHeight := range perHeight {
		for _, b := range atHeight {
			if !b.IsAlternative {
				return b, true
			}
		}
	}
	return node.BlockDetails{}, false
}

// splitMainchain separates a height-range result into mainchain and
// alternative blocks and reports the highest mainchain block seen.
func splitMainchain(perHeight [][]node.BlockDetails) (newBlocks, alternatives []node.BlockDetails, top BlockRef, ok bool) {
	for _, atHeight := range perHeight {
		for _, b := range atHeight {
			if b.IsAlternative {
				alternatives = append(alternatives, b)
				continue
			}
			newBlocks = append(newBlocks, b)
			if !ok || b.Height >= top.Height {
				top = BlockRef{Hash: b.Hash, Height: b.Height}
				ok = true
			}
		}
	}
	return
}

// BlockchainSynchronized implements the reorg callback of the same name:
// if the observer's known top already matches topIndex it re-emits that,
// otherwise it fetches the block at topIndex and adopts it as the new
// known top.
func (o *Observer) BlockchainSynchronized(ctx context.Context, topIndex uint64) error {
	o.mu.Lock()
	known := o.knownTop
	o.mu.Unlock()

	if known.Height == topIndex {
		o.OnBlockchainSynchronized(known)
		return nil
	}

	perHeight, err := o.client.GetBlocksByHeightRange(ctx, topIndex, topIndex+1)
	if err != nil {
		return fmt.Errorf("poolobserver: fetch block at height %d: %w", topIndex, err)
	}
	block, ok := firstMainchain(perHeight)
	if !ok {
		return fmt.Errorf("poolobserver: no mainchain block at height %d", topIndex)
	}

	ref := BlockRef{Hash: block.Hash, Height: block.Height}
	o.mu.Lock()
	o.knownTop = ref
	o.mu.Unlock()
	o.OnBlockchainSynchronized(ref)
	return nil
}

// LocalBlockchainUpdated fetches every block after the known top up to
// index, splits it into mainchain/alternative blocks, and advances the
// known top to the highest mainchain block observed.
func (o *Observer) LocalBlockchainUpdated(ctx context.Context, index uint64) error {
	o.mu.Lock()
	from := o.knownTop.Height + 1
	o.mu.Unlock()
	if index < from {
		return nil
	}

	perHeight, err := o.client.GetBlocksByHeightRange(ctx, from, index+1)
	if err != nil {
		return fmt.Errorf("poolobserver: fetch blocks [%d,%d]: %w", from, index, err)
	}
	newBlocks, alternatives, top, ok := splitMainchain(perHeight)
	if !ok {
		return nil
	}

	o.mu.Lock()
	o.knownTop = top
	o.mu.Unlock()
	o.OnBlockchainUpdated(newBlocks, alternatives)
	return nil
}

// ChainSwitched re-fetches (commonRoot, newTop] after a reorg and emits it
// the same way LocalBlockchainUpdated does. hashes (the replaced blocks'
// identities) are not needed beyond the caller's own bookkeeping, since
// the replacement range is re-fetched fresh.
func (o *Observer) ChainSwitched(ctx context.Context, newTop, commonRoot uint64, hashes []crypto.Hash) error {
	_ = hashes
	perHeight, err := o.client.GetBlocksByHeightRange(ctx, commonRoot+1, newTop+1)
	if err != nil {
		return fmt.Errorf("poolobserver: fetch reorg range [%d,%d]: %w", commonRoot+1, newTop, err)
	}
	newBlocks, alternatives, top, ok := splitMainchain(perHeight)
	if !ok {
		return nil
	}

	o.mu.Lock()
	o.knownTop = top
	o.mu.Unlock()
	o.OnBlockchainUpdated(newBlocks, alternatives)
	return nil
}
