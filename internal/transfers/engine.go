package transfers

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rawblock/cryptonote-core/internal/crypto"
)

// Container is the multi-indexed arena backing the output-tracking
// engine. One owning map (rows) holds every row by its opaque id; the
// remaining maps are secondary indexes derived from it. Every method
// locks mu, matching the teacher's guard-the-whole-struct concurrency
// style rather than fine-grained per-index locks.
type Container struct {
	mu sync.Mutex

	currentHeight uint64

	rows map[uuid.UUID]*Row
	txs  map[crypto.Hash]*TxRecord

	unconfirmedByDescriptor map[descriptor][]uuid.UUID
	availableByDescriptor   map[descriptor][]uuid.UUID
	spentByDescriptor       map[descriptor][]uuid.UUID

	byTxHash          map[crypto.Hash][]uuid.UUID
	spentBySpendingTx map[crypto.Hash][]uuid.UUID
}

// NewContainer returns an empty engine.
func NewContainer() *Container {
	return &Container{
		rows:                    make(map[uuid.UUID]*Row),
		txs:                     make(map[crypto.Hash]*TxRecord),
		unconfirmedByDescriptor: make(map[descriptor][]uuid.UUID),
		availableByDescriptor:   make(map[descriptor][]uuid.UUID),
		spentByDescriptor:       make(map[descriptor][]uuid.UUID),
		byTxHash:                make(map[crypto.Hash][]uuid.UUID),
		spentBySpendingTx:       make(map[crypto.Hash][]uuid.UUID),
	}
}

// CurrentHeight returns the engine's view of the chain tip.
func (c *Container) CurrentHeight() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentHeight
}

// TransactionCount reports how many transactions the engine has recorded.
func (c *Container) TransactionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.txs)
}

func (c *Container) descriptorIndex(kind Kind) map[descriptor][]uuid.UUID {
	switch kind {
	case KindUnconfirmed:
		return c.unconfirmedByDescriptor
	case KindAvailable:
		return c.availableByDescriptor
	default:
		return c.spentByDescriptor
	}
}

func (c *Container) indexRow(r *Row) {
	c.rows[r.ID] = r
	idx := c.descriptorIndex(r.Kind)
	d := r.descriptor()
	idx[d] = append(idx[d], r.ID)
	c.byTxHash[r.TxHash] = append(c.byTxHash[r.TxHash], r.ID)
	if r.Kind == KindSpent {
		c.spentBySpendingTx[r.SpendingTxHash] = append(c.spentBySpendingTx[r.SpendingTxHash], r.ID)
	}
}

func (c *Container) unindexRow(r *Row) {
	idx := c.descriptorIndex(r.Kind)
	d := r.descriptor()
	idx[d] = removeID(idx[d], r.ID)
	c.byTxHash[r.TxHash] = removeID(c.byTxHash[r.TxHash], r.ID)
	if r.Kind == KindSpent {
		c.spentBySpendingTx[r.SpendingTxHash] = removeID(c.spentBySpendingTx[r.SpendingTxHash], r.ID)
	}
	delete(c.rows, r.ID)
}

// moveRow re-indexes r under a new kind, preserving its row identity.
func (c *Container) moveRow(r *Row, newKind Kind) {
	idx := c.descriptorIndex(r.Kind)
	d := r.descriptor()
	idx[d] = removeID(idx[d], r.ID)
	if r.Kind == KindSpent {
		c.spentBySpendingTx[r.SpendingTxHash] = removeID(c.spentBySpendingTx[r.SpendingTxHash], r.ID)
	}

	r.Kind = newKind
	newIdx := c.descriptorIndex(newKind)
	newD := r.descriptor()
	newIdx[newD] = append(newIdx[newD], r.ID)
	if newKind == KindSpent {
		c.spentBySpendingTx[r.SpendingTxHash] = append(c.spentBySpendingTx[r.SpendingTxHash], r.ID)
	}
}

func removeID(ids []uuid.UUID, target uuid.UUID) []uuid.UUID {
	for i, id := range ids {
		if id == target {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func (c *Container) rowsFor(idx map[descriptor][]uuid.UUID, d descriptor) []*Row {
	out := make([]*Row, 0, len(idx[d]))
	for _, id := range idx[d] {
		out = append(out, c.rows[id])
	}
	return out
}

func (c *Container) rowsForTxHash(hash crypto.Hash) []*Row {
	ids := append([]uuid.UUID(nil), c.byTxHash[hash]...)
	out := make([]*Row, 0, len(ids))
	for _, id := range ids {
		if r, ok := c.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// AddTransaction records newOutputs as Unconfirmed or Available rows
// (depending on block.IsUnconfirmed) and moves spent inputs' matching
// Available rows to Spent, per §4.E.1. On any failure the transaction's
// partial effects are rolled back before returning the error.
func (c *Container) AddTransaction(block BlockInfo, txHash crypto.Hash, spentInputs []SpentInput, newOutputs []NewOutput) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !block.IsUnconfirmed() && block.Height < c.currentHeight {
		return false, ErrInvalidOrder
	}
	if _, exists := c.txs[txHash]; exists {
		return false, ErrDuplicateTransaction
	}

	var inserted []*Row
	var movedToSpent []*Row

	rollback := func() {
		for _, r := range inserted {
			c.unindexRow(r)
		}
		for _, r := range movedToSpent {
			c.moveRow(r, KindAvailable)
			r.SpendingBlock = 0
			r.SpendingTxHash = crypto.Hash{}
			r.InputInTx = 0
			if r.Type == OutputTypeKey {
				c.updateVisibilityLocked(keyDescriptor(r.KeyImage))
			}
		}
	}

	for i, out := range newOutputs {
		height := block.Height
		globalIndex := out.GlobalOutputIndex
		kind := KindUnconfirmed
		if !block.IsUnconfirmed() {
			kind = KindAvailable
		} else {
			height = UnconfirmedHeightSentinel
			globalIndex = UnconfirmedGlobalIndexSentinel
		}

		if out.Type == OutputTypeKey {
			d := keyDescriptor(out.KeyImage)
			existing := append(c.rowsFor(c.availableByDescriptor, d), c.rowsFor(c.spentByDescriptor, d)...)
			for _, r := range existing {
				if r.TxHash == txHash && int(r.OutputInTx) == i {
					rollback()
					return false, ErrDuplicateOutput
				}
			}
		} else {
			d := multisigDescriptor(out.Amount, globalIndex)
			if len(c.availableByDescriptor[d]) > 0 || len(c.spentByDescriptor[d]) > 0 {
				rollback()
				return false, ErrDuplicateOutput
			}
		}

		r := &Row{
			ID:                uuid.New(),
			Kind:              kind,
			Type:              out.Type,
			Amount:            out.Amount,
			GlobalOutputIndex: globalIndex,
			OutputInTx:        uint32(i),
			TxPublicKey:       out.TxPublicKey,
			OutputKey:         out.OutputKey,
			KeyImage:          out.KeyImage,
			UnlockTime:        out.UnlockTime,
			BlockHeight:       height,
			TxIndexInBlock:    block.TxIndexInBlock,
			TxHash:            txHash,
			Visible:           true,
		}
		c.indexRow(r)
		inserted = append(inserted, r)
	}

	for inIdx, in := range spentInputs {
		if in.Type == OutputTypeKey {
			d := keyDescriptor(in.KeyImage)
			if len(c.spentByDescriptor[d]) > 0 {
				rollback()
				return false, ErrDoubleSpend
			}
			candidates := c.rowsFor(c.availableByDescriptor, d)
			sort.Slice(candidates, func(i, j int) bool {
				if candidates[i].BlockHeight != candidates[j].BlockHeight {
					return candidates[i].BlockHeight < candidates[j].BlockHeight
				}
				return candidates[i].TxIndexInBlock < candidates[j].TxIndexInBlock
			})
			for _, r := range candidates {
				if r.Amount != in.Amount {
					continue
				}
				r.SpendingBlock = block.Height
				r.SpendingTxHash = txHash
				r.InputInTx = uint32(inIdx)
				c.moveRow(r, KindSpent)
				movedToSpent = append(movedToSpent, r)
				c.updateVisibilityLocked(d)
				break
			}
		} else {
			d := multisigDescriptor(in.Amount, in.GlobalIndex)
			for _, r := range c.rowsFor(c.availableByDescriptor, d) {
				r.SpendingBlock = block.Height
				r.SpendingTxHash = txHash
				r.InputInTx = uint32(inIdx)
				c.moveRow(r, KindSpent)
				movedToSpent = append(movedToSpent, r)
				break
			}
		}
	}

	for _, r := range inserted {
		if r.Type == OutputTypeKey {
			c.updateVisibilityLocked(keyDescriptor(r.KeyImage))
		}
	}

	if len(inserted) == 0 && len(movedToSpent) == 0 {
		return false, nil
	}

	c.txs[txHash] = &TxRecord{Hash: txHash, BlockHeight: block.Height, Timestamp: block.Timestamp}
	if !block.IsUnconfirmed() {
		c.currentHeight = block.Height
	}
	return true, nil
}

// DeleteUnconfirmedTransaction removes every Unconfirmed row of txHash and
// its transaction record. It fails with ErrInvariantViolation if the
// transaction's recorded height is not the unconfirmed sentinel — the
// Go replacement for the original implementation's internal assert.
func (c *Container) DeleteUnconfirmedTransaction(txHash crypto.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.txs[txHash]
	if !ok {
		return ErrNotFound
	}
	if rec.BlockHeight != UnconfirmedHeightSentinel {
		return ErrInvariantViolation
	}
	c.deleteTransactionTransfersLocked(txHash)
	delete(c.txs, txHash)
	return nil
}

func (c *Container) deleteTransactionTransfersLocked(txHash crypto.Hash) {
	// Outputs this transaction spent return to Available: the spend itself
	// is being erased, not the spent output.
	for _, id := range append([]uuid.UUID(nil), c.spentBySpendingTx[txHash]...) {
		r, ok := c.rows[id]
		if !ok {
			continue
		}
		c.moveRow(r, KindAvailable)
		r.SpendingBlock = 0
		r.SpendingTxHash = crypto.Hash{}
		r.InputInTx = 0
		if r.Type == OutputTypeKey {
			c.updateVisibilityLocked(keyDescriptor(r.KeyImage))
		}
	}
	// Outputs this transaction created are removed outright.
	for _, r := range c.rowsForTxHash(txHash) {
		d := r.descriptor()
		c.unindexRow(r)
		if r.Type == OutputTypeKey {
			c.updateVisibilityLocked(d)
		}
	}
}

// MarkTransactionConfirmed migrates an unconfirmed transaction's rows to
// confirmed status: each Unconfirmed row of txHash is assigned its global
// output index and moved to Available, and any Spent row whose spending
// block was unconfirmed has its spending block rewritten. Every change is
// rolled back if any step fails.
func (c *Container) MarkTransactionConfirmed(block BlockInfo, txHash crypto.Hash, globalIndexes []uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if block.IsUnconfirmed() {
		return ErrInvalidOrder
	}
	rec, ok := c.txs[txHash]
	if !ok {
		return ErrNotFound
	}
	if rec.BlockHeight != UnconfirmedHeightSentinel {
		return ErrInvariantViolation
	}

	var migrated []*Row
	var spentRewritten []*Row
	rollback := func() {
		for _, r := range migrated {
			oldD := r.descriptor()
			c.availableByDescriptor[oldD] = removeID(c.availableByDescriptor[oldD], r.ID)
			r.Kind = KindUnconfirmed
			r.BlockHeight = UnconfirmedHeightSentinel
			r.GlobalOutputIndex = UnconfirmedGlobalIndexSentinel
			newD := r.descriptor()
			c.unconfirmedByDescriptor[newD] = append(c.unconfirmedByDescriptor[newD], r.ID)
		}
		for _, r := range spentRewritten {
			r.SpendingBlock = UnconfirmedHeightSentinel
		}
	}

	for _, r := range c.rowsForTxHash(txHash) {
		if r.Kind != KindUnconfirmed {
			continue
		}
		if int(r.OutputInTx) >= len(globalIndexes) {
			rollback()
			return ErrInvariantViolation
		}
		newGlobalIndex := globalIndexes[r.OutputInTx]
		if r.Type == OutputTypeMultisig {
			d := multisigDescriptor(r.Amount, newGlobalIndex)
			if len(c.availableByDescriptor[d]) > 0 || len(c.spentByDescriptor[d]) > 0 {
				rollback()
				return ErrDuplicateOutput
			}
		}

		oldD := r.descriptor()
		c.unconfirmedByDescriptor[oldD] = removeID(c.unconfirmedByDescriptor[oldD], r.ID)
		r.BlockHeight = block.Height
		r.GlobalOutputIndex = newGlobalIndex
		r.Kind = KindAvailable
		newD := r.descriptor()
		c.availableByDescriptor[newD] = append(c.availableByDescriptor[newD], r.ID)
		migrated = append(migrated, r)
	}

	for _, id := range c.spentBySpendingTx[txHash] {
		r, ok := c.rows[id]
		if !ok {
			continue
		}
		if r.Kind == KindSpent && r.SpendingBlock == UnconfirmedHeightSentinel {
			r.SpendingBlock = block.Height
			spentRewritten = append(spentRewritten, r)
		}
	}

	rec.BlockHeight = block.Height
	rec.Timestamp = block.Timestamp
	if block.Height > c.currentHeight {
		c.currentHeight = block.Height
	}
	return nil
}

// Detach removes every transaction at or above height, along with any
// unconfirmed transaction that spent an output whose own confirmation
// height is ≥ height (that output is about to be detached too, so the
// spend referencing it can't survive), then lowers current_height to
// height-1 (or 0). It returns the removed transaction hashes.
func (c *Container) Detach(height uint64) []crypto.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed []crypto.Hash
	for hash, rec := range c.txs {
		remove := rec.BlockHeight != UnconfirmedHeightSentinel && rec.BlockHeight >= height
		if !remove {
			for _, id := range c.spentBySpendingTx[hash] {
				r, ok := c.rows[id]
				if !ok {
					continue
				}
				if r.Kind == KindSpent && r.BlockHeight >= height {
					remove = true
					break
				}
			}
		}
		if remove {
			c.deleteTransactionTransfersLocked(hash)
			delete(c.txs, hash)
			removed = append(removed, hash)
		}
	}

	if height == 0 {
		c.currentHeight = 0
	} else {
		c.currentHeight = height - 1
	}

	sort.Slice(removed, func(i, j int) bool {
		return string(removed[i][:]) < string(removed[j][:])
	})
	return removed
}

// AdvanceHeight monotonically raises current_height; it never lowers it.
func (c *Container) AdvanceHeight(h uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h > c.currentHeight {
		c.currentHeight = h
	}
}
