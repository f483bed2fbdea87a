package transfers

import (
	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
)

// Flags selects which rows a query considers, by output type and by
// spend/lock state. Multiple State bits may be set; a row matches if any
// selected state applies to it.
type Flags struct {
	IncludeTypeKey      bool
	IncludeTypeMultisig bool

	IncludeStateUnlocked   bool
	IncludeStateSoftLocked bool
	IncludeStateLocked     bool
	IncludeStateSpent      bool
}

// AllFlags matches every type and state, useful for tests and for wallet
// code that wants every row regardless of spendability.
func AllFlags() Flags {
	return Flags{
		IncludeTypeKey:         true,
		IncludeTypeMultisig:    true,
		IncludeStateUnlocked:   true,
		IncludeStateSoftLocked: true,
		IncludeStateLocked:     true,
		IncludeStateSpent:      true,
	}
}

func (f Flags) matchesType(t OutputType) bool {
	switch t {
	case OutputTypeKey:
		return f.IncludeTypeKey
	default:
		return f.IncludeTypeMultisig
	}
}

// IsSpendTimeUnlocked reports whether unlockTime (a block height below
// MaxBlockHeight, otherwise a unix timestamp) has passed relative to
// currentHeight/currentTime.
func IsSpendTimeUnlocked(unlockTime, currentHeight, currentTime uint64) bool {
	if txmodel.IsUnlockTimeBlockIndex(unlockTime) {
		return currentHeight >= unlockTime
	}
	return currentTime >= unlockTime
}

func (c *Container) rowState(r *Row, currentTime uint64) (unlocked, softLocked, locked bool) {
	if r.Kind == KindSpent {
		return false, false, false
	}
	if !IsSpendTimeUnlocked(r.UnlockTime, c.currentHeight, currentTime) {
		return false, false, true
	}
	if r.Kind == KindUnconfirmed {
		return false, true, false
	}
	if c.currentHeight < r.BlockHeight+DefaultSpendableAge {
		return false, true, false
	}
	return true, false, false
}

func (f Flags) matchesState(r *Row, c *Container, currentTime uint64) bool {
	if r.Kind == KindSpent {
		return f.IncludeStateSpent
	}
	unlocked, softLocked, locked := c.rowState(r, currentTime)
	return (unlocked && f.IncludeStateUnlocked) ||
		(softLocked && f.IncludeStateSoftLocked) ||
		(locked && f.IncludeStateLocked)
}

func (c *Container) matches(r *Row, flags Flags, currentTime uint64) bool {
	return r.Visible && flags.matchesType(r.Type) && flags.matchesState(r, c, currentTime)
}

// Balance sums Amount over every visible row matching flags.
func (c *Container) Balance(flags Flags, currentTime uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total uint64
	for _, r := range c.rows {
		if c.matches(r, flags, currentTime) {
			total += r.Amount
		}
	}
	return total
}

// GetOutputs returns every row matching flags, regardless of transaction.
func (c *Container) GetOutputs(flags Flags, currentTime uint64) []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Row
	for _, r := range c.rows {
		if c.matches(r, flags, currentTime) {
			out = append(out, *r)
		}
	}
	return out
}

// GetTransactionOutputs returns the rows created by txHash matching flags.
func (c *Container) GetTransactionOutputs(txHash crypto.Hash, flags Flags, currentTime uint64) []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Row
	for _, r := range c.rowsForTxHash(txHash) {
		if c.matches(r, flags, currentTime) {
			out = append(out, *r)
		}
	}
	return out
}

// GetTransactionInputs returns the rows spent by txHash matching flags.
func (c *Container) GetTransactionInputs(txHash crypto.Hash, flags Flags, currentTime uint64) []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Row
	for _, id := range c.spentBySpendingTx[txHash] {
		r, ok := c.rows[id]
		if !ok {
			continue
		}
		if c.matches(r, flags, currentTime) {
			out = append(out, *r)
		}
	}
	return out
}

// TransactionInformation is a transaction record with its aggregated
// amount-in/amount-out computed by walking the three collections.
type TransactionInformation struct {
	Record    TxRecord
	AmountIn  uint64
	AmountOut uint64
}

// GetTransactionInformation returns txHash's record plus aggregated
// amount-in (rows spent by it) and amount-out (rows created by it).
func (c *Container) GetTransactionInformation(txHash crypto.Hash) (TransactionInformation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.txs[txHash]
	if !ok {
		return TransactionInformation{}, ErrNotFound
	}

	info := TransactionInformation{Record: *rec}
	for _, r := range c.rowsForTxHash(txHash) {
		info.AmountOut += r.Amount
	}
	for _, id := range c.spentBySpendingTx[txHash] {
		if r, ok := c.rows[id]; ok {
			info.AmountIn += r.Amount
		}
	}
	return info, nil
}

// GetUnconfirmedTransactions returns every transaction record whose height
// is still the unconfirmed sentinel.
func (c *Container) GetUnconfirmedTransactions() []TxRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []TxRecord
	for _, rec := range c.txs {
		if rec.BlockHeight == UnconfirmedHeightSentinel {
			out = append(out, *rec)
		}
	}
	return out
}

// GetSpentOutputs returns every row currently in the Spent collection.
func (c *Container) GetSpentOutputs() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Row
	for _, r := range c.rows {
		if r.Kind == KindSpent {
			out = append(out, *r)
		}
	}
	return out
}
