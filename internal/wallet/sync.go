package wallet

import (
	"github.com/rawblock/cryptonote-core/internal/crypto"
	"github.com/rawblock/cryptonote-core/internal/cryptonote/txmodel"
	"github.com/rawblock/cryptonote-core/internal/transfers"
)

// OnSynchronizationProgressUpdated is the synchronizer's per-block progress
// callback. Besides forwarding an event, it unlocks every scheduled unlock
// job whose height has now passed.
func (w *Wallet) OnSynchronizationProgressUpdated(processed, total uint64) {
	w.pushEvent(Event{Kind: EventSyncProgressUpdated, Processed: processed, Total: total})

	if processed == 0 {
		return
	}
	confirmedThrough := processed - 1

	w.mu.Lock()
	var due bool
	remaining := w.unlockJobs[:0]
	for _, j := range w.unlockJobs {
		if j.unlockAt <= confirmedThrough {
			due = true
		} else {
			remaining = append(remaining, j)
		}
	}
	w.unlockJobs = remaining
	w.mu.Unlock()

	if due {
		w.pushEvent(Event{Kind: EventBalanceUnlocked})
	}
}

// OnSynchronizationCompleted reports that the synchronizer has caught up to
// the chain tip known at the time it started walking.
func (w *Wallet) OnSynchronizationCompleted() {
	w.pushEvent(Event{Kind: EventSyncCompleted})
}

// OnTransactionUpdated folds a newly observed or re-confirmed transaction
// into subscription's container and the wallet-level transaction table. The
// caller (the synchronizer) is responsible for calling container.AddTransaction
// or MarkTransactionConfirmed on subscription's container before invoking
// this; OnTransactionUpdated only reconciles the wallet-level bookkeeping
// that follows from that change.
func (w *Wallet) OnTransactionUpdated(subscription crypto.Address, txHash crypto.Hash, block transfers.BlockInfo) error {
	w.mu.Lock()
	rec, ok := w.addresses[subscription.SpendPublic]
	w.mu.Unlock()
	if !ok {
		return ErrUnknownAddress
	}

	// Rows this transaction spent are now reflected by the engine itself;
	// the selection-time reservation no longer needs to hold them back.
	for _, r := range rec.Container.GetTransactionInputs(txHash, transfers.AllFlags(), 0) {
		delete(rec.SpentOutputCache, r.ID)
	}

	info, err := rec.Container.GetTransactionInformation(txHash)
	if err != nil {
		return err
	}
	outs := rec.Container.GetTransactionOutputs(txHash, transfers.AllFlags(), 0)

	w.mu.Lock()
	wtx, existed := w.txs[txHash]
	if !existed {
		wtx = &WalletTx{Hash: txHash}
		w.txs[txHash] = wtx
	}
	wtx.State = transfers.TxSucceeded
	wtx.TotalAmount = int64(info.AmountOut) - int64(info.AmountIn)
	wtx.BlockHeight = block.Height
	wtx.Timestamp = block.Timestamp
	if info.AmountIn > info.AmountOut {
		wtx.Fee = info.AmountIn - info.AmountOut
	}
	if !existed && IsFusionTransaction(wtx.Fee, info.AmountIn, info.AmountOut, len(outs)) {
		wtx.IsFusion = true
		w.fusionCache[txHash] = true
	}
	w.mu.Unlock()

	if !block.IsUnconfirmed() {
		w.scheduleUnlockJob(txHash, subscription.SpendPublic, outs, block.Height)
	}

	kind := EventTransactionUpdated
	if !existed {
		kind = EventTransactionCreated
	}
	w.pushEvent(Event{Kind: kind, TxID: txHash})
	return nil
}

// scheduleUnlockJob records when txHash's outputs in subscription's
// container become spendable: the later of the default soft-lock age past
// its confirming block and any longer unlock_time the outputs themselves
// carry.
func (w *Wallet) scheduleUnlockJob(txHash crypto.Hash, spendPublic crypto.Point, outs []transfers.Row, blockHeight uint64) {
	unlockAt := blockHeight + transfers.DefaultSpendableAge
	for _, r := range outs {
		if txmodel.IsUnlockTimeBlockIndex(r.UnlockTime) && r.UnlockTime > unlockAt {
			unlockAt = r.UnlockTime
		}
	}

	w.mu.Lock()
	w.unlockJobs = append(w.unlockJobs, unlockJob{txHash: txHash, unlockAt: unlockAt, spendPublic: spendPublic})
	w.mu.Unlock()
}

// OnTransactionDeleted handles a transaction dropped from the pool (or
// detached by a reorg) before it ever confirmed: the caller has already
// removed its rows from subscription's container via
// Container.DeleteUnconfirmedTransaction; this reconciles the wallet-level
// record and any pending unlock job.
func (w *Wallet) OnTransactionDeleted(subscription crypto.Address, txHash crypto.Hash) error {
	w.mu.Lock()
	_, ok := w.addresses[subscription.SpendPublic]
	if !ok {
		w.mu.Unlock()
		return ErrUnknownAddress
	}

	if wtx, ok := w.txs[txHash]; ok {
		wtx.State = transfers.TxCancelled
		wtx.BlockHeight = transfers.UnconfirmedHeightSentinel
	}

	remaining := w.unlockJobs[:0]
	for _, j := range w.unlockJobs {
		if j.txHash != txHash {
			remaining = append(remaining, j)
		}
	}
	w.unlockJobs = remaining
	w.mu.Unlock()

	w.pushEvent(Event{Kind: EventTransactionUpdated, TxID: txHash})
	return nil
}
